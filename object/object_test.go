package object

import (
	"encoding/binary"
	"testing"

	"github.com/plinkgo/plink/internal/archinfo"
	"github.com/stretchr/testify/require"
)

func newTestObject() *Object {
	return New(archinfo.Env{Class: archinfo.Class64, Machine: archinfo.MachineX86_64}, PositionDependent)
}

func TestAddSectionAssignsID(t *testing.T) {
	o := newTestObject()
	s1 := o.AddSection(Section{Name: ".text", Content: Data{Perms: Perms{Read: true, Execute: true}}})
	s2 := o.AddSection(Section{Name: ".data", Content: Data{Perms: Perms{Read: true, Write: true}}})
	require.NotEqual(t, s1.ID, s2.ID)
	require.Same(t, s1, o.Section(s1.ID))
	require.Same(t, s2, o.Section(s2.ID))
}

func TestRemoveSectionDropsInvariantTarget(t *testing.T) {
	o := newTestObject()
	s := o.AddSection(Section{Name: ".text.unused", Content: Data{}})
	o.RemoveSection(s.ID)
	require.Nil(t, o.Section(s.ID))
	require.NotContains(t, sectionNames(o), ".text.unused")
}

func sectionNames(o *Object) []string {
	var out []string
	for _, s := range o.Sections() {
		out = append(out, s.Name)
	}
	return out
}

func TestCheckInvariantsCatchesDanglingRelocation(t *testing.T) {
	o := newTestObject()
	// An object with no symbols at all except the reserved null symbol: a
	// relocation referencing a never-allocated SymbolID should be caught.
	text := o.AddSection(Section{Name: ".text", Content: Data{
		Relocations: []Relocation{{Symbol: 999}},
	}})
	require.Error(t, o.CheckInvariants())
	_ = text
}

func TestEnvLayoutMatchesClass(t *testing.T) {
	o := newTestObject()
	require.Equal(t, 8, o.Env.Layout().WordSize())
	require.Equal(t, binary.LittleEndian, o.Env.Layout().Order())
}
