package samemerge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plinkgo/plink/internal/archinfo"
	"github.com/plinkgo/plink/object"
)

func newTestObject() *object.Object {
	return object.New(archinfo.Env{Class: archinfo.Class64, Machine: archinfo.MachineX86_64}, object.PositionDependent)
}

func TestRunConcatenatesSameNameSections(t *testing.T) {
	o := newTestObject()
	a := o.AddSection(object.Section{Name: ".text", Content: object.Data{Perms: object.Perms{Read: true, Execute: true}, Bytes: []byte{0x01, 0x02}}})
	b := o.AddSection(object.Section{Name: ".text", Content: object.Data{Perms: object.Perms{Read: true, Execute: true}, Bytes: []byte{0x03, 0x04, 0x05}}})

	placements := Run(o)

	require.Nil(t, o.Section(a.ID))
	require.Nil(t, o.Section(b.ID))

	var merged *object.Section
	for _, sec := range o.Sections() {
		if sec.Name == ".text" {
			merged = sec
		}
	}
	require.NotNil(t, merged)
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x05}, merged.Content.(object.Data).Bytes)

	var pa, pb *Placement
	for i := range placements {
		if placements[i].Original == a.ID {
			pa = &placements[i]
		}
		if placements[i].Original == b.ID {
			pb = &placements[i]
		}
	}
	require.NotNil(t, pa)
	require.NotNil(t, pb)
	require.Equal(t, merged.ID, pa.Target)
	require.Equal(t, merged.ID, pb.Target)
	require.Equal(t, uint64(0), pa.StartOffset)
	require.Equal(t, uint64(2), pb.StartOffset)
}

func TestRunMergesUninitializedSections(t *testing.T) {
	o := newTestObject()
	a := o.AddSection(object.Section{Name: ".bss", Content: object.Uninitialized{Perms: object.Perms{Read: true, Write: true}, Length: 16}})
	b := o.AddSection(object.Section{Name: ".bss", Content: object.Uninitialized{Perms: object.Perms{Read: true, Write: true}, Length: 8}})

	Run(o)

	var merged *object.Section
	for _, sec := range o.Sections() {
		if sec.Name == ".bss" {
			merged = sec
		}
	}
	require.NotNil(t, merged)
	require.Equal(t, uint64(24), merged.Content.(object.Uninitialized).Length)
	require.Nil(t, o.Section(a.ID))
	require.Nil(t, o.Section(b.ID))
}

func TestRunLeavesDifferentPermissionsUnmerged(t *testing.T) {
	o := newTestObject()
	o.AddSection(object.Section{Name: ".text", Content: object.Data{Perms: object.Perms{Read: true, Execute: true}, Bytes: []byte{0x01}}})
	o.AddSection(object.Section{Name: ".text", Content: object.Data{Perms: object.Perms{Read: true, Write: true}, Bytes: []byte{0x02}}})

	Run(o)

	var count int
	for _, sec := range o.Sections() {
		if sec.Name == ".text" {
			count++
		}
	}
	require.Equal(t, 2, count, "sections sharing a name but not permissions must not merge")
}

func TestRunPassesThroughSingleMemberGroups(t *testing.T) {
	o := newTestObject()
	a := o.AddSection(object.Section{Name: ".rodata", Content: object.Data{Perms: object.Perms{Read: true}, Bytes: []byte{0x09}}})

	placements := Run(o)

	require.Len(t, placements, 1)
	require.Equal(t, a.ID, placements[0].Original)
	require.Equal(t, a.ID, placements[0].Target)
	require.NotNil(t, o.Section(a.ID))
}
