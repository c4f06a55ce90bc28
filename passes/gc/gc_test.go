package gc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plinkgo/plink/internal/archinfo"
	"github.com/plinkgo/plink/internal/ids"
	"github.com/plinkgo/plink/object"
	"github.com/plinkgo/plink/symtab"
)

func newTestObject() *object.Object {
	return object.New(archinfo.Env{Class: archinfo.Class64, Machine: archinfo.MachineX86_64}, object.PositionDependent)
}

func TestRunRemovesUnreachableSection(t *testing.T) {
	o := newTestObject()
	used := o.AddSection(object.Section{Name: ".text.used", Content: object.Data{Perms: object.Perms{Read: true, Execute: true}, Bytes: make([]byte, 4)}})
	unused := o.AddSection(object.Section{Name: ".text.unused", Content: object.Data{Perms: object.Perms{Read: true, Execute: true}, Bytes: make([]byte, 4)}})

	unusedSym := o.Symbols.Insert(symtab.Symbol{Name: "unused_fn", Visibility: symtab.Global(false, false), Value: symtab.SectionRelative(unused.ID, 0)})

	start := o.Symbols.Insert(symtab.Symbol{Name: "_start", Visibility: symtab.Global(false, false), Value: symtab.SectionRelative(used.ID, 0)})
	o.EntryPoint = start

	Run(o)

	require.NotNil(t, o.Section(used.ID))
	require.Nil(t, o.Section(unused.ID))
	require.Equal(t, symtab.ValueSectionNotLoaded, o.Symbols.Get(unusedSym).Value.Kind)
}

func TestRunFollowsRelocationsTransitively(t *testing.T) {
	o := newTestObject()
	helper := o.AddSection(object.Section{Name: ".text.helper", Content: object.Data{Perms: object.Perms{Read: true, Execute: true}, Bytes: make([]byte, 4)}})
	helperSym := o.Symbols.Insert(symtab.Symbol{Name: "helper", Visibility: symtab.Global(false, false), Value: symtab.SectionRelative(helper.ID, 0)})

	entry := o.AddSection(object.Section{
		Name: ".text.start",
		Content: object.Data{
			Perms:       object.Perms{Read: true, Execute: true},
			Bytes:       make([]byte, 4),
			Relocations: []object.Relocation{{Type: archinfo.Relative32, Symbol: helperSym, Offset: 0, Addend: object.InlineAddend()}},
		},
	})
	start := o.Symbols.Insert(symtab.Symbol{Name: "_start", Visibility: symtab.Global(false, false), Value: symtab.SectionRelative(entry.ID, 0)})
	o.EntryPoint = start

	Run(o)

	require.NotNil(t, o.Section(entry.ID))
	require.NotNil(t, o.Section(helper.ID), "helper is reachable via a relocation from the entry section")
}

func TestRunKeepsRetainMarkedSections(t *testing.T) {
	o := newTestObject()
	retained := o.AddSection(object.Section{Name: ".init_array", Retain: true, Content: object.Data{Perms: object.Perms{Read: true, Write: true}, Bytes: make([]byte, 8)}})
	o.EntryPoint = ids.NoSymbol

	Run(o)

	require.NotNil(t, o.Section(retained.ID))
}

func TestRunKeepsAlwaysRetainedSpecialSymbolSection(t *testing.T) {
	o := newTestObject()
	got := o.AddSection(object.Section{Name: ".got", Content: object.Data{Perms: object.Perms{Read: true, Write: true}, Bytes: make([]byte, 8)}})
	o.Symbols.Insert(symtab.Symbol{Name: "_GLOBAL_OFFSET_TABLE_", Visibility: symtab.Global(false, true), Value: symtab.SectionSym(got.ID)})
	o.EntryPoint = ids.NoSymbol

	Run(o)

	require.NotNil(t, o.Section(got.ID))
}
