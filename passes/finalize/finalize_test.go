package finalize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plinkgo/plink/internal/archinfo"
	"github.com/plinkgo/plink/layout"
	"github.com/plinkgo/plink/object"
	"github.com/plinkgo/plink/passes/segment"
	"github.com/plinkgo/plink/symtab"
)

func newTestObject() *object.Object {
	return object.New(archinfo.Env{Class: archinfo.Class64, Machine: archinfo.MachineX86_64}, object.PositionDependent)
}

func TestRunResolvesSectionRelativeSymbol(t *testing.T) {
	o := newTestObject()
	text := o.AddSection(object.Section{
		Name:    ".text",
		Content: object.Data{Perms: object.Perms{Read: true, Execute: true}, Bytes: make([]byte, 16)},
	})
	id := o.Symbols.Insert(symtab.Symbol{
		Name:       "foo",
		Visibility: symtab.Global(false, false),
		Value:      symtab.SectionRelative(text.ID, 8),
	})

	segment.Run(o, false, "", false)
	lay, err := layout.Compute(o)
	require.NoError(t, err)

	require.NoError(t, Run(o, lay))

	sym := o.Symbols.Get(id)
	p, ok := lay.Section(text.ID)
	require.True(t, ok)
	require.Equal(t, symtab.ValueSectionVirtualAddress, sym.Value.Kind)
	require.Equal(t, text.ID, sym.Value.Section)
	require.Equal(t, p.MemAddr+8, sym.Value.Addr)
}

func TestRunResolvesSectionSymbol(t *testing.T) {
	o := newTestObject()
	data := o.AddSection(object.Section{
		Name:    ".data",
		Content: object.Data{Perms: object.Perms{Read: true, Write: true}, Bytes: make([]byte, 4)},
	})
	id := o.Symbols.Insert(symtab.Symbol{Name: "sec", Visibility: symtab.Local(), Value: symtab.SectionSym(data.ID)})

	segment.Run(o, false, "", false)
	lay, err := layout.Compute(o)
	require.NoError(t, err)
	require.NoError(t, Run(o, lay))

	sym := o.Symbols.Get(id)
	p, ok := lay.Section(data.ID)
	require.True(t, ok)
	require.Equal(t, symtab.ValueSectionVirtualAddress, sym.Value.Kind)
	require.Equal(t, p.MemAddr, sym.Value.Addr)
}

func TestRunLeavesOtherKindsUntouched(t *testing.T) {
	o := newTestObject()
	absID := o.Symbols.Insert(symtab.Symbol{Name: "abs", Value: symtab.Absolute(0x1234)})
	undefID := o.Symbols.Insert(symtab.Symbol{Name: "undef", Value: symtab.Undefined()})

	lay, err := layout.Compute(o)
	require.NoError(t, err)
	require.NoError(t, Run(o, lay))

	require.Equal(t, symtab.Absolute(0x1234), o.Symbols.Get(absID).Value)
	require.Equal(t, symtab.Undefined(), o.Symbols.Get(undefID).Value)
}
