package relocate

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plinkgo/plink/internal/archinfo"
	"github.com/plinkgo/plink/internal/ids"
	"github.com/plinkgo/plink/layout"
	"github.com/plinkgo/plink/object"
	"github.com/plinkgo/plink/passes/gotplt"
	"github.com/plinkgo/plink/passes/segment"
	"github.com/plinkgo/plink/symtab"
)

func newTestObject(mode object.Mode) *object.Object {
	return object.New(archinfo.Env{Class: archinfo.Class64, Machine: archinfo.MachineX86_64}, mode)
}

func computeLayout(t *testing.T, o *object.Object) *layout.Layout {
	t.Helper()
	segment.Run(o, o.Mode.Dynamic(), "", false)
	lay, err := layout.Compute(o)
	require.NoError(t, err)
	return lay
}

func TestRunWritesAbsoluteRelocation(t *testing.T) {
	o := newTestObject(object.PositionDependent)
	data := o.AddSection(object.Section{Name: ".data", Content: object.Data{Perms: object.Perms{Read: true, Write: true}, Bytes: make([]byte, 8)}})
	target := o.AddSection(object.Section{Name: ".text", Content: object.Data{Perms: object.Perms{Read: true, Execute: true}, Bytes: make([]byte, 4)}})
	sym := o.Symbols.Insert(symtab.Symbol{Name: "fn", Visibility: symtab.Global(false, false), Value: symtab.SectionRelative(target.ID, 0)})

	sec := o.Section(data.ID)
	d := sec.Content.(object.Data)
	d.Relocations = []object.Relocation{{Type: archinfo.Absolute32, Symbol: sym, Offset: 0, Addend: object.ExplicitAddend(0)}}
	sec.Content = d

	lay := computeLayout(t, o)
	require.NoError(t, Run(o, lay, archinfo.X86_64, gotplt.Result{}, ids.NoSymbol))

	p, ok := lay.Section(target.ID)
	require.True(t, ok)
	got := binary.LittleEndian.Uint32(o.Section(data.ID).Content.(object.Data).Bytes)
	require.Equal(t, uint32(p.MemAddr), got)
}

func TestRunWritesRelativeRelocation(t *testing.T) {
	o := newTestObject(object.PositionDependent)
	data := o.AddSection(object.Section{Name: ".text", Content: object.Data{Perms: object.Perms{Read: true, Execute: true}, Bytes: make([]byte, 8)}})
	target := o.AddSection(object.Section{Name: ".text.callee", Content: object.Data{Perms: object.Perms{Read: true, Execute: true}, Bytes: make([]byte, 4)}})
	sym := o.Symbols.Insert(symtab.Symbol{Name: "callee", Visibility: symtab.Global(false, false), Value: symtab.SectionRelative(target.ID, 0)})

	sec := o.Section(data.ID)
	d := sec.Content.(object.Data)
	d.Relocations = []object.Relocation{{Type: archinfo.Relative32, Symbol: sym, Offset: 4, Addend: object.ExplicitAddend(-4)}}
	sec.Content = d

	lay := computeLayout(t, o)
	require.NoError(t, Run(o, lay, archinfo.X86_64, gotplt.Result{}, ids.NoSymbol))

	callerP, _ := lay.Section(data.ID)
	calleeP, _ := lay.Section(target.ID)
	want := int64(calleeP.MemAddr) - 4 - int64(callerP.MemAddr+4)
	got := int32(binary.LittleEndian.Uint32(o.Section(data.ID).Content.(object.Data).Bytes[4:]))
	require.Equal(t, int32(want), got)
}

func TestRunReturnsUndefinedSymbolError(t *testing.T) {
	o := newTestObject(object.PositionDependent)
	data := o.AddSection(object.Section{Name: ".data", Content: object.Data{Perms: object.Perms{Read: true, Write: true}, Bytes: make([]byte, 4)}})
	sym := o.Symbols.Insert(symtab.Symbol{Name: "missing", Visibility: symtab.Global(false, false), Value: symtab.Undefined()})

	sec := o.Section(data.ID)
	d := sec.Content.(object.Data)
	d.Relocations = []object.Relocation{{Type: archinfo.Absolute32, Symbol: sym, Offset: 0, Addend: object.ExplicitAddend(0)}}
	sec.Content = d

	lay := computeLayout(t, o)
	err := Run(o, lay, archinfo.X86_64, gotplt.Result{}, ids.NoSymbol)
	require.Error(t, err)
	var undef *UndefinedSymbol
	require.ErrorAs(t, err, &undef)
	require.Equal(t, "missing", undef.Name)
}

func TestRunResolvesWeakUndefinedSymbolToZero(t *testing.T) {
	o := newTestObject(object.PositionDependent)
	data := o.AddSection(object.Section{Name: ".data", Content: object.Data{Perms: object.Perms{Read: true, Write: true}, Bytes: make([]byte, 4)}})
	sym := o.Symbols.Insert(symtab.Symbol{Name: "weak_hook", Visibility: symtab.Global(true, false), Value: symtab.Undefined()})

	sec := o.Section(data.ID)
	d := sec.Content.(object.Data)
	d.Relocations = []object.Relocation{{Type: archinfo.Absolute32, Symbol: sym, Offset: 0, Addend: object.ExplicitAddend(0)}}
	sec.Content = d

	lay := computeLayout(t, o)
	require.NoError(t, Run(o, lay, archinfo.X86_64, gotplt.Result{}, ids.NoSymbol))

	got := binary.LittleEndian.Uint32(o.Section(data.ID).Content.(object.Data).Bytes)
	require.Equal(t, uint32(0), got, "an unresolved weak symbol resolves to address 0 rather than erroring")
}

func TestRunReportsOutOfRangeValue(t *testing.T) {
	o := newTestObject(object.PositionDependent)
	data := o.AddSection(object.Section{Name: ".data", Content: object.Data{Perms: object.Perms{Read: true, Write: true}, Bytes: make([]byte, 4)}})
	sym := o.Symbols.Insert(symtab.Symbol{Name: "big", Visibility: symtab.Global(false, false), Value: symtab.Absolute(0x1_0000_0001)})

	sec := o.Section(data.ID)
	d := sec.Content.(object.Data)
	d.Relocations = []object.Relocation{{Type: archinfo.Absolute32, Symbol: sym, Offset: 0, Addend: object.ExplicitAddend(0)}}
	sec.Content = d

	lay := computeLayout(t, o)
	err := Run(o, lay, archinfo.X86_64, gotplt.Result{}, ids.NoSymbol)
	require.Error(t, err)
	var tooLarge *RelocatedAddressTooLarge
	require.ErrorAs(t, err, &tooLarge)
}

func TestRunFillsGotSlotDirectlyInStaticMode(t *testing.T) {
	o := newTestObject(object.PositionDependent)
	gotSec := o.AddSection(object.Section{Name: ".got", Content: object.Data{Perms: object.Perms{Read: true, Write: true}, Bytes: make([]byte, 8)}})
	target := o.AddSection(object.Section{Name: ".data.x", Content: object.Data{Perms: object.Perms{Read: true, Write: true}, Bytes: make([]byte, 4)}})
	sym := o.Symbols.Insert(symtab.Symbol{Name: "x", Visibility: symtab.Global(false, false), Value: symtab.SectionRelative(target.ID, 0)})

	sec := o.Section(gotSec.ID)
	d := sec.Content.(object.Data)
	d.Relocations = []object.Relocation{{Type: archinfo.FillGotSlot, Symbol: sym, Offset: 0, Addend: object.InlineAddend()}}
	sec.Content = d

	gp := gotplt.Result{GotSection: gotSec.ID, HasGot: true, GotOffset: map[ids.SymbolID]uint64{sym: 0}}

	lay := computeLayout(t, o)
	require.NoError(t, Run(o, lay, archinfo.X86_64, gp, ids.NoSymbol))

	targetP, _ := lay.Section(target.ID)
	got := binary.LittleEndian.Uint64(o.Section(gotSec.ID).Content.(object.Data).Bytes)
	require.Equal(t, targetP.MemAddr, got)
}

func TestRunDefersGotFillToRelaDynInDynamicMode(t *testing.T) {
	o := newTestObject(object.PositionIndependent)
	gotSec := o.AddSection(object.Section{Name: ".got", Content: object.Data{Perms: object.Perms{Read: true, Write: true}, Bytes: make([]byte, 8)}})
	target := o.AddSection(object.Section{Name: ".data.x", Content: object.Data{Perms: object.Perms{Read: true, Write: true}, Bytes: make([]byte, 4)}})
	sym := o.Symbols.Insert(symtab.Symbol{Name: "x", Visibility: symtab.Global(false, false), Value: symtab.SectionRelative(target.ID, 0)})

	sec := o.Section(gotSec.ID)
	d := sec.Content.(object.Data)
	d.Relocations = []object.Relocation{{Type: archinfo.FillGotSlot, Symbol: sym, Offset: 0, Addend: object.InlineAddend()}}
	sec.Content = d

	relaDyn := o.AddSection(object.Section{
		Name: ".rela.dyn",
		Content: object.Relocations{
			Mode:  object.RelocModeRela,
			Items: []object.Relocation{{Type: archinfo.FillGotSlot, Symbol: sym, Addend: object.InlineAddend()}},
		},
	})

	gp := gotplt.Result{
		GotSection: gotSec.ID, HasGot: true, GotOffset: map[ids.SymbolID]uint64{sym: 0},
		RelaDynSection: relaDyn.ID, HasRelaDyn: true,
	}

	lay := computeLayout(t, o)
	require.NoError(t, Run(o, lay, archinfo.X86_64, gp, ids.NoSymbol))

	targetP, _ := lay.Section(target.ID)
	items := o.Section(relaDyn.ID).Content.(object.Relocations).Items
	require.Len(t, items, 1)
	require.Equal(t, object.AddendExplicit, items[0].Addend.Kind)
	require.Equal(t, int64(targetP.MemAddr), items[0].Addend.Value)

	stillZero := binary.LittleEndian.Uint64(o.Section(gotSec.ID).Content.(object.Data).Bytes)
	require.Equal(t, uint64(0), stillZero, "dynamic-mode GOT fills are deferred to .rela.dyn, not written in place")
}
