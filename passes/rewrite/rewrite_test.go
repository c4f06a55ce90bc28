package rewrite

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plinkgo/plink/internal/archinfo"
	"github.com/plinkgo/plink/object"
	"github.com/plinkgo/plink/passes/dedup"
	"github.com/plinkgo/plink/passes/samemerge"
	"github.com/plinkgo/plink/symtab"
)

func newTestObject() *object.Object {
	return object.New(archinfo.Env{Class: archinfo.Class64, Machine: archinfo.MachineX86_64}, object.PositionDependent)
}

func TestRunRetargetsSectionRelativeSymbolAcrossSameNameMerge(t *testing.T) {
	o := newTestObject()
	a := o.AddSection(object.Section{Name: ".data", Content: object.Data{Perms: object.Perms{Read: true, Write: true}, Bytes: []byte{0x01, 0x02}}})
	b := o.AddSection(object.Section{Name: ".data", Content: object.Data{Perms: object.Perms{Read: true, Write: true}, Bytes: []byte{0x03, 0x04}}})
	id := o.Symbols.Insert(symtab.Symbol{Name: "g", Visibility: symtab.Global(false, false), Value: symtab.SectionRelative(b.ID, 1)})

	placements := samemerge.Run(o)
	require.NoError(t, Run(o, nil, placements, nil))

	sym := o.Symbols.Get(id)
	require.Equal(t, symtab.ValueSectionRelative, sym.Value.Kind)

	var merged *object.Section
	for _, sec := range o.Sections() {
		if sec.Name == ".data" {
			merged = sec
		}
	}
	require.NotNil(t, merged)
	require.Equal(t, merged.ID, sym.Value.Section)
	require.Equal(t, uint64(3), sym.Value.Offset, "b started at offset 2 inside the merged section, plus its own offset 1")
}

func TestRunRetargetsExplicitAddendThroughDedup(t *testing.T) {
	o := newTestObject()
	raw := append([]byte("same\x00"), []byte("same\x00")...)
	sec := o.AddSection(object.Section{
		Name:    ".rodata.str1.1",
		Content: object.Data{Perms: object.Perms{Read: true}, Dedup: object.StringDedup(), Bytes: raw},
	})
	secSym := o.Symbols.Insert(symtab.Symbol{Name: "", Visibility: symtab.Local(), Value: symtab.SectionSym(sec.ID)})

	referer := o.AddSection(object.Section{
		Name: ".data",
		Content: object.Data{
			Perms: object.Perms{Read: true, Write: true},
			Bytes: make([]byte, 4),
			Relocations: []object.Relocation{
				{Symbol: secSym, Offset: 0, Addend: object.ExplicitAddend(5)},
			},
		},
	})

	remaps := dedup.Run(o)
	require.NoError(t, Run(o, remaps, nil, nil))

	got := referer.Content.(object.Data).Relocations[0].Addend
	require.Equal(t, object.AddendExplicit, got.Kind)
	require.Equal(t, int64(0), got.Value, "the addend pointed at the second (duplicate) copy, which now lives at offset 0")
}

func TestRunErrorsOnMidChunkAddend(t *testing.T) {
	o := newTestObject()
	sec := o.AddSection(object.Section{
		Name:    ".data.rel.ro",
		Content: object.Data{Perms: object.Perms{Read: true}, Dedup: object.ChunkDedup(8), Bytes: make([]byte, 16)},
	})
	secSym := o.Symbols.Insert(symtab.Symbol{Name: "", Visibility: symtab.Local(), Value: symtab.SectionSym(sec.ID)})
	o.AddSection(object.Section{
		Name: ".data",
		Content: object.Data{
			Perms: object.Perms{Read: true, Write: true},
			Bytes: make([]byte, 4),
			Relocations: []object.Relocation{
				{Symbol: secSym, Offset: 0, Addend: object.ExplicitAddend(3)},
			},
		},
	})

	remaps := dedup.Run(o)
	err := Run(o, remaps, nil, nil)
	require.Error(t, err)
}

func TestRunRetargetsSectionSymbolAfterMerge(t *testing.T) {
	o := newTestObject()
	a := o.AddSection(object.Section{Name: ".text", Content: object.Data{Perms: object.Perms{Read: true, Execute: true}, Bytes: []byte{0x90}}})
	o.AddSection(object.Section{Name: ".text", Content: object.Data{Perms: object.Perms{Read: true, Execute: true}, Bytes: []byte{0x91}}})
	id := o.Symbols.Insert(symtab.Symbol{Name: "", Visibility: symtab.Local(), Value: symtab.SectionSym(a.ID)})

	placements := samemerge.Run(o)
	require.NoError(t, Run(o, nil, placements, nil))

	sym := o.Symbols.Get(id)
	require.Equal(t, symtab.ValueSection, sym.Value.Kind)

	var merged *object.Section
	for _, sec := range o.Sections() {
		if sec.Name == ".text" {
			merged = sec
		}
	}
	require.Equal(t, merged.ID, sym.Value.Section)
}

func TestRunDeduplicatesIdenticalStringsMergedFromDifferentInputs(t *testing.T) {
	o := newTestObject()
	a := o.AddSection(object.Section{
		Name:    ".rodata.str1.1",
		Source:  "a.o",
		Content: object.Data{Perms: object.Perms{Read: true}, Dedup: object.StringDedup(), Bytes: []byte("ab\x00cd\x00")},
	})
	b := o.AddSection(object.Section{
		Name:    ".rodata.str1.1",
		Source:  "b.o",
		Content: object.Data{Perms: object.Perms{Read: true}, Dedup: object.StringDedup(), Bytes: []byte("ab\x00cd\x00")},
	})
	aSym := o.Symbols.Insert(symtab.Symbol{Name: "", Visibility: symtab.Local(), Value: symtab.SectionSym(a.ID)})
	bSym := o.Symbols.Insert(symtab.Symbol{Name: "", Visibility: symtab.Local(), Value: symtab.SectionSym(b.ID)})

	referer := o.AddSection(object.Section{
		Name: ".data",
		Content: object.Data{
			Perms: object.Perms{Read: true, Write: true},
			Bytes: make([]byte, 8),
			Relocations: []object.Relocation{
				{Symbol: aSym, Offset: 0, Addend: object.ExplicitAddend(0)},
				{Symbol: bSym, Offset: 4, Addend: object.ExplicitAddend(0)},
			},
		},
	})

	placements := samemerge.Run(o)
	postRemaps := dedup.Run(o)
	require.NoError(t, Run(o, nil, placements, postRemaps))

	var merged *object.Section
	for _, sec := range o.Sections() {
		if sec.Name == ".rodata.str1.1" {
			merged = sec
		}
	}
	require.NotNil(t, merged)
	require.Equal(t, "ab\x00cd\x00", string(merged.Content.(object.Data).Bytes), "the two inputs' identical strings collapse to one copy")

	relocs := referer.Content.(object.Data).Relocations
	require.Equal(t, int64(0), relocs[0].Addend.Value)
	require.Equal(t, int64(0), relocs[1].Addend.Value, "b.o's copy of \"ab\\0cd\\0\" resolves to the same deduplicated offset as a.o's")
}
