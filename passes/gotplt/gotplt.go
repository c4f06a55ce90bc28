// Package gotplt synthesizes the global offset table, the PLT-GOT table
// and the procedure linkage table stubs (spec §4.11): it scans every
// surviving relocation for GOT/PLT entry requirements, allocates one slot
// per symbol that needs one, and emits .got, .got.plt and .plt as ordinary
// sections carrying their own FillGotSlot/FillGotPltSlot relocations for
// passes/relocate to resolve later.
//
// New logic — the teacher only ever disassembles already-linked PLT stubs
// (go-obj/arch has no writer side) — but the per-symbol slot bookkeeping
// follows the same ordered, first-use-wins allocation shape
// passes/merge's allocCommon uses for STT_COMMON.
package gotplt

import (
	"fmt"

	"github.com/plinkgo/plink/internal/archinfo"
	"github.com/plinkgo/plink/internal/ids"
	"github.com/plinkgo/plink/object"
	"github.com/plinkgo/plink/symtab"
)

// pltReserved is the number of .got.plt slots reserved ahead of the first
// per-symbol entry: slot 0 is left zero, slot 1 holds the module's
// link_map pointer and slot 2 the resolver entry point, both filled by the
// dynamic linker at load time. The PLT header pushes slot 1 and jumps
// through slot 2.
const pltReserved = 3

// Result records where gotplt.Run placed each symbol's GOT/PLT slot, for
// passes/relocate to compute the G and L relocation terms from.
type Result struct {
	GotSection    ids.SectionID
	HasGot        bool
	GotPltSection ids.SectionID
	PltSection    ids.SectionID
	HasPlt        bool

	// GotOffset maps a symbol needing a .got entry to its byte offset
	// within .got.
	GotOffset map[ids.SymbolID]uint64
	// PltOffset maps a symbol needing a PLT stub to its byte offset
	// within .plt (the stub's first byte, not its .got.plt slot).
	PltOffset map[ids.SymbolID]uint64

	// RelaDynSection is ".rela.dyn", present only for dynamic-mode output
	// with at least one GOT/PLT entry (spec §4.11 "Dynamic mode... Emit
	// additional synthesized relocations into .rela.dyn"). passes/relocate
	// fills in its Items once the layout is known; its length is fixed
	// here (len(gotOrder)+len(pltOrder)) so the layout engine sizes it
	// correctly before relocate ever runs.
	RelaDynSection ids.SectionID
	HasRelaDyn     bool
}

// Run scans every Data section's relocations for GOT/PLT requirements and
// builds the slots/stubs they need. readOnlyGot and readOnlyGotPlt mark
// the synthesized .got/.got.plt sections InsideRelro (spec §6.3
// "read_only_got, read_only_got_plt affect inside_relro on synthesized
// sections"), so passes/segment groups them into PT_GNU_RELRO instead of
// the ordinary writable PT_LOAD.
func Run(o *object.Object, arch archinfo.Arch, readOnlyGot, readOnlyGotPlt bool) (Result, error) {
	gotOrder, gotSeen := []ids.SymbolID{}, map[ids.SymbolID]bool{}
	pltOrder, pltSeen := []ids.SymbolID{}, map[ids.SymbolID]bool{}
	needsGotSection := false
	needsGotPltSection := false

	for _, sec := range o.Sections() {
		d, ok := sec.Content.(object.Data)
		if !ok {
			continue
		}
		for _, rel := range d.Relocations {
			sym := o.Symbols.Get(rel.Symbol)
			if sym == nil {
				return Result{}, fmt.Errorf("section %q: relocation references unknown symbol %v", sec.Name, rel.Symbol)
			}
			if sym.Name == "_GLOBAL_OFFSET_TABLE_" {
				needsGotPltSection = true
			}
			if rel.Type.NeedsGOTSection() {
				needsGotSection = true
			}
			switch {
			case rel.Type.NeedsGOTPLTEntry():
				if !pltSeen[sym.ID] {
					pltSeen[sym.ID] = true
					pltOrder = append(pltOrder, sym.ID)
				}
			case rel.Type.NeedsGOTEntry():
				if !gotSeen[sym.ID] {
					gotSeen[sym.ID] = true
					gotOrder = append(gotOrder, sym.ID)
				}
			}
		}
	}

	var res Result
	word := arch.Layout.WordSize()

	if len(gotOrder) > 0 || needsGotSection {
		gotID, offsets := buildGot(o, gotOrder, word, readOnlyGot)
		res.GotSection = gotID
		res.HasGot = true
		res.GotOffset = offsets
	}

	if len(pltOrder) > 0 || (needsGotPltSection && !res.HasGot) {
		gotPltID, pltID, pltOffsets, err := buildGotPlt(o, pltOrder, word, arch.Machine, readOnlyGotPlt)
		if err != nil {
			return Result{}, err
		}
		res.GotPltSection = gotPltID
		res.PltSection = pltID
		res.HasPlt = len(pltOrder) > 0
		res.PltOffset = pltOffsets
	}

	if base, ok := globalOffsetTableBase(res); ok {
		if _, _, err := o.Symbols.Define(symtab.Symbol{
			Name:       "_GLOBAL_OFFSET_TABLE_",
			Type:       symtab.Object,
			Visibility: symtab.Global(false, true),
			Value:      symtab.SectionSym(base),
			Span:       "<got/plt synthesis>",
		}); err != nil {
			return Result{}, fmt.Errorf("defining _GLOBAL_OFFSET_TABLE_: %w", err)
		}
	}

	if res.HasPlt {
		appendPltDynamicEntries(o, res)
	}

	if o.Mode.Dynamic() && (len(gotOrder) > 0 || len(pltOrder) > 0) {
		buildRelaDyn(o, &res, gotOrder, pltOrder)
	}

	return res, nil
}

// buildRelaDyn reserves ".rela.dyn" with one placeholder Rela entry per
// GOT/PLT slot requiring a runtime fixup (spec §4.11 "Dynamic mode").
// passes/relocate overwrites Items with the final resolved (address,
// addend) pairs once section addresses are known; the entry count — and
// therefore the section's on-disk size — never changes after this point,
// so the layout engine can size it now.
func buildRelaDyn(o *object.Object, res *Result, gotOrder, pltOrder []ids.SymbolID) {
	items := make([]object.Relocation, 0, len(gotOrder)+len(pltOrder))
	for _, sym := range gotOrder {
		items = append(items, object.Relocation{Type: archinfo.FillGotSlot, Symbol: sym, Addend: object.InlineAddend()})
	}
	for _, sym := range pltOrder {
		items = append(items, object.Relocation{Type: archinfo.FillGotPltSlot, Symbol: sym, Addend: object.InlineAddend()})
	}
	sec := o.AddSection(object.Section{
		Name:   ".rela.dyn",
		Source: "<got/plt synthesis>",
		Content: object.Relocations{
			Mode:  object.RelocModeRela,
			Items: items,
		},
	})
	res.RelaDynSection = sec.ID
	res.HasRelaDyn = true

	if dynSec := o.SectionByName(".dynamic"); dynSec != nil {
		dyn := dynSec.Content.(object.Dynamic)
		word := uint64(4)
		if o.Env.Class == archinfo.Class64 {
			word = 8
		}
		dyn.Entries = append(dyn.Entries, object.DynamicEntry{
			Kind:          object.DynRela,
			Section:       sec.ID,
			RelaEntrySize: word * 3,
		})
		dynSec.Content = dyn
	}
}

// buildGot allocates one slot per symbol in order, each carrying a
// FillGotSlot relocation for passes/relocate to write S+A (static) or
// leave for a GLOB_DAT/RELATIVE-style dynamic fixup into.
func buildGot(o *object.Object, order []ids.SymbolID, word int, readOnly bool) (ids.SectionID, map[ids.SymbolID]uint64) {
	bytes := make([]byte, len(order)*word)
	relocs := make([]object.Relocation, len(order))
	offsets := make(map[ids.SymbolID]uint64, len(order))
	for i, sym := range order {
		off := uint64(i * word)
		offsets[sym] = off
		relocs[i] = object.Relocation{
			Type:   archinfo.FillGotSlot,
			Symbol: sym,
			Offset: off,
			Addend: object.InlineAddend(),
		}
	}
	sec := o.AddSection(object.Section{
		Name:   ".got",
		Source: "<got/plt synthesis>",
		Content: object.Data{
			Perms:       object.Perms{Read: true, Write: true},
			Bytes:       bytes,
			Relocations: relocs,
			InsideRelro: readOnly,
		},
	})
	return sec.ID, offsets
}

// buildGotPlt allocates the reserved loader slots plus one .got.plt slot
// and one .plt stub per symbol, wiring the stub's internal displacement
// fields to point at its own slot via synthetic, table-only symbols (spec
// §4.11's PLT stub layout, generalized from the fixed byte templates in
// internal/archinfo/gotplt.go).
func buildGotPlt(o *object.Object, order []ids.SymbolID, word int, machine archinfo.Machine, readOnly bool) (ids.SectionID, ids.SectionID, map[ids.SymbolID]uint64, error) {
	n := len(order)
	gotPltBytes := make([]byte, (pltReserved+n)*word)
	gotPltRelocs := make([]object.Relocation, 0, n)
	for i, sym := range order {
		off := uint64((pltReserved + i) * word)
		gotPltRelocs = append(gotPltRelocs, object.Relocation{
			Type:   archinfo.FillGotPltSlot,
			Symbol: sym,
			Offset: off,
			Addend: object.InlineAddend(),
		})
	}
	gotPlt := o.AddSection(object.Section{
		Name:   ".got.plt",
		Source: "<got/plt synthesis>",
		Content: object.Data{
			Perms:       object.Perms{Read: true, Write: true},
			Bytes:       gotPltBytes,
			Relocations: gotPltRelocs,
			InsideRelro: readOnly,
		},
	})

	header := archinfo.PLTHeader(machine)
	stubTemplate := archinfo.PLTStub(machine)
	pltBytes := make([]byte, 0, len(header)+n*len(stubTemplate))
	pltBytes = append(pltBytes, header...)
	var pltRelocs []object.Relocation
	pltOffsets := make(map[ids.SymbolID]uint64, n)

	gotPltSlotSym := func(slot uint64) ids.SymbolID {
		return o.Symbols.Insert(symtab.Symbol{
			Name:              "",
			Visibility:        symtab.Local(),
			Value:             symtab.SectionRelative(gotPlt.ID, slot*uint64(word)),
			Span:              "<got/plt synthesis>",
			ExcludeFromTables: true,
		})
	}

	switch machine {
	case archinfo.MachineX86_64, archinfo.MachineX86:
		addDisp := func(stubOffset uint64, fieldOffset int, target ids.SymbolID) {
			pltRelocs = append(pltRelocs, object.Relocation{
				Type:   gotDispRelocType(machine),
				Symbol: target,
				Offset: stubOffset + uint64(fieldOffset),
				Addend: gotDispAddend(machine),
			})
		}
		addDisp(0, 2, gotPltSlotSym(1))
		addDisp(0, 8, gotPltSlotSym(2))

		headerSym := o.Symbols.Insert(symtab.Symbol{
			Visibility:        symtab.Local(),
			Value:             symtab.SectionRelative(0, 0), // patched below once .plt exists
			Span:              "<got/plt synthesis>",
			ExcludeFromTables: true,
		})

		for i, sym := range order {
			stubOffset := uint64(len(header) + i*len(stubTemplate))
			pltOffsets[sym] = stubOffset
			pltBytes = append(pltBytes, stubTemplate...)
			addDisp(stubOffset, 2, gotPltSlotSym(uint64(pltReserved+i)))
			pltRelocs = append(pltRelocs, object.Relocation{
				Type:   archinfo.Relative32,
				Symbol: headerSym,
				Offset: stubOffset + 12,
				Addend: object.ExplicitAddend(-4),
			})
		}

		plt := o.AddSection(object.Section{
			Name:   ".plt",
			Source: "<got/plt synthesis>",
			Content: object.Data{
				Perms:       object.Perms{Read: true, Execute: true},
				Bytes:       pltBytes,
				Relocations: pltRelocs,
			},
		})
		if s := o.Symbols.Get(headerSym); s != nil {
			s.Value = symtab.SectionRelative(plt.ID, 0)
		}
		return gotPlt.ID, plt.ID, pltOffsets, nil
	default:
		return 0, 0, nil, fmt.Errorf("gotplt: unsupported machine %v", machine)
	}
}

// gotDispRelocType picks the relocation formula for a PLT stub's
// GOT-pointing displacement field: RIP-relative on x86-64, GOT-base-
// relative on x86 (where the runtime ebx already holds the GOT base, so
// the field only needs to carry the slot's offset from it).
func gotDispRelocType(machine archinfo.Machine) archinfo.RelocType {
	if machine == archinfo.MachineX86 {
		return archinfo.OffsetFromGOT32
	}
	return archinfo.Relative32
}

func gotDispAddend(machine archinfo.Machine) object.Addend {
	if machine == archinfo.MachineX86 {
		return object.ExplicitAddend(0)
	}
	return object.ExplicitAddend(-4)
}

// appendPltDynamicEntries adds the DT_PLTGOT dynamic entry (via DynPlt)
// that passes/dynamic could not populate itself, since .got.plt is only
// materialized here. No .rela.plt section is built, so no DT_JMPREL or
// DT_PLTRELSZ entry is added. A PositionDependent static output has no
// .dynamic section at all, in which case this is a no-op.
func appendPltDynamicEntries(o *object.Object, res Result) {
	dynSec := o.SectionByName(".dynamic")
	if dynSec == nil {
		return
	}
	dyn := dynSec.Content.(object.Dynamic)
	dyn.Entries = append(dyn.Entries,
		object.DynamicEntry{Kind: object.DynPlt, Section: res.GotPltSection},
	)
	dynSec.Content = dyn
}

// globalOffsetTableBase returns the section _GLOBAL_OFFSET_TABLE_ should
// point at: .got if one was built, else .got.plt (spec §4.11 "Define
// _GLOBAL_OFFSET_TABLE_ at the .got base"; a bare reference with no other
// GOT entries still needs .got.plt per the relocation-analysis rule).
func globalOffsetTableBase(res Result) (ids.SectionID, bool) {
	if res.HasGot {
		return res.GotSection, true
	}
	if res.GotPltSection != 0 || res.HasPlt {
		return res.GotPltSection, true
	}
	return 0, false
}
