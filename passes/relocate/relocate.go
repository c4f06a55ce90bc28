// Package relocate implements the relocation pass (spec §4.14): given the
// finalized Object plus its computed Layout, it walks every relocation
// attached to a Data section, computes the S/A/P/G/L/GOT expression from
// spec §3.7, and writes the result back into the section's bytes — or,
// for the two dynamic-fill relocation kinds in a PositionIndependent or
// SharedLibrary output, defers the write to a ".rela.dyn" entry the
// dynamic linker applies at load time.
//
// Grounded on go-obj/obj/reloc.go's RelocType class/value split and
// go-obj/obj/elfReloc.go's per-type size tables — go-obj only ever
// described a relocation well enough to print it, never computed or wrote
// one; this package is that missing other half.
package relocate

import (
	"encoding/binary"
	"fmt"

	"github.com/plinkgo/plink/internal/archinfo"
	"github.com/plinkgo/plink/internal/diag"
	"github.com/plinkgo/plink/internal/ids"
	"github.com/plinkgo/plink/layout"
	"github.com/plinkgo/plink/object"
	"github.com/plinkgo/plink/passes/gotplt"
	"github.com/plinkgo/plink/symtab"
)

// UndefinedSymbol is returned when a relocation's symbol never resolved
// to a usable value (spec §7 "undefined symbol", §4.14 step 1). It
// implements diag.Builder/diag.Context so the driver's error rendering
// can attach "did you mean" suggestions (spec's supplemented Jaro
// similarity feature) alongside the originating span.
type UndefinedSymbol struct {
	Name                 string
	WhileProcessingEntry bool
	SourceSpan           string
	Candidates           []string
}

func (e *UndefinedSymbol) Error() string {
	if e.WhileProcessingEntry {
		return fmt.Sprintf("undefined symbol %q (while processing the entry point)", e.Name)
	}
	return fmt.Sprintf("undefined symbol %q", e.Name)
}

func (e *UndefinedSymbol) DiagKind() diag.Kind { return diag.KindSymbol }
func (e *UndefinedSymbol) Span() string        { return e.SourceSpan }
func (e *UndefinedSymbol) Hints() []diag.Hint {
	hints := diag.SuggestHint(e.Name, e.Candidates)
	if e.WhileProcessingEntry {
		hints = append(hints, diag.Hint{Text: "pass a different entry symbol, or link with an entry point defined"})
	}
	return hints
}

// RelocatedAddressTooLarge is returned when a computed relocation value
// does not fit the target's representable range (spec §7 "out-of-range
// result", §8.1 "the 32-bit write never truncates").
type RelocatedAddressTooLarge struct {
	Section string
	Offset  uint64
	Value   int64
}

func (e *RelocatedAddressTooLarge) Error() string {
	return fmt.Sprintf("relocated address too large for section %q at offset 0x%x: 0x%x", e.Section, e.Offset, e.Value)
}

// Run walks every Data section's relocations and patches its bytes (or,
// for dynamic-fill relocations, accumulates a ".rela.dyn" entry) using
// the addresses lay computed. entrySymbol names the entry-point symbol
// purely for the WhileProcessingEntry diagnostic context.
func Run(o *object.Object, lay *layout.Layout, arch archinfo.Arch, gp gotplt.Result, entrySymbol ids.SymbolID) error {
	gotBase, haveGotBase := sectionBase(lay, gp.GotSection, gp.HasGot)
	gotPltBase, haveGotPltBase := sectionBase(lay, gp.GotPltSection, gp.HasGot || gp.HasPlt)
	pltBase, _ := sectionBase(lay, gp.PltSection, gp.HasPlt)
	gotTableAddr, haveGotTableAddr := resolveSymbolAddr(o, lay, "_GLOBAL_OFFSET_TABLE_")

	var dynItems []object.Relocation

	for _, sec := range o.Sections() {
		d, ok := sec.Content.(object.Data)
		if !ok || len(d.Relocations) == 0 {
			continue
		}
		p, ok := lay.Section(sec.ID)
		if !ok {
			return fmt.Errorf("relocate: section %q has no computed placement", sec.Name)
		}
		bytes := append([]byte(nil), d.Bytes...)

		for _, r := range d.Relocations {
			sym := o.Symbols.Get(r.Symbol)
			if sym == nil {
				return fmt.Errorf("relocate: section %q: relocation references unknown symbol %v", sec.Name, r.Symbol)
			}
			P := p.MemAddr + r.Offset

			if r.Type == archinfo.FillGotSlot || r.Type == archinfo.FillGotPltSlot {
				if o.Mode.Dynamic() {
					dynItems = append(dynItems, dynFillItem(o, lay, r, sym))
					continue
				}
				S, A, err := symbolValueAndAddend(o, lay, sym, r, bytes, entrySymbol)
				if err != nil {
					return err
				}
				arch.Layout.PutWord(bytes[r.Offset:], uint64(S+A))
				continue
			}

			val, err := computeValue(r.Type, o, lay, sym, r, bytes, P, computeInputs{
				gotBase: gotBase, haveGotBase: haveGotBase,
				gotPltBase: gotPltBase, haveGotPltBase: haveGotPltBase,
				pltBase: pltBase, gotTableAddr: gotTableAddr, haveGotTableAddr: haveGotTableAddr,
				gp: gp,
			}, entrySymbol)
			if err != nil {
				return err
			}
			if err := writeChecked(bytes, r, sec.Name, val); err != nil {
				return err
			}
		}

		sec.Content = object.Data{
			Perms:       d.Perms,
			Dedup:       d.Dedup,
			Bytes:       bytes,
			Relocations: d.Relocations,
			InsideRelro: d.InsideRelro,
		}
	}

	if gp.HasRelaDyn {
		relaSec := o.Section(gp.RelaDynSection)
		if relaSec == nil {
			return fmt.Errorf("relocate: .rela.dyn section missing")
		}
		rc := relaSec.Content.(object.Relocations)
		if len(dynItems) != len(rc.Items) {
			return fmt.Errorf("relocate: .rela.dyn entry count changed (%d built, %d reserved)", len(dynItems), len(rc.Items))
		}
		rc.Items = dynItems
		relaSec.Content = rc
	}

	return nil
}

// computeInputs bundles the architecture-wide terms (G's base, L's base,
// GOT's own address) that don't vary per relocation.
type computeInputs struct {
	gotBase, gotPltBase, pltBase uint64
	haveGotBase, haveGotPltBase  bool
	gotTableAddr                 uint64
	haveGotTableAddr             bool
	gp                           gotplt.Result
}

// computeValue implements spec §3.7's relocation formula table for every
// RelocType except the two dynamic-fill kinds (handled separately by
// Run, since those either write S+A directly in static mode or defer to
// .rela.dyn in dynamic mode).
func computeValue(t archinfo.RelocType, o *object.Object, lay *layout.Layout, sym *symtab.Symbol, r object.Relocation, bytes []byte, P uint64, in computeInputs, entrySym ids.SymbolID) (int64, error) {
	switch t {
	case archinfo.Absolute32, archinfo.AbsoluteSigned32, archinfo.Relative32:
		S, A, err := symbolValueAndAddend(o, lay, sym, r, bytes, entrySym)
		if err != nil {
			return 0, err
		}
		if t == archinfo.Relative32 {
			return S + A - int64(P), nil
		}
		return S + A, nil

	case archinfo.PLT32:
		if !in.gp.HasPlt {
			return 0, fmt.Errorf("relocate: PLT32 relocation against %q but no .plt was synthesized", sym.Name)
		}
		off, ok := in.gp.PltOffset[sym.ID]
		if !ok {
			return 0, fmt.Errorf("relocate: symbol %q has no PLT slot", sym.Name)
		}
		L := int64(in.pltBase) + int64(off)
		A, err := addendOnly(r, bytes)
		if err != nil {
			return 0, err
		}
		return L + A - int64(P), nil

	case archinfo.GOTRelative32, archinfo.GOTIndex32:
		if !in.haveGotBase {
			return 0, fmt.Errorf("relocate: GOT-relative relocation against %q but no .got was synthesized", sym.Name)
		}
		off, ok := in.gp.GotOffset[sym.ID]
		if !ok {
			return 0, fmt.Errorf("relocate: symbol %q has no GOT slot", sym.Name)
		}
		G := int64(in.gotBase) + int64(off)
		A, err := addendOnly(r, bytes)
		if err != nil {
			return 0, err
		}
		if t == archinfo.GOTRelative32 {
			return G + A - int64(P), nil
		}
		return G + A, nil

	case archinfo.GOTLocationRelative32:
		if !in.haveGotTableAddr {
			return 0, fmt.Errorf("relocate: GOT-relative relocation but _GLOBAL_OFFSET_TABLE_ was never defined")
		}
		A, err := addendOnly(r, bytes)
		if err != nil {
			return 0, err
		}
		return int64(in.gotTableAddr) + A - int64(P), nil

	case archinfo.OffsetFromGOT32:
		if !in.haveGotTableAddr {
			return 0, fmt.Errorf("relocate: GOT-relative relocation but _GLOBAL_OFFSET_TABLE_ was never defined")
		}
		S, A, err := symbolValueAndAddend(o, lay, sym, r, bytes, entrySym)
		if err != nil {
			return 0, err
		}
		return S + A - int64(in.gotTableAddr), nil

	default:
		return 0, fmt.Errorf("relocate: unsupported relocation type %v", t)
	}
}

// symbolValueAndAddend resolves both S (the symbol's address) and A (the
// addend, from wherever spec §4.14's "Addend source" says to read it for
// this relocation's mode).
func symbolValueAndAddend(o *object.Object, lay *layout.Layout, sym *symtab.Symbol, r object.Relocation, bytes []byte, entrySym ids.SymbolID) (int64, int64, error) {
	S, err := resolveAddr(lay, sym)
	if err != nil {
		return 0, 0, undefinedErr(o, sym, entrySym, r)
	}
	A, err := addendOnly(r, bytes)
	if err != nil {
		return 0, 0, err
	}
	return int64(S), A, nil
}

// addendOnly reads a relocation's addend: explicit (Rela) or inline from
// the 4 bytes at its target (Rel), per spec §3.7's "Addend source".
func addendOnly(r object.Relocation, bytes []byte) (int64, error) {
	if r.Addend.Kind == object.AddendExplicit {
		return r.Addend.Value, nil
	}
	if r.Offset+4 > uint64(len(bytes)) {
		return 0, fmt.Errorf("relocate: inline addend read out of range at offset 0x%x", r.Offset)
	}
	return int64(int32(binary.LittleEndian.Uint32(bytes[r.Offset:]))), nil
}

// writeChecked writes val into bytes at r's offset, sized per r.Type's
// Storage(), after checking it fits the representable range (spec §7
// "out-of-range result", §8.1).
func writeChecked(bytes []byte, r object.Relocation, secName string, val int64) error {
	n := r.Type.Storage()
	if r.Offset+uint64(n) > uint64(len(bytes)) {
		return fmt.Errorf("relocate: relocation at offset 0x%x in section %q extends past its end", r.Offset, secName)
	}
	if n == 4 {
		if r.Type.Signed() {
			if val < -(1 << 31) || val > (1<<31)-1 {
				return &RelocatedAddressTooLarge{Section: secName, Offset: r.Offset, Value: val}
			}
		} else {
			if val < 0 || val > (1<<32)-1 {
				return &RelocatedAddressTooLarge{Section: secName, Offset: r.Offset, Value: val}
			}
		}
		binary.LittleEndian.PutUint32(bytes[r.Offset:], uint32(val))
		return nil
	}
	binary.LittleEndian.PutUint64(bytes[r.Offset:], uint64(val))
	return nil
}

func undefinedErr(o *object.Object, sym *symtab.Symbol, entrySym ids.SymbolID, r object.Relocation) error {
	return &UndefinedSymbol{
		Name:                 sym.Name,
		WhileProcessingEntry: entrySym != ids.NoSymbol && entrySym == r.Symbol,
		SourceSpan:           sym.Span,
		Candidates:           o.Symbols.Names(),
	}
}

// resolveAddr resolves a symbol's address from its pre-finalization
// Value using lay (spec §4.14 step 1). ExternallyDefined is rejected here
// — callers processing a Rela-mode dynamic relocation handle it via
// dynFillItem instead, never through this path (spec "ExternallyDefined
// -> must only be used by Rela-mode dynamic relocations; otherwise
// error").
func resolveAddr(lay *layout.Layout, sym *symtab.Symbol) (uint64, error) {
	switch sym.Value.Kind {
	case symtab.ValueAbsolute, symtab.ValueSectionVirtualAddress:
		return sym.Value.Addr, nil
	case symtab.ValueSectionRelative:
		p, ok := lay.Section(sym.Value.Section)
		if !ok {
			return 0, fmt.Errorf("relocate: no placement for section %v", sym.Value.Section)
		}
		return p.MemAddr + sym.Value.Offset, nil
	case symtab.ValueSection:
		p, ok := lay.Section(sym.Value.Section)
		if !ok {
			return 0, fmt.Errorf("relocate: no placement for section %v", sym.Value.Section)
		}
		return p.MemAddr, nil
	case symtab.ValueUndefined:
		if sym.Visibility.Weak {
			// Survived merge.ResolveWeakUndefined as a dynamic-mode
			// export candidate (NeededByDynamic, still Undefined): any
			// direct (non-GOT/PLT) reference resolves to 0 locally,
			// same as a PositionDependent weak-undefined symbol already
			// baked to Absolute(0).
			return 0, nil
		}
		return 0, fmt.Errorf("relocate: symbol %q has no resolvable address", sym.Name)
	default:
		return 0, fmt.Errorf("relocate: symbol %q has no resolvable address", sym.Name)
	}
}

func resolveSymbolAddr(o *object.Object, lay *layout.Layout, name string) (uint64, bool) {
	id, ok := o.Symbols.Lookup(name)
	if !ok {
		return 0, false
	}
	sym := o.Symbols.Get(id)
	addr, err := resolveAddr(lay, sym)
	if err != nil {
		return 0, false
	}
	return addr, true
}

func sectionBase(lay *layout.Layout, id ids.SectionID, have bool) (uint64, bool) {
	if !have {
		return 0, false
	}
	p, ok := lay.Section(id)
	if !ok {
		return 0, false
	}
	return p.MemAddr, true
}

// dynFillItem builds the ".rela.dyn" entry for a FillGotSlot/
// FillGotPltSlot relocation in dynamic mode (spec §4.11 "Dynamic mode"):
// a locally-defined symbol's link-time address S is baked into the addend;
// a symbol only known at runtime (ExternallyDefined), or one whose address
// does not resolve, gets addend 0 and is left for the dynamic linker.
// Every entry keeps the relocation's own SymbolID so the emitter can still
// identify which symbol it names.
func dynFillItem(o *object.Object, lay *layout.Layout, r object.Relocation, sym *symtab.Symbol) object.Relocation {
	if sym.Value.Kind == symtab.ValueExternallyDefined {
		return object.Relocation{Type: r.Type, Symbol: r.Symbol, Offset: r.Offset, Addend: object.ExplicitAddend(0)}
	}
	S, err := resolveAddr(lay, sym)
	if err != nil {
		return object.Relocation{Type: r.Type, Symbol: r.Symbol, Offset: r.Offset, Addend: object.ExplicitAddend(0)}
	}
	return object.Relocation{Type: r.Type, Symbol: r.Symbol, Offset: r.Offset, Addend: object.ExplicitAddend(int64(S))}
}
