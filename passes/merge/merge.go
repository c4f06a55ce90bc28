// Package merge implements the object-merging pass (spec §4.3): it folds
// one relocatable (ET_REL) input's sections, symbols and relocations into
// the shared Object every other input is also merged into.
//
// Grounded on go-obj/obj/sym.go's SymFlags/SymKind categorization for
// telling local/global/weak/undefined symbols apart, extended with the
// strong/weak/undefined merge-rule table spec §3.5 describes — new logic
// with no direct teacher analog, since go-obj never merges two objects.
package merge

import (
	"fmt"

	"github.com/plinkgo/plink/internal/archinfo"
	"github.com/plinkgo/plink/internal/ids"
	"github.com/plinkgo/plink/object"
	"github.com/plinkgo/plink/rawelf"
	"github.com/plinkgo/plink/symtab"
)

// sectionMapping remembers, for one input, which new SectionID each raw
// section index now lives under. SectionID 0 is a legitimately allocated
// ID (spec §3.1 "there is no reserved null section value"), so presence
// must be tracked separately rather than by a zero-value sentinel.
type sectionMapping struct {
	ids   []ids.SectionID
	found []bool
}

func newSectionMapping(n int) sectionMapping {
	return sectionMapping{ids: make([]ids.SectionID, n), found: make([]bool, n)}
}

func (m *sectionMapping) set(raw uint16, id ids.SectionID) {
	m.ids[raw] = id
	m.found[raw] = true
}

func (m sectionMapping) lookup(raw uint16) (ids.SectionID, bool) {
	if raw == 0 || int(raw) >= len(m.ids) {
		return 0, false
	}
	return m.ids[raw], m.found[raw]
}

// mergeState carries the per-input bookkeeping defineSymbol/valueOf need:
// the raw->merged section mapping, plus the common-symbol allocator (spec
// §9 Open Question: STT_COMMON symbols are allocated into a synthesized
// per-input, `.bss`-style `*COMMON*` section rather than left as a bare
// absolute value; same-name merge later concatenates the inputs'
// `*COMMON*` sections into one, kept apart from `.bss`).
type mergeState struct {
	o       *object.Object
	span    string
	mapping sectionMapping

	commonSec *object.Section
	commonLen uint64
}

// allocCommon reserves space for a COMMON symbol of the given size and
// alignment (stored in sym.Value per the ELF convention for SHN_COMMON),
// lazily creating this input's `*COMMON*` section on first use.
func (ms *mergeState) allocCommon(size, align uint64) (ids.SectionID, uint64) {
	if ms.commonSec == nil {
		ms.commonSec = ms.o.AddSection(object.Section{
			Name:    "*COMMON*",
			Source:  ms.span,
			Content: object.Uninitialized{Perms: object.Perms{Read: true, Write: true}},
		})
	}
	if align > 1 {
		if rem := ms.commonLen % align; rem != 0 {
			ms.commonLen += align - rem
		}
	}
	off := ms.commonLen
	ms.commonLen += size
	ms.commonSec.Content = object.Uninitialized{
		Perms:  object.Perms{Read: true, Write: true},
		Length: ms.commonLen,
	}
	return ms.commonSec.ID, off
}

// Merge folds span's already-parsed raw ET_REL object into o: every
// non-empty PROGBITS/NOBITS section (except .note.GNU-stack) gets a fresh
// SectionID, every global symbol goes through o.Symbols.Define (locals
// through Insert; STT_FILE entries are skipped), and every relocation is
// normalized and attached to its owning Data section. The input's symbol,
// string, relocation, group and note sections get no Section of their own.
func Merge(o *object.Object, span string, raw *rawelf.RawObject, data []byte) error {
	class := classOf(o)
	machine := machineOf(o)

	ms := &mergeState{o: o, span: span, mapping: newSectionMapping(len(raw.Sections))}

	// Pass 1: create a Section for every section worth keeping. Empty
	// PROGBITS/NOBITS sections and .note.GNU-stack are dropped here,
	// per spec §4.3 step 6 "remove known-harmless empty sections".
	for i, sh := range raw.Sections {
		if i == 0 {
			continue // SHT_NULL
		}
		switch sh.Type {
		case rawelf.ShtProgbits, rawelf.ShtNobits:
			if sh.Name == ".note.GNU-stack" {
				o.GnuStackSectionIgnored = true
				continue
			}
			if sh.Size == 0 {
				continue
			}
			sec := buildDataSection(o, span, sh)
			ms.mapping.set(uint16(i), sec.ID)
		case rawelf.ShtStrtab, rawelf.ShtSymtab, rawelf.ShtRel, rawelf.ShtRela, rawelf.ShtGroup, rawelf.ShtNote:
			// Carried along only insofar as their referents need them;
			// merge never re-emits an input's own .symtab/.strtab/.rel*
			// sections verbatim, so these raw entries have no direct
			// Section counterpart; mapping has no entry for index i.
		default:
			// SHT_HASH, SHT_DYNSYM etc. should not appear in an ET_REL.
		}
	}

	// Pass 2: symbols. raw symbol index -> merged SymbolID, so
	// relocations (which reference raw symbol indices) can be translated.
	symtabSec := findSection(raw, rawelf.ShtSymtab)
	if symtabSec == nil {
		return fmt.Errorf("%s: no symbol table", span)
	}
	if int(symtabSec.Link) >= len(raw.Sections) {
		return fmt.Errorf("%s: .symtab sh_link out of range", span)
	}
	strtab := raw.Sections[symtabSec.Link]

	syms, err := rawelf.ParseSymbols(class, symtabSec.Data, strtab.Data)
	if err != nil {
		return fmt.Errorf("%s: parsing symbols: %w", span, err)
	}

	symIDs := make([]ids.SymbolID, len(syms))
	for i, sym := range syms {
		if i == 0 {
			continue
		}
		if sym.Type() == rawelf.SttFile {
			continue
		}
		id, err := defineSymbol(ms, sym)
		if err != nil {
			return fmt.Errorf("%s: symbol %q: %w", span, sym.Name, err)
		}
		symIDs[i] = id
	}

	// Pass 3: relocations, attached to their target Data section.
	for i, sh := range raw.Sections {
		if sh.Type != rawelf.ShtRel && sh.Type != rawelf.ShtRela {
			continue
		}
		if int(sh.Info) >= len(raw.Sections) {
			return fmt.Errorf("%s: relocation section %d sh_info out of range", span, i)
		}
		targetID, ok := ms.mapping.lookup(uint16(sh.Info))
		if !ok {
			continue // relocations against a dropped (empty) section
		}
		target := o.Section(targetID)
		d, isData := target.Content.(object.Data)
		if !isData {
			return fmt.Errorf("%s: relocations target non-data section %q", span, target.Name)
		}

		rels, err := rawelf.ParseRelocations(class, sh.Data, sh.Type == rawelf.ShtRela)
		if err != nil {
			return fmt.Errorf("%s: parsing relocations: %w", span, err)
		}
		for _, r := range rels {
			typ, err := archinfo.NormalizeReloc(machine, r.Type)
			if err != nil {
				return fmt.Errorf("%s: relocation against %q: %w", span, target.Name, err)
			}
			if int(r.Sym) >= len(symIDs) {
				return fmt.Errorf("%s: relocation symbol index %d out of range", span, r.Sym)
			}
			addend := object.InlineAddend()
			if sh.Type == rawelf.ShtRela {
				addend = object.ExplicitAddend(r.Addend)
			}
			d.Relocations = append(d.Relocations, object.Relocation{
				Type:   typ,
				Symbol: symIDs[r.Sym],
				Offset: r.Offset,
				Addend: addend,
			})
		}
		target.Content = d
	}

	o.Inputs = append(o.Inputs, object.InputSpan{Span: span})
	return nil
}

// ResolveWeakUndefined finalizes weak symbols that remain undefined once
// every input has been merged (spec §9 "weak symbol + shared object
// interaction"). A symbol can only be judged "surviving" after all
// inputs are seen, since a later input's strong or weak definition still
// wins over an earlier undefined reference (Define's merge-rule table);
// that is why this runs once, after Merge has been called for every
// input, rather than inside Merge itself.
//
// PositionDependent output bakes the conventional Absolute(0) in
// directly. PositionIndependent/SharedLibrary output instead leaves the
// symbol Undefined but marks it NeededByDynamic, giving the dynamic
// linker one more chance to bind it at load time against another shared
// object; passes/relocate resolves a still-undefined weak symbol to 0 in
// the meantime rather than erroring.
func ResolveWeakUndefined(o *object.Object) {
	dynamic := o.Mode.Dynamic()
	o.Symbols.All(func(s *symtab.Symbol) bool {
		if s.Value.Kind != symtab.ValueUndefined || !s.Visibility.Weak {
			return true
		}
		if dynamic {
			s.NeededByDynamic = true
		} else {
			s.Value = symtab.Absolute(0)
		}
		return true
	})
}

func buildDataSection(o *object.Object, span string, sh rawelf.SectionHeader) *object.Section {
	perms := object.Perms{
		Read:    true,
		Write:   sh.Flags&rawelf.ShfWrite != 0,
		Execute: sh.Flags&rawelf.ShfExecInstr != 0,
	}
	dedup := object.NoDedup()
	if sh.Flags&rawelf.ShfMerge != 0 {
		if sh.Flags&rawelf.ShfStrings != 0 {
			dedup = object.StringDedup()
		} else if sh.EntSize > 0 {
			dedup = object.ChunkDedup(sh.EntSize)
		}
	}

	if sh.Type == rawelf.ShtNobits {
		return o.AddSection(object.Section{
			Name:   sh.Name,
			Source: span,
			Content: object.Uninitialized{
				Perms:  perms,
				Length: sh.Size,
			},
		})
	}

	bytes := make([]byte, len(sh.Data))
	copy(bytes, sh.Data)
	return o.AddSection(object.Section{
		Name:   sh.Name,
		Source: span,
		Content: object.Data{
			Perms: perms,
			Dedup: dedup,
			Bytes: bytes,
		},
	})
}

func defineSymbol(ms *mergeState, sym rawelf.Sym) (ids.SymbolID, error) {
	if sym.Bind() == rawelf.StbLocal {
		value, err := valueOf(ms, sym)
		if err != nil {
			return 0, err
		}
		return ms.o.Symbols.Insert(symtab.Symbol{
			Name:       sym.Name,
			Type:       typeOf(sym.Type()),
			Visibility: symtab.Local(),
			Value:      value,
			Size:       sym.Size,
			Span:       ms.span,
		}), nil
	}

	value, err := valueOf(ms, sym)
	if err != nil {
		return 0, err
	}
	hidden := sym.Visibility() == 2 // STV_HIDDEN
	id, _, err := ms.o.Symbols.Define(symtab.Symbol{
		Name:       sym.Name,
		Type:       typeOf(sym.Type()),
		Visibility: symtab.Global(sym.Bind() == rawelf.StbWeak, hidden),
		Value:      value,
		Size:       sym.Size,
		Span:       ms.span,
	})
	return id, err
}

func valueOf(ms *mergeState, sym rawelf.Sym) (symtab.Value, error) {
	switch sym.Shndx {
	case rawelf.ShnUndef:
		return symtab.Undefined(), nil
	case rawelf.ShnAbs:
		return symtab.Absolute(sym.Value), nil
	case rawelf.ShnCommon:
		// sym.Value holds the required alignment for SHN_COMMON (spec §9
		// Open Question, resolved: common symbols are allocated into a
		// synthesized per-input `*COMMON*` section, which same-name merge
		// later combines with the other inputs' `*COMMON*` sections).
		id, off := ms.allocCommon(sym.Size, sym.Value)
		return symtab.SectionRelative(id, off), nil
	}
	id, ok := ms.mapping.lookup(sym.Shndx)
	if !ok {
		// Symbol defined against a section merge dropped (an empty
		// section); such a symbol must itself be unreferenced, or input
		// is inconsistent. Treat as section-relative offset zero into a
		// nonexistent section is unrepresentable, so surface it plainly.
		return symtab.Value{}, fmt.Errorf("defined against dropped section index %d", sym.Shndx)
	}
	if sym.Type() == rawelf.SttSection {
		return symtab.SectionSym(id), nil
	}
	return symtab.SectionRelative(id, sym.Value), nil
}

func typeOf(t uint8) symtab.Type {
	switch t {
	case rawelf.SttObject, rawelf.SttCommon:
		return symtab.Object
	case rawelf.SttFunc:
		return symtab.Function
	case rawelf.SttSection:
		return symtab.SectionType
	case rawelf.SttFile:
		return symtab.File
	default:
		return symtab.NoType
	}
}

func findSection(raw *rawelf.RawObject, typ rawelf.SectionHeaderType) *rawelf.SectionHeader {
	for i := range raw.Sections {
		if raw.Sections[i].Type == typ {
			return &raw.Sections[i]
		}
	}
	return nil
}

func classOf(o *object.Object) rawelf.Class {
	if o.Env.Class == archinfo.Class64 {
		return rawelf.Class64
	}
	return rawelf.Class32
}

func machineOf(o *object.Object) archinfo.Machine { return o.Env.Machine }
