// Package layout implements the layout engine of spec §4.13: it assigns
// file offsets and virtual addresses to every Part of the final image —
// the ELF header, program headers, every section (allocated or not), and
// the section header table.
//
// This generalizes go-obj/arch.Layout, which only ever described an
// architecture's byte order and word size for decoding integers out of an
// already-placed binary. The Layout here additionally answers "where does
// this Part live", the question a linker — as opposed to a reader — has to
// answer itself.
package layout

import (
	"fmt"

	"github.com/plinkgo/plink/internal/archinfo"
	"github.com/plinkgo/plink/internal/ids"
	"github.com/plinkgo/plink/object"
)

// Placement is where one Part of the image ends up.
type Placement struct {
	FileOffset uint64
	FileLen    uint64
	MemAddr    uint64
	MemLen     uint64
	Allocated  bool
}

// FileEnd returns the placement's exclusive file end offset.
func (p Placement) FileEnd() uint64 { return p.FileOffset + p.FileLen }

// MemEnd returns the placement's exclusive memory end address.
func (p Placement) MemEnd() uint64 { return p.MemAddr + p.MemLen }

// Layout is the computed placement of every Part in the final image.
type Layout struct {
	ElfHeader      Placement
	ProgramHeaders Placement
	SectionHeaders Placement

	sections map[ids.SectionID]Placement
	order    []ids.SectionID // order sections were placed in, for the emitter
}

// Section returns the placement computed for a section, and whether one
// was computed at all (sections that were never placed, which should not
// happen for a live section once Compute has run, report false).
func (l *Layout) Section(id ids.SectionID) (Placement, bool) {
	p, ok := l.sections[id]
	return p, ok
}

// Order returns every placed SectionID in the order Compute placed them:
// allocated sections first (grouped by segment), then non-allocated
// sections, matching spec §4.13's fixed Part order.
func (l *Layout) Order() []ids.SectionID { return l.order }

func roundUp(x, y uint64) uint64 { return (x + y - 1) &^ (y - 1) }

// headerSize returns the fixed size of the ELF file header for class.
func headerSize(class archinfo.Class) uint64 {
	if class == archinfo.Class64 {
		return 64
	}
	return 52
}

// programHeaderEntrySize returns the fixed size of one program header
// entry for class.
func programHeaderEntrySize(class archinfo.Class) uint64 {
	if class == archinfo.Class64 {
		return 56
	}
	return 32
}

// sectionHeaderEntrySize returns the fixed size of one section header
// entry for class.
func sectionHeaderEntrySize(class archinfo.Class) uint64 {
	if class == archinfo.Class64 {
		return 64
	}
	return 40
}

// Compute assigns file offsets and virtual addresses to every Part of o,
// per the algorithm in spec §4.13.
//
// o.Segments must already be built (spec pipeline stage 12, passes/segment)
// before Compute runs; Compute only sequences what's already grouped, it
// does not decide segment membership.
func Compute(o *object.Object) (*Layout, error) {
	class := o.Env.Class
	base := uint64(0)
	if o.Mode == object.PositionDependent {
		base = archinfo.BaseAddress
	}

	l := &Layout{sections: make(map[ids.SectionID]Placement)}

	off := uint64(0)
	addr := base

	// ElfHeader
	hlen := headerSize(class)
	l.ElfHeader = Placement{FileOffset: off, FileLen: hlen, MemAddr: addr, MemLen: hlen, Allocated: true}
	off += hlen
	addr += hlen

	// ProgramHeaders: must exactly cover the program header table (spec
	// §4.13 "PT_PHDR must exactly cover ProgramHeaders").
	phLen := uint64(len(o.Segments)) * programHeaderEntrySize(class)
	l.ProgramHeaders = Placement{FileOffset: off, FileLen: phLen, MemAddr: addr, MemLen: phLen, Allocated: true}
	off += phLen
	addr += phLen

	placed := make(map[ids.SectionID]bool)

	// Allocated sections, grouped by segment, in segment order (spec
	// §4.13 "allocated sections in a deterministic order respecting
	// segment grouping").
	for _, seg := range o.Segments {
		secIDs := seg.Sections()
		if len(secIDs) == 0 {
			continue
		}
		// Page-align both off and addr at the start of each PT_LOAD-style
		// segment so p_offset ≡ p_vaddr (mod page), matching spec's
		// "memory address advances... and is page-aligned at segment
		// boundaries".
		if seg.Type == object.SegmentProgram || seg.Type == object.SegmentUninitialized {
			addr = roundUp(addr, archinfo.PageSize)
			off = roundUp(off, archinfo.PageSize)
		}
		for _, id := range secIDs {
			sec := o.Section(id)
			if sec == nil {
				return nil, fmt.Errorf("layout: segment references missing section %v", id)
			}
			if placed[id] {
				continue
			}
			p := Placement{MemAddr: addr, Allocated: true}
			switch c := sec.Content.(type) {
			case object.Data:
				p.FileOffset = off
				p.FileLen = uint64(len(c.Bytes))
				p.MemLen = p.FileLen
				off += p.FileLen
				addr += p.MemLen
			case object.Uninitialized:
				// "Uninitialized sections have file_len = 0 but nonzero
				// memory_len" (spec §4.13).
				p.FileOffset = off
				p.FileLen = 0
				p.MemLen = c.Length
				addr += p.MemLen
			default:
				return nil, fmt.Errorf("layout: section %q in an allocated segment has non-allocatable content", sec.Name)
			}
			l.sections[id] = p
			l.order = append(l.order, id)
			placed[id] = true
		}
	}

	// Non-allocated sections: metadata tables (symtab, strtab, relocation
	// tables, dynamic, notes, group) in their original object order.
	for _, sec := range o.Sections() {
		if placed[sec.ID] {
			continue
		}
		if sec.Allocated() {
			return nil, fmt.Errorf("layout: allocated section %q was not assigned to any segment", sec.Name)
		}
		size, err := nonAllocatedSize(o, sec)
		if err != nil {
			return nil, err
		}
		l.sections[sec.ID] = Placement{FileOffset: off, FileLen: size}
		l.order = append(l.order, sec.ID)
		off += size
		placed[sec.ID] = true
	}

	// SectionHeaders, last (spec §6.2 "Contains, in order: ELF header,
	// program headers, section contents..., section headers").
	nsh := uint64(len(o.Sections())) + 1 // +1 for the reserved null section header
	shLen := nsh * sectionHeaderEntrySize(class)
	l.SectionHeaders = Placement{FileOffset: off, FileLen: shLen}

	return l, nil
}

// nonAllocatedSize computes the on-disk size of a non-allocated (pure
// metadata) section: symbol tables, string tables, relocation tables, the
// dynamic table, notes and groups all have a size derivable without
// needing the layout itself.
func nonAllocatedSize(o *object.Object, sec *object.Section) (uint64, error) {
	switch c := sec.Content.(type) {
	case object.Strings:
		return c.Table.Len(), nil
	case object.Symbols:
		entsize := uint64(24)
		if o.Env.Class == archinfo.Class32 {
			entsize = 16
		}
		return (uint64(len(c.View)) + 1) * entsize, nil // +1 for the null symbol
	case object.Relocations:
		entsize := relocEntrySize(o.Env.Class, c.Mode)
		return uint64(len(c.Items)) * entsize, nil
	case object.Dynamic:
		entsize := uint64(8)
		if o.Env.Class == archinfo.Class64 {
			entsize = 16
		}
		return uint64(len(c.Entries)+1) * entsize, nil // +1 for DT_NULL
	case object.SysvHash:
		symSec := o.Section(c.SymbolTable)
		if symSec == nil {
			return 0, fmt.Errorf("layout: .hash section %q references unknown symbol table %v", sec.Name, c.SymbolTable)
		}
		dynsym, ok := symSec.Content.(object.Symbols)
		if !ok {
			return 0, fmt.Errorf("layout: .hash section %q's symbol table %v is not a symbol table", sec.Name, c.SymbolTable)
		}
		nchain := uint64(len(dynsym.View)) + 1 // +1 for the null symbol
		nbucket := uint64(archinfo.HashBuckets(int(nchain)))
		return (2 + nbucket + nchain) * 4, nil
	case object.Notes:
		var total uint64
		for _, n := range c.Entries {
			total += 12 + roundUp(uint64(len(n.Name)+1), 4) + roundUp(uint64(len(n.Desc)), 4)
		}
		return total, nil
	case object.Group:
		return uint64(4 * (len(c.Sections) + 1)), nil
	default:
		return 0, fmt.Errorf("layout: section %q has unexpected non-allocated content %T", sec.Name, c)
	}
}

func relocEntrySize(class archinfo.Class, mode object.RelocMode) uint64 {
	word := uint64(4)
	if class == archinfo.Class64 {
		word = 8
	}
	if mode == object.RelocModeRela {
		return word * 3
	}
	return word * 2
}
