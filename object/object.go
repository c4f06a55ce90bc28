// Package object implements the linker's in-memory Object model (spec
// §3.3–§3.9): sections, symbols, relocations, string tables and segments,
// addressed through the stable opaque identifiers in internal/ids.
//
// This generalizes go-obj's obj package, which modeled a single,
// already-built object file purely for read access (Section, Sym,
// SectionFlags, SymFlags -- see obj/obj.go, obj/sym.go). Object here is
// the mutable container a link job grows across many inputs and many
// passes (spec §2's sixteen-stage pipeline all operate on one of these).
package object

import (
	"fmt"
	"sort"

	"github.com/plinkgo/plink/internal/archinfo"
	"github.com/plinkgo/plink/internal/ids"
	"github.com/plinkgo/plink/symtab"
)

// Mode selects the kind of output this link job produces (spec §3.3).
type Mode uint8

const (
	PositionDependent Mode = iota
	PositionIndependent
	SharedLibrary
)

func (m Mode) String() string {
	switch m {
	case PositionDependent:
		return "position-dependent"
	case PositionIndependent:
		return "position-independent"
	case SharedLibrary:
		return "shared-library"
	default:
		return "unknown-mode"
	}
}

func (m Mode) Dynamic() bool { return m == PositionIndependent || m == SharedLibrary }

// InputSpan records where one input came from (spec §3.3 "inputs").
type InputSpan struct {
	Span           string
	SharedObject   bool
	GnuProperties  GnuProperties
}

// GnuProperties is the subset of GNU program property notes this linker
// understands well enough to merge (spec §4.3 step 5, §4.12).
type GnuProperties struct {
	X86IsaUsed      uint32 // AND-merged across inputs
	X86Features2Used uint32 // OR-merged across inputs
}

// Object is the top-level mutable container for one link job (spec §3.3).
type Object struct {
	Env  archinfo.Env
	Mode Mode

	sections    map[ids.SectionID]*Section
	sectionIDs  ids.Allocator[ids.SectionID]
	sectionOrder []ids.SectionID // insertion order, for deterministic iteration

	Symbols *symtab.Table
	Strings map[ids.SectionID]*StringTable

	Segments []*Segment

	DynamicEntries []DynamicEntry
	Inputs         []InputSpan

	// NeededLibraries lists the soname (or input path, lacking a
	// DT_SONAME) of every shared-object input that contributed at least
	// one definition, in load order (spec §4.4, §4.9's DT_NEEDED). The
	// dynamic-section synthesis pass turns this into DynNeeded entries
	// once .dynstr's layout is known.
	NeededLibraries []string

	EntryPoint ids.SymbolID

	ExecutableStack            bool
	GnuStackSectionIgnored     bool
}

// New creates an empty Object for the given environment and mode.
func New(env archinfo.Env, mode Mode) *Object {
	return &Object{
		Env:     env,
		Mode:    mode,
		sections: make(map[ids.SectionID]*Section),
		Symbols: symtab.NewTable(),
		Strings: make(map[ids.SectionID]*StringTable),
	}
}

// AddSection allocates a new SectionID and registers sec under it. The
// caller must leave sec.ID zero; AddSection assigns it.
func (o *Object) AddSection(sec Section) *Section {
	id := o.sectionIDs.Alloc()
	sec.ID = id
	o.sections[id] = &sec
	o.sectionOrder = append(o.sectionOrder, id)
	return o.sections[id]
}

// Section looks up a section by ID. It returns nil if the section has
// been removed (e.g. by GC) or never existed.
func (o *Object) Section(id ids.SectionID) *Section {
	return o.sections[id]
}

// RemoveSection deletes a section from the Object. Callers are
// responsible for first rewriting (or invalidating) any symbol,
// relocation or segment that referenced it, per spec §3.3's invariant
// that every referenced SectionId must exist.
func (o *Object) RemoveSection(id ids.SectionID) {
	delete(o.sections, id)
	delete(o.Strings, id)
}

// Sections returns every live section in stable insertion order.
func (o *Object) Sections() []*Section {
	out := make([]*Section, 0, len(o.sectionOrder))
	for _, id := range o.sectionOrder {
		if s, ok := o.sections[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// SectionByName returns the first live section with the given name, in
// insertion order, or nil.
func (o *Object) SectionByName(name string) *Section {
	for _, id := range o.sectionOrder {
		if s, ok := o.sections[id]; ok && s.Name == name {
			return s
		}
	}
	return nil
}

// SectionsByName returns every live section with the given name, in
// insertion order (used by the same-name merge pass, spec §4.7).
func (o *Object) SectionsByName(name string) []*Section {
	var out []*Section
	for _, id := range o.sectionOrder {
		if s, ok := o.sections[id]; ok && s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// CheckInvariants validates the invariants of spec §3.3/§8.1: every
// SectionId referenced by a symbol, relocation or segment must exist.
// Intended for use in tests and right before each pass completes, not on
// every mutation (that would make every pass O(n^2)).
func (o *Object) CheckInvariants() error {
	exists := func(id ids.SectionID) bool { _, ok := o.sections[id]; return ok }

	var dupStrong int
	var symErr error
	o.Symbols.All(func(s *symtab.Symbol) bool {
		if s.Visibility.Strong() {
			dupStrong++
		}
		switch s.Value.Kind {
		case symtab.ValueSectionRelative, symtab.ValueSection, symtab.ValueSectionVirtualAddress:
			if !exists(s.Value.Section) {
				symErr = fmt.Errorf("symbol %q references missing section %v", s.Name, s.Value.Section)
				return false
			}
		}
		return true
	})
	if symErr != nil {
		return symErr
	}

	for _, sec := range o.Sections() {
		if d, ok := sec.Content.(Data); ok {
			for _, r := range d.Relocations {
				sym := o.Symbols.Get(r.Symbol)
				if sym == nil {
					return fmt.Errorf("section %q has relocation referencing unknown symbol %v", sec.Name, r.Symbol)
				}
			}
		}
	}
	for _, seg := range o.Segments {
		for _, id := range seg.Sections() {
			if !exists(id) {
				return fmt.Errorf("segment %v references missing section %v", seg.Type, id)
			}
		}
	}
	return nil
}

// SortedSectionIDs returns every live SectionID in ascending numeric
// order, for passes that want ID order rather than insertion order.
func (o *Object) SortedSectionIDs() []ids.SectionID {
	out := make([]ids.SectionID, 0, len(o.sections))
	for id := range o.sections {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
