// Package gc implements the reachability pass (spec §4.5): starting from
// the entry point, the sections Retain marks, and any special symbols the
// rest of the pipeline needs regardless of reachability, it walks
// relocations to their defining sections and removes everything never
// visited.
//
// The worklist's visited set is a plain map keyed by SectionID: GC here is
// simple reachability over a small graph, not an interval/byte-range
// query, so it has no use for go-obj/internal/imap's AVL-backed interval
// container (not carried into this tree — see DESIGN.md).
package gc

import (
	"github.com/plinkgo/plink/internal/ids"
	"github.com/plinkgo/plink/object"
	"github.com/plinkgo/plink/symtab"
)

// alwaysRetained lists special symbol names whose defining section must
// survive GC even with no ordinary reference, because later passes
// synthesize references to them implicitly (spec §4.5 "special symbols").
var alwaysRetained = []string{
	"_GLOBAL_OFFSET_TABLE_",
	"_DYNAMIC",
}

// Run removes every section unreachable from o's GC roots, and converts
// the symbols that used to be defined in a removed section to
// SectionNotLoaded (spec §4.5 "a symbol surviving GC whose section did
// not is reported as not-loaded, not deleted").
func Run(o *object.Object) {
	seeds := make(map[ids.SectionID]bool)

	if entry := o.Symbols.Get(o.EntryPoint); entry != nil {
		addSectionOf(seeds, entry.Value)
	}
	for _, sec := range o.Sections() {
		if sec.Retain {
			seeds[sec.ID] = true
		}
	}
	for _, name := range alwaysRetained {
		if id, ok := o.Symbols.Lookup(name); ok {
			addSectionOf(seeds, o.Symbols.Get(id).Value)
		}
	}

	visited := make(map[ids.SectionID]bool, len(seeds))
	var worklist []ids.SectionID
	for id := range seeds {
		worklist = append(worklist, id)
	}
	for len(worklist) > 0 {
		id := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if visited[id] {
			continue
		}
		visited[id] = true

		sec := o.Section(id)
		if sec == nil {
			continue
		}
		d, ok := sec.Content.(object.Data)
		if !ok {
			continue
		}
		for _, r := range d.Relocations {
			sym := o.Symbols.Get(r.Symbol)
			if sym == nil {
				continue
			}
			if target, ok := sectionOf(sym.Value); ok && !visited[target] {
				worklist = append(worklist, target)
			}
		}
	}

	for _, sec := range o.Sections() {
		if visited[sec.ID] {
			continue
		}
		o.Symbols.All(func(s *symtab.Symbol) bool {
			if t, ok := sectionOf(s.Value); ok && t == sec.ID {
				s.Value = symtab.SectionNotLoaded(sec.ID)
			}
			return true
		})
		o.RemoveSection(sec.ID)
	}
}

func addSectionOf(seeds map[ids.SectionID]bool, v symtab.Value) {
	if id, ok := sectionOf(v); ok {
		seeds[id] = true
	}
}

func sectionOf(v symtab.Value) (ids.SectionID, bool) {
	switch v.Kind {
	case symtab.ValueSectionRelative, symtab.ValueSection, symtab.ValueSectionVirtualAddress:
		return v.Section, true
	default:
		return 0, false
	}
}
