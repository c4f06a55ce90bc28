// Package finalize implements the symbol finalizer pass (spec §4.15): once
// the layout engine has assigned every section a virtual address, it walks
// the symbol table and rewrites every still section-relative value into an
// absolute virtual address, so the emitter never has to know about sections
// when it writes out .symtab/.dynsym entries.
//
// Grounded on go-obj/symtab.Table, which only ever read an address a
// linker had already baked into the file; this is the step that bakes it.
package finalize

import (
	"fmt"

	"github.com/plinkgo/plink/layout"
	"github.com/plinkgo/plink/object"
	"github.com/plinkgo/plink/symtab"
)

// Run rewrites every symbol's Value in place (spec §4.15):
//
//	SectionRelative(section, offset) -> SectionVirtualAddress(section, MemAddr+offset)
//	Section(section)                 -> SectionVirtualAddress(section, MemAddr)
//	SectionNotLoaded(section)        -> left as-is (the section was never
//	                                     placed in memory; its symbols keep
//	                                     reporting that)
//	Absolute, ExternallyDefined, Undefined, Null -> left as-is
//
// SectionVirtualAddress keeps the owning Section alongside the resolved
// Addr (rather than collapsing to a bare Absolute) so the emitter can still
// report the correct st_shndx for the symbol table entry.
//
// Must run after passes/relocate (relocation resolution also reads
// section-relative symbol values, and must see the pre-finalization form).
func Run(o *object.Object, lay *layout.Layout) error {
	var firstErr error
	o.Symbols.All(func(sym *symtab.Symbol) bool {
		switch sym.Value.Kind {
		case symtab.ValueSectionRelative:
			p, ok := lay.Section(sym.Value.Section)
			if !ok {
				firstErr = fmt.Errorf("finalize: symbol %q: no placement for section %v", sym.Name, sym.Value.Section)
				return false
			}
			sym.Value = symtab.SectionVirtualAddress(sym.Value.Section, p.MemAddr+sym.Value.Offset)
		case symtab.ValueSection:
			p, ok := lay.Section(sym.Value.Section)
			if !ok {
				firstErr = fmt.Errorf("finalize: symbol %q: no placement for section %v", sym.Name, sym.Value.Section)
				return false
			}
			sym.Value = symtab.SectionVirtualAddress(sym.Value.Section, p.MemAddr)
		}
		return true
	})
	return firstErr
}
