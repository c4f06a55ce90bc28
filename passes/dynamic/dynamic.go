// Package dynamic implements the dynamic-linking metadata synthesis pass
// (spec §4.9): for PositionIndependent and SharedLibrary outputs, it
// builds .interp, .dynstr, .dynsym, .hash and .dynamic, and the
// _DYNAMIC symbol the loader's _start stub conventionally expects to
// find.
//
// Grounded on spec §4.10's exact SysV hash algorithm (implemented in
// internal/archinfo, reused here rather than duplicated) and the ELF
// dynamic-section conventions go-obj/obj/elf.go never had to produce
// since it only ever read already-linked binaries.
package dynamic

import (
	"fmt"
	"sort"

	"github.com/plinkgo/plink/internal/archinfo"
	"github.com/plinkgo/plink/internal/ids"
	"github.com/plinkgo/plink/object"
	"github.com/plinkgo/plink/symtab"
)

const (
	interp32 = "/lib/ld-linux.so.2"
	interp64 = "/lib64/ld-linux-x86-64.so.2"
)

// Run synthesizes the dynamic sections for o, a no-op unless o.Mode is
// dynamic (spec §4.9 applies only to PositionIndependent/SharedLibrary
// output; a PositionDependent static executable carries none of this).
func Run(o *object.Object, dynamicLinker string, sharedObjectName string) error {
	if !o.Mode.Dynamic() {
		return nil
	}

	if o.Mode == object.PositionIndependent {
		if err := buildInterp(o, dynamicLinker); err != nil {
			return err
		}
	}

	if o.Mode == object.SharedLibrary {
		exportSurvivingGlobals(o)
	}

	dynstr := object.NewStringTable()
	dynstrID := o.AddSection(object.Section{
		Name:    ".dynstr",
		Source:  "<dynamic synthesis>",
		Content: object.Strings{Table: dynstr},
	})

	names, symIDs := collectDynamicSymbols(o)
	for _, n := range names {
		dynstr.Add(n)
	}

	dynsymID := o.AddSection(object.Section{
		Name:   ".dynsym",
		Source: "<dynamic synthesis>",
		Content: object.Symbols{
			LinkedStrings: dynstrID.ID,
			View:          symIDs,
			IsDynsym:      true,
		},
	})

	hashID := o.AddSection(object.Section{
		Name:   ".hash",
		Source: "<dynamic synthesis>",
		Content: object.SysvHash{
			SymbolTable: dynsymID.ID,
		},
	})

	var entries []object.DynamicEntry
	for _, lib := range o.NeededLibraries {
		entries = append(entries, object.DynamicEntry{
			Kind:         object.DynNeeded,
			StringOffset: dynstr.Add(lib),
		})
	}
	if o.Mode == object.SharedLibrary && sharedObjectName != "" {
		entries = append(entries, object.DynamicEntry{
			Kind:         object.DynSharedObjectName,
			StringOffset: dynstr.Add(sharedObjectName),
		})
	}
	entries = append(entries,
		object.DynamicEntry{Kind: object.DynStringTable, Section: dynstrID.ID},
		object.DynamicEntry{Kind: object.DynSymbolTable, Section: dynsymID.ID},
		object.DynamicEntry{Kind: object.DynHash, Section: hashID.ID},
		object.DynamicEntry{Kind: object.DynFlags1, Flags1: dfBindNow},
	)

	dynamicSec := o.AddSection(object.Section{
		Name:   ".dynamic",
		Source: "<dynamic synthesis>",
		Content: object.Dynamic{
			LinkedStrings: dynstrID.ID,
			Entries:       entries,
		},
	})

	o.Symbols.Insert(symtab.Symbol{
		Name:       "_DYNAMIC",
		Type:       symtab.Object,
		Visibility: symtab.Global(false, true),
		Value:      symtab.SectionSym(dynamicSec.ID),
		Span:       "<dynamic synthesis>",
	})

	return nil
}

const dfBindNow = 0x8 // DF_1_NOW: resolve all bindings at load time (spec §1's narrowed dynamic-linker parity)

func buildInterp(o *object.Object, dynamicLinker string) error {
	path := dynamicLinker
	if path == "" {
		if o.Env.Class == archinfo.Class64 {
			path = interp64
		} else {
			path = interp32
		}
	}
	for i := 0; i < len(path); i++ {
		if path[i] == 0 {
			return fmt.Errorf("dynamic linker path contains an embedded NUL")
		}
	}
	bytes := append([]byte(path), 0)
	o.AddSection(object.Section{
		Name:   ".interp",
		Source: "<dynamic synthesis>",
		Content: object.Data{
			Perms: object.Perms{Read: true},
			Bytes: bytes,
		},
	})
	return nil
}

// exportSurvivingGlobals marks every non-hidden global symbol still
// defined somewhere in o as needed by the dynamic symbol table (spec
// §4.9 "SharedLibrary mode additionally demotes surviving global
// non-hidden symbols to needed-by-dynamic").
func exportSurvivingGlobals(o *object.Object) {
	o.Symbols.All(func(s *symtab.Symbol) bool {
		if s.Visibility.IsGlobal() && !s.Visibility.Hidden && s.Value.Kind != symtab.ValueUndefined {
			s.NeededByDynamic = true
		}
		return true
	})
}

// collectDynamicSymbols gathers every symbol the dynamic symbol table
// must carry: imports (ExternallyDefined, resolved against a shared
// object by passes/sharedobj) and exports (NeededByDynamic, set either by
// passes/merge's weak+shared-object resolution or exportSurvivingGlobals
// above). The reserved null symbol at index 0 is implicit, added by
// rawelf's writer, not listed here.
func collectDynamicSymbols(o *object.Object) ([]string, []ids.SymbolID) {
	type entry struct {
		name string
		id   ids.SymbolID
	}
	var picked []entry
	o.Symbols.All(func(s *symtab.Symbol) bool {
		if s.Value.Kind == symtab.ValueExternallyDefined || s.NeededByDynamic {
			picked = append(picked, entry{name: s.Name, id: s.ID})
		}
		return true
	})
	sort.Slice(picked, func(i, j int) bool { return picked[i].name < picked[j].name })

	names := make([]string, len(picked))
	symIDs := make([]ids.SymbolID, len(picked))
	for i, e := range picked {
		names[i] = e.name
		symIDs[i] = e.id
	}
	return names, symIDs
}
