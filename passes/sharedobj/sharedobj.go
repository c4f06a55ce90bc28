// Package sharedobj implements the shared-object loading path (spec
// §4.4): rather than merging an ET_DYN input's sections the way an ET_REL
// input is merged, it only reads the input's dynamic symbol table and
// records each exported name as an externally-defined symbol the rest of
// the link can resolve against at runtime.
//
// Grounded on go-obj/obj/elf.go's single-pass section-table walk
// (openElf), reused here just far enough to locate .dynsym/.dynstr/
// .dynamic among an ET_DYN's sections.
package sharedobj

import (
	"fmt"

	"github.com/plinkgo/plink/internal/archinfo"
	"github.com/plinkgo/plink/object"
	"github.com/plinkgo/plink/rawelf"
	"github.com/plinkgo/plink/symtab"
)

// Load reads raw's dynamic symbol table and defines an ExternallyDefined
// symbol in o.Symbols for every named, defined global it exports. If it
// defines at least one such symbol, the input's soname (or span, lacking
// one) is appended to o.NeededLibraries, whether or not anything in the
// link references those symbols.
//
// Per spec §4.4 "a shared object contributes symbols, never sections":
// no Section is created for an ET_DYN input at all.
func Load(o *object.Object, span string, raw *rawelf.RawObject, data []byte) error {
	class := classOf(o)

	dynsym := findSection(raw, rawelf.ShtDynsym)
	if dynsym == nil {
		// A shared object with no dynamic symbol table exports nothing;
		// not an error, just a no-op contribution.
		return nil
	}
	if int(dynsym.Link) >= len(raw.Sections) {
		return fmt.Errorf("%s: .dynsym sh_link %d out of range", span, dynsym.Link)
	}
	dynstr := raw.Sections[dynsym.Link]

	syms, err := rawelf.ParseSymbols(class, dynsym.Data, dynstr.Data)
	if err != nil {
		return fmt.Errorf("%s: parsing .dynsym: %w", span, err)
	}

	soname := soNameOf(raw, dynstr.Data, span)

	contributed := false
	for i, sym := range syms {
		if i == 0 {
			continue // reserved null entry
		}
		if sym.Name == "" || sym.Shndx == rawelf.ShnUndef {
			continue // imports from other libraries, not exports of this one
		}
		if sym.Bind() == rawelf.StbLocal {
			continue
		}

		_, _, err := o.Symbols.Define(symtab.Symbol{
			Name:       sym.Name,
			Type:       symTypeOf(sym.Type()),
			Visibility: symtab.Global(sym.Bind() == rawelf.StbWeak, false),
			Value:      symtab.ExternallyDefinedValue(),
			Size:       sym.Size,
			Span:       span,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", span, err)
		}
		contributed = true
	}

	if contributed {
		o.NeededLibraries = append(o.NeededLibraries, soname)
		o.Inputs = append(o.Inputs, object.InputSpan{Span: span, SharedObject: true})
	}
	return nil
}

func findSection(raw *rawelf.RawObject, typ rawelf.SectionHeaderType) *rawelf.SectionHeader {
	for i := range raw.Sections {
		if raw.Sections[i].Type == typ {
			return &raw.Sections[i]
		}
	}
	return nil
}

// soNameOf reads DT_SONAME out of .dynamic, falling back to span (the
// input's own file path) when the shared object carries none.
func soNameOf(raw *rawelf.RawObject, dynstr []byte, span string) string {
	dynamic := findSection(raw, rawelf.ShtDynamic)
	if dynamic == nil {
		return span
	}
	class := Class32
	// class is re-derived from the section entsize, since sharedobj.Load
	// does not thread the object's class down to this helper.
	if dynamic.EntSize == 16 {
		class = Class64
	}
	dyns, err := rawelf.ParseDynamic(class, dynamic.Data)
	if err != nil {
		return span
	}
	for _, d := range dyns {
		if d.Tag == rawelf.DtSoname {
			if name, err := nameAt(dynstr, uint32(d.Val)); err == nil {
				return name
			}
		}
	}
	return span
}

// Class is a local alias for rawelf.Class, used by soNameOf.
type Class = rawelf.Class

const (
	Class32 = rawelf.Class32
	Class64 = rawelf.Class64
)

func nameAt(strtab []byte, off uint32) (string, error) {
	if int(off) >= len(strtab) {
		return "", fmt.Errorf("string offset %d out of range", off)
	}
	end := off
	for end < uint32(len(strtab)) && strtab[end] != 0 {
		end++
	}
	if end == uint32(len(strtab)) {
		return "", fmt.Errorf("unterminated string at offset %d", off)
	}
	return string(strtab[off:end]), nil
}

func classOf(o *object.Object) rawelf.Class {
	if o.Env.Class == archinfo.Class64 {
		return rawelf.Class64
	}
	return rawelf.Class32
}

func symTypeOf(t uint8) symtab.Type {
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
