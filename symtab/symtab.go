// Package symtab implements the linker's symbol table: local, global,
// weak and externally-defined symbols with redirect chains (spec §3.5).
//
// This generalizes go-obj/symtab, which built a read-only Table once from
// a finished symbol slice purely for name/address lookup over an
// already-linked binary. Table here is mutable during merge (spec §4.3)
// and adds the redirect chain spec §9 describes as the only cycle in the
// data model: "a flat vector of symbol slots, each either a terminal
// definition or a redirect holding another index... a lookup resolves
// iteratively with path compression".
package symtab

import (
	"fmt"

	"github.com/plinkgo/plink/internal/ids"
)

// Type is a symbol's ELF type classification (spec §3.5).
type Type uint8

const (
	NoType Type = iota
	Object
	Function
	SectionType
	File
)

// Visibility discriminates how a symbol participates in linking (spec
// §3.5).
type Visibility struct {
	kind visKind
	// Weak and Hidden only apply when kind == visGlobal.
	Weak   bool
	Hidden bool
}

type visKind uint8

const (
	visLocal visKind = iota
	visGlobal
	visExternallyDefined
)

func Local() Visibility { return Visibility{kind: visLocal} }
func Global(weak, hidden bool) Visibility {
	return Visibility{kind: visGlobal, Weak: weak, Hidden: hidden}
}
func ExternallyDefined() Visibility { return Visibility{kind: visExternallyDefined} }

func (v Visibility) IsLocal() bool             { return v.kind == visLocal }
func (v Visibility) IsGlobal() bool            { return v.kind == visGlobal }
func (v Visibility) IsExternallyDefined() bool { return v.kind == visExternallyDefined }
func (v Visibility) Strong() bool              { return v.kind == visGlobal && !v.Weak }

func (v Visibility) String() string {
	switch v.kind {
	case visLocal:
		return "local"
	case visExternallyDefined:
		return "externally-defined"
	default:
		s := "global"
		if v.Weak {
			s += "{weak}"
		}
		if v.Hidden {
			s += "{hidden}"
		}
		return s
	}
}

// ValueKind discriminates the tagged union in Symbol.Value (spec §3.5).
type ValueKind uint8

const (
	ValueNull ValueKind = iota
	ValueAbsolute
	ValueSectionRelative
	ValueSection
	ValueSectionVirtualAddress
	ValueSectionNotLoaded
	ValueExternallyDefined
	ValueUndefined
)

// Value is the tagged union of everything a symbol can resolve to.
type Value struct {
	Kind    ValueKind
	Section ids.SectionID // ValueSectionRelative, ValueSection, ValueSectionVirtualAddress, ValueSectionNotLoaded
	Offset  uint64        // ValueSectionRelative
	Addr    uint64        // ValueAbsolute, ValueSectionVirtualAddress
}

func NullValue() Value        { return Value{Kind: ValueNull} }
func Absolute(n uint64) Value { return Value{Kind: ValueAbsolute, Addr: n} }
func SectionRelative(s ids.SectionID, off uint64) Value {
	return Value{Kind: ValueSectionRelative, Section: s, Offset: off}
}
func SectionSym(s ids.SectionID) Value { return Value{Kind: ValueSection, Section: s} }
func SectionVirtualAddress(s ids.SectionID, addr uint64) Value {
	return Value{Kind: ValueSectionVirtualAddress, Section: s, Addr: addr}
}
func SectionNotLoaded(s ids.SectionID) Value { return Value{Kind: ValueSectionNotLoaded, Section: s} }
func ExternallyDefinedValue() Value          { return Value{Kind: ValueExternallyDefined} }
func Undefined() Value                       { return Value{Kind: ValueUndefined} }

// Symbol is one entry in the symbol table.
type Symbol struct {
	ID         ids.SymbolID
	Name       string
	Type       Type
	Visibility Visibility
	Value      Value
	Size       uint64
	Span       string // interned span identifier; kept as a plain string at this layer

	ExcludeFromTables bool
	NeededByDynamic   bool
	SttFile           bool
}

// slot is either a live Symbol or a redirect to another SymbolID.
type slot struct {
	sym      Symbol
	redirect bool
	target   ids.SymbolID
}

// Table is the mutable symbol table for one link job.
type Table struct {
	slots []slot
	alloc ids.Allocator[ids.SymbolID]

	// byName indexes the current (post-redirect) global/externally-defined
	// symbol for each name, used to implement the merge rules in spec §3.5.
	byName map[string]ids.SymbolID
}

// NewTable creates an empty symbol table with the reserved null symbol at
// index 0, matching spec §3.5 "Null — the reserved zero symbol".
func NewTable() *Table {
	t := &Table{byName: make(map[string]ids.SymbolID)}
	id := t.alloc.Alloc()
	t.slots = append(t.slots, slot{sym: Symbol{ID: id, Value: NullValue()}})
	return t
}

// Insert adds a new, unconditional symbol slot and returns its ID. Use
// Define for symbols that participate in by-name merging.
func (t *Table) Insert(sym Symbol) ids.SymbolID {
	id := t.alloc.Alloc()
	sym.ID = id
	t.slots = append(t.slots, slot{sym: sym})
	return id
}

// Get resolves id through any redirect chain and returns the terminal
// Symbol, or nil if id was never issued by this table (e.g. a bogus
// relocation target — callers that want invariant checking rather than a
// panic should use this rather than indexing the table directly).
func (t *Table) Get(id ids.SymbolID) *Symbol {
	if int(id) >= len(t.slots) {
		return nil
	}
	id = t.Resolve(id)
	return &t.slots[id].sym
}

// Resolve follows id's redirect chain (with path compression) to the
// terminal SymbolID.
func (t *Table) Resolve(id ids.SymbolID) ids.SymbolID {
	start := id
	for t.slots[id].redirect {
		id = t.slots[id].target
	}
	// Path compression: point every slot visited directly at the terminal.
	for cur := start; t.slots[cur].redirect; {
		next := t.slots[cur].target
		t.slots[cur].target = id
		cur = next
	}
	return id
}

// redirectTo marks old as a redirect to new. Any SymbolID callers already
// hold for old will transparently follow the chain via Resolve/Get.
func (t *Table) redirectTo(old, new_ ids.SymbolID) {
	t.slots[old] = slot{redirect: true, target: new_}
}

// MergeResult reports how Define resolved a name collision, for
// diagnostics (spec §7 "duplicate definition").
type MergeResult int

const (
	MergeInserted MergeResult = iota
	MergeStrongWinsOverUndefined
	MergeStrongWinsOverWeak
	MergeWeakFirstWins
	MergeBothUndefined
	MergeDuplicateStrong
)

// Define inserts or merges a named global/externally-defined symbol
// following the rules of spec §3.5:
//
//	strong + strong       -> error (duplicate definition)
//	strong + undefined    -> strong wins (either order)
//	strong + weak         -> strong wins
//	weak + weak           -> first wins
//	undefined + undefined -> undefined
//
// It returns the ID under which the symbol is now known (which may be an
// existing slot, if the new definition lost) and how the merge resolved.
func (t *Table) Define(sym Symbol) (ids.SymbolID, MergeResult, error) {
	existingID, ok := t.byName[sym.Name]
	if !ok {
		id := t.Insert(sym)
		t.byName[sym.Name] = id
		return id, MergeInserted, nil
	}

	existing := t.Get(existingID)
	existingStrong := existing.Visibility.Strong() && existing.Value.Kind != ValueUndefined
	newStrong := sym.Visibility.Strong() && sym.Value.Kind != ValueUndefined
	existingUndef := existing.Value.Kind == ValueUndefined
	newUndef := sym.Value.Kind == ValueUndefined

	switch {
	case existingStrong && newStrong:
		return existingID, MergeDuplicateStrong, fmt.Errorf("duplicate strong definition of symbol %q", sym.Name)

	case existingStrong && (newUndef || !newStrong):
		// Strong already present; incoming is undefined or weak: strong wins.
		result := MergeStrongWinsOverUndefined
		if !newUndef {
			result = MergeStrongWinsOverWeak
		}
		return existingID, result, nil

	case newStrong && (existingUndef || !existingStrong):
		// Incoming is strong; existing was undefined or weak: replace it.
		id := t.Insert(sym)
		t.redirectTo(existingID, id)
		t.byName[sym.Name] = id
		result := MergeStrongWinsOverUndefined
		if !existingUndef {
			result = MergeStrongWinsOverWeak
		}
		return id, result, nil

	case existingUndef && newUndef:
		return existingID, MergeBothUndefined, nil

	case existingUndef && !newUndef:
		// Existing undefined, incoming weak definition: weak wins over undef.
		id := t.Insert(sym)
		t.redirectTo(existingID, id)
		t.byName[sym.Name] = id
		return id, MergeStrongWinsOverUndefined, nil

	default:
		// weak + weak, or new undefined against an existing weak def: first
		// (existing) wins.
		return existingID, MergeWeakFirstWins, nil
	}
}

// Lookup returns the current SymbolID for name, if any global or
// externally-defined symbol by that name has been Defined.
func (t *Table) Lookup(name string) (ids.SymbolID, bool) {
	id, ok := t.byName[name]
	if !ok {
		return 0, false
	}
	return t.Resolve(id), true
}

// Names returns every currently-defined global/externally-defined name,
// for "did you mean" suggestions (spec §7).
func (t *Table) Names() []string {
	out := make([]string, 0, len(t.byName))
	for name, id := range t.byName {
		if t.Get(id).Value.Kind == ValueUndefined {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Len returns the number of symbol slots ever allocated, including
// redirects.
func (t *Table) Len() int { return len(t.slots) }

// All iterates every terminal (non-redirect) symbol in ID order, the
// "stable total order" spec §3.1/§5 requires for deterministic passes.
func (t *Table) All(f func(*Symbol) bool) {
	for i := range t.slots {
		s := &t.slots[i]
		if s.redirect {
			continue
		}
		if !f(&s.sym) {
			return
		}
	}
}
