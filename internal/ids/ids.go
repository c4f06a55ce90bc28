// Package ids implements the opaque identifier discipline described in
// spec §3.1: SectionId, SymbolId and StringId are small integers issued by
// per-kind monotonic allocators, never reused, and never used as direct
// indexes into a slice that can shrink (lookups always go through the
// owning Object).
package ids

import "fmt"

// SectionID identifies a section for the lifetime of a link job. Zero is a
// valid, allocated ID; there is no reserved "null section" value at this
// layer (the null ELF section is simply never given an ID).
type SectionID uint32

func (id SectionID) String() string { return fmt.Sprintf("section#%d", uint32(id)) }

// SymbolID identifies a symbol slot. Some slots are redirects that resolve
// transitively to another SymbolID; see symtab.Table.
type SymbolID uint32

func (id SymbolID) String() string { return fmt.Sprintf("symbol#%d", uint32(id)) }

// NoSymbol is the reserved SymbolID reported when no symbol applies.
const NoSymbol SymbolID = ^SymbolID(0)

// StringID names a byte offset inside a specific string-table section.
// Two StringIDs are equal iff they name the same section and offset; a
// StringID whose offset falls inside another interned string is valid and
// denotes its suffix (the "suffix lookup" rule in spec §3.6).
type StringID struct {
	Section SectionID
	Offset  uint64
}

func (id StringID) String() string {
	return fmt.Sprintf("%s+0x%x", id.Section, id.Offset)
}

// Allocator issues monotonically increasing IDs of type T starting from
// zero. It is owned by a single link job; two link jobs in the same
// process use independent Allocators and therefore independent ID spaces.
type Allocator[T ~uint32] struct {
	next T
}

// Alloc returns a fresh, never-before-issued ID.
func (a *Allocator[T]) Alloc() T {
	id := a.next
	a.next++
	return id
}

// Len reports how many IDs this allocator has issued.
func (a *Allocator[T]) Len() int { return int(a.next) }
