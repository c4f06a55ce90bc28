package object

import "github.com/plinkgo/plink/internal/ids"

// DynamicKind discriminates entries in a Dynamic section's tagged list
// (spec §3.9).
type DynamicKind uint8

const (
	DynStringTable DynamicKind = iota
	DynSymbolTable
	DynHash
	DynNeeded
	DynSharedObjectName
	DynRela
	DynPlt
	DynGotRela
	DynFlags1
)

// DynamicEntry is one logical entry of a .dynamic section. Each maps to
// one or more raw tag/value pairs at emit time (spec §3.9): e.g. DynRela
// expands to DT_RELA/DT_RELASZ/DT_RELAENT.
type DynamicEntry struct {
	Kind DynamicKind

	// StringTable, SymbolTable, Hash, Rela.Table, Plt.GotPlt, Plt.Rela,
	// GotRela.Got reference other sections by ID.
	Section ids.SectionID

	// Needed / SharedObjectName store a string-table offset into the
	// linked .dynstr (populated once .dynstr's layout is known).
	StringOffset uint64

	// Rela/GotRela record the applicable relocation table's element size,
	// used to emit DT_RELAENT alongside DT_RELA/DT_RELASZ.
	RelaEntrySize uint64

	// Flags1 carries the raw DF_1_* bitmask when Kind == DynFlags1.
	Flags1 uint64
}
