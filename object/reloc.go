package object

import (
	"github.com/plinkgo/plink/internal/archinfo"
	"github.com/plinkgo/plink/internal/ids"
)

// AddendKind discriminates whether a Relocation's addend is stored
// explicitly (Rela-style) or must be read from the bytes at its target
// (Rel-style), per spec §3.7.
type AddendKind uint8

const (
	AddendInline AddendKind = iota
	AddendExplicit
)

// Addend is a relocation's addend, tagged by how it is stored.
type Addend struct {
	Kind  AddendKind
	Value int64 // meaningful only when Kind == AddendExplicit
}

func InlineAddend() Addend           { return Addend{Kind: AddendInline} }
func ExplicitAddend(v int64) Addend  { return Addend{Kind: AddendExplicit, Value: v} }

// Relocation is one entry describing how to patch a Data section (spec
// §3.7).
type Relocation struct {
	Type   archinfo.RelocType
	Symbol ids.SymbolID
	Offset uint64
	Addend Addend
}
