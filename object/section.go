package object

import "github.com/plinkgo/plink/internal/ids"

// Perms is the read/write/execute permission triple of a section (spec
// §3.4).
type Perms struct {
	Read, Write, Execute bool
}

// DedupKind discriminates how a section's bytes may be split for
// deduplication (spec §3.4, §4.6).
type DedupKind uint8

const (
	DedupDisabled DedupKind = iota
	DedupZeroTerminatedStrings
	DedupFixedSizeChunks
)

// Dedup describes a section's deduplication mode. ChunkSize is only
// meaningful when Kind == DedupFixedSizeChunks.
type Dedup struct {
	Kind      DedupKind
	ChunkSize uint64
}

func NoDedup() Dedup                   { return Dedup{Kind: DedupDisabled} }
func StringDedup() Dedup               { return Dedup{Kind: DedupZeroTerminatedStrings} }
func ChunkDedup(size uint64) Dedup     { return Dedup{Kind: DedupFixedSizeChunks, ChunkSize: size} }

// Content is the tagged-union payload of a Section (spec §3.4). Each
// concrete type below is one variant; passes type-switch on it the way
// go-obj type-switches on *elf.Section.Type, but over a richer semantic
// set than go-obj ever needed since it never synthesized sections.
type Content interface{ isContent() }

// Data is a section backed by literal bytes with relocations applied
// against it.
type Data struct {
	Perms       Perms
	Dedup       Dedup
	Bytes       []byte
	Relocations []Relocation
	InsideRelro bool
}

func (Data) isContent() {}

// Uninitialized is a zero-fill (SHT_NOBITS / .bss-like) section: it has
// memory size but no file content.
type Uninitialized struct {
	Perms  Perms
	Length uint64
}

func (Uninitialized) isContent() {}

// Strings is a string-table section, almost always the companion of a
// Symbols section (e.g. .strtab/.dynstr).
type Strings struct {
	Table *StringTable
}

func (Strings) isContent() {}

// Symbols is a symbol-table section (.symtab or .dynsym).
type Symbols struct {
	LinkedStrings ids.SectionID
	View          []ids.SymbolID // which symbols this table presents, in order
	IsDynsym      bool
}

func (Symbols) isContent() {}

// SysvHash is a SysV hash-table section (.hash) over a dynamic symbol
// table (spec §4.10).
type SysvHash struct {
	SymbolTable ids.SectionID
}

func (SysvHash) isContent() {}

// RelocMode discriminates explicit-addend (Rela) vs inline-addend (Rel)
// relocation section encoding (spec §3.7, §4.14 "Addend source").
type RelocMode uint8

const (
	RelocModeRel RelocMode = iota
	RelocModeRela
)

// Relocations is a relocation-table section.
type Relocations struct {
	AppliesTo ids.SectionID
	Mode      RelocMode
	Items     []Relocation
}

func (Relocations) isContent() {}

// Dynamic is the .dynamic section: an ordered list of tagged entries
// (spec §3.9).
type Dynamic struct {
	LinkedStrings ids.SectionID
	Entries       []DynamicEntry
}

func (Dynamic) isContent() {}

// NoteEntry is one ELF note record (spec §4.12 ".note.gnu.property").
type NoteEntry struct {
	Name string
	Type uint32
	Desc []byte
}

// Notes is a notes section (e.g. .note.gnu.property).
type Notes struct {
	Entries []NoteEntry
}

func (Notes) isContent() {}

// Group is an SHF_GROUP section, grouping a COMDAT or otherwise related
// set of sections under a signature symbol.
type Group struct {
	Signature ids.SymbolID
	Sections  []ids.SectionID
	Comdat    bool
}

func (Group) isContent() {}

// Section is one entry in an Object's section table (spec §3.4).
type Section struct {
	ID      ids.SectionID
	Name    string
	Source  string // interned span identifier describing this section's origin
	Content Content
	Retain  bool // if true, survives GC regardless of reachability
}

// AsData returns s's Content as *Data and true if s is a Data section.
func (s *Section) AsData() (*Data, bool) {
	d, ok := s.Content.(Data)
	if !ok {
		return nil, false
	}
	return &d, true
}

// Perms returns the section's permission triple, or read-only Perms if
// this kind of section has none of its own (e.g. a relocation table).
func (s *Section) Perms() Perms {
	switch c := s.Content.(type) {
	case Data:
		return c.Perms
	case Uninitialized:
		return c.Perms
	default:
		return Perms{Read: true}
	}
}

// Allocated reports whether this section occupies memory at runtime
// (as opposed to being pure metadata like a relocation or symbol table).
func (s *Section) Allocated() bool {
	switch s.Content.(type) {
	case Data, Uninitialized:
		return true
	default:
		return false
	}
}
