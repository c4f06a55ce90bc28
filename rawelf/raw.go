// Package rawelf is the bit-exact ELF codec described in spec §4.1: it
// decodes relocatable/shared-object ELF inputs into a raw, pre-Object
// representation, and encodes a finished, laid-out Object into bytes.
//
// go-obj's obj/elf.go parses ELF by handing the whole file to
// stdlib debug/elf and re-walking its result into go-obj's own Section/Sym
// types. debug/elf has no writer half, and spec §4.1 requires bit-exact
// emission, so rawelf instead hand-rolls both directions the way
// go-obj/obj/elfSym.go and elfReloc.go hand-roll their own per-class,
// per-architecture lookup tables (elfArches, elfRelocsX86_64, elfRelocs386)
// rather than deferring to debug/elf's enums.
package rawelf

import "fmt"

// Ident byte offsets/values (spec §4.1, §6.1).
const (
	identMag0    = 0x7f
	identMag1    = 'E'
	identMag2    = 'L'
	identMag3    = 'F'
	identVersion = 1
)

// Class is the raw e_ident[EI_CLASS] value.
type Class uint8

const (
	Class32 Class = 1
	Class64 Class = 2
)

// Endian is the raw e_ident[EI_DATA] value. Only little-endian is
// supported (spec §1 "little-endian only"); big-endian is rejected at
// read time with BadEndian.
type Endian uint8

const (
	EndianLittle Endian = 1
	EndianBig    Endian = 2
)

// ABI is the raw e_ident[EI_OSABI] value. Only SystemV (0) is expected;
// GNU (3) is accepted as an alias since most real-world ELF producers
// leave this at 0 or stamp a GNU-specific value interchangeably.
type ABI uint8

const (
	ABISystemV ABI = 0
	ABIGNU     ABI = 3
)

// Type is the raw e_type value.
type Type uint16

const (
	TypeNone Type = 0
	TypeRel  Type = 1
	TypeExec Type = 2
	TypeDyn  Type = 3
	TypeCore Type = 4
)

// Machine is the raw e_machine value.
type Machine uint16

const (
	MachineNone  Machine = 0
	MachineX86   Machine = 3
	MachineX8664 Machine = 62
)

// Header is the decoded ELF file header (spec §4.1), unified across the
// 32-/64-bit field-order difference: readers/writers consult Class to
// know which on-disk layout to use, but callers see one Go struct either
// way.
type Header struct {
	Class      Class
	Endian     Endian
	ABI        ABI
	Type       Type
	Machine    Machine
	Entry      uint64
	PhOff      uint64
	ShOff      uint64
	Flags      uint32
	EhSize     uint16
	PhEntSize  uint16
	PhNum      uint16
	ShEntSize  uint16
	ShNum      uint16
	ShStrNdx   uint16
}

// SectionHeaderType is the raw sh_type value.
type SectionHeaderType uint32

const (
	ShtNull     SectionHeaderType = 0
	ShtProgbits SectionHeaderType = 1
	ShtSymtab   SectionHeaderType = 2
	ShtStrtab   SectionHeaderType = 3
	ShtRela     SectionHeaderType = 4
	ShtHash     SectionHeaderType = 5
	ShtDynamic  SectionHeaderType = 6
	ShtNote     SectionHeaderType = 7
	ShtNobits   SectionHeaderType = 8
	ShtRel      SectionHeaderType = 9
	ShtDynsym   SectionHeaderType = 11
	ShtGroup    SectionHeaderType = 17
)

// Section header flag bits (sh_flags).
const (
	ShfWrite     = 0x1
	ShfAlloc     = 0x2
	ShfExecInstr = 0x4
	ShfMerge     = 0x10
	ShfStrings   = 0x20
	ShfGroup     = 0x200
)

// SectionHeader is one decoded section header entry.
type SectionHeader struct {
	NameOffset uint32
	Name       string // resolved against .shstrtab, for convenience
	Type       SectionHeaderType
	Flags      uint64
	Addr       uint64
	Offset     uint64
	Size       uint64
	Link       uint32
	Info       uint32
	AddrAlign  uint64
	EntSize    uint64

	// Data is the raw bytes of this section, or nil for SHT_NULL/SHT_NOBITS.
	Data []byte
}

// ProgramHeaderType is the raw p_type value.
type ProgramHeaderType uint32

const (
	PtNull     ProgramHeaderType = 0
	PtLoad     ProgramHeaderType = 1
	PtDynamic  ProgramHeaderType = 2
	PtInterp   ProgramHeaderType = 3
	PtNote     ProgramHeaderType = 4
	PtPhdr     ProgramHeaderType = 6
	PtGnuStack ProgramHeaderType = 0x6474e551
	PtGnuRelro ProgramHeaderType = 0x6474e552
	PtGnuProperty ProgramHeaderType = 0x6474e553
)

// Program header flag bits (p_flags).
const (
	PfExecute = 0x1
	PfWrite   = 0x2
	PfRead    = 0x4
)

// ProgramHeader is one decoded program header entry.
type ProgramHeader struct {
	Type   ProgramHeaderType
	Flags  uint32
	Offset uint64
	VAddr  uint64
	PAddr  uint64
	FileSz uint64
	MemSz  uint64
	Align  uint64
}

// Sym is a decoded symbol table entry, unified across the 32-/64-bit
// field-order difference the way Header is (spec §4.1 "a declarative
// schema describes this and the codec honors it" — here that schema is
// simply "ParseSymbols populates the same Sym for either class").
type Sym struct {
	NameOffset uint32
	Name       string
	Info       uint8 // bind<<4 | type
	Other      uint8 // visibility in the low 2 bits
	Shndx      uint16
	Value      uint64
	Size       uint64
}

func (s Sym) Bind() uint8 { return s.Info >> 4 }
func (s Sym) Type() uint8 { return s.Info & 0xf }
func (s Sym) Visibility() uint8 { return s.Other & 0x3 }

// Symbol bind values (ELF32_ST_BIND).
const (
	StbLocal  = 0
	StbGlobal = 1
	StbWeak   = 2
)

// Symbol type values (ELF32_ST_TYPE).
const (
	SttNotype  = 0
	SttObject  = 1
	SttFunc    = 2
	SttSection = 3
	SttFile    = 4
	SttCommon  = 5
)

// Special section indices.
const (
	ShnUndef  = 0
	ShnAbs    = 0xfff1
	ShnCommon = 0xfff2
)

// Rel is a decoded relocation entry. Addend is only meaningful when Rela
// is true (spec §3.7/§4.14 "Addend source").
type Rel struct {
	Offset uint64
	Type   uint32
	Sym    uint32
	Addend int64
	Rela   bool
}

// Dyn is one raw .dynamic tag/value pair.
type Dyn struct {
	Tag uint64
	Val uint64
}

// Dynamic tags this linker reads and writes (spec §1 "DT_NEEDED, DT_HASH,
// DT_STRTAB, DT_SYMTAB, DT_RELA, DT_FLAGS_1, DT_SONAME, interpreter").
const (
	DtNull     = 0
	DtNeeded   = 1
	DtPltRelSz = 2
	DtHash     = 4
	DtStrtab   = 5
	DtSymtab   = 6
	DtRela     = 7
	DtRelaSz   = 8
	DtRelaEnt  = 9
	DtStrSz    = 10
	DtSymEnt   = 11
	DtSoname   = 14
	DtPltGot   = 3
	DtJmpRel   = 23
	DtFlags1   = 0x6ffffffb
)

func badByte(field string, v byte) error {
	return fmt.Errorf("rawelf: bad %s byte 0x%02x", field, v)
}
