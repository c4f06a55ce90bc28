package rawelf

import (
	"encoding/binary"
	"io"
)

// RawObject is the decoded, pre-Object representation an ELF file reads
// into (spec §4.1 "Object_raw"). passes/merge (ET_REL) and
// passes/sharedobj (ET_DYN) fold a RawObject into the running
// object.Object (spec §4.3, §4.4).
type RawObject struct {
	Header   Header
	Sections []SectionHeader
	Program  []ProgramHeader
}

// cursor is a small bounds-checked byte reader, the "low-level ELF
// byte-level read cursor" spec §1 treats as a bit-exact codec with known
// semantics — implemented here rather than assumed, since rawelf is the
// component that provides that codec to the rest of the linker.
type cursor struct {
	b   []byte
	pos int
}

func (c *cursor) u8() (byte, error) {
	if c.pos+1 > len(c.b) {
		return 0, io.ErrUnexpectedEOF
	}
	v := c.b[c.pos]
	c.pos++
	return v, nil
}

func (c *cursor) bytes(n int) ([]byte, error) {
	if c.pos+n > len(c.b) {
		return nil, io.ErrUnexpectedEOF
	}
	v := c.b[c.pos : c.pos+n]
	c.pos += n
	return v, nil
}

func (c *cursor) u16() (uint16, error) {
	v, err := c.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(v), nil
}

func (c *cursor) u32() (uint32, error) {
	v, err := c.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(v), nil
}

func (c *cursor) u64() (uint64, error) {
	v, err := c.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(v), nil
}

// word reads a word-sized (4 bytes for 32-bit class, 8 for 64-bit)
// unsigned integer.
func (c *cursor) word(class Class) (uint64, error) {
	if class == Class64 {
		return c.u64()
	}
	v, err := c.u32()
	return uint64(v), err
}

// ReadObject decodes data as an ELF relocatable or shared object (spec
// §4.1's read_object contract). data must hold the file's entire
// contents; callers typically pass os.ReadFile's result or an mmap of the
// file.
func ReadObject(data []byte) (*RawObject, error) {
	if len(data) < 16 {
		return nil, loadErr("file too short to contain an ELF identification")
	}
	var magic [4]byte
	copy(magic[:], data[:4])
	if magic[0] != identMag0 || magic[1] != identMag1 || magic[2] != identMag2 || magic[3] != identMag3 {
		return nil, &BadMagic{Got: magic}
	}

	class := Class(data[4])
	if class != Class32 && class != Class64 {
		return nil, loadErr("%w", &BadClass{Got: data[4]})
	}
	endian := Endian(data[5])
	if endian != EndianLittle {
		return nil, loadErr("%w", &BadEndian{Got: data[5]})
	}
	if data[6] != identVersion {
		return nil, loadErr("%w", &BadVersion{Got: data[6]})
	}
	abi := ABI(data[7])
	if abi != ABISystemV && abi != ABIGNU {
		return nil, loadErr("%w", &BadABI{Got: data[7]})
	}

	c := &cursor{b: data, pos: 16}
	hdr := Header{Class: class, Endian: endian, ABI: abi}

	typ, err := c.u16()
	if err != nil {
		return nil, loadErr("reading e_type: %w", err)
	}
	hdr.Type = Type(typ)
	if hdr.Type != TypeRel && hdr.Type != TypeExec && hdr.Type != TypeDyn {
		return nil, loadErr("%w", &BadType{Got: typ})
	}

	mach, err := c.u16()
	if err != nil {
		return nil, loadErr("reading e_machine: %w", err)
	}
	hdr.Machine = Machine(mach)
	if hdr.Machine != MachineX86 && hdr.Machine != MachineX8664 {
		return nil, loadErr("%w", &BadMachine{Got: mach})
	}

	ver, err := c.u32()
	if err != nil || ver != 1 {
		return nil, loadErr("reading e_version")
	}

	hdr.Entry, err = c.word(class)
	if err != nil {
		return nil, loadErr("reading e_entry: %w", err)
	}
	hdr.PhOff, err = c.word(class)
	if err != nil {
		return nil, loadErr("reading e_phoff: %w", err)
	}
	hdr.ShOff, err = c.word(class)
	if err != nil {
		return nil, loadErr("reading e_shoff: %w", err)
	}
	hdr.Flags, err = c.u32()
	if err != nil {
		return nil, loadErr("reading e_flags: %w", err)
	}
	hdr.EhSize, err = c.u16()
	if err != nil {
		return nil, loadErr("reading e_ehsize: %w", err)
	}
	phentsize, err := c.u16()
	if err != nil {
		return nil, loadErr("reading e_phentsize: %w", err)
	}
	hdr.PhEntSize = phentsize
	hdr.PhNum, err = c.u16()
	if err != nil {
		return nil, loadErr("reading e_phnum: %w", err)
	}
	hdr.ShEntSize, err = c.u16()
	if err != nil {
		return nil, loadErr("reading e_shentsize: %w", err)
	}
	hdr.ShNum, err = c.u16()
	if err != nil {
		return nil, loadErr("reading e_shnum: %w", err)
	}
	hdr.ShStrNdx, err = c.u16()
	if err != nil {
		return nil, loadErr("reading e_shstrndx: %w", err)
	}

	expectedEhSize := headerSize(class)
	if uint64(hdr.EhSize) != expectedEhSize {
		return nil, loadErr("%w", &MisalignedFile{Current: uint64(hdr.EhSize), Expected: expectedEhSize})
	}

	raw := &RawObject{Header: hdr}

	if hdr.ShNum > 0 {
		sections, err := readSectionHeaders(data, hdr)
		if err != nil {
			return nil, err
		}
		raw.Sections = sections
	}
	if hdr.PhNum > 0 {
		program, err := readProgramHeaders(data, hdr)
		if err != nil {
			return nil, err
		}
		raw.Program = program
	}

	return raw, nil
}

func headerSize(class Class) uint64 {
	if class == Class64 {
		return 64
	}
	return 52
}

func sectionHeaderEntrySize(class Class) uint64 {
	if class == Class64 {
		return 64
	}
	return 40
}

func programHeaderEntrySize(class Class) uint64 {
	if class == Class64 {
		return 56
	}
	return 32
}

func readSectionHeaders(data []byte, hdr Header) ([]SectionHeader, error) {
	class := hdr.Class
	entsize := sectionHeaderEntrySize(class)
	if uint64(hdr.ShEntSize) != entsize {
		return nil, loadErr("%w", &MisalignedFile{Current: uint64(hdr.ShEntSize), Expected: entsize})
	}

	n := int(hdr.ShNum)
	out := make([]SectionHeader, n)
	for i := 0; i < n; i++ {
		off := hdr.ShOff + uint64(i)*entsize
		if off+entsize > uint64(len(data)) {
			return nil, loadErr("section header %d out of range", i)
		}
		c := &cursor{b: data, pos: int(off)}
		sh := SectionHeader{}
		var err error
		sh.NameOffset, err = c.u32()
		if err != nil {
			return nil, err
		}
		typ, err := c.u32()
		if err != nil {
			return nil, err
		}
		sh.Type = SectionHeaderType(typ)
		sh.Flags, err = c.word(class)
		if err != nil {
			return nil, err
		}
		sh.Addr, err = c.word(class)
		if err != nil {
			return nil, err
		}
		sh.Offset, err = c.word(class)
		if err != nil {
			return nil, err
		}
		sh.Size, err = c.word(class)
		if err != nil {
			return nil, err
		}
		sh.Link, err = c.u32()
		if err != nil {
			return nil, err
		}
		sh.Info, err = c.u32()
		if err != nil {
			return nil, err
		}
		sh.AddrAlign, err = c.word(class)
		if err != nil {
			return nil, err
		}
		sh.EntSize, err = c.word(class)
		if err != nil {
			return nil, err
		}

		if sh.Type != ShtNobits && sh.Type != ShtNull {
			if sh.Offset+sh.Size > uint64(len(data)) {
				return nil, loadErr("%w", &OutOfRange{Section: "#" + itoa(i), Offset: sh.Offset, Size: sh.Size, FileLen: uint64(len(data))})
			}
			sh.Data = data[sh.Offset : sh.Offset+sh.Size]
		}
		out[i] = sh
	}

	// Resolve names against .shstrtab.
	if int(hdr.ShStrNdx) < len(out) {
		strtab := out[hdr.ShStrNdx].Data
		for i := range out {
			name, err := nameAt(strtab, out[i].NameOffset)
			if err != nil {
				return nil, loadErr("resolving section %d name: %w", i, err)
			}
			out[i].Name = name
		}
	}
	return out, nil
}

func readProgramHeaders(data []byte, hdr Header) ([]ProgramHeader, error) {
	class := hdr.Class
	entsize := programHeaderEntrySize(class)
	n := int(hdr.PhNum)
	out := make([]ProgramHeader, n)
	for i := 0; i < n; i++ {
		off := hdr.PhOff + uint64(i)*entsize
		if off+entsize > uint64(len(data)) {
			return nil, loadErr("program header %d out of range", i)
		}
		c := &cursor{b: data, pos: int(off)}
		ph, err := readOneProgramHeader(c, class)
		if err != nil {
			return nil, loadErr("reading program header %d: %w", i, err)
		}
		out[i] = ph
	}
	return out, nil
}

func readOneProgramHeader(c *cursor, class Class) (ProgramHeader, error) {
	var ph ProgramHeader
	typ, err := c.u32()
	if err != nil {
		return ph, err
	}
	ph.Type = ProgramHeaderType(typ)

	if class == Class64 {
		if ph.Flags, err = c.u32(); err != nil {
			return ph, err
		}
		if ph.Offset, err = c.u64(); err != nil {
			return ph, err
		}
		if ph.VAddr, err = c.u64(); err != nil {
			return ph, err
		}
		if ph.PAddr, err = c.u64(); err != nil {
			return ph, err
		}
		if ph.FileSz, err = c.u64(); err != nil {
			return ph, err
		}
		if ph.MemSz, err = c.u64(); err != nil {
			return ph, err
		}
		if ph.Align, err = c.u64(); err != nil {
			return ph, err
		}
		return ph, nil
	}

	if ph.Offset, err = c.u32_(); err != nil {
		return ph, err
	}
	if ph.VAddr, err = c.u32_(); err != nil {
		return ph, err
	}
	if ph.PAddr, err = c.u32_(); err != nil {
		return ph, err
	}
	if ph.FileSz, err = c.u32_(); err != nil {
		return ph, err
	}
	if ph.MemSz, err = c.u32_(); err != nil {
		return ph, err
	}
	if ph.Flags, err = c.u32(); err != nil {
		return ph, err
	}
	if ph.Align, err = c.u32_(); err != nil {
		return ph, err
	}
	return ph, nil
}

// u32_ reads a uint32 and widens it to uint64, for the 32-bit program
// header layout where several fields that are word-sized on 64-bit are
// fixed 4-byte fields on 32-bit regardless (spec §4.1 "a different field
// order between 32- and 64-bit; a declarative schema... honors it").
func (c *cursor) u32_() (uint64, error) {
	v, err := c.u32()
	return uint64(v), err
}

func nameAt(strtab []byte, off uint32) (string, error) {
	if uint64(off) >= uint64(len(strtab)) {
		return "", &OutOfRange{Section: ".shstrtab", Offset: uint64(off), FileLen: uint64(len(strtab))}
	}
	end := off
	for int(end) < len(strtab) && strtab[end] != 0 {
		end++
	}
	if int(end) >= len(strtab) {
		return "", &UnterminatedString{Section: ".shstrtab", Offset: uint64(off)}
	}
	return string(strtab[off:end]), nil
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// ParseSymbols decodes a SHT_SYMTAB/SHT_DYNSYM section's raw bytes into
// Sym entries, resolving names against the linked string table's bytes.
func ParseSymbols(class Class, data, strtab []byte) ([]Sym, error) {
	entsize := uint64(16)
	if class == Class64 {
		entsize = 24
	}
	if uint64(len(data))%entsize != 0 {
		return nil, loadErr("symbol table size %d not a multiple of entry size %d", len(data), entsize)
	}
	n := len(data) / int(entsize)
	out := make([]Sym, n)
	for i := 0; i < n; i++ {
		c := &cursor{b: data, pos: i * int(entsize)}
		var s Sym
		var err error
		if class == Class64 {
			s.NameOffset, err = c.u32()
			if err != nil {
				return nil, err
			}
			info, err := c.u8()
			if err != nil {
				return nil, err
			}
			s.Info = info
			other, err := c.u8()
			if err != nil {
				return nil, err
			}
			s.Other = other
			shndx, err := c.u16()
			if err != nil {
				return nil, err
			}
			s.Shndx = shndx
			s.Value, err = c.u64()
			if err != nil {
				return nil, err
			}
			s.Size, err = c.u64()
			if err != nil {
				return nil, err
			}
		} else {
			s.NameOffset, err = c.u32()
			if err != nil {
				return nil, err
			}
			value, err := c.u32()
			if err != nil {
				return nil, err
			}
			s.Value = uint64(value)
			size, err := c.u32()
			if err != nil {
				return nil, err
			}
			s.Size = uint64(size)
			info, err := c.u8()
			if err != nil {
				return nil, err
			}
			s.Info = info
			other, err := c.u8()
			if err != nil {
				return nil, err
			}
			s.Other = other
			shndx, err := c.u16()
			if err != nil {
				return nil, err
			}
			s.Shndx = shndx
		}
		if s.NameOffset != 0 {
			name, err := nameAt(strtab, s.NameOffset)
			if err != nil {
				return nil, loadErr("resolving symbol %d name: %w", i, err)
			}
			s.Name = name
		}
		out[i] = s
	}
	return out, nil
}

// ParseRelocations decodes a SHT_REL/SHT_RELA section's raw bytes.
func ParseRelocations(class Class, data []byte, rela bool) ([]Rel, error) {
	word := uint64(4)
	if class == Class64 {
		word = 8
	}
	entsize := word * 2
	if rela {
		entsize = word * 3
	}
	if uint64(len(data))%entsize != 0 {
		return nil, loadErr("relocation table size %d not a multiple of entry size %d", len(data), entsize)
	}
	n := len(data) / int(entsize)
	out := make([]Rel, n)
	for i := 0; i < n; i++ {
		c := &cursor{b: data, pos: i * int(entsize)}
		var r Rel
		r.Rela = rela
		off, err := c.word(class)
		if err != nil {
			return nil, err
		}
		r.Offset = off
		info, err := c.word(class)
		if err != nil {
			return nil, err
		}
		if class == Class64 {
			r.Type = uint32(info)
			r.Sym = uint32(info >> 32)
		} else {
			r.Type = uint32(info & 0xff)
			r.Sym = uint32(info >> 8)
		}
		if rela {
			addend, err := c.word(class)
			if err != nil {
				return nil, err
			}
			r.Addend = int64(addend)
		}
		out[i] = r
	}
	return out, nil
}

// ParseDynamic decodes a SHT_DYNAMIC section's raw bytes into tag/value
// pairs, stopping at (and including) the first DT_NULL.
func ParseDynamic(class Class, data []byte) ([]Dyn, error) {
	word := uint64(4)
	if class == Class64 {
		word = 8
	}
	entsize := word * 2
	n := len(data) / int(entsize)
	out := make([]Dyn, 0, n)
	for i := 0; i < n; i++ {
		c := &cursor{b: data, pos: i * int(entsize)}
		tag, err := c.word(class)
		if err != nil {
			return nil, err
		}
		val, err := c.word(class)
		if err != nil {
			return nil, err
		}
		out = append(out, Dyn{Tag: tag, Val: val})
		if tag == DtNull {
			break
		}
	}
	return out, nil
}
