package rawelf

import (
	"fmt"
	"io"

	"github.com/plinkgo/plink/internal/archinfo"
	"github.com/plinkgo/plink/internal/ids"
	"github.com/plinkgo/plink/layout"
	"github.com/plinkgo/plink/object"
	"github.com/plinkgo/plink/symtab"
)

// WriteObject encodes o per l's computed placements and writes the result
// to w (spec §4.1 "write_object(writer, object, layout)", §4.16). Callers
// emitting to a real file are expected to follow up with an Fchmod to mark
// the result executable (spec §4.16 "the output file is marked
// executable"); rawelf itself only produces bytes.
func WriteObject(w io.Writer, o *object.Object, l *layout.Layout) error {
	data, err := EncodeObject(o, l)
	if err != nil {
		return &WriteError{Cause: err}
	}
	if _, err := w.Write(data); err != nil {
		return &WriteError{Cause: err}
	}
	return nil
}

// EncodeObject renders o, as placed by l, into a single contiguous byte
// image ready to be written to a file.
func EncodeObject(o *object.Object, l *layout.Layout) ([]byte, error) {
	class := classFromArch(o.Env.Class)
	total := l.SectionHeaders.FileEnd()
	buf := make([]byte, total)

	secIndex := buildSectionIndex(l)

	if err := writeHeader(buf, o, l, class, secIndex); err != nil {
		return nil, err
	}
	if err := writeProgramHeaders(buf, o, l, class); err != nil {
		return nil, err
	}
	for _, id := range l.Order() {
		sec := o.Section(id)
		if sec == nil {
			return nil, fmt.Errorf("rawelf: layout references section %v not present in object", id)
		}
		p, ok := l.Section(id)
		if !ok {
			return nil, fmt.Errorf("rawelf: no placement computed for section %q", sec.Name)
		}
		if err := writeSectionContent(buf, o, l, sec, p, class, secIndex); err != nil {
			return nil, fmt.Errorf("encoding section %q: %w", sec.Name, err)
		}
	}
	if err := writeSectionHeaders(buf, o, l, class, secIndex); err != nil {
		return nil, err
	}
	return buf, nil
}

func classFromArch(c archinfo.Class) Class {
	if c == archinfo.Class64 {
		return Class64
	}
	return Class32
}

func machineFromArch(m archinfo.Machine) Machine {
	if m == archinfo.MachineX86_64 {
		return MachineX8664
	}
	return MachineX86
}

// buildSectionIndex maps every placed SectionID to its 1-based section
// header index (0 is reserved for the null header, spec §4.13).
func buildSectionIndex(l *layout.Layout) map[ids.SectionID]uint16 {
	order := l.Order()
	m := make(map[ids.SectionID]uint16, len(order))
	for i, id := range order {
		m[id] = uint16(i + 1)
	}
	return m
}

// builder is an append-only byte writer over a pre-sized, fixed-position
// buffer: every field is written "in place" at buf[off:], the mirror
// image of cursor's read-in-place approach in reader.go.
type builder struct {
	buf   []byte
	class Class
}

func (b *builder) putWord(off int, v uint64) {
	if b.class == Class64 {
		putU64(b.buf[off:], v)
	} else {
		putU32(b.buf[off:], uint32(v))
	}
}

func (b *builder) wordSize() int {
	if b.class == Class64 {
		return 8
	}
	return 4
}

func putU16(b []byte, v uint16) { b[0] = byte(v); b[1] = byte(v >> 8) }
func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

func writeHeader(buf []byte, o *object.Object, l *layout.Layout, class Class, secIndex map[ids.SectionID]uint16) error {
	buf[0], buf[1], buf[2], buf[3] = identMag0, identMag1, identMag2, identMag3
	buf[4] = byte(class)
	buf[5] = byte(EndianLittle)
	buf[6] = identVersion
	buf[7] = byte(ABISystemV)
	// bytes 8..15 (ABI version + padding) are left zero.

	b := &builder{buf: buf, class: class}
	pos := 16

	typ := TypeExec
	if o.Mode.Dynamic() {
		if o.Mode == object.SharedLibrary {
			typ = TypeDyn
		} else {
			typ = TypeDyn // PIE executables are also ET_DYN
		}
	}
	putU16(buf[pos:], uint16(typ))
	pos += 2
	putU16(buf[pos:], uint16(machineFromArch(o.Env.Machine)))
	pos += 2
	putU32(buf[pos:], 1) // e_version
	pos += 4

	entry, err := entryAddress(o, l, secIndex)
	if err != nil {
		return err
	}
	b.putWord(pos, entry)
	pos += b.wordSize()
	b.putWord(pos, l.ProgramHeaders.FileOffset)
	pos += b.wordSize()
	b.putWord(pos, l.SectionHeaders.FileOffset)
	pos += b.wordSize()

	putU32(buf[pos:], 0) // e_flags
	pos += 4
	putU16(buf[pos:], uint16(headerSize(class)))
	pos += 2
	putU16(buf[pos:], uint16(programHeaderEntrySize(class)))
	pos += 2
	putU16(buf[pos:], uint16(len(o.Segments)))
	pos += 2
	putU16(buf[pos:], uint16(sectionHeaderEntrySize(class)))
	pos += 2
	putU16(buf[pos:], uint16(len(o.Sections())+1))
	pos += 2

	shstrndx := uint16(0)
	if sec := o.SectionByName(".shstrtab"); sec != nil {
		shstrndx = secIndex[sec.ID]
	}
	putU16(buf[pos:], shstrndx)
	return nil
}

func entryAddress(o *object.Object, l *layout.Layout, secIndex map[ids.SectionID]uint16) (uint64, error) {
	if o.EntryPoint == ids.NoSymbol {
		return 0, nil
	}
	sym := o.Symbols.Get(o.EntryPoint)
	if sym == nil {
		return 0, fmt.Errorf("rawelf: entry point symbol %v not found", o.EntryPoint)
	}
	return symbolAddress(l, sym.Value)
}

// symbolAddress resolves a symtab.Value to its final runtime address,
// given the section placements l computed.
func symbolAddress(l *layout.Layout, v symtab.Value) (uint64, error) {
	switch v.Kind {
	case symtab.ValueAbsolute, symtab.ValueSectionVirtualAddress:
		return v.Addr, nil
	case symtab.ValueSectionRelative:
		p, ok := l.Section(v.Section)
		if !ok {
			return 0, fmt.Errorf("rawelf: no placement for section %v", v.Section)
		}
		return p.MemAddr + v.Offset, nil
	case symtab.ValueSection:
		p, ok := l.Section(v.Section)
		if !ok {
			return 0, fmt.Errorf("rawelf: no placement for section %v", v.Section)
		}
		return p.MemAddr, nil
	default:
		return 0, nil
	}
}

func segmentType(t object.SegmentType) ProgramHeaderType {
	switch t {
	case object.SegmentProgramHeader:
		return PtPhdr
	case object.SegmentInterpreter:
		return PtInterp
	case object.SegmentProgram, object.SegmentUninitialized:
		return PtLoad
	case object.SegmentDynamic:
		return PtDynamic
	case object.SegmentGnuStack:
		return PtGnuStack
	case object.SegmentGnuRelro:
		return PtGnuRelro
	case object.SegmentGnuProperty:
		return PtGnuProperty
	default:
		return PtNull
	}
}

func segmentFlags(p object.Perms) uint32 {
	var f uint32
	if p.Read {
		f |= PfRead
	}
	if p.Write {
		f |= PfWrite
	}
	if p.Execute {
		f |= PfExecute
	}
	return f
}

// segmentExtent returns the file/memory span a Segment covers, derived
// from the placements of its parts (spec §3.8, §4.13).
func segmentExtent(seg *object.Segment, l *layout.Layout) (fileOff, fileLen, memAddr, memLen uint64, err error) {
	first := true
	var fileEnd, memEnd uint64
	consider := func(off, flen, addr, mlen uint64) {
		if first {
			fileOff, fileLen, memAddr, memLen = off, flen, addr, mlen
			fileEnd, memEnd = off+flen, addr+mlen
			first = false
			return
		}
		if off < fileOff {
			fileOff = off
		}
		if addr < memAddr {
			memAddr = addr
		}
		if e := off + flen; e > fileEnd {
			fileEnd = e
		}
		if e := addr + mlen; e > memEnd {
			memEnd = e
		}
	}
	for _, part := range seg.Content {
		switch part.Kind {
		case object.PartElfHeader:
			p := l.ElfHeader
			consider(p.FileOffset, p.FileLen, p.MemAddr, p.MemLen)
		case object.PartProgramHeaderTable:
			p := l.ProgramHeaders
			consider(p.FileOffset, p.FileLen, p.MemAddr, p.MemLen)
		case object.PartSection:
			p, ok := l.Section(part.Section)
			if !ok {
				return 0, 0, 0, 0, fmt.Errorf("rawelf: segment references unplaced section %v", part.Section)
			}
			consider(p.FileOffset, p.FileLen, p.MemAddr, p.MemLen)
		case object.PartRelroSections:
			// Relro coverage piggybacks on the same sections already
			// contributed via PartSection entries in the PT_LOAD segment;
			// nothing further to add here.
		}
	}
	if first {
		return 0, 0, 0, 0, nil
	}
	fileLen = fileEnd - fileOff
	memLen = memEnd - memAddr
	return fileOff, fileLen, memAddr, memLen, nil
}

func writeProgramHeaders(buf []byte, o *object.Object, l *layout.Layout, class Class) error {
	entsize := int(programHeaderEntrySize(class))
	base := int(l.ProgramHeaders.FileOffset)
	b := &builder{buf: buf, class: class}

	for i, seg := range o.Segments {
		off, flen, addr, mlen, err := segmentExtent(seg, l)
		if err != nil {
			return fmt.Errorf("program header %d: %w", i, err)
		}
		pos := base + i*entsize
		putU32(buf[pos:], uint32(segmentType(seg.Type)))
		pos4 := pos + 4

		if class == Class64 {
			putU32(buf[pos4:], segmentFlags(seg.Perms))
			pos4 += 4
			b.putWord(pos4, off)
			pos4 += 8
			b.putWord(pos4, addr)
			pos4 += 8
			b.putWord(pos4, addr) // p_paddr mirrors p_vaddr
			pos4 += 8
			b.putWord(pos4, flen)
			pos4 += 8
			b.putWord(pos4, mlen)
			pos4 += 8
			b.putWord(pos4, seg.Align)
		} else {
			b.putWord(pos4, off)
			pos4 += 4
			b.putWord(pos4, addr)
			pos4 += 4
			b.putWord(pos4, addr)
			pos4 += 4
			b.putWord(pos4, flen)
			pos4 += 4
			b.putWord(pos4, mlen)
			pos4 += 4
			putU32(buf[pos4:], segmentFlags(seg.Perms))
			pos4 += 4
			b.putWord(pos4, seg.Align)
		}
	}
	return nil
}

func writeSectionContent(buf []byte, o *object.Object, l *layout.Layout, sec *object.Section, p layout.Placement, class Class, secIndex map[ids.SectionID]uint16) error {
	switch c := sec.Content.(type) {
	case object.Data:
		copy(buf[p.FileOffset:p.FileOffset+p.FileLen], c.Bytes)
		return nil
	case object.Uninitialized:
		return nil // SHT_NOBITS: no file bytes
	case object.Strings:
		raw := c.Table.Bytes()
		copy(buf[p.FileOffset:p.FileOffset+uint64(len(raw))], raw)
		return nil
	case object.Symbols:
		return writeSymbols(buf, o, l, c, p, class, secIndex)
	case object.Relocations:
		return writeRelocations(buf, c, p, class)
	case object.Dynamic:
		return writeDynamic(buf, o, l, c, p, class)
	case object.SysvHash:
		return writeSysvHash(buf, o, c, p)
	case object.Notes:
		return writeNotes(buf, c, p)
	case object.Group:
		return writeGroup(buf, c, p, secIndex)
	default:
		return fmt.Errorf("rawelf: unsupported section content %T", c)
	}
}

func strtabOffset(o *object.Object, strtabID ids.SectionID, name string) (uint64, error) {
	st, ok := o.Strings[strtabID]
	if !ok {
		return 0, fmt.Errorf("rawelf: no string table registered for section %v", strtabID)
	}
	off, ok := st.Find(name)
	if !ok {
		return 0, fmt.Errorf("rawelf: name %q not present in string table %v", name, strtabID)
	}
	return off, nil
}

func writeSymbols(buf []byte, o *object.Object, l *layout.Layout, c object.Symbols, p layout.Placement, class Class, secIndex map[ids.SectionID]uint16) error {
	entsize := 16
	if class == Class64 {
		entsize = 24
	}
	base := int(p.FileOffset)

	// Slot 0 is always the reserved null symbol; c.View lists the rest.
	for i, symID := range c.View {
		sym := o.Symbols.Get(symID)
		if sym == nil {
			return fmt.Errorf("rawelf: symbol view references unknown symbol %v", symID)
		}
		pos := base + (i+1)*entsize

		var nameOff uint64
		if sym.Name != "" {
			off, err := strtabOffset(o, c.LinkedStrings, sym.Name)
			if err != nil {
				return err
			}
			nameOff = off
		}

		value, shndx, err := symbolRawValue(l, sym, secIndex)
		if err != nil {
			return fmt.Errorf("symbol %q: %w", sym.Name, err)
		}

		info := symbolInfo(sym)
		other := symbolOther(sym)

		if class == Class64 {
			putU32(buf[pos:], uint32(nameOff))
			buf[pos+4] = info
			buf[pos+5] = other
			putU16(buf[pos+6:], shndx)
			putU64(buf[pos+8:], value)
			putU64(buf[pos+16:], sym.Size)
		} else {
			putU32(buf[pos:], uint32(nameOff))
			putU32(buf[pos+4:], uint32(value))
			putU32(buf[pos+8:], uint32(sym.Size))
			buf[pos+12] = info
			buf[pos+13] = other
			putU16(buf[pos+14:], shndx)
		}
	}
	return nil
}

func symbolInfo(sym *symtab.Symbol) byte {
	var bind byte
	switch {
	case sym.Visibility.IsLocal():
		bind = StbLocal
	case sym.Visibility.IsExternallyDefined():
		bind = StbGlobal
	case sym.Visibility.Weak:
		bind = StbWeak
	default:
		bind = StbGlobal
	}
	var typ byte
	switch sym.Type {
	case symtab.Object:
		typ = SttObject
	case symtab.Function:
		typ = SttFunc
	case symtab.SectionType:
		typ = SttSection
	case symtab.File:
		typ = SttFile
	default:
		typ = SttNotype
	}
	return bind<<4 | typ
}

func symbolOther(sym *symtab.Symbol) byte {
	if sym.Visibility.Hidden {
		return 0x2 // STV_HIDDEN
	}
	return 0
}

func symbolRawValue(l *layout.Layout, sym *symtab.Symbol, secIndex map[ids.SectionID]uint16) (value uint64, shndx uint16, err error) {
	switch sym.Value.Kind {
	case symtab.ValueNull:
		return 0, ShnUndef, nil
	case symtab.ValueAbsolute:
		return sym.Value.Addr, ShnAbs, nil
	case symtab.ValueSectionRelative:
		p, ok := l.Section(sym.Value.Section)
		if !ok {
			return 0, 0, fmt.Errorf("no placement for section %v", sym.Value.Section)
		}
		return p.MemAddr + sym.Value.Offset, secIndex[sym.Value.Section], nil
	case symtab.ValueSection:
		p, ok := l.Section(sym.Value.Section)
		if !ok {
			return 0, 0, fmt.Errorf("no placement for section %v", sym.Value.Section)
		}
		return p.MemAddr, secIndex[sym.Value.Section], nil
	case symtab.ValueSectionVirtualAddress:
		return sym.Value.Addr, secIndex[sym.Value.Section], nil
	case symtab.ValueSectionNotLoaded:
		return 0, ShnUndef, nil
	case symtab.ValueExternallyDefined, symtab.ValueUndefined:
		return 0, ShnUndef, nil
	default:
		return 0, 0, fmt.Errorf("unhandled symbol value kind %v", sym.Value.Kind)
	}
}

func writeRelocations(buf []byte, c object.Relocations, p layout.Placement, class Class) error {
	word := 4
	if class == Class64 {
		word = 8
	}
	entsize := word * 2
	if c.Mode == object.RelocModeRela {
		entsize = word * 3
	}
	base := int(p.FileOffset)
	b := &builder{buf: buf, class: class}
	for i, r := range c.Items {
		pos := base + i*entsize
		raw, err := normalizeRelocForEmit(r)
		if err != nil {
			return err
		}
		b.putWord(pos, raw.Offset)
		info := infoWord(class, raw.Sym, raw.Type)
		b.putWord(pos+word, info)
		if c.Mode == object.RelocModeRela {
			b.putWord(pos+2*word, uint64(raw.Addend))
		}
	}
	return nil
}

func infoWord(class Class, sym, typ uint32) uint64 {
	if class == Class64 {
		return uint64(sym)<<32 | uint64(typ)
	}
	return uint64(sym)<<8 | uint64(typ&0xff)
}

// normalizeRelocForEmit converts an object.Relocation back into the raw
// (sym, type, addend) triple. The symbol index used here is the
// relocation's own Relocation.Symbol as a raw SymbolID; passes/relocate is
// responsible for having already resolved it to the final post-merge
// identity before this runs.
func normalizeRelocForEmit(r object.Relocation) (Rel, error) {
	var addend int64
	if r.Addend.Kind == object.AddendExplicit {
		addend = r.Addend.Value
	}
	return Rel{
		Offset: r.Offset,
		Type:   uint32(r.Type),
		Sym:    uint32(r.Symbol),
		Addend: addend,
	}, nil
}

func writeDynamic(buf []byte, o *object.Object, l *layout.Layout, c object.Dynamic, p layout.Placement, class Class) error {
	word := 4
	if class == Class64 {
		word = 8
	}
	entsize := word * 2
	base := int(p.FileOffset)
	b := &builder{buf: buf, class: class}

	pos := base
	put := func(tag, val uint64) {
		b.putWord(pos, tag)
		b.putWord(pos+word, val)
		pos += entsize
	}
	sectionAddr := func(id ids.SectionID) uint64 {
		sp, ok := l.Section(id)
		if !ok {
			return 0
		}
		return sp.MemAddr
	}
	sectionSize := func(id ids.SectionID) uint64 {
		sp, ok := l.Section(id)
		if !ok {
			return 0
		}
		return sp.FileLen
	}

	for _, e := range c.Entries {
		switch e.Kind {
		case object.DynNeeded:
			put(DtNeeded, e.StringOffset)
		case object.DynSharedObjectName:
			put(DtSoname, e.StringOffset)
		case object.DynStringTable:
			put(DtStrtab, sectionAddr(e.Section))
			put(DtStrSz, sectionSize(e.Section))
		case object.DynSymbolTable:
			put(DtSymtab, sectionAddr(e.Section))
		case object.DynHash:
			put(DtHash, sectionAddr(e.Section))
		case object.DynRela:
			put(DtRela, sectionAddr(e.Section))
			put(DtRelaSz, sectionSize(e.Section))
			put(DtRelaEnt, e.RelaEntrySize)
		case object.DynPlt:
			put(DtPltGot, sectionAddr(e.Section))
		case object.DynGotRela:
			put(DtJmpRel, sectionAddr(e.Section))
			put(DtPltRelSz, sectionSize(e.Section))
		case object.DynFlags1:
			put(DtFlags1, e.Flags1)
		}
	}
	put(DtNull, 0)
	return nil
}

func writeNotes(buf []byte, c object.Notes, p layout.Placement) error {
	pos := int(p.FileOffset)
	for _, n := range c.Entries {
		nameLen := uint32(len(n.Name) + 1)
		descLen := uint32(len(n.Desc))
		putU32(buf[pos:], nameLen)
		putU32(buf[pos+4:], descLen)
		putU32(buf[pos+8:], n.Type)
		pos += 12
		copy(buf[pos:], n.Name)
		pos += int(roundUpU32(nameLen, 4))
		copy(buf[pos:], n.Desc)
		pos += int(roundUpU32(descLen, 4))
	}
	return nil
}

func roundUpU32(x, y uint32) uint32 { return (x + y - 1) &^ (y - 1) }

// writeSysvHash emits a SysV-style .hash section (spec §4.10): nbucket,
// nchain, then the bucket and chain arrays, each entry a 32-bit word
// regardless of ELF class. The name list fed to the hash algorithm must
// line up slot-for-slot with the dynsym table it indexes, including the
// reserved null symbol at slot 0 that writeSymbols adds implicitly.
func writeSysvHash(buf []byte, o *object.Object, c object.SysvHash, p layout.Placement) error {
	symSec := o.Section(c.SymbolTable)
	if symSec == nil {
		return fmt.Errorf("rawelf: hash table references unknown symbol table %v", c.SymbolTable)
	}
	dynsym, ok := symSec.Content.(object.Symbols)
	if !ok {
		return fmt.Errorf("rawelf: hash table's symbol table %v is not a symbol table", c.SymbolTable)
	}

	names := make([]string, len(dynsym.View)+1)
	for i, symID := range dynsym.View {
		sym := o.Symbols.Get(symID)
		if sym == nil {
			return fmt.Errorf("rawelf: hash table references unknown symbol %v", symID)
		}
		names[i+1] = sym.Name
	}

	hash := archinfo.BuildSysvHash(names)
	pos := int(p.FileOffset)
	putU32(buf[pos:], uint32(len(hash.Buckets)))
	pos += 4
	putU32(buf[pos:], uint32(len(hash.Chain)))
	pos += 4
	for _, b := range hash.Buckets {
		putU32(buf[pos:], b)
		pos += 4
	}
	for _, ch := range hash.Chain {
		putU32(buf[pos:], ch)
		pos += 4
	}
	return nil
}

func writeGroup(buf []byte, c object.Group, p layout.Placement, secIndex map[ids.SectionID]uint16) error {
	pos := int(p.FileOffset)
	flags := uint32(0)
	if c.Comdat {
		flags = 1 // GRP_COMDAT
	}
	putU32(buf[pos:], flags)
	pos += 4
	for _, id := range c.Sections {
		putU32(buf[pos:], uint32(secIndex[id]))
		pos += 4
	}
	return nil
}

func writeSectionHeaders(buf []byte, o *object.Object, l *layout.Layout, class Class, secIndex map[ids.SectionID]uint16) error {
	entsize := int(sectionHeaderEntrySize(class))
	base := int(l.SectionHeaders.FileOffset)
	b := &builder{buf: buf, class: class}

	// Entry 0 is the reserved null section header; left fully zero.
	shstrtab := o.SectionByName(".shstrtab")

	for _, id := range l.Order() {
		sec := o.Section(id)
		p, _ := l.Section(id)
		idx := secIndex[id]
		pos := base + int(idx)*entsize

		var nameOff uint32
		if shstrtab != nil {
			if st, ok := o.Strings[shstrtab.ID]; ok {
				if off, ok := st.Find(sec.Name); ok {
					nameOff = uint32(off)
				}
			}
		}
		putU32(buf[pos:], nameOff)

		typ, flags, link, info, entrySize, err := sectionHeaderFields(o, sec, class, secIndex)
		if err != nil {
			return fmt.Errorf("section header for %q: %w", sec.Name, err)
		}
		putU32(buf[pos+4:], uint32(typ))
		p4 := pos + 8
		b.putWord(p4, flags)
		p4 += b.wordSize()
		b.putWord(p4, p.MemAddr)
		p4 += b.wordSize()
		b.putWord(p4, p.FileOffset)
		p4 += b.wordSize()
		size := p.FileLen
		if _, isUninit := sec.Content.(object.Uninitialized); isUninit {
			size = p.MemLen
		}
		b.putWord(p4, size)
		p4 += b.wordSize()
		putU32(buf[p4:], link)
		p4 += 4
		putU32(buf[p4:], info)
		p4 += 4
		b.putWord(p4, 1) // sh_addralign
		p4 += b.wordSize()
		b.putWord(p4, entrySize)
	}
	return nil
}

func sectionHeaderFields(o *object.Object, sec *object.Section, class Class, secIndex map[ids.SectionID]uint16) (typ SectionHeaderType, flags uint64, link, info uint32, entrySize uint64, err error) {
	switch c := sec.Content.(type) {
	case object.Data:
		return ShtProgbits, permFlags(c.Perms, c.Dedup), 0, 0, dedupEntrySize(c.Dedup), nil
	case object.Uninitialized:
		return ShtNobits, permFlags(c.Perms, object.NoDedup()), 0, 0, 0, nil
	case object.Strings:
		return ShtStrtab, 0, 0, 0, 0, nil
	case object.Symbols:
		t := ShtSymtab
		if c.IsDynsym {
			t = ShtDynsym
			flags = ShfAlloc
		}
		entsize := uint64(16)
		if class == Class64 {
			entsize = 24
		}
		return t, flags, uint32(secIndex[c.LinkedStrings]), uint32(firstGlobal(o, c)), entsize, nil
	case object.Relocations:
		t := ShtRel
		if c.Mode == object.RelocModeRela {
			t = ShtRela
		}
		word := uint64(4)
		if class == Class64 {
			word = 8
		}
		entsize := word * 2
		if c.Mode == object.RelocModeRela {
			entsize = word * 3
		}
		symSection := o.SectionByName(".dynsym")
		if symSection == nil {
			symSection = o.SectionByName(".symtab")
		}
		var linkIdx uint32
		if symSection != nil {
			linkIdx = uint32(secIndex[symSection.ID])
		}
		return t, 0, linkIdx, uint32(secIndex[c.AppliesTo]), entsize, nil
	case object.Dynamic:
		entsize := uint64(8)
		if class == Class64 {
			entsize = 16
		}
		return ShtDynamic, ShfAlloc | ShfWrite, uint32(secIndex[c.LinkedStrings]), 0, entsize, nil
	case object.SysvHash:
		return ShtHash, ShfAlloc, uint32(secIndex[c.SymbolTable]), 0, 4, nil
	case object.Notes:
		return ShtNote, 0, 0, 0, 0, nil
	case object.Group:
		symSection := o.SectionByName(".symtab")
		var linkIdx uint32
		if symSection != nil {
			linkIdx = uint32(secIndex[symSection.ID])
		}
		return ShtGroup, 0, linkIdx, 0, 4, nil
	default:
		return 0, 0, 0, 0, 0, fmt.Errorf("unsupported content %T", c)
	}
}

func permFlags(p object.Perms, d object.Dedup) uint64 {
	var f uint64
	f |= ShfAlloc
	if p.Write {
		f |= ShfWrite
	}
	if p.Execute {
		f |= ShfExecInstr
	}
	if d.Kind == object.DedupZeroTerminatedStrings {
		f |= ShfMerge | ShfStrings
	} else if d.Kind == object.DedupFixedSizeChunks {
		f |= ShfMerge
	}
	return f
}

func dedupEntrySize(d object.Dedup) uint64 {
	if d.Kind == object.DedupFixedSizeChunks {
		return d.ChunkSize
	}
	return 0
}

// firstGlobal returns the symbol-table index of the first non-local
// symbol in c's view, the value ELF requires in sh_info for SHT_SYMTAB
// sections.
func firstGlobal(o *object.Object, c object.Symbols) int {
	for i, id := range c.View {
		sym := o.Symbols.Get(id)
		if sym != nil && !sym.Visibility.IsLocal() {
			return i + 1 // +1 for the reserved null symbol at index 0
		}
	}
	return len(c.View) + 1
}
