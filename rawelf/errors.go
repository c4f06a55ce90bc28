package rawelf

import "fmt"

// LoadError is the umbrella error type for everything that can go wrong
// while decoding an ELF file (spec §4.1 "Failure").
type LoadError struct {
	Cause error
}

func (e *LoadError) Error() string { return fmt.Sprintf("reading ELF object: %v", e.Cause) }
func (e *LoadError) Unwrap() error { return e.Cause }

func loadErr(format string, args ...any) error {
	return &LoadError{Cause: fmt.Errorf(format, args...)}
}

// BadMagic reports an ELF identification that didn't start with the
// expected 0x7f 'E' 'L' 'F' bytes.
type BadMagic struct{ Got [4]byte }

func (e *BadMagic) Error() string {
	return fmt.Sprintf("bad ELF magic: %02x %02x %02x %02x", e.Got[0], e.Got[1], e.Got[2], e.Got[3])
}

// BadClass reports an e_ident[EI_CLASS] value outside {ELFCLASS32, ELFCLASS64}.
type BadClass struct{ Got byte }

func (e *BadClass) Error() string { return fmt.Sprintf("bad ELF class byte 0x%02x", e.Got) }

// BadEndian reports an e_ident[EI_DATA] value that isn't little-endian
// (spec §1 "little-endian only").
type BadEndian struct{ Got byte }

func (e *BadEndian) Error() string { return fmt.Sprintf("bad or unsupported ELF data encoding byte 0x%02x", e.Got) }

// BadABI reports an unrecognized e_ident[EI_OSABI].
type BadABI struct{ Got byte }

func (e *BadABI) Error() string { return fmt.Sprintf("bad ELF OS/ABI byte 0x%02x", e.Got) }

// BadType reports an unrecognized e_type.
type BadType struct{ Got uint16 }

func (e *BadType) Error() string { return fmt.Sprintf("bad or unsupported ELF file type %d", e.Got) }

// BadMachine reports an e_machine outside {EM_386, EM_X86_64}.
type BadMachine struct{ Got uint16 }

func (e *BadMachine) Error() string { return fmt.Sprintf("unsupported ELF machine %d", e.Got) }

// BadVersion reports an e_ident[EI_VERSION]/e_version that isn't 1.
type BadVersion struct{ Got byte }

func (e *BadVersion) Error() string { return fmt.Sprintf("bad ELF version byte 0x%02x", e.Got) }

// UnterminatedString reports a string-table entry read past the end of
// its section without finding a NUL terminator.
type UnterminatedString struct {
	Section string
	Offset  uint64
}

func (e *UnterminatedString) Error() string {
	return fmt.Sprintf("unterminated string in %s at offset 0x%x", e.Section, e.Offset)
}

// InvalidUTF8 reports a string-table entry that isn't valid UTF-8.
type InvalidUTF8 struct {
	Section string
	Offset  uint64
}

func (e *InvalidUTF8) Error() string {
	return fmt.Sprintf("invalid UTF-8 in %s at offset 0x%x", e.Section, e.Offset)
}

// MisalignedFile reports that the parse cursor ended somewhere other than
// where the file layout said it should (spec §4.1).
type MisalignedFile struct {
	Current, Expected uint64
}

func (e *MisalignedFile) Error() string {
	return fmt.Sprintf("misaligned file: cursor at 0x%x, expected 0x%x", e.Current, e.Expected)
}

// OutOfRange reports a section whose declared offset+size falls outside
// the file.
type OutOfRange struct {
	Section      string
	Offset, Size uint64
	FileLen      uint64
}

func (e *OutOfRange) Error() string {
	return fmt.Sprintf("section %s at offset 0x%x size 0x%x falls outside file of length 0x%x",
		e.Section, e.Offset, e.Size, e.FileLen)
}

// WriteError is the umbrella error type for everything that can go wrong
// emitting an ELF file (spec §4.1, §4.16, §7 "Output errors").
type WriteError struct {
	Path  string
	Cause error
}

func (e *WriteError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("writing ELF object to %s: %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("writing ELF object: %v", e.Cause)
}
func (e *WriteError) Unwrap() error { return e.Cause }
