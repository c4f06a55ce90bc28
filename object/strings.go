package object

import "fmt"

// StringTable stores offset->string for a single section, supporting the
// "suffix lookup" rule in spec §3.6: an offset inside an already-interned
// string is valid and returns its tail.
type StringTable struct {
	// raw holds the nul-terminated byte stream as it will appear on disk;
	// offsets index directly into it.
	raw []byte
	// exact indexes whole strings added via Add, for dedup.
	exact map[string]uint64
}

// NewStringTable creates a StringTable whose byte 0 is the mandatory empty
// string required by the ELF string table convention.
func NewStringTable() *StringTable {
	return &StringTable{raw: []byte{0}, exact: map[string]uint64{"": 0}}
}

// Add interns s (if not already present as an exact entry) and returns its
// offset. Unlike Get, Add never returns a suffix match — every call to Add
// for a distinct string produces a distinct entry unless a prior Add
// stored the exact same string as a whole entry.
func (t *StringTable) Add(s string) uint64 {
	if off, ok := t.exact[s]; ok {
		return off
	}
	off := uint64(len(t.raw))
	t.raw = append(t.raw, []byte(s)...)
	t.raw = append(t.raw, 0)
	t.exact[s] = off
	return off
}

// Get returns the string starting at off, including the suffix-lookup
// case where off falls in the middle of a previously-added string.
func (t *StringTable) Get(off uint64) (string, error) {
	if off >= uint64(len(t.raw)) {
		return "", fmt.Errorf("strings: offset 0x%x out of range", off)
	}
	end := off
	for end < uint64(len(t.raw)) && t.raw[end] != 0 {
		end++
	}
	if end >= uint64(len(t.raw)) {
		return "", fmt.Errorf("strings: unterminated string at offset 0x%x", off)
	}
	return string(t.raw[off:end]), nil
}

// Bytes returns the raw nul-terminated byte stream backing t, as it will
// be written to the output file.
func (t *StringTable) Bytes() []byte { return t.raw }

// Len returns the size, in bytes, of the backing byte stream.
func (t *StringTable) Len() uint64 { return uint64(len(t.raw)) }

// Find returns the offset of an existing exact entry for s, if any,
// without adding a new one.
func (t *StringTable) Find(s string) (uint64, bool) {
	off, ok := t.exact[s]
	return off, ok
}
