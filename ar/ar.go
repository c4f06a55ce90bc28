// Package ar reads POSIX ar archives (spec §4.2, §6.1): a stream of named
// member blobs, the format `ar`/`ranlib` produce for .a static library
// files. The linker treats an archive purely as a sequence of named byte
// ranges; it never writes one.
package ar

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// globalHeader is the fixed 8-byte magic every ar archive begins with.
const globalHeader = "!<arch>\n"

const (
	headerSize    = 60
	headerEndTag1 = 0x60
	headerEndTag2 = 0x0a
)

// Member is one named blob inside an archive.
type Member struct {
	Name string
	Data []byte

	// SymbolTable is true for the conventional leading member ("/" or
	// "__.SYMDEF") that indexes the archive's symbols rather than holding
	// an object file (spec §6.1 "optional symbol index as the first
	// member").
	SymbolTable bool
}

// MissingSymbolTable is returned when an archive's first member is not a
// symbol table (spec §4.2 "if absent, emit a diagnostic suggesting
// ranlib and refuse to proceed").
type MissingSymbolTable struct {
	Path string
}

func (e *MissingSymbolTable) Error() string {
	return fmt.Sprintf("%s: archive has no symbol table; run `ranlib %s` to add one", e.Path, e.Path)
}

// IsArchive reports whether data begins with the ar global header, the
// check spec §4.2's "Peek 8 bytes" step performs before choosing the
// archive path over the single-ELF path.
func IsArchive(data []byte) bool {
	return len(data) >= len(globalHeader) && string(data[:len(globalHeader)]) == globalHeader
}

// Read parses an entire ar archive and validates that its first member is
// a symbol table, returning MissingSymbolTable (wrapping path) if not.
// The symbol-table member itself is included in the returned slice so
// callers that want to consult it (rather than just requiring its
// presence) still can; the linker's input pass does not currently consult
// its contents, instead resolving archive membership purely by scanning
// every object member's own symbol table (spec §4.2).
func Read(path string, data []byte) ([]Member, error) {
	if !IsArchive(data) {
		return nil, fmt.Errorf("%s: not an ar archive", path)
	}

	var members []Member
	var longNames []byte // GNU-style "//" extended name table, if present

	pos := len(globalHeader)
	for pos < len(data) {
		// ar members are 2-byte aligned; a single '\n' pad byte may
		// precede the next header.
		if pos < len(data) && data[pos] == '\n' {
			pos++
			continue
		}
		if pos+headerSize > len(data) {
			return nil, fmt.Errorf("%s: truncated archive member header at offset %d", path, pos)
		}
		hdr := data[pos : pos+headerSize]
		if hdr[58] != headerEndTag1 || hdr[59] != headerEndTag2 {
			return nil, fmt.Errorf("%s: bad archive member header terminator at offset %d", path, pos)
		}

		rawName := strings.TrimRight(string(hdr[0:16]), " ")
		sizeField := strings.TrimSpace(string(hdr[48:58]))
		size, err := strconv.ParseUint(sizeField, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: bad member size field %q at offset %d: %w", path, sizeField, pos, err)
		}

		dataStart := pos + headerSize
		dataEnd := dataStart + int(size)
		if dataEnd > len(data) {
			return nil, fmt.Errorf("%s: member at offset %d overruns archive (size %d)", path, pos, size)
		}
		body := data[dataStart:dataEnd]

		switch {
		case rawName == "/" || rawName == "__.SYMDEF" || rawName == "__.SYMDEF SORTED":
			members = append(members, Member{Name: rawName, Data: body, SymbolTable: true})
		case rawName == "//":
			// GNU extended filename table: later members with a name of
			// the form "/<offset>" index into this blob.
			longNames = body
		case strings.HasPrefix(rawName, "/") && len(rawName) > 1 && isAllDigits(rawName[1:]):
			off, err := strconv.Atoi(rawName[1:])
			if err != nil || off < 0 || off >= len(longNames) {
				return nil, fmt.Errorf("%s: bad extended name reference %q", path, rawName)
			}
			members = append(members, Member{Name: extendedName(longNames, off), Data: body})
		default:
			members = append(members, Member{Name: strings.TrimSuffix(rawName, "/"), Data: body})
		}

		pos = dataEnd
		if size%2 == 1 {
			pos++ // padding byte to keep members 2-byte aligned
		}
	}

	if len(members) == 0 || !members[0].SymbolTable {
		return nil, &MissingSymbolTable{Path: path}
	}
	return members, nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func extendedName(table []byte, off int) string {
	end := bytes.IndexAny(table[off:], "/\n")
	if end < 0 {
		return strings.TrimRight(string(table[off:]), "\x00")
	}
	return string(table[off : off+end])
}

// Objects returns every non-symbol-table member, the set passes/input
// actually loads as ELF objects (spec §4.2).
func Objects(members []Member) []Member {
	out := make([]Member, 0, len(members))
	for _, m := range members {
		if !m.SymbolTable {
			out = append(out, m)
		}
	}
	return out
}
