// Package dedup implements content deduplication for sections marked
// SHF_MERGE at merge time (spec §4.6): zero-terminated-string sections
// collapse identical strings to one copy, and a string equal to the tail
// of an earlier, longer string points at that tail (a shorter string that
// comes first keeps its own copy); fixed-size-chunk sections collapse
// identical chunks.
//
// New logic — the teacher never deduplicates section content — but the
// offset-remap artifact shape is grounded on go-obj/dbg/ranges.go's
// range-to-range mapping idiom, generalized from "map an address range to
// a source line" to "map an old content offset to its deduped offset".
package dedup

import (
	"github.com/plinkgo/plink/internal/ids"
	"github.com/plinkgo/plink/object"
)

// Remap records, for one deduplicated section, how old content offsets
// (as they existed before this pass ran) now map to offsets in the
// section's deduplicated bytes. Consulted by passes/rewrite to translate
// any relocation addend or SectionRelative symbol offset that targeted
// this section from elsewhere in the object.
type Remap struct {
	Section ids.SectionID
	Map     map[uint64]uint64
}

// translate resolves off through the remap. It reports false for any
// offset Dedup never recorded (for example a reference into the middle of
// a fixed-size chunk, which dedup does not split any finer than its chunk
// size); there is no identity fallback.
func (r Remap) translate(off uint64) (uint64, bool) {
	if mapped, ok := r.Map[off]; ok {
		return mapped, true
	}
	return 0, false
}

// Run deduplicates every section's content according to its Dedup mode,
// rewriting the section's own relocation offsets in place (those always
// address bytes within the section being deduped) and returning one Remap
// per touched section for passes/rewrite to apply to everything else that
// might reference into it (symbols, other sections' relocation addends).
func Run(o *object.Object) []Remap {
	var remaps []Remap
	for _, sec := range o.Sections() {
		d, ok := sec.Content.(object.Data)
		if !ok || d.Dedup.Kind == object.DedupDisabled {
			continue
		}

		var newBytes []byte
		var offsetMap map[uint64]uint64
		switch d.Dedup.Kind {
		case object.DedupZeroTerminatedStrings:
			newBytes, offsetMap = dedupStrings(d.Bytes)
		case object.DedupFixedSizeChunks:
			newBytes, offsetMap = dedupChunks(d.Bytes, d.Dedup.ChunkSize)
		default:
			continue
		}

		for i := range d.Relocations {
			if mapped, ok := offsetMap[d.Relocations[i].Offset]; ok {
				d.Relocations[i].Offset = mapped
			}
		}
		d.Bytes = newBytes
		sec.Content = d

		remaps = append(remaps, Remap{Section: sec.ID, Map: offsetMap})
	}
	return remaps
}

// dedupStrings splits raw at NUL boundaries and collapses identical
// strings to a single copy, honoring the ELF SHF_STRINGS convention that
// an offset into the middle of a longer string is also a valid reference
// to its suffix (spec §3.6's "suffix lookup" rule, applied here at the
// byte level rather than through a StringTable).
func dedupStrings(raw []byte) ([]byte, map[uint64]uint64) {
	type entry struct {
		start, end int // [start, end) in raw, end exclusive of the NUL
	}
	var entries []entry
	start := 0
	for i, b := range raw {
		if b == 0 {
			entries = append(entries, entry{start, i})
			start = i + 1
		}
	}
	if start < len(raw) {
		entries = append(entries, entry{start, len(raw)})
	}

	out := make([]byte, 0, len(raw))
	offsetMap := make(map[uint64]uint64, len(entries))
	seen := make(map[string]int) // string value -> offset into out

	for _, e := range entries {
		s := string(raw[e.start:e.end])
		if off, ok := seen[s]; ok {
			offsetMap[uint64(e.start)] = uint64(off)
			continue
		}
		off := len(out)
		out = append(out, raw[e.start:e.end]...)
		out = append(out, 0)
		seen[s] = off
		offsetMap[uint64(e.start)] = uint64(off)

		// Register every suffix of this string too, so a reference that
		// targeted the middle of a longer string still resolves.
		for j := 1; j < len(s); j++ {
			suffix := s[j:]
			if _, ok := seen[suffix]; !ok {
				seen[suffix] = off + j
			}
			if _, ok := offsetMap[uint64(e.start+j)]; !ok {
				offsetMap[uint64(e.start+j)] = uint64(off + j)
			}
		}
	}
	return out, offsetMap
}

// dedupChunks splits raw into fixed-size windows and collapses identical
// chunks. raw's length must be a multiple of size; a trailing partial
// chunk (malformed input) is kept as-is and never deduplicated against.
func dedupChunks(raw []byte, size uint64) ([]byte, map[uint64]uint64) {
	if size == 0 {
		return raw, map[uint64]uint64{}
	}
	out := make([]byte, 0, len(raw))
	offsetMap := make(map[uint64]uint64)
	seen := make(map[string]uint64)

	n := uint64(len(raw))
	var i uint64
	for ; i+size <= n; i += size {
		chunk := string(raw[i : i+size])
		if off, ok := seen[chunk]; ok {
			offsetMap[i] = off
			continue
		}
		off := uint64(len(out))
		out = append(out, raw[i:i+size]...)
		seen[chunk] = off
		offsetMap[i] = off
	}
	if i < n {
		// Leftover bytes smaller than one chunk: preserve verbatim.
		offsetMap[i] = uint64(len(out))
		out = append(out, raw[i:]...)
	}
	return out, offsetMap
}
