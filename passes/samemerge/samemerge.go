// Package samemerge implements the same-name section merge pass (spec
// §4.7): every surviving section sharing (name, permissions,
// deduplication mode, relro membership) is concatenated, in input order,
// into one fresh section, producing the final `.text`/.data/.rodata/...
// layout a conventional ELF output has instead of one section per input.
//
// New logic — the teacher never links two objects together. Each original
// section's new home is recorded as a {source, target, start_offset}
// Placement, which passes/rewrite composes with passes/dedup's
// per-section offset Remaps.
package samemerge

import (
	"sort"

	"github.com/plinkgo/plink/internal/ids"
	"github.com/plinkgo/plink/object"
)

// Placement records where one original section's bytes now live inside
// its merged replacement, for passes/rewrite to translate references by.
type Placement struct {
	Original    ids.SectionID
	Target      ids.SectionID
	StartOffset uint64
}

// groupKey identifies sections eligible to merge together.
type groupKey struct {
	name        string
	perms       object.Perms
	dedupKind   object.DedupKind
	chunkSize   uint64
	insideRelro bool
	nobits      bool
}

// Run merges every group of same-named, same-shaped sections into one,
// returning the placement of each original section inside its merged
// target. Sections with only one member in their group are left alone
// (Placement.StartOffset == 0, Target == Original) so callers can still
// treat the result list uniformly.
func Run(o *object.Object) []Placement {
	groups := make(map[groupKey][]*object.Section)
	var order []groupKey
	for _, sec := range o.Sections() {
		k, ok := keyOf(sec)
		if !ok {
			continue
		}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], sec)
	}

	var placements []Placement
	for _, k := range order {
		members := groups[k]
		if len(members) == 1 {
			placements = append(placements, Placement{Original: members[0].ID, Target: members[0].ID})
			continue
		}

		retain := false
		for _, m := range members {
			if m.Retain {
				retain = true
			}
		}

		if k.nobits {
			var total uint64
			for _, m := range members {
				u := m.Content.(object.Uninitialized)
				placements = append(placements, Placement{Original: m.ID, Target: 0, StartOffset: total})
				total += u.Length
			}
			merged := o.AddSection(object.Section{
				Name:    k.name,
				Source:  "<same-name merge>",
				Retain:  retain,
				Content: object.Uninitialized{Perms: k.perms, Length: total},
			})
			for i := range placements[len(placements)-len(members):] {
				placements[len(placements)-len(members)+i].Target = merged.ID
			}
			for _, m := range members {
				o.RemoveSection(m.ID)
			}
			continue
		}

		var bytes []byte
		var relocs []object.Relocation
		start := len(placements)
		for _, m := range members {
			d := m.Content.(object.Data)
			offset := uint64(len(bytes))
			placements = append(placements, Placement{Original: m.ID, StartOffset: offset})
			bytes = append(bytes, d.Bytes...)
			for _, r := range d.Relocations {
				r.Offset += offset
				relocs = append(relocs, r)
			}
		}
		merged := o.AddSection(object.Section{
			Name:   k.name,
			Source: "<same-name merge>",
			Retain: retain,
			Content: object.Data{
				Perms:       k.perms,
				Dedup:       dedupOf(k),
				Bytes:       bytes,
				Relocations: relocs,
				InsideRelro: k.insideRelro,
			},
		})
		for i := range placements[start:] {
			placements[start+i].Target = merged.ID
		}
		for _, m := range members {
			o.RemoveSection(m.ID)
		}
	}

	sort.Slice(placements, func(i, j int) bool { return placements[i].Original < placements[j].Original })
	return placements
}

func keyOf(sec *object.Section) (groupKey, bool) {
	switch c := sec.Content.(type) {
	case object.Data:
		return groupKey{
			name:        sec.Name,
			perms:       c.Perms,
			dedupKind:   c.Dedup.Kind,
			chunkSize:   c.Dedup.ChunkSize,
			insideRelro: c.InsideRelro,
		}, true
	case object.Uninitialized:
		return groupKey{name: sec.Name, perms: c.Perms, nobits: true}, true
	default:
		return groupKey{}, false
	}
}

func dedupOf(k groupKey) object.Dedup {
	switch k.dedupKind {
	case object.DedupZeroTerminatedStrings:
		return object.StringDedup()
	case object.DedupFixedSizeChunks:
		return object.ChunkDedup(k.chunkSize)
	default:
		return object.NoDedup()
	}
}
