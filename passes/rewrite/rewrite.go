// Package rewrite implements the post-merge reference-fixup pass (spec
// §4.8): once passes/dedup and passes/samemerge have moved content
// around, every relocation addend and SectionRelative symbol that still
// points at an old (section, offset) pair is retargeted at its new home.
//
// New logic — the teacher never merges or links — built directly against
// the artifact shapes passes/dedup and passes/samemerge already produce.
package rewrite

import (
	"fmt"

	"github.com/plinkgo/plink/internal/ids"
	"github.com/plinkgo/plink/object"
	"github.com/plinkgo/plink/passes/dedup"
	"github.com/plinkgo/plink/passes/samemerge"
	"github.com/plinkgo/plink/symtab"
)

// target describes where an old (section, offset) pair now lives.
type target struct {
	section ids.SectionID
	offset  uint64
}

// resolver composes dedup's per-section offset remaps with samemerge's
// section placements, then a second round of dedup remaps (produced by
// re-running passes/dedup over the sections samemerge just concatenated,
// since same-name merge can newly expose cross-input duplicate strings/
// chunks that per-input dedup never saw) into a single old-ref -> new-ref
// translation.
type resolver struct {
	dedupBySection     map[ids.SectionID]dedup.Remap
	placeBySection     map[ids.SectionID]samemerge.Placement
	postDedupBySection map[ids.SectionID]dedup.Remap
}

func newResolver(remaps []dedup.Remap, placements []samemerge.Placement, postRemaps []dedup.Remap) *resolver {
	r := &resolver{
		dedupBySection:     make(map[ids.SectionID]dedup.Remap, len(remaps)),
		placeBySection:     make(map[ids.SectionID]samemerge.Placement, len(placements)),
		postDedupBySection: make(map[ids.SectionID]dedup.Remap, len(postRemaps)),
	}
	for _, m := range remaps {
		r.dedupBySection[m.Section] = m
	}
	for _, p := range placements {
		r.placeBySection[p.Original] = p
	}
	for _, m := range postRemaps {
		r.postDedupBySection[m.Section] = m
	}
	return r
}

// resolve translates (sec, off): first through any dedup remap for sec
// (an offset a merge boundary didn't land on is a hard error, per spec
// §4.8 "rewrite addends via the dedup map; hard error if the addend isn't
// a merge boundary" — only meaningful for Rela-style explicit addends,
// where an arbitrary mid-chunk addend would be a malformed input), then
// through samemerge's placement for whichever section now holds it, then
// through that merged section's own post-merge dedup remap, if same-name
// merge exposed further duplicates across inputs.
func (r *resolver) resolve(sec ids.SectionID, off uint64, mustLandOnBoundary bool) (target, error) {
	off, err := remapThrough(r.dedupBySection, sec, off, mustLandOnBoundary)
	if err != nil {
		return target{}, err
	}
	t := target{section: sec, offset: off}
	if p, ok := r.placeBySection[sec]; ok {
		t = target{section: p.Target, offset: off + p.StartOffset}
	}
	mapped, err := remapThrough(r.postDedupBySection, t.section, t.offset, mustLandOnBoundary)
	if err != nil {
		return target{}, err
	}
	t.offset = mapped
	return t, nil
}

// remapThrough applies remap's entry for sec to off, if one exists,
// falling back to the identity mapping unless mustLandOnBoundary demands
// an exact hit.
func remapThrough(remap map[ids.SectionID]dedup.Remap, sec ids.SectionID, off uint64, mustLandOnBoundary bool) (uint64, error) {
	rm, ok := remap[sec]
	if !ok {
		return off, nil
	}
	mapped, ok := rm.Map[off]
	if !ok {
		if mustLandOnBoundary {
			return 0, fmt.Errorf("offset 0x%x into deduplicated section %s is not a merge boundary", off, sec)
		}
		return off, nil
	}
	return mapped, nil
}

// Run retargets every relocation addend and SectionRelative/Section
// symbol against remaps/placements produced by the dedup and same-name
// merge passes, plus postRemaps from the second dedup.Run the caller
// makes over same-name merge's output (spec §4.6/§4.7: merging sections
// by name can newly align identical strings/chunks that arrived from
// different inputs, which per-input dedup never saw). Relocation Offset
// fields (where a fixup is written) were already rewritten in place by
// passes/dedup/passes/samemerge as they moved each section's own bytes;
// this pass only has to chase references that cross from elsewhere in
// the object.
func Run(o *object.Object, remaps []dedup.Remap, placements []samemerge.Placement, postRemaps []dedup.Remap) error {
	r := newResolver(remaps, placements, postRemaps)

	// A Rela-style relocation against a section symbol (common for local
	// references into .rodata/.data, e.g. "section base + addend") stores
	// its target offset in the addend rather than in the symbol, since a
	// section symbol carries no offset of its own. Only that case needs
	// its addend rewritten here; a relocation against an ordinary defined
	// symbol keeps its addend untouched and instead rides along with that
	// symbol's own Value rewrite below. A Rel-style (inline) addend lives
	// in the section's own bytes, which moved as a whole during same-name
	// merge, so it is already correct without any rewrite.
	for _, sec := range o.Sections() {
		d, ok := sec.Content.(object.Data)
		if !ok {
			continue
		}
		changed := false
		for i, rel := range d.Relocations {
			if rel.Addend.Kind != object.AddendExplicit {
				continue
			}
			sym := o.Symbols.Get(rel.Symbol)
			if sym == nil || sym.Value.Kind != symtab.ValueSection {
				continue
			}
			t, err := r.resolve(sym.Value.Section, uint64(rel.Addend.Value), true)
			if err != nil {
				return fmt.Errorf("section %q: %w", sec.Name, err)
			}
			d.Relocations[i].Addend = object.ExplicitAddend(int64(t.offset))
			changed = true
		}
		if changed {
			sec.Content = d
		}
	}

	var rewriteErr error
	o.Symbols.All(func(s *symtab.Symbol) bool {
		switch s.Value.Kind {
		case symtab.ValueSectionRelative:
			t, err := r.resolve(s.Value.Section, s.Value.Offset, false)
			if err != nil {
				rewriteErr = fmt.Errorf("symbol %q: %w", s.Name, err)
				return false
			}
			s.Value = symtab.SectionRelative(t.section, t.offset)
		case symtab.ValueSection:
			if p, ok := r.placeBySection[s.Value.Section]; ok {
				s.Value = symtab.SectionSym(p.Target)
			}
		}
		return true
	})
	return rewriteErr
}
