// Package segment implements the segment builder pass (spec §4.12): it
// groups every surviving allocated section into PT_LOAD-style program
// segments by (type, permissions), then adds the fixed infrastructure
// segments (PT_PHDR, PT_INTERP, PT_DYNAMIC, PT_GNU_STACK, PT_GNU_RELRO,
// PT_GNU_PROPERTY) the rest of the pipeline implicitly depends on.
//
// Grounded on go-obj/arch/layout.go's byte-order/word-size Layout
// (internal/archinfo keeps that half) extended with the grouping-by-
// permissions idiom go-obj/obj/obj.go's SectionFlags bit-packing already
// models for read-only/zero-initialized sections, generalized from "tag a
// section for display" to "decide which segment a section belongs to".
package segment

import (
	"github.com/plinkgo/plink/internal/archinfo"
	"github.com/plinkgo/plink/object"
)

// groupKey is the (type, perms) a run of adjacent allocated sections must
// share to land in the same PT_LOAD/PT_LOAD(nobits) segment (spec §4.12
// "group into Program or Uninitialized segments by (type, perms)").
type groupKey struct {
	uninitialized bool
	perms         object.Perms
}

// Run replaces o.Segments with a freshly computed set covering every
// section still present (spec §4.12). Must run after GC, dedup,
// same-name merge and dynamic/GOT-PLT synthesis (every section that will
// ever exist in the output must already be there), and before the layout
// engine (spec §4.13's Compute consumes o.Segments as input).
func Run(o *object.Object, interp bool, dynamicLinker string, execStack bool) {
	o.Segments = nil

	o.Segments = append(o.Segments, &object.Segment{
		Type:  object.SegmentProgramHeader,
		Perms: object.Perms{Read: true},
		Align: archinfo.PageSize,
		Content: []object.SegmentPart{
			{Kind: object.PartElfHeader},
			{Kind: object.PartProgramHeaderTable},
		},
	})

	if interp {
		if sec := o.SectionByName(".interp"); sec != nil {
			o.Segments = append(o.Segments, &object.Segment{
				Type:    object.SegmentInterpreter,
				Perms:   object.Perms{Read: true},
				Align:   1,
				Content: []object.SegmentPart{{Kind: object.PartSection, Section: sec.ID}},
			})
		}
	}

	var cur *groupKey
	var curSeg *object.Segment
	var relroSections []object.SegmentPart
	for _, sec := range o.Sections() {
		if !sec.Allocated() {
			continue
		}
		var uninit bool
		var perms object.Perms
		switch c := sec.Content.(type) {
		case object.Data:
			perms = c.Perms
		case object.Uninitialized:
			perms = c.Perms
			uninit = true
		}
		key := groupKey{uninitialized: uninit, perms: perms}
		if cur == nil || *cur != key {
			typ := object.SegmentProgram
			if uninit {
				typ = object.SegmentUninitialized
			}
			curSeg = &object.Segment{Type: typ, Perms: perms, Align: archinfo.PageSize}
			o.Segments = append(o.Segments, curSeg)
			k := key
			cur = &k
		}
		part := object.SegmentPart{Kind: object.PartSection, Section: sec.ID}
		curSeg.Content = append(curSeg.Content, part)
		if d, ok := sec.Content.(object.Data); ok && d.InsideRelro {
			relroSections = append(relroSections, part)
		}
	}

	if dynSec := o.SectionByName(".dynamic"); dynSec != nil {
		o.Segments = append(o.Segments, &object.Segment{
			Type:    object.SegmentDynamic,
			Perms:   object.Perms{Read: true, Write: true},
			Align:   8,
			Content: []object.SegmentPart{{Kind: object.PartSection, Section: dynSec.ID}},
		})
	}

	o.Segments = append(o.Segments, &object.Segment{
		Type:  object.SegmentGnuStack,
		Perms: object.Perms{Read: true, Write: true, Execute: execStack},
		Align: archinfo.PageSize,
	})

	if len(relroSections) > 0 {
		// spec §4.12 "PT_GNU_RELRO over all data sections tagged
		// inside_relro": the relro segment's own Content repeats the
		// PartSection entries (rather than the bare PartRelroSections
		// marker) since rawelf's segmentExtent derives a segment's
		// file/memory span purely from its own Content list.
		o.Segments = append(o.Segments, &object.Segment{
			Type:    object.SegmentGnuRelro,
			Perms:   object.Perms{Read: true},
			Align:   1,
			Content: relroSections,
		})
	}

	if props := o.SectionByName(".note.gnu.property"); props != nil {
		o.Segments = append(o.Segments, &object.Segment{
			Type:    object.SegmentGnuProperty,
			Perms:   object.Perms{Read: true},
			Align:   8,
			Content: []object.SegmentPart{{Kind: object.PartSection, Section: props.ID}},
		})
	}
}
