package object

import "github.com/plinkgo/plink/internal/ids"

// SegmentType enumerates the program-header types this linker emits
// (spec §3.8).
type SegmentType uint8

const (
	SegmentProgramHeader SegmentType = iota
	SegmentInterpreter
	SegmentProgram
	SegmentUninitialized
	SegmentDynamic
	SegmentGnuStack
	SegmentGnuRelro
	SegmentGnuProperty
)

func (t SegmentType) String() string {
	switch t {
	case SegmentProgramHeader:
		return "PT_PHDR"
	case SegmentInterpreter:
		return "PT_INTERP"
	case SegmentProgram:
		return "PT_LOAD"
	case SegmentUninitialized:
		return "PT_LOAD(nobits)"
	case SegmentDynamic:
		return "PT_DYNAMIC"
	case SegmentGnuStack:
		return "PT_GNU_STACK"
	case SegmentGnuRelro:
		return "PT_GNU_RELRO"
	case SegmentGnuProperty:
		return "PT_GNU_PROPERTY"
	default:
		return "PT_UNKNOWN"
	}
}

// SegmentPartKind discriminates the kinds of thing that can appear inside
// a Segment's content list (spec §3.8).
type SegmentPartKind uint8

const (
	PartProgramHeaderTable SegmentPartKind = iota
	PartElfHeader
	PartSection
	PartRelroSections
)

// SegmentPart is one entry of a Segment's ordered content list.
type SegmentPart struct {
	Kind    SegmentPartKind
	Section ids.SectionID // meaningful only when Kind == PartSection
}

// Segment is a program header plus the ordered parts of the image it
// covers (spec §3.8).
type Segment struct {
	Type    SegmentType
	Perms   Perms
	Align   uint64
	Content []SegmentPart
}

// Sections returns the SectionIDs directly referenced by this segment's
// PartSection entries, in order.
func (s *Segment) Sections() []ids.SectionID {
	var out []ids.SectionID
	for _, p := range s.Content {
		if p.Kind == PartSection {
			out = append(out, p.Section)
		}
	}
	return out
}
