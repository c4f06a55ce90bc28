package segment

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plinkgo/plink/internal/archinfo"
	"github.com/plinkgo/plink/object"
)

func newTestObject(mode object.Mode) *object.Object {
	return object.New(archinfo.Env{Class: archinfo.Class64, Machine: archinfo.MachineX86_64}, mode)
}

func TestRunGroupsAdjacentSectionsBySamePerms(t *testing.T) {
	o := newTestObject(object.PositionDependent)
	o.AddSection(object.Section{Name: ".text", Content: object.Data{Perms: object.Perms{Read: true, Execute: true}, Bytes: make([]byte, 4)}})
	o.AddSection(object.Section{Name: ".rodata", Content: object.Data{Perms: object.Perms{Read: true}, Bytes: make([]byte, 4)}})
	o.AddSection(object.Section{Name: ".data", Content: object.Data{Perms: object.Perms{Read: true, Write: true}, Bytes: make([]byte, 4)}})

	Run(o, false, "", false)

	var programSegs int
	for _, seg := range o.Segments {
		if seg.Type == object.SegmentProgram {
			programSegs++
		}
	}
	require.Equal(t, 3, programSegs, "three distinct permission groups should produce three PT_LOAD segments")
}

func TestRunAddsPhdrSegmentFirst(t *testing.T) {
	o := newTestObject(object.PositionDependent)
	Run(o, false, "", false)
	require.NotEmpty(t, o.Segments)
	require.Equal(t, object.SegmentProgramHeader, o.Segments[0].Type)
}

func TestRunOmitsInterpWhenNotRequested(t *testing.T) {
	o := newTestObject(object.PositionIndependent)
	o.AddSection(object.Section{Name: ".interp", Content: object.Data{Perms: object.Perms{Read: true}, Bytes: []byte("/lib64/ld.so\x00")}})

	Run(o, false, "", false)

	for _, seg := range o.Segments {
		require.NotEqual(t, object.SegmentInterpreter, seg.Type)
	}
}

func TestRunAddsInterpSegmentWhenRequested(t *testing.T) {
	o := newTestObject(object.PositionIndependent)
	interp := o.AddSection(object.Section{Name: ".interp", Content: object.Data{Perms: object.Perms{Read: true}, Bytes: []byte("/lib64/ld.so\x00")}})

	Run(o, true, "/lib64/ld.so", false)

	var found *object.Segment
	for _, seg := range o.Segments {
		if seg.Type == object.SegmentInterpreter {
			found = seg
		}
	}
	require.NotNil(t, found)
	require.Equal(t, []object.SegmentPart{{Kind: object.PartSection, Section: interp.ID}}, found.Content)
}

func TestRunGroupsRelroSectionsIntoOwnSegment(t *testing.T) {
	o := newTestObject(object.PositionDependent)
	got := o.AddSection(object.Section{
		Name: ".got",
		Content: object.Data{
			Perms:       object.Perms{Read: true, Write: true},
			Bytes:       make([]byte, 8),
			InsideRelro: true,
		},
	})

	Run(o, false, "", false)

	var relro *object.Segment
	for _, seg := range o.Segments {
		if seg.Type == object.SegmentGnuRelro {
			relro = seg
		}
	}
	require.NotNil(t, relro)
	require.Equal(t, []object.SegmentPart{{Kind: object.PartSection, Section: got.ID}}, relro.Content)
}

func TestRunSetsExecutableStackFlag(t *testing.T) {
	o := newTestObject(object.PositionDependent)
	Run(o, false, "", true)

	var stack *object.Segment
	for _, seg := range o.Segments {
		if seg.Type == object.SegmentGnuStack {
			stack = seg
		}
	}
	require.NotNil(t, stack)
	require.True(t, stack.Perms.Execute)
}

func TestRunIsIdempotentAcrossCalls(t *testing.T) {
	o := newTestObject(object.PositionDependent)
	o.AddSection(object.Section{Name: ".text", Content: object.Data{Perms: object.Perms{Read: true, Execute: true}, Bytes: make([]byte, 4)}})

	Run(o, false, "", false)
	first := len(o.Segments)
	Run(o, false, "", false)
	require.Equal(t, first, len(o.Segments), "re-running Run must replace, not append to, o.Segments")
}
