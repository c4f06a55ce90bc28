package dedup

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plinkgo/plink/internal/archinfo"
	"github.com/plinkgo/plink/object"
)

func newTestObject() *object.Object {
	return object.New(archinfo.Env{Class: archinfo.Class64, Machine: archinfo.MachineX86_64}, object.PositionDependent)
}

func TestRunCollapsesIdenticalStrings(t *testing.T) {
	o := newTestObject()
	raw := append(append([]byte("hello\x00"), []byte("world\x00")...), []byte("hello\x00")...)
	sec := o.AddSection(object.Section{
		Name:    ".rodata.str1.1",
		Content: object.Data{Perms: object.Perms{Read: true}, Dedup: object.StringDedup(), Bytes: raw},
	})

	remaps := Run(o)

	require.Len(t, remaps, 1)
	require.Equal(t, sec.ID, remaps[0].Section)

	got := sec.Content.(object.Data).Bytes
	require.Equal(t, "hello\x00world\x00", string(got))

	firstHello, ok := remaps[0].translate(0)
	require.True(t, ok)
	secondHello, ok := remaps[0].translate(12)
	require.True(t, ok)
	require.Equal(t, firstHello, secondHello)
}

func TestRunCollapsesSuffixReferences(t *testing.T) {
	o := newTestObject()
	raw := append([]byte("world\x00"), []byte("hello world\x00")...)
	sec := o.AddSection(object.Section{
		Name:    ".rodata.str1.1",
		Content: object.Data{Perms: object.Perms{Read: true}, Dedup: object.StringDedup(), Bytes: raw},
	})

	Run(o)

	got := sec.Content.(object.Data).Bytes
	// "world" at offset 0 arrives before the longer string and keeps its own
	// copy; the suffix "world" inside "hello world" (starting at offset
	// 6+6=12 in the original) maps to the tail of the kept "hello world"
	// copy, so that string must survive intact.
	require.Contains(t, string(got), "hello world\x00")
}

func TestRunCollapsesFixedSizeChunks(t *testing.T) {
	o := newTestObject()
	chunkA := []byte{1, 2, 3, 4}
	chunkB := []byte{5, 6, 7, 8}
	raw := append(append(append([]byte{}, chunkA...), chunkB...), chunkA...)
	sec := o.AddSection(object.Section{
		Name:    ".data.rel.ro",
		Content: object.Data{Perms: object.Perms{Read: true}, Dedup: object.ChunkDedup(4), Bytes: raw},
	})

	remaps := Run(o)

	require.Len(t, remaps, 1)
	got := sec.Content.(object.Data).Bytes
	require.Equal(t, 8, len(got), "the repeated chunk at offset 8 should have been collapsed into the copy at offset 0")

	thirdChunk, ok := remaps[0].translate(8)
	require.True(t, ok)
	require.Equal(t, uint64(0), thirdChunk)
}

func TestRunLeavesNonDedupSectionsAlone(t *testing.T) {
	o := newTestObject()
	o.AddSection(object.Section{
		Name:    ".text",
		Content: object.Data{Perms: object.Perms{Read: true, Execute: true}, Bytes: []byte{0x90, 0x90}},
	})

	remaps := Run(o)
	require.Empty(t, remaps)
}

func TestRunRewritesOwnRelocationOffsets(t *testing.T) {
	o := newTestObject()
	raw := append([]byte("same\x00"), []byte("same\x00")...)
	sec := o.AddSection(object.Section{
		Name: ".rodata.str1.1",
		Content: object.Data{
			Perms: object.Perms{Read: true},
			Dedup: object.StringDedup(),
			Bytes: raw,
			Relocations: []object.Relocation{
				{Offset: 5, Addend: object.InlineAddend()},
			},
		},
	})

	Run(o)

	relocs := sec.Content.(object.Data).Relocations
	require.Equal(t, uint64(0), relocs[0].Offset, "a relocation targeting the second (duplicate) copy should now target the first")
}
