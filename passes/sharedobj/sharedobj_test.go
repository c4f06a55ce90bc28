package sharedobj

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plinkgo/plink/internal/archinfo"
	"github.com/plinkgo/plink/object"
	"github.com/plinkgo/plink/rawelf"
	"github.com/plinkgo/plink/symtab"
)

func newTestObject() *object.Object {
	return object.New(archinfo.Env{Class: archinfo.Class64, Machine: archinfo.MachineX86_64}, object.PositionDependent)
}

func encodeSym64(nameOff uint32, info, other uint8, shndx uint16, value, size uint64) []byte {
	b := make([]byte, 24)
	binary.LittleEndian.PutUint32(b[0:4], nameOff)
	b[4] = info
	b[5] = other
	binary.LittleEndian.PutUint16(b[6:8], shndx)
	binary.LittleEndian.PutUint64(b[8:16], value)
	binary.LittleEndian.PutUint64(b[16:24], size)
	return b
}

func encodeDyn64(tag, val uint64) []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint64(b[0:8], tag)
	binary.LittleEndian.PutUint64(b[8:16], val)
	return b
}

func strtabWith(names ...string) (data []byte, offsets map[string]uint32) {
	offsets = make(map[string]uint32)
	data = []byte{0}
	for _, n := range names {
		offsets[n] = uint32(len(data))
		data = append(data, []byte(n)...)
		data = append(data, 0)
	}
	return data, offsets
}

func infoOf(bind, typ uint8) uint8 { return bind<<4 | typ }

func TestLoadDefinesExternallyDefinedSymbolForEachExport(t *testing.T) {
	o := newTestObject()

	dynstr, off := strtabWith("puts", "libc.so.6")
	symBytes := append(
		encodeSym64(0, 0, 0, 0, 0, 0),
		encodeSym64(off["puts"], infoOf(rawelf.StbGlobal, rawelf.SttFunc), 0, 7, 0, 0)...,
	)
	dynBytes := append(encodeDyn64(rawelf.DtSoname, uint64(off["libc.so.6"])), encodeDyn64(0, 0)...)

	raw := &rawelf.RawObject{
		Sections: []rawelf.SectionHeader{
			{Type: rawelf.ShtNull},
			{Name: ".dynsym", Type: rawelf.ShtDynsym, Link: 2, Data: symBytes},
			{Name: ".dynstr", Type: rawelf.ShtStrtab, Data: dynstr},
			{Name: ".dynamic", Type: rawelf.ShtDynamic, EntSize: 16, Data: dynBytes},
		},
	}

	require.NoError(t, Load(o, "/usr/lib/libc.so.6", raw, nil))

	id, ok := o.Symbols.Lookup("puts")
	require.True(t, ok)
	require.Equal(t, symtab.ValueExternallyDefined, o.Symbols.Get(id).Value.Kind)

	require.Equal(t, []string{"libc.so.6"}, o.NeededLibraries)
	require.Len(t, o.Inputs, 1)
	require.True(t, o.Inputs[0].SharedObject)
}

func TestLoadSkipsUndefinedAndLocalEntries(t *testing.T) {
	o := newTestObject()

	dynstr, off := strtabWith("imported_only", "hidden_local")
	symBytes := append(
		encodeSym64(0, 0, 0, 0, 0, 0),
		encodeSym64(off["imported_only"], infoOf(rawelf.StbGlobal, rawelf.SttFunc), 0, rawelf.ShnUndef, 0, 0)...,
	)
	symBytes = append(symBytes, encodeSym64(off["hidden_local"], infoOf(rawelf.StbLocal, rawelf.SttFunc), 0, 1, 0, 0)...)

	raw := &rawelf.RawObject{
		Sections: []rawelf.SectionHeader{
			{Type: rawelf.ShtNull},
			{Name: ".dynsym", Type: rawelf.ShtDynsym, Link: 2, Data: symBytes},
			{Name: ".dynstr", Type: rawelf.ShtStrtab, Data: dynstr},
		},
	}

	require.NoError(t, Load(o, "nolib.so", raw, nil))

	_, okImported := o.Symbols.Lookup("imported_only")
	require.False(t, okImported)
	_, okLocal := o.Symbols.Lookup("hidden_local")
	require.False(t, okLocal)
	require.Empty(t, o.NeededLibraries)
	require.Empty(t, o.Inputs)
}

func TestLoadFallsBackToSpanWhenNoSoname(t *testing.T) {
	o := newTestObject()

	dynstr, off := strtabWith("exported")
	symBytes := append(
		encodeSym64(0, 0, 0, 0, 0, 0),
		encodeSym64(off["exported"], infoOf(rawelf.StbGlobal, rawelf.SttObject), 0, 3, 0, 8)...,
	)

	raw := &rawelf.RawObject{
		Sections: []rawelf.SectionHeader{
			{Type: rawelf.ShtNull},
			{Name: ".dynsym", Type: rawelf.ShtDynsym, Link: 2, Data: symBytes},
			{Name: ".dynstr", Type: rawelf.ShtStrtab, Data: dynstr},
		},
	}

	require.NoError(t, Load(o, "libnoname.so.1", raw, nil))
	require.Equal(t, []string{"libnoname.so.1"}, o.NeededLibraries)
}

func TestLoadNoDynsymIsNoOp(t *testing.T) {
	o := newTestObject()
	raw := &rawelf.RawObject{Sections: []rawelf.SectionHeader{{Type: rawelf.ShtNull}}}

	require.NoError(t, Load(o, "empty.so", raw, nil))
	require.Empty(t, o.NeededLibraries)
	require.Empty(t, o.Inputs)
}
