package input

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plinkgo/plink/config"
	"github.com/plinkgo/plink/internal/archinfo"
	"github.com/plinkgo/plink/rawelf"
)

// minimalELF builds the smallest file rawelf.ReadObject accepts: an ELF64
// header, little-endian, followed by a self-describing .shstrtab and the
// null + .shstrtab section header entries.
func minimalELF(machine uint16) []byte {
	const (
		headerSize  = 64
		shEntrySize = 64
	)
	shstrtab := []byte{0}
	nameOff := uint32(len(shstrtab))
	shstrtab = append(shstrtab, append([]byte(".shstrtab"), 0)...)

	shOff := uint64(headerSize + len(shstrtab))

	buf := make([]byte, shOff+2*shEntrySize)
	buf[0], buf[1], buf[2], buf[3] = 0x7f, 'E', 'L', 'F'
	buf[4] = 2 // ELFCLASS64
	buf[5] = 1 // little endian
	buf[6] = 1 // EI_VERSION
	buf[7] = 0 // ELFOSABI_SYSV

	binary.LittleEndian.PutUint16(buf[16:18], uint16(rawelf.TypeRel))
	binary.LittleEndian.PutUint16(buf[18:20], machine)
	binary.LittleEndian.PutUint32(buf[20:24], 1) // e_version
	binary.LittleEndian.PutUint64(buf[40:48], shOff)
	binary.LittleEndian.PutUint16(buf[52:54], headerSize)
	binary.LittleEndian.PutUint16(buf[58:60], shEntrySize)
	binary.LittleEndian.PutUint16(buf[60:62], 2) // e_shnum
	binary.LittleEndian.PutUint16(buf[62:64], 1) // e_shstrndx

	copy(buf[headerSize:], shstrtab)

	putShdr := func(i int, nameOffset, typ uint32, offset, size uint64) {
		base := int(shOff) + i*shEntrySize
		binary.LittleEndian.PutUint32(buf[base:base+4], nameOffset)
		binary.LittleEndian.PutUint32(buf[base+4:base+8], typ)
		binary.LittleEndian.PutUint64(buf[base+24:base+32], offset)
		binary.LittleEndian.PutUint64(buf[base+32:base+40], size)
		binary.LittleEndian.PutUint64(buf[base+48:base+56], 1) // sh_addralign
	}
	putShdr(0, 0, 0, 0, 0)
	putShdr(1, nameOff, uint32(rawelf.ShtStrtab), uint64(headerSize), uint64(len(shstrtab)))

	return buf
}

func writeTempFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoadReturnsNoInputFilesWhenEmpty(t *testing.T) {
	cfg := config.New()
	_, _, err := Load(cfg)
	require.Error(t, err)
	require.IsType(t, NoInputFiles{}, err)
}

func TestLoadParsesSingleRelocatableFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "a.o", minimalELF(uint16(rawelf.MachineX8664)))

	cfg := config.New()
	cfg.Inputs = []config.Input{config.PathInput(path)}

	loaded, env, err := Load(cfg)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, path, loaded[0].Span)
	require.False(t, loaded[0].SharedObject)
	require.Equal(t, archinfo.Env{Class: archinfo.Class64, Machine: archinfo.MachineX86_64}, env)
}

func TestLoadRejectsMismatchedEnvironment(t *testing.T) {
	dir := t.TempDir()
	first := writeTempFile(t, dir, "a.o", minimalELF(uint16(rawelf.MachineX8664)))
	second := writeTempFile(t, dir, "b.o", minimalELF(uint16(rawelf.MachineX86)))

	cfg := config.New()
	cfg.Inputs = []config.Input{config.PathInput(first), config.PathInput(second)}

	_, _, err := Load(cfg)
	require.Error(t, err)
	var mismatched *MismatchedEnv
	require.ErrorAs(t, err, &mismatched)
	require.Equal(t, second, mismatched.Span)
}

func TestLoadWrapsParseFailureForUnreadableFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "bad.o", []byte("not an ELF file"))

	cfg := config.New()
	cfg.Inputs = []config.Input{config.PathInput(path)}

	_, _, err := Load(cfg)
	require.Error(t, err)
}

func TestLoadResolvesLibraryInputFromSearchPath(t *testing.T) {
	dir := t.TempDir()
	writeTempFile(t, dir, "libfoo.so", minimalELF(uint16(rawelf.MachineX8664)))

	cfg := config.New()
	cfg.SearchPaths = []string{dir}
	cfg.Inputs = []config.Input{config.LibraryInput("foo")}

	loaded, _, err := Load(cfg)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, filepath.Join(dir, "libfoo.so"), loaded[0].Span)
}

func TestLoadReportsMissingLibrary(t *testing.T) {
	cfg := config.New()
	cfg.SearchPaths = []string{t.TempDir()}
	cfg.Inputs = []config.Input{config.LibraryInput("doesnotexist")}

	_, _, err := Load(cfg)
	require.Error(t, err)
}

func TestResolveVerbatimLibraryInput(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "exact-name.so.1", []byte{0})

	got, err := resolve(config.VerbatimInput("exact-name.so.1"), []string{dir})
	require.NoError(t, err)
	require.Equal(t, path, got)
}
