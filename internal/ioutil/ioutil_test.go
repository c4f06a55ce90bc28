package ioutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapFileReadsContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	want := []byte("hello, plink\x00\x01\x02")
	require.NoError(t, os.WriteFile(path, want, 0o644))

	m, err := MapFile(path)
	require.NoError(t, err)
	require.Equal(t, want, m.Data)
	require.NoError(t, m.Close())
}

func TestMapFileHandlesEmptyFileWithoutMmap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	m, err := MapFile(path)
	require.NoError(t, err)
	require.Empty(t, m.Data)
	require.NoError(t, m.Close())
}

func TestMapFileMissingPath(t *testing.T) {
	_, err := MapFile(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
}

func TestMarkExecutableSetsPermissionBits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(path, []byte("\x7fELF"), 0o644))

	require.NoError(t, MarkExecutable(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}
