package emit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plinkgo/plink/internal/archinfo"
	"github.com/plinkgo/plink/layout"
	"github.com/plinkgo/plink/object"
	"github.com/plinkgo/plink/rawelf"
)

func TestRunWritesExecutableFile(t *testing.T) {
	o := object.New(archinfo.Env{Class: archinfo.Class64, Machine: archinfo.MachineX86_64}, object.PositionDependent)
	lay, err := layout.Compute(o)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out")
	require.NoError(t, Run(o, lay, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	require.Equal(t, "\x7fELF", string(data[:4]))
}

func TestRunReplacesExistingFile(t *testing.T) {
	o := object.New(archinfo.Env{Class: archinfo.Class64, Machine: archinfo.MachineX86_64}, object.PositionDependent)
	lay, err := layout.Compute(o)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.WriteFile(path, []byte("stale content that is longer than the real output"), 0o644))

	require.NoError(t, Run(o, lay, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "\x7fELF", string(data[:4]))
}

func TestRunWrapsOpenFailureAsWriteError(t *testing.T) {
	o := object.New(archinfo.Env{Class: archinfo.Class64, Machine: archinfo.MachineX86_64}, object.PositionDependent)
	lay, err := layout.Compute(o)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "no-such-dir", "out")
	err = Run(o, lay, path)
	require.Error(t, err)
	var writeErr *rawelf.WriteError
	require.ErrorAs(t, err, &writeErr)
	require.Equal(t, path, writeErr.Path)
}
