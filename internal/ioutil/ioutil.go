// Package ioutil wraps the two raw filesystem operations the linker needs
// beyond plain reads and writes: mapping an input file's bytes directly
// rather than copying them, and marking the emitted binary executable.
//
// Grounded on nothing in go-obj, which only ever ran against bytes already
// in memory; golang.org/x/sys/unix is pulled in here the way the rest of
// the pack's daemons use it for the handful of syscalls the standard
// library's os package won't expose directly.
package ioutil

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MappedFile is a read-only view of a file's bytes backed by mmap. Data is
// valid until Close is called; callers must not retain Data past Close.
type MappedFile struct {
	Data []byte
	f    *os.File
}

// MapFile opens path and maps its entire contents read-only. Empty files
// map to a zero-length Data without invoking mmap, which rejects a
// zero-length mapping.
func MapFile(path string) (*MappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		return &MappedFile{f: f}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &MappedFile{Data: data, f: f}, nil
}

// Close unmaps the file's bytes and closes the underlying descriptor.
func (m *MappedFile) Close() error {
	var err error
	if m.Data != nil {
		err = unix.Munmap(m.Data)
		m.Data = nil
	}
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// MarkExecutable sets path's permission bits to rwxr-xr-x (spec §4.16
// "the output file is marked executable"), via fchmod on an open
// descriptor rather than chmod on the path, closing the race a second
// process renaming something into path between a stat and a chmod would
// otherwise open.
func MarkExecutable(path string) error {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := unix.Fchmod(int(f.Fd()), 0o755); err != nil {
		return fmt.Errorf("fchmod %s: %w", path, err)
	}
	return nil
}
