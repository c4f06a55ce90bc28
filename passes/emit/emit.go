// Package emit implements the ELF emitter pass (spec §4.16): it encodes the
// finalized Object and Layout into bytes via rawelf, writes them to the
// configured output path, and marks the result executable.
//
// Grounded on rawelf.WriteObject/EncodeObject doing the actual byte
// production; this package is only the filesystem plumbing around it, in
// the same spirit go-obj/obj/elf.go keeps format decoding and file opening
// in separate layers.
package emit

import (
	"os"

	"github.com/plinkgo/plink/internal/ioutil"
	"github.com/plinkgo/plink/layout"
	"github.com/plinkgo/plink/object"
	"github.com/plinkgo/plink/rawelf"
)

// Run encodes o per lay and writes it to path, then marks it executable
// (spec §4.16). Any pre-existing file at path is truncated and replaced.
// Every failure is reported as a rawelf.WriteError carrying path, matching
// spec §8.3's requirement that output errors name their destination.
func Run(o *object.Object, lay *layout.Layout, path string) error {
	data, err := rawelf.EncodeObject(o, lay)
	if err != nil {
		return &rawelf.WriteError{Path: path, Cause: err}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return &rawelf.WriteError{Path: path, Cause: err}
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return &rawelf.WriteError{Path: path, Cause: err}
	}
	if err := f.Close(); err != nil {
		return &rawelf.WriteError{Path: path, Cause: err}
	}

	if err := ioutil.MarkExecutable(path); err != nil {
		return &rawelf.WriteError{Path: path, Cause: err}
	}
	return nil
}
