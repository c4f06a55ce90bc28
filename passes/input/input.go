// Package input implements the linker's input enumeration (spec §4.2):
// given an ordered list of configured inputs, it opens each file, peeks
// its format, and yields a stream of parsed ELF objects (single files or
// archive members) tagged with the source span they came from.
//
// Grounded on go-obj/obj/elf.go's single-pass section-table walk
// (openElf), generalized here to iterate many inputs via ar and to
// dispatch ET_REL objects one way and ET_DYN objects another (§4.4).
package input

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/plinkgo/plink/ar"
	"github.com/plinkgo/plink/config"
	"github.com/plinkgo/plink/internal/archinfo"
	"github.com/plinkgo/plink/internal/ioutil"
	"github.com/plinkgo/plink/rawelf"
)

// Loaded is one parsed ELF input, still in its raw (pre-merge) form.
type Loaded struct {
	Span         string
	Raw          *rawelf.RawObject
	Data         []byte
	SharedObject bool
}

// MismatchedEnv is returned when an input's class/machine tuple does not
// match the environment the first loaded input established (spec §4.2
// "Environment check").
type MismatchedEnv struct {
	Span     string
	Expected archinfo.Env
	Got      archinfo.Env
}

func (e *MismatchedEnv) Error() string {
	return fmt.Sprintf("%s: environment %s does not match first input's environment %s", e.Span, e.Got, e.Expected)
}

// NoInputFiles is returned when cfg.Inputs is empty (spec §8.3).
type NoInputFiles struct{}

func (NoInputFiles) Error() string { return "no input files" }

// Load resolves and parses every configured input in order, enforcing
// that every input shares the first one's environment tuple.
func Load(cfg *config.Config) ([]Loaded, archinfo.Env, error) {
	if len(cfg.Inputs) == 0 {
		return nil, archinfo.Env{}, NoInputFiles{}
	}

	var out []Loaded
	var env archinfo.Env
	haveEnv := false

	checkEnv := func(span string, e archinfo.Env) error {
		if !haveEnv {
			env = e
			haveEnv = true
			return nil
		}
		if !env.Equal(e) {
			return &MismatchedEnv{Span: span, Expected: env, Got: e}
		}
		return nil
	}

	for _, in := range cfg.Inputs {
		path, err := resolve(in, cfg.SearchPaths)
		if err != nil {
			return nil, env, err
		}
		// Mapped, not closed: every Loaded.Data returned from here is read
		// by every later pass up through emission, well past Load's own
		// return, so the mapping has to outlive this function. The
		// process exiting is what reclaims it, the same tradeoff a
		// one-shot CLI linker invocation always makes for its inputs.
		mapped, err := ioutil.MapFile(path)
		if err != nil {
			return nil, env, fmt.Errorf("reading %s: %w", path, err)
		}
		data := mapped.Data

		if ar.IsArchive(data) {
			members, err := ar.Read(path, data)
			if err != nil {
				return nil, env, err
			}
			for _, m := range ar.Objects(members) {
				span := fmt.Sprintf("%s(%s)", path, m.Name)
				loaded, err := parseOne(span, m.Data)
				if err != nil {
					return nil, env, err
				}
				if err := checkEnv(span, envOf(loaded.Raw.Header)); err != nil {
					return nil, env, err
				}
				out = append(out, loaded)
			}
			continue
		}

		loaded, err := parseOne(path, data)
		if err != nil {
			return nil, env, err
		}
		if err := checkEnv(path, envOf(loaded.Raw.Header)); err != nil {
			return nil, env, err
		}
		out = append(out, loaded)
	}

	return out, env, nil
}

func parseOne(span string, data []byte) (Loaded, error) {
	raw, err := rawelf.ReadObject(data)
	if err != nil {
		return Loaded{}, fmt.Errorf("%s: %w", span, err)
	}
	return Loaded{
		Span:         span,
		Raw:          raw,
		Data:         data,
		SharedObject: raw.Header.Type == rawelf.TypeDyn,
	}, nil
}

func envOf(h rawelf.Header) archinfo.Env {
	class := archinfo.Class32
	if h.Class == rawelf.Class64 {
		class = archinfo.Class64
	}
	machine := archinfo.MachineX86
	if h.Machine == rawelf.MachineX8664 {
		machine = archinfo.MachineX86_64
	}
	return archinfo.Env{Class: class, Machine: machine}
}

// resolve turns a config.Input into a concrete file path, searching
// SearchPaths for Library/LibraryVerbatim entries (spec §4.2 "for -l<name>
// style inputs, search search_paths in order").
func resolve(in config.Input, searchPaths []string) (string, error) {
	switch in.Kind {
	case config.Path:
		return in.Name, nil
	case config.Library:
		for _, dir := range searchPaths {
			so := filepath.Join(dir, "lib"+in.Name+".so")
			if fileExists(so) {
				return so, nil
			}
			a := filepath.Join(dir, "lib"+in.Name+".a")
			if fileExists(a) {
				return a, nil
			}
		}
		return "", fmt.Errorf("cannot find library -l%s in search paths %v", in.Name, searchPaths)
	case config.LibraryVerbatim:
		for _, dir := range searchPaths {
			p := filepath.Join(dir, in.Name)
			if fileExists(p) {
				return p, nil
			}
		}
		return "", fmt.Errorf("cannot find -l:%s in search paths %v", in.Name, searchPaths)
	default:
		return "", fmt.Errorf("input: unknown input kind %d", in.Kind)
	}
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
