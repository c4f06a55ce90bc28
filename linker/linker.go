// Package linker implements the top-level link-orchestration driver (spec
// §2): it wires every pass from input enumeration through ELF emission
// into the sixteen-stage pipeline spec.md §2 describes, in the fixed
// order the stages are numbered, threading one config.Config and the
// object.Object it builds through each.
//
// Grounded on no single teacher file (go-obj never linked anything), but
// shaped the way aclements-objbrowse/cmd/objbrowse/main.go composes a
// handful of library calls into one straight-line pipeline rather than a
// generic job scheduler: each pass runs at most once, in program order
// (except dedup, which runs a second time over same-name merge's output),
// with failure bubbling immediately to the caller per spec §7's
// propagation policy.
package linker

import (
	"fmt"
	"io"

	"github.com/plinkgo/plink/config"
	"github.com/plinkgo/plink/internal/archinfo"
	"github.com/plinkgo/plink/internal/debugprint"
	"github.com/plinkgo/plink/internal/diag"
	"github.com/plinkgo/plink/internal/ids"
	"github.com/plinkgo/plink/layout"
	"github.com/plinkgo/plink/object"
	"github.com/plinkgo/plink/passes/dedup"
	"github.com/plinkgo/plink/passes/dynamic"
	"github.com/plinkgo/plink/passes/emit"
	"github.com/plinkgo/plink/passes/finalize"
	"github.com/plinkgo/plink/passes/gc"
	"github.com/plinkgo/plink/passes/gotplt"
	"github.com/plinkgo/plink/passes/input"
	"github.com/plinkgo/plink/passes/merge"
	"github.com/plinkgo/plink/passes/relocate"
	"github.com/plinkgo/plink/passes/rewrite"
	"github.com/plinkgo/plink/passes/samemerge"
	"github.com/plinkgo/plink/passes/segment"
	"github.com/plinkgo/plink/passes/sharedobj"
)

// MissingEntryPoint is returned when cfg.Entry names a symbol (the
// default "_start" or a custom name) that no input defines (spec §7
// "missing entry point").
type MissingEntryPoint struct {
	Name string
}

func (e *MissingEntryPoint) Error() string {
	return fmt.Sprintf("entry point symbol %q is not defined by any input", e.Name)
}

func (e *MissingEntryPoint) DiagKind() diag.Kind { return diag.KindSymbol }

func (e *MissingEntryPoint) Hints() []diag.Hint {
	return []diag.Hint{{Text: "pass a different --entry name, or --no-entry to build without an entry point"}}
}

// defaultEntrySymbol is the conventional entry symbol name for a
// PositionDependent or PositionIndependent executable (spec §6.3
// "entry: Default").
const defaultEntrySymbol = "_start"

// Run executes the full pipeline against cfg and writes the linked
// output to cfg.Output, logging stage summaries to dbg as each stage
// enables them. It returns the first error any stage produces,
// already wrapped with that stage's context.
func Run(cfg *config.Config, dbg *debugprint.Printer) error {
	loaded, env, err := input.Load(cfg)
	if err != nil {
		return fmt.Errorf("loading inputs: %w", err)
	}
	dbg.Stage(config.DebugInput, "loaded %d input(s), environment %s", len(loaded), env)
	if dbg.ShouldStopAfter(config.DebugInput) {
		return nil
	}

	o := object.New(env, cfg.Mode)
	o.EntryPoint = ids.NoSymbol
	o.ExecutableStack = cfg.ExecutableStack

	for _, l := range loaded {
		if l.SharedObject {
			if err := sharedobj.Load(o, l.Span, l.Raw, l.Data); err != nil {
				return fmt.Errorf("loading %s: %w", l.Span, err)
			}
			continue
		}
		if err := merge.Merge(o, l.Span, l.Raw, l.Data); err != nil {
			return fmt.Errorf("merging %s: %w", l.Span, err)
		}
	}
	merge.ResolveWeakUndefined(o)
	dbg.Stage(config.DebugMerge, "merged into %d section(s), %d symbol(s)", len(o.Sections()), o.Symbols.Len())
	if dbg.ShouldStopAfter(config.DebugMerge) {
		return nil
	}

	if err := resolveEntry(o, cfg.Entry); err != nil {
		return err
	}

	if cfg.GCSections {
		gc.Run(o)
	}
	dbg.Stage(config.DebugGC, "%d section(s) survive", len(o.Sections()))
	if dbg.ShouldStopAfter(config.DebugGC) {
		return nil
	}

	remaps := dedup.Run(o)
	dbg.Stage(config.DebugDedup, "deduplicated %d section(s)", len(remaps))
	if dbg.ShouldStopAfter(config.DebugDedup) {
		return nil
	}

	placements := samemerge.Run(o)
	dbg.Stage(config.DebugSameMerge, "%d section(s) after same-name merge", len(o.Sections()))
	if dbg.ShouldStopAfter(config.DebugSameMerge) {
		return nil
	}

	// Same-name merge can newly align identical strings/chunks that
	// arrived from different inputs (spec §8.4 scenario 4); re-run dedup
	// over its concatenated output to collapse those before rewrite
	// retargets every reference at its final home.
	postRemaps := dedup.Run(o)

	if err := rewrite.Run(o, remaps, placements, postRemaps); err != nil {
		return fmt.Errorf("rewriting references: %w", err)
	}
	dbg.Stage(config.DebugRewrite, "rewrote references across %d placement(s)", len(placements))
	if dbg.ShouldStopAfter(config.DebugRewrite) {
		return nil
	}

	if err := dynamic.Run(o, cfg.DynamicLinker, cfg.SharedObjectName); err != nil {
		return fmt.Errorf("synthesizing dynamic sections: %w", err)
	}
	dbg.Stage(config.DebugDynamic, "dynamic mode: %v, needed libraries: %v", o.Mode.Dynamic(), o.NeededLibraries)
	if dbg.ShouldStopAfter(config.DebugDynamic) {
		return nil
	}

	arch := archinfo.Arch{Env: o.Env, Layout: o.Env.Layout()}
	gp, err := gotplt.Run(o, arch, cfg.ReadOnlyGOT, cfg.ReadOnlyGOTPLT)
	if err != nil {
		return fmt.Errorf("building GOT/PLT: %w", err)
	}
	dbg.Stage(config.DebugGotPlt, "got: %v, got.plt/plt: %v", gp.HasGot, gp.HasPlt)
	if dbg.ShouldStopAfter(config.DebugGotPlt) {
		return nil
	}

	segment.Run(o, o.Mode.Dynamic(), cfg.DynamicLinker, cfg.ExecutableStack)
	dbg.Stage(config.DebugSegment, "%d segment(s)", len(o.Segments))
	if dbg.ShouldStopAfter(config.DebugSegment) {
		return nil
	}

	lay, err := layout.Compute(o)
	if err != nil {
		return fmt.Errorf("computing layout: %w", err)
	}
	dbg.Stage(config.DebugLayout, "laid out %d section(s)", len(lay.Order()))
	if dbg.ShouldStopAfter(config.DebugLayout) {
		return nil
	}

	if err := relocate.Run(o, lay, arch, gp, o.EntryPoint); err != nil {
		return fmt.Errorf("applying relocations: %w", err)
	}
	dbg.Stage(config.DebugRelocate, "relocations applied")
	if dbg.ShouldStopAfter(config.DebugRelocate) {
		return nil
	}

	if err := finalize.Run(o, lay); err != nil {
		return fmt.Errorf("finalizing symbols: %w", err)
	}
	dbg.Stage(config.DebugFinalize, "symbols finalized")
	if dbg.ShouldStopAfter(config.DebugFinalize) {
		return nil
	}

	if err := emit.Run(o, lay, cfg.Output); err != nil {
		return fmt.Errorf("emitting %s: %w", cfg.Output, err)
	}
	return nil
}

// resolveEntry sets o.EntryPoint per entry's policy (spec §6.3 "entry:
// Default | Custom(name) | None"), erroring if a named entry symbol was
// never defined by any input.
func resolveEntry(o *object.Object, entry config.Entry) error {
	switch entry.Kind {
	case config.EntryNone:
		o.EntryPoint = ids.NoSymbol
		return nil
	case config.EntryCustom:
		id, ok := o.Symbols.Lookup(entry.Name)
		if !ok {
			return &MissingEntryPoint{Name: entry.Name}
		}
		o.EntryPoint = id
		return nil
	default:
		id, ok := o.Symbols.Lookup(defaultEntrySymbol)
		if !ok {
			return &MissingEntryPoint{Name: defaultEntrySymbol}
		}
		o.EntryPoint = id
		return nil
	}
}

// RunWithDiagnostics is the convenience entry point cmd/plink calls: it
// runs the pipeline, rendering any failure to stderr in diag's cause-chain
// format, and returns the process exit code spec §6.3 mandates.
func RunWithDiagnostics(cfg *config.Config, stderr io.Writer, useColor bool) int {
	dbg := debugprint.New(cfg, stderr)
	err := Run(cfg, dbg)
	if err != nil {
		diag.Render(stderr, err, useColor)
	}
	return diag.ExitCode(err)
}
