// Package config defines the linker's configuration record (spec §6.3):
// the flattened view of every CLI flag cmd/plink parses into a single
// value the core pipeline consumes, independent of how it was produced.
package config

import "github.com/plinkgo/plink/object"

// InputKind discriminates the three ways an input can be named on the
// command line (spec §6.3).
type InputKind uint8

const (
	// Path names a file directly, relative or absolute.
	Path InputKind = iota
	// Library names a library to search for as lib<name>.so/.a across
	// SearchPaths (the `-lname` convention).
	Library
	// LibraryVerbatim names an exact file to search for across
	// SearchPaths without the lib/.so/.a convention (the `-l:file`
	// convention).
	LibraryVerbatim
)

// Input is one entry of Config.Inputs.
type Input struct {
	Kind InputKind
	Name string
}

func PathInput(p string) Input            { return Input{Kind: Path, Name: p} }
func LibraryInput(name string) Input      { return Input{Kind: Library, Name: name} }
func VerbatimInput(file string) Input     { return Input{Kind: LibraryVerbatim, Name: file} }

// EntryKind discriminates how the entry point is chosen (spec §6.3).
type EntryKind uint8

const (
	// EntryDefault uses the conventional entry symbol name ("_start").
	EntryDefault EntryKind = iota
	// EntryCustom names an explicit entry symbol.
	EntryCustom
	// EntryNone produces an output with no entry point (e.g. a shared
	// object, or a relocatable-style output), leaving e_entry as 0.
	EntryNone
)

// Entry selects Config's entry-point policy.
type Entry struct {
	Kind EntryKind
	Name string // meaningful only when Kind == EntryCustom
}

func DefaultEntry() Entry       { return Entry{Kind: EntryDefault} }
func CustomEntry(name string) Entry { return Entry{Kind: EntryCustom, Name: name} }
func NoEntry() Entry            { return Entry{Kind: EntryNone} }

// DebugStage names one of the pipeline stages internal/debugprint can dump
// (spec's supplemented "debug_print" enumeration; see SPEC_FULL.md).
type DebugStage string

const (
	DebugInput     DebugStage = "input"
	DebugMerge     DebugStage = "merge"
	DebugGC        DebugStage = "gc"
	DebugDedup     DebugStage = "dedup"
	DebugSameMerge DebugStage = "samemerge"
	DebugRewrite   DebugStage = "rewrite"
	DebugDynamic   DebugStage = "dynamic"
	DebugGotPlt    DebugStage = "gotplt"
	DebugSegment   DebugStage = "segment"
	DebugLayout    DebugStage = "layout"
	DebugRelocate  DebugStage = "relocate"
	DebugFinalize  DebugStage = "finalize"
)

// AllDebugStages lists every stage debug_print=all enables.
var AllDebugStages = []DebugStage{
	DebugInput, DebugMerge, DebugGC, DebugDedup, DebugSameMerge,
	DebugRewrite, DebugDynamic, DebugGotPlt, DebugSegment, DebugLayout,
	DebugRelocate, DebugFinalize,
}

// Config is the flattened configuration record the core pipeline
// consumes (spec §6.3). cmd/plink is the only producer; tests construct
// one directly without going through CLI parsing at all.
type Config struct {
	Inputs []Input
	Output string
	Entry  Entry
	Mode   object.Mode

	GCSections bool

	ExecutableStack bool
	ReadOnlyGOT     bool
	ReadOnlyGOTPLT  bool

	DynamicLinker string

	SearchPaths []string

	SharedObjectName string

	DebugPrint map[DebugStage]bool

	// ColorDiagnostics forces (true) or suppresses (false-with-Set) ANSI
	// color in rendered diagnostics; nil defers to whether stderr is a
	// terminal (spec's ambient-stack logging/diagnostics expansion).
	ColorDiagnostics *bool
}

// New returns a Config with the spec's stated defaults: position-dependent
// executable, default entry point, GC disabled, non-executable stack,
// GOT/PLT not forced read-only, no debug printing.
func New() *Config {
	return &Config{
		Entry:      DefaultEntry(),
		Mode:       object.PositionDependent,
		DebugPrint: make(map[DebugStage]bool),
	}
}

// WantsDebug reports whether stage should print (spec's supplemented
// debug_print feature).
func (c *Config) WantsDebug(stage DebugStage) bool {
	return c.DebugPrint[stage]
}

// EnableDebug turns on stage, or every stage if stage == "all".
func (c *Config) EnableDebug(stage string) {
	if stage == "all" {
		for _, s := range AllDebugStages {
			c.DebugPrint[s] = true
		}
		return
	}
	c.DebugPrint[DebugStage(stage)] = true
}
