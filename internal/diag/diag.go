// Package diag implements the linker's error taxonomy and cause-chain
// rendering (spec §7). Every pass wraps the errors it returns with
// context (input path, archive member, section ID, symbol name) using the
// standard %w verb; diag's job is purely the top-level rendering once an
// error reaches the driver, plus the richer capability-based extras spec
// §7 calls out: "rich diagnostics... are attached where the error
// implements a diagnostic-builder capability."
package diag

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
)

// Kind is the broad error category from spec §7's taxonomy, used to
// decide exit-code framing and which hints apply.
type Kind int

const (
	KindInput Kind = iota
	KindSymbol
	KindRelocation
	KindLayout
	KindOutput
	KindBug
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindSymbol:
		return "symbol"
	case KindRelocation:
		return "relocation"
	case KindLayout:
		return "layout"
	case KindOutput:
		return "output"
	case KindBug:
		return "bug"
	default:
		return "unknown"
	}
}

// Hint is one piece of supplementary, non-fatal advice attached to an
// error (a suggested symbol name, an entry-point note, a ranlib hint).
type Hint struct {
	Text string
}

// Builder is the capability interface an error type can implement to
// contribute structured context beyond its Error() string (spec §7
// "attached where the error implements a diagnostic-builder capability").
type Builder interface {
	error
	DiagKind() Kind
	Hints() []Hint
}

// Context is the capability interface for errors that know which input
// span (file, archive member, or synthetic origin) they came from.
type Context interface {
	error
	Span() string
}

var (
	bold     = color.New(color.Bold)
	red      = color.New(color.FgRed, color.Bold)
	yellow   = color.New(color.FgYellow)
	faint    = color.New(color.FgHiBlack)
)

// Render writes a human-readable rendering of err to w: the top-level
// message, then each wrapped cause in sequence, then any Hints and Spans
// found anywhere in the chain (spec §7 "the driver prints the top-level
// error, then each source in sequence").
func Render(w io.Writer, err error, useColor bool) {
	if err == nil {
		return
	}
	if !useColor {
		noColor(w, err)
		return
	}

	red.Fprintf(w, "error: ")
	bold.Fprintln(w, err.Error())

	cur := errors.Unwrap(err)
	for cur != nil {
		faint.Fprintf(w, "  caused by: ")
		fmt.Fprintln(w, cur.Error())
		cur = errors.Unwrap(cur)
	}

	var hints []Hint
	var spans []string
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		if b, ok := cur.(Builder); ok {
			hints = append(hints, b.Hints()...)
		}
		if s, ok := cur.(Context); ok {
			spans = append(spans, s.Span())
		}
	}
	for _, s := range dedupStrings(spans) {
		faint.Fprintf(w, "  in: ")
		fmt.Fprintln(w, s)
	}
	for _, h := range hints {
		yellow.Fprintf(w, "  hint: ")
		fmt.Fprintln(w, h.Text)
	}
}

func noColor(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %s\n", err.Error())
	cur := errors.Unwrap(err)
	for cur != nil {
		fmt.Fprintf(w, "  caused by: %s\n", cur.Error())
		cur = errors.Unwrap(cur)
	}
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		if b, ok := cur.(Builder); ok {
			for _, h := range b.Hints() {
				fmt.Fprintf(w, "  hint: %s\n", h.Text)
			}
		}
		if s, ok := cur.(Context); ok {
			fmt.Fprintf(w, "  in: %s\n", s.Span())
		}
	}
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ExitCode returns the process exit code for err: 0 for nil, 1 otherwise
// (spec §6.3 "Exit code: 0 on success; non-zero on any error").
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}

// BugError wraps an internal invariant violation (spec §7 kind 6: "unknown
// SectionId, exhausted ID space"). Its presence in an error chain means
// the linker itself has a defect, not the input.
type BugError struct {
	Cause error
}

func (e *BugError) Error() string  { return fmt.Sprintf("internal error (bug): %v", e.Cause) }
func (e *BugError) Unwrap() error  { return e.Cause }
func (e *BugError) DiagKind() Kind { return KindBug }
func (e *BugError) Hints() []Hint {
	return []Hint{{Text: "this indicates a linker defect, not a problem with the input; please file a report"}}
}

func Bug(format string, args ...any) error {
	return &BugError{Cause: fmt.Errorf(format, args...)}
}
