// Package interner implements the value interner described in spec §3.2:
// equal immutable payloads (strings, source spans) are deduplicated behind
// small integer handles. Interning is idempotent and handles are cheap to
// copy and compare.
//
// Unlike go-obj, which lazily computes and shares per-section state behind
// a sync.Once (see obj/elf.go's elfSection.dataOnce), the values interned
// here are small and numerous enough that we want a single shared table
// rather than one memoized slot per owner.
package interner

import "sync"

// Handle is an opaque reference to an interned value. The zero Handle is
// never returned by Intern, so it can double as an "unset" sentinel.
type Handle uint32

// Interner deduplicates values of type T behind Handles. It is safe for
// concurrent use, though spec §5 notes the pipeline itself is
// single-threaded; the mutex exists so a process hosting multiple
// concurrent link jobs (spec §5 "Shared resources") can still share one
// Interner instance.
type Interner[T comparable] struct {
	mu      sync.Mutex
	byValue map[T]Handle
	values  []T
}

// New creates an empty Interner.
func New[T comparable]() *Interner[T] {
	return &Interner[T]{byValue: make(map[T]Handle)}
}

// Intern returns the handle for v, allocating a new one if v has not been
// seen before. Equal inputs always yield equal handles.
func (in *Interner[T]) Intern(v T) Handle {
	in.mu.Lock()
	defer in.mu.Unlock()
	if h, ok := in.byValue[v]; ok {
		return h
	}
	in.values = append(in.values, v)
	h := Handle(len(in.values)) // 1-based so the zero Handle stays "unset"
	in.byValue[v] = h
	return h
}

// Resolve returns the payload for h. It panics if h was never issued by
// this Interner.
func (in *Interner[T]) Resolve(h Handle) T {
	in.mu.Lock()
	defer in.mu.Unlock()
	if h == 0 || int(h) > len(in.values) {
		panic("interner: handle not issued by this interner")
	}
	return in.values[h-1]
}

// Strings is the process-global interner for section/symbol names and
// other short strings. Spec §9 notes interners are process-global by
// default and may be downgraded to per-job if concurrent link jobs are
// wanted; nothing here depends on the global being process-wide, so
// callers that need job isolation can construct their own with New.
var Strings = New[string]()

// Span describes where a piece of data came from: an input file, an
// archive member within it, or a synthetic origin produced by a pass.
type Span struct {
	File   string
	Member string // archive member name, or "" if not from an archive
	Synthetic string // pass name, or "" if this span describes real input
}

// Spans is the process-global interner for Span values.
var Spans = New[Span]()
