// prefetch.go
//
// Prefetch capability used by the suspendable pipeline to stage memory one
// step ahead of use.  Two zero-size variants share one surface:
//
//   • Active — touches the first byte of every cache line in the span so the
//     line is in flight (or resident) by the time the task is resumed.
//   • Inert  — performs the identical pointer arithmetic and nothing else.
//
// Go exposes no prefetch instruction, so Active issues a plain load per line.
// A load cannot express write intent; AdvanceWrite therefore brings the line
// in shared state and the later store upgrades it.
//
// The pipeline is generic over the variant, so the choice is fixed when the
// pipeline type is instantiated and no per-call branch exists.

package prefetch

import (
	"unsafe"

	"coroinfer/constants"
)

// LineSize is the staging granularity in bytes.
const LineSize = constants.LineSize

// Prefetcher is the capability surface shared by both variants.
// Both advance methods return the address one past the last line covered.
type Prefetcher interface {
	AdvanceRead(p unsafe.Pointer, lines uintptr) uintptr
	AdvanceWrite(p unsafe.Pointer, lines uintptr) uintptr
	Enabled() bool
}

// sink keeps the touch loads observable.
var sink byte

// Lines converts a byte length to a line count, rounding up.
//
//go:nosplit
//go:inline
func Lines(bytes uintptr) uintptr {
	return (bytes + LineSize - 1) / LineSize
}

// ───────────────────────────── Active ─────────────────────────────────────

// Active issues one touch per cache line.
type Active struct{}

// AdvanceRead touches lines cache lines starting at p.
// Every touched offset is below lines*LineSize, and callers derive lines from
// the span length with Lines, so the touches stay inside the span.
//
//go:nosplit
//go:inline
func (Active) AdvanceRead(p unsafe.Pointer, lines uintptr) uintptr {
	var acc byte
	for i := uintptr(0); i < lines; i++ {
		acc ^= *(*byte)(unsafe.Add(p, i*LineSize))
	}
	sink ^= acc
	return uintptr(p) + lines*LineSize
}

// AdvanceWrite touches lines cache lines starting at p ahead of a store.
//
//go:nosplit
//go:inline
func (a Active) AdvanceWrite(p unsafe.Pointer, lines uintptr) uintptr {
	return a.AdvanceRead(p, lines)
}

// Enabled reports true.
func (Active) Enabled() bool { return true }

// ───────────────────────────── Inert ──────────────────────────────────────

// Inert only advances the cursor; the control condition of the experiment.
type Inert struct{}

// AdvanceRead returns p + lines*LineSize without touching memory.
//
//go:nosplit
//go:inline
func (Inert) AdvanceRead(p unsafe.Pointer, lines uintptr) uintptr {
	return uintptr(p) + lines*LineSize
}

// AdvanceWrite returns p + lines*LineSize without touching memory.
//
//go:nosplit
//go:inline
func (Inert) AdvanceWrite(p unsafe.Pointer, lines uintptr) uintptr {
	return uintptr(p) + lines*LineSize
}

// Enabled reports false.
func (Inert) Enabled() bool { return false }

// ───────────────────────────── Span helpers ───────────────────────────────

// Read stages the whole of s for reading and returns the advanced cursor.
// An empty span issues nothing and returns 0.
//
//go:nosplit
//go:inline
func Read[P Prefetcher, T any](pf P, s []T) uintptr {
	if len(s) == 0 {
		return 0
	}
	var zero T
	bytes := uintptr(len(s)) * unsafe.Sizeof(zero)
	return pf.AdvanceRead(unsafe.Pointer(unsafe.SliceData(s)), Lines(bytes))
}

// Write stages the whole of s for writing and returns the advanced cursor.
//
//go:nosplit
//go:inline
func Write[P Prefetcher, T any](pf P, s []T) uintptr {
	if len(s) == 0 {
		return 0
	}
	var zero T
	bytes := uintptr(len(s)) * unsafe.Sizeof(zero)
	return pf.AdvanceWrite(unsafe.Pointer(unsafe.SliceData(s)), Lines(bytes))
}

// Select returns the named variant as an interface value, for callers that
// pick the variant from configuration before instantiating a pipeline.
func Select(name string) (Prefetcher, bool) {
	switch name {
	case "active", "":
		return Active{}, true
	case "inert":
		return Inert{}, true
	}
	return nil, false
}
