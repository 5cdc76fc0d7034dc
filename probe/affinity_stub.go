//go:build !linux || tinygo

// affinity_stub.go
//
// No-op affinity for platforms without sched_setaffinity(2). The API surface
// matches the Linux file so callers need no build tags of their own.

package probe

// Pin does nothing off Linux.
//
//go:nosplit
//go:inline
func Pin(cpu int) error { return nil }

// Pinned is unknown off Linux.
func Pinned() ([]int, error) { return nil, ErrUnsupported }
