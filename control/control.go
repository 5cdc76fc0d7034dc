// control.go — Global stop signalling between the signal handler, the feed
// producer and the repeat loop
// ============================================================================
// SYSTEM CONTROL
// ============================================================================
//
// The harness runs single-threaded except for the optional feed producer and
// the signal handler goroutine. Both need to observe one stop request:
//
//   • SIGINT/SIGTERM → Shutdown() sets the flag
//   • the feed producer polls Stopping() between records
//   • the repeat loop polls Stopping() between repeats (a running pipeline
//     model is never interrupted)
//
// ShutdownWG lets main wait for the producer to exit before returning.

package control

import (
	"sync"
	"sync/atomic"
)

// ============================================================================
// GLOBAL STATE
// ============================================================================

var (
	stop uint32 // 1 = stop requested

	// ShutdownWG tracks background goroutines that must exit before main returns.
	ShutdownWG sync.WaitGroup
)

// ============================================================================
// SHUTDOWN
// ============================================================================

// Shutdown requests that the run stops at the next repeat boundary.
//
//go:nosplit
//go:inline
func Shutdown() {
	atomic.StoreUint32(&stop, 1)
}

// Stopping reports whether Shutdown has been called.
//
//go:nosplit
//go:inline
func Stopping() bool {
	return atomic.LoadUint32(&stop) != 0
}

// Reset clears the stop flag. Used between independent runs in one process.
func Reset() {
	atomic.StoreUint32(&stop, 0)
}

// Flag returns the stop flag for pollers that want a raw pointer.
//
//go:nosplit
//go:inline
func Flag() *uint32 {
	return &stop
}
