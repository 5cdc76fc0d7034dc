// counters.go
//
// Hardware performance counters sampled around each timed pipeline model.
// The set mirrors the perf report columns: cycles, retired instructions,
// L1D read accesses and L1D read misses.

package probe

import "errors"

// ErrUnsupported is returned where counters cannot be opened.
var ErrUnsupported = errors.New("probe: performance counters unsupported")

// Counter slots in a Sample.
const (
	CPUCycles = iota
	Instructions
	DCacheReads
	DCacheMisses
	NumCounters
)

var counterNames = [NumCounters]string{"cpu_cycles", "instructions", "d_cache_reads", "d_cache_misses"}

// Sample holds one reading per counter slot.
type Sample [NumCounters]uint64

// Counters brackets a measured region.
type Counters interface {
	Start() error
	Stop() (Sample, error)
	Close() error
}

// Names returns the column names of a Sample.
func Names() []string {
	return counterNames[:]
}

// NopCounters reports zeros.
type NopCounters struct{}

func (NopCounters) Start() error          { return nil }
func (NopCounters) Stop() (Sample, error) { return Sample{}, nil }
func (NopCounters) Close() error          { return nil }
