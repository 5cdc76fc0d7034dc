// relax.go
//
// Back-off for the ring spin loops. Tight spinning for the first spinBudget
// polls keeps hand-off latency low during a batch; after that the goroutine
// yields so an idle producer or consumer does not starve the other on a
// small GOMAXPROCS.

package feed

import "runtime"

const spinBudget = 256 // polls before yielding

//go:nosplit
func cpuRelax(spins int) {
	if spins >= spinBudget {
		runtime.Gosched()
	}
}
