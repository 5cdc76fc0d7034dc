package control

import (
	"sync"
	"sync/atomic"
	"testing"
)

// ============================================================================
// FLAG OPERATIONS
// ============================================================================

func TestShutdownSetsFlag(t *testing.T) {
	Reset()
	if Stopping() {
		t.Fatal("flag should start clear")
	}
	Shutdown()
	if !Stopping() {
		t.Fatal("Shutdown must set the stop flag")
	}
	if atomic.LoadUint32(Flag()) != 1 {
		t.Fatal("Flag() must expose the same word")
	}
	Reset()
	if Stopping() {
		t.Fatal("Reset must clear the flag")
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	Reset()
	Shutdown()
	Shutdown()
	if !Stopping() {
		t.Fatal("repeated Shutdown must leave the flag set")
	}
	Reset()
}

// ============================================================================
// CONCURRENT ACCESS
// ============================================================================

func TestConcurrentPollers(t *testing.T) {
	Reset()
	var wg sync.WaitGroup
	seen := int32(0)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !Stopping() {
			}
			atomic.AddInt32(&seen, 1)
		}()
	}
	Shutdown()
	wg.Wait()
	if seen != 8 {
		t.Fatalf("expected all pollers to observe stop, got %d", seen)
	}
	Reset()
}

// ============================================================================
// BENCHMARKS
// ============================================================================

func BenchmarkStopping(b *testing.B) {
	Reset()
	for i := 0; i < b.N; i++ {
		_ = Stopping()
	}
}
