package sched

import (
	"errors"
	"testing"
)

// countdown completes after steps resumes and records which item it served.
type countdown struct {
	item  int
	left  int
	trace *[]int
}

func (c *countdown) Complete() bool { return c.left == 0 }

func (c *countdown) Resume() {
	c.left--
	if c.left == 0 {
		*c.trace = append(*c.trace, c.item)
	}
}

func stepsFor(item int) int { return 1 + (item*7)%5 }

// -----------------------------------------------------------------------------
// ░░ Coverage ░░
// -----------------------------------------------------------------------------

func TestPoolTwoFiveItems(t *testing.T) {
	var started, finished []int
	st, err := Run(2, 5, func(item int, c *countdown) {
		started = append(started, item)
		*c = countdown{item: item, left: stepsFor(item), trace: &finished}
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(started) != 5 {
		t.Fatalf("start called %d times, want 5", len(started))
	}
	for i, item := range started {
		if item != i {
			t.Fatalf("start order %v, want ascending", started)
		}
	}
	if len(finished) != 5 || st.Completed != 5 || st.Started != 5 {
		t.Fatalf("finished=%v stats=%+v", finished, st)
	}
}

func TestEveryPoolSize(t *testing.T) {
	const items = 23
	for size := 1; size <= items+3; size++ {
		seen := make([]int, items)
		var finished []int
		st, err := Run(size, items, func(item int, c *countdown) {
			seen[item]++
			*c = countdown{item: item, left: stepsFor(item), trace: &finished}
		})
		if err != nil {
			t.Fatal(err)
		}
		for i, n := range seen {
			if n != 1 {
				t.Fatalf("size=%d: item %d started %d times", size, i, n)
			}
		}
		if len(finished) != items {
			t.Fatalf("size=%d: %d items finished", size, len(finished))
		}
		wantResumes := 0
		for i := 0; i < items; i++ {
			wantResumes += stepsFor(i)
		}
		if st.Resumes != wantResumes {
			t.Fatalf("size=%d: resumes=%d want %d", size, st.Resumes, wantResumes)
		}
	}
}

// -----------------------------------------------------------------------------
// ░░ Concurrency bound ░░
// -----------------------------------------------------------------------------

// tracked counts how many tasks are started but not yet observed complete.
type tracked struct {
	left   int
	active *int
	done   bool
}

func (c *tracked) Complete() bool {
	if c.left == 0 && !c.done {
		c.done = true
		*c.active--
	}
	return c.left == 0
}

func (c *tracked) Resume() { c.left-- }

func TestLiveTasksNeverExceedPool(t *testing.T) {
	const size, items = 4, 40
	active, peak := 0, 0
	_, err := Run(size, items, func(item int, c *tracked) {
		*c = tracked{left: 1 + item%3, active: &active}
		active++
		peak = max(peak, active)
	})
	if err != nil {
		t.Fatal(err)
	}
	if peak != size {
		t.Fatalf("peak live = %d, want %d", peak, size)
	}
	if active != 0 {
		t.Fatalf("%d tasks left live", active)
	}
}

func TestInstantTasks(t *testing.T) {
	n := 0
	st, err := Run(3, 10, func(item int, c *countdown) {
		n++
		*c = countdown{item: item} // already complete
	})
	if err != nil || n != 10 || st.Resumes != 0 || st.Completed != 10 {
		t.Fatalf("n=%d stats=%+v err=%v", n, st, err)
	}
}

// -----------------------------------------------------------------------------
// ░░ Edge cases ░░
// -----------------------------------------------------------------------------

func TestZeroItems(t *testing.T) {
	st, err := Run(4, 0, func(int, *countdown) { t.Fatal("start must not be called") })
	if err != nil || st != (Stats{}) {
		t.Fatalf("stats=%+v err=%v", st, err)
	}
}

func TestInvalidArguments(t *testing.T) {
	if _, err := Run(0, 3, func(int, *countdown) {}); !errors.Is(err, ErrPoolSize) {
		t.Fatalf("pool 0: %v", err)
	}
	if _, err := Run(2, -1, func(int, *countdown) {}); !errors.Is(err, ErrItemCount) {
		t.Fatalf("items -1: %v", err)
	}
}

func TestPoolReuse(t *testing.T) {
	p, err := NewPool[countdown](3)
	if err != nil {
		t.Fatal(err)
	}
	for run := 0; run < 3; run++ {
		var finished []int
		st, err := p.Run(7, func(item int, c *countdown) {
			*c = countdown{item: item, left: 2, trace: &finished}
		})
		if err != nil || st.Completed != 7 || len(finished) != 7 {
			t.Fatalf("run %d: stats=%+v finished=%v", run, st, finished)
		}
	}
}

// -----------------------------------------------------------------------------
// ░░ Benchmarks ░░
// -----------------------------------------------------------------------------

type spin struct{ left int }

func (s *spin) Complete() bool { return s.left == 0 }
func (s *spin) Resume()        { s.left-- }

func BenchmarkPool8x1024(b *testing.B) {
	p, _ := NewPool[spin](8)
	start := func(item int, s *spin) { s.left = 4 }
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.Run(1024, start)
	}
}
