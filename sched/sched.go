// ════════════════════════════════════════════════════════════════════════════════════════════════
// BOUNDED TASK-POOL SCHEDULER
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Coroutine Prefetch Inference Harness
// Component: Single-threaded cooperative round-robin over suspended tasks
//
// Description:
//   Runs itemCount tasks to completion with at most poolSize live at once.
//   Slots are swept in fixed order; a complete task is replaced in place by
//   the next unstarted item, or its slot retires when none remain. A task
//   that is not complete is resumed exactly one step per sweep.
//
// Design Principles:
//   - Slots are values inside the pool, re-initialised in place by start;
//     a run allocates nothing per item
//   - No goroutines, no channels: interleaving exists only to overlap memory
//     latency between independent tasks
//   - Completion order is not start order
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package sched

import (
	"errors"
)

var (
	// ErrPoolSize is returned for a pool width below one.
	ErrPoolSize = errors.New("sched: pool size must be at least 1")

	// ErrItemCount is returned for a negative item count.
	ErrItemCount = errors.New("sched: negative item count")
)

// Task is the pointer constraint for slot values: *T must report completion
// and advance one step on Resume.
type Task[T any] interface {
	*T
	Complete() bool
	Resume()
}

// Stats counts scheduler events of one run.
type Stats struct {
	Started   int // start calls
	Completed int // tasks observed complete
	Resumes   int // Resume calls
	Sweeps    int // full passes over the pool
}

// Pool owns the task slots. It is reused across runs and is not safe for
// concurrent use.
type Pool[T any, PT Task[T]] struct {
	slots []T
	live  []bool
}

// NewPool allocates size slots.
func NewPool[T any, PT Task[T]](size int) (*Pool[T, PT], error) {
	if size < 1 {
		return nil, ErrPoolSize
	}
	return &Pool[T, PT]{
		slots: make([]T, size),
		live:  make([]bool, size),
	}, nil
}

// Size returns the pool width.
func (p *Pool[T, PT]) Size() int { return len(p.slots) }

// Run drives items [0, itemCount) to completion. start (re)initialises slot t
// for item and is called exactly once per item.
func (p *Pool[T, PT]) Run(itemCount int, start func(item int, t PT)) (Stats, error) {
	var st Stats
	if itemCount < 0 {
		return st, ErrItemCount
	}

	width := min(len(p.slots), itemCount)
	for i := 0; i < width; i++ {
		start(i, PT(&p.slots[i]))
		p.live[i] = true
	}
	st.Started = width
	next, live := width, width

	for live > 0 {
		st.Sweeps++
		for i := 0; i < width; i++ {
			if !p.live[i] {
				continue
			}
			t := PT(&p.slots[i])
			if !t.Complete() {
				t.Resume()
				st.Resumes++
				continue
			}
			st.Completed++
			if next < itemCount {
				start(next, t)
				next++
				st.Started++
				continue
			}
			p.live[i] = false
			live--
		}
	}
	return st, nil
}

// Run is a one-shot wrapper that builds a pool of poolSize and runs it.
func Run[T any, PT Task[T]](poolSize, itemCount int, start func(item int, t PT)) (Stats, error) {
	p, err := NewPool[T, PT](poolSize)
	if err != nil {
		return Stats{}, err
	}
	return p.Run(itemCount, start)
}
