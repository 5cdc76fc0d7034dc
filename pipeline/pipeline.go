// Package pipeline runs the per-entity inference over a store, either as one
// straight pass per entity or as suspendable tasks interleaved by the
// task-pool scheduler. Both paths resolve rows and call the kernel the same
// way, so their result vectors are bit-identical for identical input.
package pipeline

import (
	"errors"

	"coroinfer/prefetch"
	"coroinfer/sched"
	"coroinfer/store"
	"coroinfer/svm"
)

// ErrUnknownPrefetch is returned by NewScheduled for an unknown variant name.
var ErrUnknownPrefetch = errors.New("pipeline: unknown prefetch variant")

// ───────────────────────────── Sequential ────────────────────────────────

// Sequential classifies every accepted sample of entity with no suspension
// and no prefetch.
func Sequential(s *store.Store, entity int) error {
	row, err := s.ResolveRow(entity)
	if err != nil {
		return err
	}
	w := s.ResolveWeights(row)
	bias, coeffs := w[0], w[1:]
	m := s.ResolveSamples(entity)
	res := s.ResolveResults(entity)
	for i := 0; i < m.Count; i++ {
		res[i] = svm.Infer(coeffs, m.Row(i), bias, m.RowLen)
	}
	return nil
}

// RunSequential runs Sequential over all entities in index order and stops at
// the first error.
func RunSequential(s *store.Store) error {
	for e, n := 0, s.EntityCount(); e < n; e++ {
		if err := Sequential(s, e); err != nil {
			return err
		}
	}
	return nil
}

// ───────────────────────────── Scheduled ─────────────────────────────────

// Scheduled is a prefetch-variant-erased scheduled runner.
type Scheduled interface {
	Run(s *store.Store) (sched.Stats, error)
	Width() int
	Prefetching() bool
}

// Runner owns a pool of Coro[P] slots reused across runs.
type Runner[P prefetch.Prefetcher] struct {
	pool  *sched.Pool[Coro[P], *Coro[P]]
	pf    P
	store *store.Store
	fault error
	start func(item int, c *Coro[P])
}

// NewRunner builds a runner of the given pool width.
func NewRunner[P prefetch.Prefetcher](pf P, width int) (*Runner[P], error) {
	pool, err := sched.NewPool[Coro[P]](width)
	if err != nil {
		return nil, err
	}
	r := &Runner[P]{pool: pool, pf: pf}
	r.start = func(item int, c *Coro[P]) {
		c.Init(r.store, r.pf, item, &r.fault)
	}
	return r, nil
}

// Run processes every entity of s exactly once. The first resolution error
// is returned after the pool drains.
func (r *Runner[P]) Run(s *store.Store) (sched.Stats, error) {
	r.store, r.fault = s, nil
	st, err := r.pool.Run(s.EntityCount(), r.start)
	r.store = nil
	if err != nil {
		return st, err
	}
	return st, r.fault
}

// Width returns the pool width.
func (r *Runner[P]) Width() int { return r.pool.Size() }

// Prefetching reports whether the variant issues touches.
func (r *Runner[P]) Prefetching() bool { return r.pf.Enabled() }

// RunScheduled is a one-shot wrapper around NewRunner and Run.
func RunScheduled[P prefetch.Prefetcher](s *store.Store, pf P, width int) (sched.Stats, error) {
	r, err := NewRunner(pf, width)
	if err != nil {
		return sched.Stats{}, err
	}
	return r.Run(s)
}

// NewScheduled instantiates the runner for a named prefetch variant.
func NewScheduled(variant string, width int) (Scheduled, error) {
	pf, ok := prefetch.Select(variant)
	if !ok {
		return nil, ErrUnknownPrefetch
	}
	if !pf.Enabled() {
		r, err := NewRunner(prefetch.Inert{}, width)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	r, err := NewRunner(prefetch.Active{}, width)
	if err != nil {
		return nil, err
	}
	return r, nil
}
