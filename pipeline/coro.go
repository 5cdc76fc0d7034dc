// ════════════════════════════════════════════════════════════════════════════════════════════════
// SUSPENDABLE INFERENCE PIPELINE
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Coroutine Prefetch Inference Harness
// Component: Per-entity state machine driven by the task-pool scheduler
//
// Description:
//   Every Resume runs one stage and returns; returning is the suspension. Each
//   stage issues the prefetch for the data the next stage will touch, so while
//   this task is parked the scheduler resumes the other slots and the lines
//   arrive in the meantime.
//
// Stage Sequence (n = accepted samples):
//   Start    resolve row via Index, stage weight row                 → Weights
//   Weights  load bias, resolve samples/results, stage result span,
//            stage sample 0                                          → Sample | Done
//   Sample   classify sample i, i++, stage sample i                  → Sample | Done
//
//   n+2 resumes, n+1 suspensions: one before any compute, one per sample.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package pipeline

import (
	"coroinfer/fixed"
	"coroinfer/prefetch"
	"coroinfer/store"
	"coroinfer/svm"
)

// Stage is the position of a Coro in its state machine.
type Stage uint8

const (
	StageStart Stage = iota
	StageWeights
	StageSample
	StageDone
)

var stageNames = [...]string{"start", "weights", "sample", "done"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "invalid"
}

// Coro is one suspendable pipeline instance. The scheduler keeps Coro values
// in its pool slots and re-initialises them in place with Init.
type Coro[P prefetch.Prefetcher] struct {
	store  *store.Store
	pf     P
	entity int
	fault  *error

	stage   Stage
	weights []fixed.Q // [bias, c0 .. cL-1]
	coeffs  []fixed.Q
	bias    fixed.Q
	samples store.SampleMatrix
	results []bool
	i       int     // next sample to classify
	cursor  uintptr // end of the most recent prefetch span
}

// Init assigns entity to c and rewinds it to StageStart. Resolution errors
// are recorded into *fault (first error wins) and finish the task.
func (c *Coro[P]) Init(s *store.Store, pf P, entity int, fault *error) {
	*c = Coro[P]{
		store:  s,
		pf:     pf,
		entity: entity,
		fault:  fault,
	}
}

// Complete reports whether c reached StageDone.
//
//go:nosplit
//go:inline
func (c *Coro[P]) Complete() bool {
	return c.stage == StageDone
}

// Stage returns the current stage.
func (c *Coro[P]) Stage() Stage { return c.stage }

// Entity returns the assigned entity index.
func (c *Coro[P]) Entity() int { return c.entity }

// Resume runs exactly one stage.
func (c *Coro[P]) Resume() {
	switch c.stage {
	case StageStart:
		row, err := c.store.ResolveRow(c.entity)
		if err != nil {
			c.fail(err)
			return
		}
		c.weights = c.store.ResolveWeights(row)
		c.cursor = prefetch.Read(c.pf, c.weights)
		c.stage = StageWeights

	case StageWeights:
		c.bias, c.coeffs = c.weights[0], c.weights[1:]
		c.samples = c.store.ResolveSamples(c.entity)
		c.results = c.store.ResolveResults(c.entity)
		c.cursor = prefetch.Write(c.pf, c.results[:c.samples.Count])
		if c.samples.Count == 0 {
			c.stage = StageDone
			return
		}
		c.cursor = prefetch.Read(c.pf, c.samples.Row(0))
		c.stage = StageSample

	case StageSample:
		m := &c.samples
		c.results[c.i] = svm.Infer(c.coeffs, m.Row(c.i), c.bias, m.RowLen)
		c.i++
		if c.i == m.Count {
			c.stage = StageDone
			return
		}
		c.cursor = prefetch.Read(c.pf, m.Row(c.i))
	}
}

func (c *Coro[P]) fail(err error) {
	if c.fault != nil && *c.fault == nil {
		*c.fault = err
	}
	c.stage = StageDone
}
