// ════════════════════════════════════════════════════════════════════════════════════════════════
// RUNTIME DATA STORE
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Coroutine Prefetch Inference Harness
// Component: Per-run mutable state shared by both pipelines
//
// Description:
//   Owns the flat weight array, the per-entity sample matrices, the per-entity
//   result vectors and the per-entity sequence counters. Entity e owns weight
//   row e, sample block e and result block e; no two entities share a byte, so
//   interleaved pipeline tasks never contend.
//
// Memory Layout:
//   weights: [entity][bias, c0 .. cL-1]           (L+1 items per row)
//   samples: [entity][ordinal][c0 .. cL-1]        (S*L items per entity)
//   results: [entity][ordinal]                    (S bools per entity)
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package store

import (
	"errors"
	"fmt"

	"coroinfer/fixed"
	"coroinfer/ingest"
	"coroinfer/sensoridx"
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// ERRORS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

var (
	// ErrUnknownEntity: a record's id is not in the Index.
	ErrUnknownEntity = errors.New("store: unknown entity")

	// ErrSequenceMismatch: a record's ordinal is not the expected next one,
	// or lies beyond the sample capacity.
	ErrSequenceMismatch = errors.New("store: sequence mismatch")

	// ErrInternalIndexRange: the Index returned a row outside the arrays.
	ErrInternalIndexRange = errors.New("store: index row out of range")

	// ErrMalformedSample: a payload shorter than the coefficient count.
	ErrMalformedSample = errors.New("store: malformed sample")

	// ErrShape: inconsistent construction arguments.
	ErrShape = errors.New("store: inconsistent shape")
)

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// TYPES
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// SampleMatrix is a read-only view of one entity's accepted samples.
type SampleMatrix struct {
	Data   []fixed.Q // Count*RowLen items, row-major
	RowLen int
	Count  int
}

// Row returns sample i.
//
//go:nosplit
//go:inline
func (m SampleMatrix) Row(i int) []fixed.Q {
	off := i * m.RowLen
	return m.Data[off : off+m.RowLen : off+m.RowLen]
}

// Store holds the per-run state. Construct with New.
type Store struct {
	ids   []sensoridx.EntityID
	index sensoridx.Index

	weights  []fixed.Q
	samples  []fixed.Q
	results  []bool
	counters []uint32

	entities     int
	sampleCount  int // capacity per entity
	coefficients int // L
	rowWidth     int // L+1
}

// New wires the store around a built index. ids[e] must map to row e in
// index, and weights must hold len(ids) rows of coefficientCount+1 items.
func New(ids []sensoridx.EntityID, index sensoridx.Index, weights []fixed.Q, sampleCount, coefficientCount int) (*Store, error) {
	n := len(ids)
	if index == nil || sampleCount < 0 || coefficientCount < 0 {
		return nil, ErrShape
	}
	width := coefficientCount + 1
	if len(weights) != n*width {
		return nil, fmt.Errorf("%w: %d weights for %d rows of width %d", ErrShape, len(weights), n, width)
	}
	return &Store{
		ids:          ids,
		index:        index,
		weights:      weights,
		samples:      make([]fixed.Q, n*sampleCount*coefficientCount),
		results:      make([]bool, n*sampleCount),
		counters:     make([]uint32, n),
		entities:     n,
		sampleCount:  sampleCount,
		coefficients: coefficientCount,
		rowWidth:     width,
	}, nil
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// RESOLUTION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// ResolveRow looks entity's id up in the Index and returns its weight row.
func (s *Store) ResolveRow(entity int) (uint32, error) {
	if uint(entity) >= uint(s.entities) {
		return 0, fmt.Errorf("%w: entity %d", ErrInternalIndexRange, entity)
	}
	row, ok := s.index.Lookup(s.ids[entity])
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownEntity, s.ids[entity])
	}
	if uint64(row) >= uint64(s.entities) {
		return 0, fmt.Errorf("%w: row %d", ErrInternalIndexRange, row)
	}
	return row, nil
}

// ResolveWeights returns the weight row [bias, c0 .. cL-1]. row must come
// from ResolveRow.
//
//go:nosplit
//go:inline
func (s *Store) ResolveWeights(row uint32) []fixed.Q {
	off := int(row) * s.rowWidth
	return s.weights[off : off+s.rowWidth : off+s.rowWidth]
}

// ResolveSamples returns the samples accepted for entity in this repeat.
//
//go:nosplit
//go:inline
func (s *Store) ResolveSamples(entity int) SampleMatrix {
	block := s.sampleCount * s.coefficients
	off := entity * block
	n := int(s.counters[entity])
	return SampleMatrix{
		Data:   s.samples[off : off+n*s.coefficients : off+block],
		RowLen: s.coefficients,
		Count:  n,
	}
}

// ResolveResults returns entity's result vector, sized to the sample capacity.
//
//go:nosplit
//go:inline
func (s *Store) ResolveResults(entity int) []bool {
	off := entity * s.sampleCount
	return s.results[off : off+s.sampleCount : off+s.sampleCount]
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// INGESTION
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// Ingest validates rec against the Index and the entity's sequence counter,
// copies the payload into the next sample row and advances the counter.
// A rejected record leaves every counter untouched.
func (s *Store) Ingest(rec *ingest.Record) error {
	row, ok := s.index.Lookup(rec.ID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, rec.ID)
	}
	if uint64(row) >= uint64(s.entities) {
		return fmt.Errorf("%w: row %d", ErrInternalIndexRange, row)
	}
	e := int(row)
	want := s.counters[e]
	if rec.Seq != want || int(want) >= s.sampleCount {
		return fmt.Errorf("%w: %s got %d want %d (capacity %d)", ErrSequenceMismatch, rec.ID, rec.Seq, want, s.sampleCount)
	}
	if len(rec.Payload) < s.coefficients {
		return fmt.Errorf("%w: %d items, need %d", ErrMalformedSample, len(rec.Payload), s.coefficients)
	}
	off := (e*s.sampleCount + int(want)) * s.coefficients
	copy(s.samples[off:off+s.coefficients], rec.Payload)
	s.counters[e] = want + 1
	return nil
}

// ResetSequenceCounters zeroes every counter. Sample and result contents are
// left in place; they are overwritten by the next repeat.
func (s *Store) ResetSequenceCounters() {
	clear(s.counters)
}

// ═══════════════════════════════════════════════════════════════════════════════════════════════
// ACCESSORS
// ═══════════════════════════════════════════════════════════════════════════════════════════════

// SequenceCounter returns the next expected ordinal of entity.
func (s *Store) SequenceCounter(entity int) uint32 { return s.counters[entity] }

// EntityCount returns N.
func (s *Store) EntityCount() int { return s.entities }

// SampleCount returns the per-entity sample capacity.
func (s *Store) SampleCount() int { return s.sampleCount }

// CoefficientCount returns L.
func (s *Store) CoefficientCount() int { return s.coefficients }

// IDs returns the entity ids in entity order.
func (s *Store) IDs() []sensoridx.EntityID { return s.ids }

// Index returns the index the store resolves through.
func (s *Store) Index() sensoridx.Index { return s.index }

// Results returns the flat result array, entity-major.
func (s *Store) Results() []bool { return s.results }

// Weights returns the flat weight array.
func (s *Store) Weights() []fixed.Q { return s.weights }

// ClearResults zeroes every result vector.
func (s *Store) ClearResults() {
	clear(s.results)
}
