// ════════════════════════════════════════════════════════════════════════════════════════════════
// Q3.13 FIXED-POINT SCALAR
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Coroutine Prefetch Inference Harness
// Component: Numeric representation of weights and samples
//
// Description:
//   Signed 16-bit storage with 13 fractional bits: range [-4, 4), step 2^-13.
//   Products use a 32-bit intermediate with round-to-nearest; every result
//   saturates at the int16 bounds instead of wrapping, so overflow is defined
//   and identical in every pipeline.
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package fixed

import (
	"math"

	"coroinfer/constants"
)

// Q is a Q3.13 fixed-point value.
type Q int16

const (
	// One is 1.0.
	One Q = constants.FixedOne

	// Max and Min are the saturation bounds.
	Max Q = constants.FixedMax
	Min Q = constants.FixedMin

	// halfScale divides the 32-bit product so one rounding bit survives.
	halfScale = constants.FixedOne / 2
)

// saturate clamps a 32-bit intermediate into Q.
//
//go:nosplit
//go:inline
func saturate(v int32) Q {
	if v > constants.FixedMax {
		return Max
	}
	if v < constants.FixedMin {
		return Min
	}
	return Q(v)
}

// FromFloat converts f to Q, rounding half away from zero and saturating.
// NaN maps to zero.
func FromFloat(f float32) Q {
	if f != f {
		return 0
	}
	v := math.Round(float64(f) * constants.FixedOne)
	if v > constants.FixedMax {
		return Max
	}
	if v < constants.FixedMin {
		return Min
	}
	return Q(v)
}

// Float converts q back to float32.
//
//go:nosplit
//go:inline
func (q Q) Float() float32 {
	return float32(q) / constants.FixedOne
}

// Raw exposes the storage integer.
//
//go:nosplit
//go:inline
func (q Q) Raw() int16 {
	return int16(q)
}

// Mul returns q*r. The 32-bit product is scaled down to one extra bit, and
// that bit is added back after halving, which rounds to nearest with ties
// away from zero.
//
//go:nosplit
//go:inline
func (q Q) Mul(r Q) Q {
	v := int32(q) * int32(r) / halfScale
	return saturate(v/2 + v%2)
}

// AddSat returns q+r clamped to [Min, Max].
//
//go:nosplit
//go:inline
func (q Q) AddSat(r Q) Q {
	return saturate(int32(q) + int32(r))
}

// FromFloats converts a slice in one pass.
func FromFloats(fs []float32) []Q {
	out := make([]Q, len(fs))
	for i, f := range fs {
		out[i] = FromFloat(f)
	}
	return out
}

// Floats converts a slice back to float32.
func Floats(qs []Q) []float32 {
	out := make([]float32, len(qs))
	for i, q := range qs {
		out[i] = q.Float()
	}
	return out
}
