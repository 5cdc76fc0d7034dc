// Package simulate produces the synthetic data the harness runs on when no
// recorded data is configured: entity ids, weight rows and sample batches.
//
// Every generator takes an explicit seed, so two runs with the same settings
// produce the same ids, weights and input stream.
package simulate

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"coroinfer/fixed"
	"coroinfer/sensoridx"
)

// ErrBounds is returned for an invalid Bounds value.
var ErrBounds = errors.New("simulate: invalid bounds")

// Bounds describes a uniform grid of Granularity values starting at Min and
// stepping by (Max-Min)/Granularity.
type Bounds struct {
	Min         float32 `yaml:"min" mapstructure:"min"`
	Max         float32 `yaml:"max" mapstructure:"max"`
	Granularity uint32  `yaml:"granularity" mapstructure:"granularity"`
}

// Valid reports Granularity != 0 and Max >= Min.
func (b Bounds) Valid() bool {
	return b.Granularity != 0 && b.Max >= b.Min
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%g to %g / %d]", b.Min, b.Max, b.Granularity)
}

// Distribution draws grid values from Bounds and converts them to fixed.Q.
type Distribution struct {
	b    Bounds
	step float32
	r    *rand.Rand
}

// NewDistribution seeds a distribution over b.
func NewDistribution(b Bounds, seed int64) (*Distribution, error) {
	if !b.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrBounds, b)
	}
	return &Distribution{
		b:    b,
		step: (b.Max - b.Min) / float32(b.Granularity),
		r:    rand.New(rand.NewSource(seed)),
	}, nil
}

// Next returns Min + k*step for a uniform k in [0, Granularity).
func (d *Distribution) Next() fixed.Q {
	k := d.r.Int63n(int64(d.b.Granularity))
	return fixed.FromFloat(d.b.Min + float32(k)*d.step)
}

// Fill overwrites dst with draws.
func (d *Distribution) Fill(dst []fixed.Q) {
	for i := range dst {
		dst[i] = d.Next()
	}
}

// IDs returns n unique version-4 UUIDs drawn from a reader seeded with seed.
func IDs(n int, seed int64) ([]sensoridx.EntityID, error) {
	src := rand.New(rand.NewSource(seed))
	seen := make(map[sensoridx.EntityID]struct{}, n)
	ids := make([]sensoridx.EntityID, 0, n)
	for len(ids) < n {
		u, err := uuid.NewRandomFromReader(src)
		if err != nil {
			return nil, err
		}
		id := sensoridx.EntityID(u)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// Weights returns n weight rows of width items, laid out flat.
func Weights(n, width int, b Bounds, seed int64) ([]fixed.Q, error) {
	d, err := NewDistribution(b, seed)
	if err != nil {
		return nil, err
	}
	w := make([]fixed.Q, n*width)
	d.Fill(w)
	return w, nil
}
