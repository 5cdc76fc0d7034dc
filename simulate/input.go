package simulate

import (
	"math/rand"

	"coroinfer/constants"
	"coroinfer/fixed"
	"coroinfer/ingest"
	"coroinfer/sensoridx"
)

// ───────────────────────────── Input ──────────────────────────────────────

// Input simulates the sensor network: every entity's ordinal k is emitted
// before any entity's ordinal k+1, and entity order is reshuffled for every
// ordinal. The amplitude and shuffle generators carry their state across
// repeats, so each repeat sees fresh values.
type Input struct {
	ids     []sensoridx.EntityID
	samples uint32
	dist    *Distribution
	shuffle *rand.Rand

	order   []int
	seq     uint32
	pos     int
	payload []fixed.Q
}

// NewInput builds a simulator over ids emitting samples ordinals of width
// items each.
func NewInput(ids []sensoridx.EntityID, samples, width int, b Bounds, seed int64) (*Input, error) {
	d, err := NewDistribution(b, seed)
	if err != nil {
		return nil, err
	}
	in := &Input{
		ids:     ids,
		samples: uint32(samples),
		dist:    d,
		shuffle: rand.New(rand.NewSource(constants.ShuffleSeed)),
		order:   make([]int, len(ids)),
		payload: make([]fixed.Q, width),
	}
	for i := range in.order {
		in.order[i] = i
	}
	in.Reset()
	return in, nil
}

func (in *Input) reshuffle() {
	in.shuffle.Shuffle(len(in.order), func(i, j int) {
		in.order[i], in.order[j] = in.order[j], in.order[i]
	})
}

// Reset restarts at ordinal zero with a new entity order.
func (in *Input) Reset() {
	in.reshuffle()
	in.seq, in.pos = 0, 0
}

// Next emits the next sample. rec.Payload aliases an internal buffer.
func (in *Input) Next(rec *ingest.Record) bool {
	if len(in.ids) == 0 {
		return false
	}
	if in.pos == len(in.ids) {
		in.pos = 0
		in.seq++
		in.reshuffle()
	}
	if in.seq >= in.samples {
		return false
	}
	e := in.order[in.pos]
	in.pos++

	in.dist.Fill(in.payload)
	rec.ID = in.ids[e]
	rec.Seq = in.seq
	rec.Payload = in.payload
	return true
}

// StopRequested is always false; the simulator never stops a run.
func (in *Input) StopRequested() bool { return false }

// ───────────────────────────── Replay ─────────────────────────────────────

// Replay is a Source over an in-memory batch. A CmdEndOfBatch frame ends the
// repeat early; a CmdStop frame ends it and sets StopRequested.
type Replay struct {
	batch []ingest.Record
	pos   int
	stop  bool
}

// NewReplay wraps batch without copying.
func NewReplay(batch []ingest.Record) *Replay {
	return &Replay{batch: batch}
}

// Reset rewinds to the first record.
func (r *Replay) Reset() { r.pos = 0 }

// Next yields the next record; Payload aliases the batch.
func (r *Replay) Next(rec *ingest.Record) bool {
	if r.pos >= len(r.batch) {
		return false
	}
	src := &r.batch[r.pos]
	r.pos++
	if src.IsCommand() {
		if src.Command() == ingest.CmdStop {
			r.stop = true
		}
		r.pos = len(r.batch)
		return false
	}
	*rec = *src
	return true
}

// StopRequested reports whether a CmdStop frame was seen.
func (r *Replay) StopRequested() bool { return r.stop }

// Len returns the batch size.
func (r *Replay) Len() int { return len(r.batch) }

// Collect drains one repeat of src into a new batch with deep-copied payloads.
func Collect(src ingest.Source) []ingest.Record {
	var out []ingest.Record
	var rec ingest.Record
	for src.Next(&rec) {
		var cp ingest.Record
		cp.CopyFrom(&rec)
		out = append(out, cp)
	}
	return out
}
