package simulate

import (
	"errors"
	"testing"

	"coroinfer/fixed"
	"coroinfer/ingest"
	"coroinfer/sensoridx"
)

var unit = Bounds{Min: -1, Max: 1, Granularity: 1024}

// -----------------------------------------------------------------------------
// ░░ Bounds & distribution ░░
// -----------------------------------------------------------------------------

func TestBoundsValid(t *testing.T) {
	cases := []struct {
		b    Bounds
		want bool
	}{
		{unit, true},
		{Bounds{Min: 1, Max: 1, Granularity: 1}, true},
		{Bounds{Min: 1, Max: 0, Granularity: 4}, false},
		{Bounds{Min: 0, Max: 1}, false},
	}
	for _, c := range cases {
		if c.b.Valid() != c.want {
			t.Fatalf("%s.Valid() = %v", c.b, !c.want)
		}
	}
	if _, err := NewDistribution(Bounds{}, 1); !errors.Is(err, ErrBounds) {
		t.Fatalf("expected ErrBounds, got %v", err)
	}
}

func TestDistributionStaysOnGrid(t *testing.T) {
	b := Bounds{Min: -0.5, Max: 0.5, Granularity: 4}
	d, _ := NewDistribution(b, 7)
	allowed := map[fixed.Q]bool{}
	for k := 0; k < 4; k++ {
		allowed[fixed.FromFloat(-0.5+float32(k)*0.25)] = true
	}
	hit := map[fixed.Q]bool{}
	for i := 0; i < 1000; i++ {
		v := d.Next()
		if !allowed[v] {
			t.Fatalf("value %v off the grid", v.Float())
		}
		hit[v] = true
	}
	if len(hit) != 4 {
		t.Fatalf("hit %d of 4 grid values", len(hit))
	}
}

func TestWeightsDeterministic(t *testing.T) {
	a, err := Weights(10, 5, unit, 5432)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := Weights(10, 5, unit, 5432)
	if len(a) != 50 {
		t.Fatalf("len = %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same seed must give same weights")
		}
	}
}

// -----------------------------------------------------------------------------
// ░░ Identifiers ░░
// -----------------------------------------------------------------------------

func TestIDsUniqueAndVersion4(t *testing.T) {
	ids, err := IDs(2000, 1234)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[sensoridx.EntityID]bool{}
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
		if id[6]>>4 != 4 || id[8]&0xC0 != 0x80 {
			t.Fatalf("%s is not an RFC 4122 v4 uuid", id)
		}
	}
	again, _ := IDs(2000, 1234)
	if again[1999] != ids[1999] {
		t.Fatal("same seed must give same ids")
	}
}

// -----------------------------------------------------------------------------
// ░░ Input simulator ░░
// -----------------------------------------------------------------------------

func TestInputOrdinalMajor(t *testing.T) {
	ids, _ := IDs(13, 1)
	in, err := NewInput(ids, 4, 6, unit, 5489)
	if err != nil {
		t.Fatal(err)
	}
	for repeat := 0; repeat < 2; repeat++ {
		in.Reset()
		counts := map[sensoridx.EntityID]uint32{}
		var rec ingest.Record
		n := 0
		for in.Next(&rec) {
			if rec.Seq != uint32(n/len(ids)) {
				t.Fatalf("record %d has ordinal %d", n, rec.Seq)
			}
			if counts[rec.ID] != rec.Seq {
				t.Fatalf("entity %s ordinal %d, expected %d", rec.ID, rec.Seq, counts[rec.ID])
			}
			counts[rec.ID]++
			if len(rec.Payload) != 6 {
				t.Fatalf("payload len %d", len(rec.Payload))
			}
			n++
		}
		if n != 13*4 {
			t.Fatalf("repeat %d emitted %d records", repeat, n)
		}
		if in.Next(&rec) {
			t.Fatal("exhausted input must stay exhausted until Reset")
		}
	}
	if in.StopRequested() {
		t.Fatal("simulator never requests stop")
	}
}

func TestInputEmpty(t *testing.T) {
	in, _ := NewInput(nil, 3, 2, unit, 1)
	var rec ingest.Record
	if in.Next(&rec) {
		t.Fatal("no entities, no records")
	}
}

// -----------------------------------------------------------------------------
// ░░ Replay ░░
// -----------------------------------------------------------------------------

func TestReplayAndCollect(t *testing.T) {
	ids, _ := IDs(3, 2)
	in, _ := NewInput(ids, 2, 4, unit, 9)
	batch := Collect(in)
	if len(batch) != 6 {
		t.Fatalf("collected %d", len(batch))
	}
	if &batch[0].Payload[0] == &batch[1].Payload[0] {
		t.Fatal("Collect must deep-copy payloads")
	}

	r := NewReplay(batch)
	for pass := 0; pass < 2; pass++ {
		r.Reset()
		got := Collect(r)
		if len(got) != len(batch) || got[5].Seq != batch[5].Seq || got[5].Payload[3] != batch[5].Payload[3] {
			t.Fatalf("pass %d replay mismatch", pass)
		}
	}
}

func TestReplayCommands(t *testing.T) {
	batch := make([]ingest.Record, 4)
	batch[0].Payload = []fixed.Q{1}
	batch[1].SetCommand(ingest.CmdEndOfBatch)
	r := NewReplay(batch)
	if got := Collect(r); len(got) != 1 || r.StopRequested() {
		t.Fatalf("end of batch: %d records, stop=%v", len(got), r.StopRequested())
	}

	batch[1].SetCommand(ingest.CmdStop)
	r = NewReplay(batch)
	_ = Collect(r)
	if !r.StopRequested() {
		t.Fatal("stop frame must set StopRequested")
	}
}
