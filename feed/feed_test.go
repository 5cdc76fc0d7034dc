package feed

import (
	"runtime"
	"testing"
	"time"

	"coroinfer/control"
	"coroinfer/fixed"
	"coroinfer/ingest"
	"coroinfer/simulate"
)

// -----------------------------------------------------------------------------
// ░░ Ring ░░
// -----------------------------------------------------------------------------

func TestNewRingPanicsOnBadSize(t *testing.T) {
	for _, sz := range []int{0, 3, 1000} {
		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("NewRing(%d) should panic", sz)
				}
			}()
			_ = NewRing(sz)
		}()
	}
}

func TestPushPopRoundTrip(t *testing.T) {
	r := NewRing(8)
	rec := &ingest.Record{Seq: 3}
	if !r.Push(rec) {
		t.Fatal("first push must succeed")
	}
	if got := r.Pop(); got != rec {
		t.Fatalf("got %p, want %p", got, rec)
	}
	if r.Pop() != nil {
		t.Fatal("ring should now be empty")
	}
}

func TestPushFailsWhenFull(t *testing.T) {
	r := NewRing(4)
	rec := &ingest.Record{}
	for i := 0; i < 4; i++ {
		if !r.Push(rec) {
			t.Fatalf("push %d unexpectedly failed", i)
		}
	}
	if r.Push(rec) {
		t.Fatal("push into full ring should return false")
	}
	_ = r.Pop()
	if !r.Push(rec) {
		t.Fatal("push after pop must succeed")
	}
}

func TestPopWaitStops(t *testing.T) {
	r := NewRing(2)
	stop := uint32(1)
	if r.PopWait(&stop) != nil {
		t.Fatal("PopWait must give up once stop is set")
	}
}

func TestRingAcrossGoroutines(t *testing.T) {
	const n = 100000
	r := NewRing(64)
	recs := make([]ingest.Record, n)
	go func() {
		for i := range recs {
			recs[i].Seq = uint32(i)
			for !r.Push(&recs[i]) {
				runtime.Gosched()
			}
		}
	}()
	for i := 0; i < n; i++ {
		rec := r.PopWait(nil)
		if rec.Seq != uint32(i) {
			t.Fatalf("pop %d got seq %d", i, rec.Seq)
		}
	}
}

// -----------------------------------------------------------------------------
// ░░ Pump ░░
// -----------------------------------------------------------------------------

var unit = simulate.Bounds{Min: -1, Max: 1, Granularity: 1024}

func TestPumpMatchesDirectSource(t *testing.T) {
	ids, _ := simulate.IDs(37, 1)
	direct, _ := simulate.NewInput(ids, 5, 7, unit, 5489)
	pumped, _ := simulate.NewInput(ids, 5, 7, unit, 5489)
	p := NewPump(pumped, 16, 7, -1)
	defer p.Close()

	for repeat := 0; repeat < 3; repeat++ {
		direct.Reset()
		want := simulate.Collect(direct)
		p.Reset()
		got := simulate.Collect(p)
		if len(got) != len(want) {
			t.Fatalf("repeat %d: %d records, want %d", repeat, len(got), len(want))
		}
		for i := range want {
			if got[i].ID != want[i].ID || got[i].Seq != want[i].Seq {
				t.Fatalf("repeat %d record %d header mismatch", repeat, i)
			}
			for k := range want[i].Payload {
				if got[i].Payload[k] != want[i].Payload[k] {
					t.Fatalf("repeat %d record %d payload mismatch", repeat, i)
				}
			}
		}
		if p.StopRequested() {
			t.Fatal("no stop requested")
		}
	}
}

func TestPumpResyncAfterPartialRead(t *testing.T) {
	batch := make([]ingest.Record, 50)
	for i := range batch {
		batch[i] = ingest.Record{Seq: uint32(i), Payload: []fixed.Q{fixed.Q(i)}}
	}
	p := NewPump(simulate.NewReplay(batch), 8, 1, -1)
	defer p.Close()

	p.Reset()
	var rec ingest.Record
	for i := 0; i < 10; i++ {
		if !p.Next(&rec) {
			t.Fatal("early end")
		}
	}
	p.Reset()
	if !p.Next(&rec) || rec.Seq != 0 {
		t.Fatalf("after resync first record seq = %d", rec.Seq)
	}
}

func TestPumpStopFrame(t *testing.T) {
	batch := make([]ingest.Record, 3)
	batch[0].Payload = []fixed.Q{1}
	batch[1].SetCommand(ingest.CmdStop)
	p := NewPump(simulate.NewReplay(batch), 4, 1, -1)
	defer p.Close()
	p.Reset()
	if got := simulate.Collect(p); len(got) != 1 {
		t.Fatalf("%d records before stop", len(got))
	}
	if !p.StopRequested() {
		t.Fatal("stop frame must propagate through the pump")
	}
}

func TestPumpHonoursShutdown(t *testing.T) {
	defer control.Reset()
	ids, _ := simulate.IDs(4, 2)
	in, _ := simulate.NewInput(ids, 1000, 2, unit, 1)
	p := NewPump(in, 4, 2, -1)
	defer p.Close()
	control.Shutdown()
	p.Reset()
	done := make(chan int)
	go func() { done <- len(simulate.Collect(p)) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop")
	}
	if !p.StopRequested() {
		t.Fatal("shutdown must end the batch with a stop frame")
	}
}

func TestCloseIdempotent(t *testing.T) {
	p := NewPump(simulate.NewReplay(nil), 2, 1, -1)
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	var rec ingest.Record
	p.Reset()
	if p.Next(&rec) {
		t.Fatal("closed pump yields nothing")
	}
}

// -----------------------------------------------------------------------------
// ░░ Benchmarks ░░
// -----------------------------------------------------------------------------

func BenchmarkRingPushPop(b *testing.B) {
	r := NewRing(1024)
	rec := &ingest.Record{}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Push(rec)
		_ = r.Pop()
	}
}
