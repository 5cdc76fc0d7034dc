// pump.go
//
// Pump moves input decoding off the ingest thread. A producer goroutine,
// optionally pinned to its own CPU, drains a Source one repeat at a time and
// publishes copies of the records through a Ring; the consumer side is itself
// an ingest.Source, so the harness cannot tell a pumped source from a direct
// one.
//
// Records are recycled through a second ring running the other way, so a
// steady-state batch allocates nothing:
//
//     producer                         consumer
//     --------                         --------
//     free.Pop  ◀───────────────────── free.Push (previous record)
//     fill copy
//     full.Push ─────────────────────▶ full.Pop
//     ...
//     CmdEndOfBatch / CmdStop frame ─▶ Next returns false
//
// Each Reset asks the producer for exactly one batch. The end frame of a
// batch is always delivered, so a consumer that stopped reading early can
// resynchronise by draining to it.

package feed

import (
	"runtime"
	"sync/atomic"

	"coroinfer/control"
	"coroinfer/debug"
	"coroinfer/fixed"
	"coroinfer/ingest"
	"coroinfer/probe"
)

// Pump is an ingest.Source backed by a producer goroutine.
type Pump struct {
	src  ingest.Source
	full *Ring
	free *Ring
	cpu  int

	start  chan struct{}
	done   chan struct{}
	closed uint32

	cur     *ingest.Record // record last handed to the consumer
	inBatch bool           // a batch was requested and its end frame not yet seen
	stop    bool
}

// NewPump starts the producer. size must be a power of two; width is the
// payload capacity preallocated per record. cpu < 0 leaves the producer
// unpinned.
func NewPump(src ingest.Source, size, width, cpu int) *Pump {
	p := &Pump{
		src:   src,
		full:  NewRing(size),
		free:  NewRing(size),
		cpu:   cpu,
		start: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	recs := make([]ingest.Record, size)
	for i := range recs {
		recs[i].Payload = make([]fixed.Q, 0, width)
		p.free.Push(&recs[i])
	}
	control.ShutdownWG.Add(1)
	go p.produce()
	return p
}

// ───────────────────────────── producer ───────────────────────────────────

func (p *Pump) produce() {
	defer control.ShutdownWG.Done()
	defer close(p.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := probe.Pin(p.cpu); err != nil {
		debug.DropError("feed pin", err)
	}

	var in ingest.Record
	for range p.start {
		if atomic.LoadUint32(&p.closed) != 0 {
			return
		}
		p.src.Reset()
		for !p.stopping() && p.src.Next(&in) {
			rec := p.free.PopWait(&p.closed)
			if rec == nil {
				return
			}
			rec.CopyFrom(&in)
			p.publish(rec)
		}
		rec := p.free.PopWait(&p.closed)
		if rec == nil {
			return
		}
		if p.stopping() || p.src.StopRequested() {
			rec.SetCommand(ingest.CmdStop)
		} else {
			rec.SetCommand(ingest.CmdEndOfBatch)
		}
		p.publish(rec)
	}
}

func (p *Pump) stopping() bool {
	return control.Stopping() || atomic.LoadUint32(&p.closed) != 0
}

// publish cannot fail for long: at most size records exist, so a free record
// implies a free slot once the consumer advances.
func (p *Pump) publish(rec *ingest.Record) {
	for spins := 0; !p.full.Push(rec); spins++ {
		if atomic.LoadUint32(&p.closed) != 0 {
			return
		}
		cpuRelax(spins)
	}
}

// ───────────────────────────── consumer ───────────────────────────────────

func (p *Pump) recycle() {
	if p.cur != nil {
		p.free.Push(p.cur)
		p.cur = nil
	}
}

// Reset requests the next batch, first draining any batch left unfinished.
func (p *Pump) Reset() {
	p.recycle()
	for p.inBatch {
		rec := p.full.PopWait(&p.closed)
		if rec == nil {
			p.inBatch = false
			break
		}
		if rec.IsCommand() {
			p.inBatch = false
		}
		p.free.Push(rec)
	}
	if atomic.LoadUint32(&p.closed) != 0 {
		return
	}
	p.inBatch = true
	p.start <- struct{}{}
}

// Next hands out the next record. rec's payload aliases a pooled buffer that
// is recycled on the following call.
func (p *Pump) Next(rec *ingest.Record) bool {
	p.recycle()
	if !p.inBatch {
		return false
	}
	r := p.full.PopWait(&p.closed)
	if r == nil {
		p.inBatch = false
		return false
	}
	if r.IsCommand() {
		p.inBatch = false
		if r.Command() == ingest.CmdStop {
			p.stop = true
		}
		p.free.Push(r)
		return false
	}
	p.cur = r
	*rec = *r
	return true
}

// StopRequested reports that the last batch ended with a stop frame.
func (p *Pump) StopRequested() bool { return p.stop }

// Close stops the producer and waits for it to exit.
func (p *Pump) Close() error {
	if !atomic.CompareAndSwapUint32(&p.closed, 0, 1) {
		return nil
	}
	close(p.start)
	<-p.done
	return nil
}
