// ring.go
//
// Lock-free single-producer/single-consumer ring of sample records. Producer
// and consumer cursors sit on separate cache lines, and each slot carries a
// sequence stamp so Push/Pop need no shared counter: the stamp alone tells
// the consumer a slot is published and the producer that it was reclaimed.

package feed

import (
	"sync/atomic"

	"coroinfer/ingest"
)

// slot couples a record pointer with its sequence stamp.
type slot struct {
	seq atomic.Uint64
	rec *ingest.Record
}

// Ring is a fixed-capacity circular buffer for one producer and one consumer.
type Ring struct {
	_    [64]byte // consumer head isolated on its own cache line
	head uint64
	//lint:ignore U1000 padding to keep head & tail on different cache lines
	_pad1 [56]byte
	tail  uint64
	//lint:ignore U1000 padding to keep hot fields from colliding with metadata
	_pad2 [56]byte
	mask  uint64
	buf   []slot
}

// NewRing allocates a ring whose size must be a power of two; otherwise it
// panics so that the bit-masking arithmetic stays valid.
func NewRing(size int) *Ring {
	if size <= 0 || size&(size-1) != 0 {
		panic("feed: ring size must be >0 and a power of two")
	}
	r := &Ring{
		mask: uint64(size - 1),
		buf:  make([]slot, size),
	}
	for i := range r.buf {
		r.buf[i].seq.Store(uint64(i))
	}
	return r
}

// Cap returns the slot count.
func (r *Ring) Cap() int { return len(r.buf) }

// Push enqueues rec, returning false if the ring is full. Producer side only.
//
//go:nosplit
func (r *Ring) Push(rec *ingest.Record) bool {
	t := r.tail
	s := &r.buf[t&r.mask]
	if s.seq.Load() != t {
		return false // consumer has not yet reclaimed the slot
	}
	s.rec = rec
	s.seq.Store(t + 1)
	r.tail = t + 1
	return true
}

// Pop dequeues one record or nil if the ring is empty. Consumer side only.
//
//go:nosplit
func (r *Ring) Pop() *ingest.Record {
	h := r.head
	s := &r.buf[h&r.mask]
	if s.seq.Load() != h+1 {
		return nil // producer has not yet published to the slot
	}
	rec := s.rec
	s.rec = nil
	s.seq.Store(h + uint64(len(r.buf)))
	r.head = h + 1
	return rec
}

// PopWait spins until a record is available or *stop becomes non-zero, in
// which case it returns nil.
func (r *Ring) PopWait(stop *uint32) *ingest.Record {
	for spins := 0; ; spins++ {
		if rec := r.Pop(); rec != nil {
			return rec
		}
		if stop != nil && atomic.LoadUint32(stop) != 0 {
			return nil
		}
		cpuRelax(spins)
	}
}
