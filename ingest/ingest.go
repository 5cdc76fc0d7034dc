// Package ingest defines the sample record exchanged between input sources
// and the Runtime Data Store, plus the pull-style source surface.
//
// A record is one decoded datagram: the entity id, the sample ordinal and the
// fixed-length payload. A record whose ordinal is constants.CommandSeq is a
// command frame; Payload[0] then carries the command id.
package ingest

import (
	"coroinfer/constants"
	"coroinfer/fixed"
	"coroinfer/sensoridx"
)

// Record is one sample (or command frame). Payload is owned by the source and
// is only valid until the next call to Next.
type Record struct {
	ID      sensoridx.EntityID
	Seq     uint32
	Payload []fixed.Q
}

// Source delivers the records of one repeat.
type Source interface {
	// Reset rewinds to ordinal zero for the next repeat.
	Reset()

	// Next fills rec and reports whether a record was produced. False means
	// the current repeat's input is exhausted.
	Next(rec *Record) bool

	// StopRequested reports that the source saw a stop command.
	StopRequested() bool
}

// Command ids carried in Payload[0] of a command frame.
const (
	CmdEndOfBatch fixed.Q = 1
	CmdStop       fixed.Q = 2
)

// IsCommand reports whether r is a command frame.
//
//go:nosplit
//go:inline
func (r *Record) IsCommand() bool {
	return r.Seq == constants.CommandSeq
}

// Command returns the command id of a command frame, or 0.
func (r *Record) Command() fixed.Q {
	if !r.IsCommand() || len(r.Payload) == 0 {
		return 0
	}
	return r.Payload[0]
}

// SetCommand turns r into a command frame carrying cmd. The payload buffer is
// reused when it has room.
func (r *Record) SetCommand(cmd fixed.Q) {
	r.ID = sensoridx.EntityID{}
	r.Seq = constants.CommandSeq
	if cap(r.Payload) == 0 {
		r.Payload = make([]fixed.Q, 1)
	}
	r.Payload = r.Payload[:1]
	r.Payload[0] = cmd
}

// CopyFrom deep-copies src into r, reusing r's payload storage.
func (r *Record) CopyFrom(src *Record) {
	r.ID = src.ID
	r.Seq = src.Seq
	r.Payload = append(r.Payload[:0], src.Payload...)
}
