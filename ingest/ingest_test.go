package ingest

import (
	"testing"

	"coroinfer/constants"
	"coroinfer/fixed"
)

func TestCommandFrames(t *testing.T) {
	var r Record
	if r.IsCommand() || r.Command() != 0 {
		t.Fatal("zero record is a sample")
	}
	r.SetCommand(CmdEndOfBatch)
	if !r.IsCommand() || r.Seq != constants.CommandSeq {
		t.Fatal("SetCommand must mark the frame")
	}
	if r.Command() != CmdEndOfBatch {
		t.Fatalf("Command() = %d", r.Command())
	}
}

func TestSetCommandReusesPayload(t *testing.T) {
	buf := make([]fixed.Q, 8)
	r := Record{Payload: buf}
	r.SetCommand(CmdStop)
	if &r.Payload[0] != &buf[0] || len(r.Payload) != 1 {
		t.Fatal("payload storage must be reused")
	}
}

func TestCopyFromIsDeep(t *testing.T) {
	src := Record{Seq: 4, Payload: []fixed.Q{1, 2, 3}}
	src.ID[0] = 9
	var dst Record
	dst.CopyFrom(&src)
	src.Payload[0] = 100
	if dst.Seq != 4 || dst.ID[0] != 9 || dst.Payload[0] != 1 || len(dst.Payload) != 3 {
		t.Fatalf("CopyFrom = %+v", dst)
	}
}
