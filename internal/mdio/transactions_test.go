package mdio

import (
	"testing"

	"example.com/mdiogate/internal/wavegen"
)

func TestTransactionsGroupsFrames(t *testing.T) {
	b := wavegen.NewBuilder(40)
	b.Idle(100)
	b.WriteFrame(3, 7, 0xABCD)
	b.Idle(60)
	b.ReadFrame(5, 9, 0x1234)
	b.Idle(100)

	events := decodeOrFail(t, b.Channels())
	txs := Transactions(events)
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}

	w := txs[0]
	if w.Opcode != "W" || w.IsRead || w.PhyAddr != "10'3" || w.RegAddr != "10'7" || !w.Complete {
		t.Fatalf("write transaction = %+v", w)
	}
	if w.Data != "1010101111001101" {
		t.Fatalf("write data = %q", w.Data)
	}

	r := txs[1]
	if r.Opcode != "R" || !r.IsRead || r.PhyAddr != "10'5" || r.RegAddr != "10'9" || !r.Complete {
		t.Fatalf("read transaction = %+v", r)
	}
	if r.Turnaround != "TA" || r.Data != "0001001000110100" {
		t.Fatalf("read fields = %+v", r)
	}
	if w.EndSample >= r.StartSample {
		t.Fatalf("transactions overlap: write ends %d, read starts %d", w.EndSample, r.StartSample)
	}
}

func TestTransactionsIncompleteAttempt(t *testing.T) {
	events := []FieldEvent{
		{100, 200, Structural, "PREAMBLE"},
		{210, 220, Structural, "S"},
		{230, 240, OpcodeTag, "R"},
	}
	txs := Transactions(events)
	if len(txs) != 1 {
		t.Fatalf("got %d transactions, want 1", len(txs))
	}
	if txs[0].Complete {
		t.Fatalf("attempt without data must be incomplete: %+v", txs[0])
	}
	if txs[0].EndSample != 240 {
		t.Fatalf("end sample = %d, want 240", txs[0].EndSample)
	}
}
