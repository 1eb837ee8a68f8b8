package wavegen

import "testing"

func TestBuilderGeometry(t *testing.T) {
	b := NewBuilder(40)
	b.Idle(100)
	b.Bit(true)
	b.Bit(false)

	if got := b.Edge(0); got != 120 {
		t.Fatalf("Edge(0) = %d, want 120", got)
	}
	if got := b.Edge(1); got != 160 {
		t.Fatalf("Edge(1) = %d, want 160", got)
	}
	ch := b.Channels()
	clock, data := ch[ChannelClock], ch[ChannelData]
	if len(clock) != 180 || len(data) != 180 {
		t.Fatalf("lengths = %d/%d, want 180", len(clock), len(data))
	}
	if clock[119] || !clock[120] {
		t.Fatalf("rising edge not at sample 120")
	}
	if !data[120] || data[160] {
		t.Fatalf("data values wrong at edges")
	}
}

func TestLateBitDecoysTheEdge(t *testing.T) {
	b := NewBuilder(40)
	b.Idle(100)
	b.LateBit(true)
	b.Idle(100)

	ch := b.Channels()
	data := ch[ChannelData]
	edge := b.Edge(0)
	if data[edge] {
		t.Fatalf("late bit must read inverted at the clock edge")
	}
	if !data[b.LatePos(0)] {
		t.Fatalf("late bit value missing at edge+%d", b.LateOffset())
	}
}
