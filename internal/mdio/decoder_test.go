package mdio

import (
	"errors"
	"reflect"
	"testing"

	"example.com/mdiogate/internal/wavegen"
)

const testSamplePeriod = 10e-9 // 40 samples per minimum-period bit

func decodeOrFail(t *testing.T, channels map[string][]bool) []FieldEvent {
	t.Helper()
	events, err := Decode(channels, nil, testSamplePeriod)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	return events
}

func TestDecodeWriteFrame(t *testing.T) {
	b := wavegen.NewBuilder(40)
	b.Idle(100)
	b.WriteFrame(3, 7, 0xABCD)
	b.Idle(100)

	events := decodeOrFail(t, b.Channels())

	want := []FieldEvent{
		{b.Edge(0), b.Edge(31), Structural, "PREAMBLE"},
		{b.Edge(32), b.Edge(33), Structural, "S"},
		{b.Edge(34), b.Edge(35), OpcodeTag, "W"},
		{b.Edge(36), b.Edge(40), AddressTag, "10'3"},
		{b.Edge(41), b.Edge(45), AddressTag, "10'7"},
		{b.Edge(46), b.Edge(46), TurnaroundTag, "1"},
		{b.Edge(48), b.Edge(63), DataTag, "1010101111001101"},
	}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("events = %+v\nwant %+v", events, want)
	}
}

func TestDecodeReadFrameUsesOffsetSampling(t *testing.T) {
	b := wavegen.NewBuilder(40)
	b.Idle(100)
	b.ReadFrame(5, 9, 0x1234)
	b.Idle(100)

	events := decodeOrFail(t, b.Channels())

	// The builder places decoy values at every slave-driven clock edge, so
	// these labels only come out right when bits 46.. are sampled at
	// edge+ReadSampleOffset.
	want := []FieldEvent{
		{b.Edge(0), b.Edge(31), Structural, "PREAMBLE"},
		{b.Edge(32), b.Edge(33), Structural, "S"},
		{b.Edge(34), b.Edge(35), OpcodeTag, "R"},
		{b.Edge(36), b.Edge(40), AddressTag, "10'5"},
		{b.Edge(41), b.Edge(45), AddressTag, "10'9"},
		{b.LatePos(46), b.LatePos(47), TurnaroundTag, "TA"},
		{b.LatePos(47), b.LatePos(62), DataTag, "0001001000110100"},
	}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("events = %+v\nwant %+v", events, want)
	}
}

func TestDecodeVendorOpcode(t *testing.T) {
	b := wavegen.NewBuilder(40)
	b.Idle(100)
	b.Preamble(-1)
	b.Bit(false) // start
	b.Bit(true)
	b.Bit(true) // opcode 11: neither read nor write
	b.Bit(true)
	for i := 0; i < 5; i++ { // phy addr 0
		b.Bit(false)
	}
	for i := 0; i < 5; i++ { // reg addr 0
		b.Bit(false)
	}
	b.Bit(true) // turnaround
	b.Bit(false)
	for i := 0; i < 16; i++ { // data, all zero
		b.Bit(false)
	}
	b.Idle(100)

	events := decodeOrFail(t, b.Channels())
	if len(events) != 7 {
		t.Fatalf("got %d events, want 7", len(events))
	}
	if events[2].Category != OpcodeTag || events[2].Label != "11" {
		t.Fatalf("opcode event = %+v, want literal label 11", events[2])
	}
	// Unknown opcodes fall back to the write layout: one turnaround bit,
	// data over bits 48..63.
	if events[5].Label != "1" {
		t.Fatalf("turnaround label = %q, want %q", events[5].Label, "1")
	}
	if events[6].StartSample != b.Edge(48) || events[6].EndSample != b.Edge(63) {
		t.Fatalf("data span = [%d,%d], want [%d,%d]",
			events[6].StartSample, events[6].EndSample, b.Edge(48), b.Edge(63))
	}
}

func TestDecodePreambleBreakResync(t *testing.T) {
	b := wavegen.NewBuilder(40)
	b.Idle(50)
	for i := 0; i < 10; i++ { // aborted preamble
		b.Bit(true)
	}
	b.Bit(false)
	b.Idle(120)
	b.WriteFrame(1, 2, 0x00FF)
	b.Idle(100)

	events := decodeOrFail(t, b.Channels())
	if len(events) != 7 {
		t.Fatalf("got %d events, want 7 (broken candidate must stay silent)", len(events))
	}
	if events[0].Label != "PREAMBLE" || events[0].StartSample != b.Edge(11) {
		t.Fatalf("first event = %+v, want PREAMBLE starting at %d", events[0], b.Edge(11))
	}
	if events[6].Label != "0000000011111111" {
		t.Fatalf("data label = %q", events[6].Label)
	}
}

func TestDecodeReadOffsetPastBuffer(t *testing.T) {
	b := wavegen.NewBuilder(40)
	b.Idle(700)
	b.Preamble(-1)
	b.Bit(false) // start
	b.Bit(true)
	b.Bit(true) // opcode R
	b.Bit(false)
	for i := 0; i < 5; i++ { // phy addr 0
		b.Bit(false)
	}
	for i := 0; i < 5; i++ { // reg addr 0
		b.Bit(false)
	}
	// Bit 46 gets a rising edge, but its deferred sample position lies past
	// the end of the capture: the attempt must abort and keep the five
	// header events.
	b.Bit(true)

	events := decodeOrFail(t, b.Channels())
	if len(events) != 5 {
		t.Fatalf("got %d events, want 5", len(events))
	}
	for _, ev := range events {
		if ev.Category == TurnaroundTag || ev.Category == DataTag {
			t.Fatalf("unexpected %s event after truncated read: %+v", ev.Category, ev)
		}
	}
}

func TestDecodePreflightSamplePeriodTooLarge(t *testing.T) {
	channels := map[string][]bool{
		ChannelClock: make([]bool, 1000),
		ChannelData:  make([]bool, 1000),
	}
	events, err := Decode(channels, nil, 25e-9)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	want := []FieldEvent{{400, 700, Diagnostic, "sample period too large"}}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("events = %+v, want %+v", events, want)
	}
}

func TestDecodePreflightBufferTooShort(t *testing.T) {
	// 64 bits at 39 samples each need 2496 samples; 1000 cannot hold a frame.
	channels := map[string][]bool{
		ChannelClock: make([]bool, 1000),
		ChannelData:  make([]bool, 1000),
	}
	events, err := Decode(channels, nil, testSamplePeriod)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	want := []FieldEvent{{100, 900, Diagnostic, "Viewport fast decode not supported"}}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("events = %+v, want %+v", events, want)
	}
}

func TestDecodeIsPure(t *testing.T) {
	b := wavegen.NewBuilder(40)
	b.Idle(100)
	b.WriteFrame(3, 7, 0xABCD)
	b.ReadFrame(5, 9, 0x1234)
	b.Idle(100)
	channels := b.Channels()

	first := decodeOrFail(t, channels)
	second := decodeOrFail(t, channels)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated decode of identical input differs")
	}
}

func TestDecodeInputValidation(t *testing.T) {
	clock := make([]bool, 10)
	data := make([]bool, 10)

	if _, err := Decode(map[string][]bool{ChannelData: data}, nil, testSamplePeriod); !errors.Is(err, ErrMissingChannel) {
		t.Fatalf("missing clock: err = %v", err)
	}
	if _, err := Decode(map[string][]bool{ChannelClock: clock}, nil, testSamplePeriod); !errors.Is(err, ErrMissingChannel) {
		t.Fatalf("missing data: err = %v", err)
	}
	if _, err := Decode(map[string][]bool{ChannelClock: clock, ChannelData: data[:5]}, nil, testSamplePeriod); !errors.Is(err, ErrChannelLength) {
		t.Fatalf("length mismatch: err = %v", err)
	}
	if _, err := Decode(map[string][]bool{ChannelClock: clock, ChannelData: data}, nil, 0); !errors.Is(err, ErrSamplePeriod) {
		t.Fatalf("zero sample period: err = %v", err)
	}
}
