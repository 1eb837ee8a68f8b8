// Package wavegen synthesizes MDC/MDIO sample waveforms for fixtures, demos
// and tests. One bit occupies SamplesPerBit samples: the clock sits low for
// the first half of the cell and high for the second, so the rising edge
// lands at the cell midpoint.
package wavegen

// Channel names produced by the builder.
const (
	ChannelClock = "MDC"
	ChannelData  = "MDIO"
)

type lateFixup struct {
	pos   int
	value bool
}

// Builder accumulates bit cells into clock/data waveforms. SamplesPerBit
// should be at least 24 so slave-driven late windows stay clear of the next
// rising edge.
type Builder struct {
	samplesPerBit int
	clock         []bool
	data          []bool
	edges         []int
	fixups        []lateFixup
}

func NewBuilder(samplesPerBit int) *Builder {
	if samplesPerBit < 4 {
		samplesPerBit = 4
	}
	return &Builder{samplesPerBit: samplesPerBit}
}

// Idle appends n samples of quiet bus: clock low, data low.
func (b *Builder) Idle(n int) {
	for i := 0; i < n; i++ {
		b.clock = append(b.clock, false)
		b.data = append(b.data, false)
	}
}

// Bit appends one master-driven bit cell: the data line holds v for the whole
// cell, so sampling at the rising edge sees v.
func (b *Builder) Bit(v bool) {
	b.cell(v)
}

// LateBit appends one slave-driven bit cell. The data line holds the inverse
// of v at the rising edge; v appears only in a window around 7/8 of a bit
// period after the edge, where a driver-aware decoder must sample.
func (b *Builder) LateBit(v bool) {
	edge := b.cell(!v)
	late := edge + b.LateOffset()
	b.fixups = append(b.fixups, lateFixup{pos: late, value: v})
}

func (b *Builder) cell(v bool) int {
	start := len(b.clock)
	half := b.samplesPerBit / 2
	for i := 0; i < b.samplesPerBit; i++ {
		b.clock = append(b.clock, i >= half)
		b.data = append(b.data, v)
	}
	edge := start + half
	b.edges = append(b.edges, edge)
	return edge
}

// LateOffset is the edge-to-sample distance used for slave-driven bits,
// matching floor(samplesPerBit * 7/8).
func (b *Builder) LateOffset() int {
	return b.samplesPerBit * 7 / 8
}

// Edge returns the sample index of the rising edge of the i-th appended bit.
func (b *Builder) Edge(i int) int {
	return b.edges[i]
}

// LatePos returns the deferred sampling position of the i-th appended bit.
func (b *Builder) LatePos(i int) int {
	return b.edges[i] + b.LateOffset()
}

// BitCount returns the number of bit cells appended so far.
func (b *Builder) BitCount() int {
	return len(b.edges)
}

// Channels renders the accumulated waveform. Late windows are applied last so
// they win over the edge-time fill of the following cell.
func (b *Builder) Channels() map[string][]bool {
	clock := make([]bool, len(b.clock))
	data := make([]bool, len(b.data))
	copy(clock, b.clock)
	copy(data, b.data)
	window := b.samplesPerBit / 16
	for _, f := range b.fixups {
		for p := f.pos - window; p <= f.pos+window; p++ {
			if p >= 0 && p < len(data) {
				data[p] = f.value
			}
		}
	}
	return map[string][]bool{
		ChannelClock: clock,
		ChannelData:  data,
	}
}

// Preamble appends the standard 32-bit all-ones preamble. If breakAt is in
// [0,31], that bit is forced low to produce a malformed frame.
func (b *Builder) Preamble(breakAt int) {
	for i := 0; i < 32; i++ {
		b.Bit(i != breakAt)
	}
}

func (b *Builder) bits(value uint64, width int) {
	for i := width - 1; i >= 0; i-- {
		b.Bit(value>>uint(i)&1 != 0)
	}
}

// WriteFrame appends a complete Clause 22 write frame: preamble, start 01,
// opcode 01, addresses, turnaround 10, 16 data bits. Everything is
// master-driven.
func (b *Builder) WriteFrame(phy, reg uint8, value uint16) {
	b.Preamble(-1)
	b.Bit(false)
	b.Bit(true)
	b.Bit(false)
	b.Bit(true)
	b.bits(uint64(phy), 5)
	b.bits(uint64(reg), 5)
	b.Bit(true)
	b.Bit(false)
	b.bits(uint64(value), 16)
}

// ReadFrame appends a complete Clause 22 read frame: preamble, start 01,
// opcode 10, addresses, then 17 slave-driven bits (one turnaround bit and the
// 16 data bits, the first of which doubles as the second turnaround bit).
// Slave bits carry decoy values at the clock edge so only offset-aware
// sampling recovers value.
func (b *Builder) ReadFrame(phy, reg uint8, value uint16) {
	b.Preamble(-1)
	b.Bit(false)
	b.Bit(true)
	b.Bit(true)
	b.Bit(false)
	b.bits(uint64(phy), 5)
	b.bits(uint64(reg), 5)
	b.LateBit(true)
	for i := 15; i >= 0; i-- {
		b.LateBit(value>>uint(i)&1 != 0)
	}
}
