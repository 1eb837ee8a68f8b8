package mdio

import (
	"strconv"

	"example.com/mdiogate/internal/common"
)

// Frame layout thresholds, expressed as captured-bit counts. These encode the
// fixed MDIO frame shape: 32 preamble bits, start pattern, 2-bit opcode, two
// 5-bit addresses, turnaround, 16-bit data. Reads and writes disagree on the
// turnaround width, so a read frame is one bit shorter overall.
const (
	startBitCount      = 34
	opcodeBitCount     = 36
	phyAddrBitCount    = 41
	regAddrBitCount    = 46
	writeTurnaroundEnd = 47
	readTurnaroundEnd  = 48
	readFrameBits      = 63

	// From this bit index onward a read frame is slave-driven and must be
	// sampled after the edge instead of at it.
	slaveDrivenFrom = 46
)

type phase int

const (
	phasePreamble phase = iota
	phaseStart
	phaseOpcode
	phasePhyAddr
	phaseRegAddr
	phaseTurnaround
	phaseData
)

// frameAttempt decodes one candidate frame starting at a rising edge where
// the data line is high. Any structural violation discards the attempt
// silently; annotations already emitted stay in the output.
type frameAttempt struct {
	clock  []bool
	data   []bool
	timing Timing

	bitIdx [frameBits]int
	bitVal [frameBits]bool
	count  int
	phase  phase
	isRead bool
}

// run captures bits edge by edge until the frame completes or a check fails,
// appending annotations to out as phase boundaries are crossed.
func (a *frameAttempt) run(start int, out []FieldEvent) []FieldEvent {
	edges := newEdgeScanner(a.clock)
	edges.from(start)

	// Bit 0 is captured at the candidate edge itself.
	edge := start
	for {
		idx := edge
		if a.isRead && a.count >= slaveDrivenFrom {
			idx = edge + a.timing.ReadSampleOffset
			if idx >= len(a.data) {
				// Deferred sample falls past the capture; give up here and
				// keep whatever was already emitted.
				return out
			}
		}
		a.bitIdx[a.count] = idx
		a.bitVal[a.count] = a.data[idx]
		a.count++

		if !a.advance(&out) {
			return out
		}

		var ok bool
		edge, ok = edges.next()
		if !ok {
			return out
		}
	}
}

// advance applies the check keyed to the current captured-bit count. It
// returns false when the attempt ends, either completed or aborted.
func (a *frameAttempt) advance(out *[]FieldEvent) bool {
	switch {
	case a.count <= preambleBits:
		if !a.bitVal[a.count-1] {
			return false // preamble must be 32 consecutive ones
		}
		if a.count == preambleBits {
			a.phase = phaseStart
		}

	case a.count == startBitCount:
		if a.bitVal[32] || !a.bitVal[33] {
			return false // start pattern is 01
		}
		*out = append(*out,
			FieldEvent{a.bitIdx[0], a.bitIdx[31], Structural, "PREAMBLE"},
			FieldEvent{a.bitIdx[32], a.bitIdx[33], Structural, "S"},
		)
		a.phase = phaseOpcode

	case a.count == opcodeBitCount:
		var label string
		switch {
		case a.bitVal[34] && !a.bitVal[35]:
			label = "R"
			a.isRead = true
		case !a.bitVal[34] && a.bitVal[35]:
			label = "W"
		default:
			// Vendor extension opcodes pass through as their raw bits.
			label = bitString(a.bitVal[34:36])
		}
		*out = append(*out, FieldEvent{a.bitIdx[34], a.bitIdx[35], OpcodeTag, label})
		a.phase = phasePhyAddr

	case a.count == phyAddrBitCount:
		a.emitAddress(out, 36, 40)
		a.phase = phaseRegAddr

	case a.count == regAddrBitCount:
		a.emitAddress(out, 41, 45)
		a.phase = phaseTurnaround

	case !a.isRead && a.count == writeTurnaroundEnd:
		// Writes report only the first turnaround bit, as its literal value.
		*out = append(*out, FieldEvent{a.bitIdx[46], a.bitIdx[46], TurnaroundTag, bitString(a.bitVal[46:47])})
		a.phase = phaseData

	case a.isRead && a.count == readTurnaroundEnd:
		*out = append(*out, FieldEvent{a.bitIdx[46], a.bitIdx[47], TurnaroundTag, "TA"})
		a.phase = phaseData

	case a.count == a.totalBits():
		lo, hi := 48, 63
		if a.isRead {
			lo, hi = 47, 62
		}
		*out = append(*out, FieldEvent{a.bitIdx[lo], a.bitIdx[hi], DataTag, bitString(a.bitVal[lo : hi+1])})
		return false // frame complete
	}
	return true
}

func (a *frameAttempt) totalBits() int {
	if a.isRead {
		return readFrameBits
	}
	return frameBits
}

func (a *frameAttempt) emitAddress(out *[]FieldEvent, lo, hi int) {
	value, err := decodeUnsigned(a.bitVal[:a.count], lo, hi)
	if err != nil {
		common.Logf("address decode bits [%d,%d] of %d: %v", lo, hi, a.count, err)
	}
	label := "10'" + strconv.FormatUint(uint64(value), 10)
	*out = append(*out, FieldEvent{a.bitIdx[lo], a.bitIdx[hi], AddressTag, label})
}
