package mdio

const (
	// MDIO's defined maximum clock rate is 2.5 MHz, so a conforming bus
	// never completes a bit period in under 400 ns.
	minimumClockPeriod = 400e-9

	// Captures sampled slower than this cannot resolve setup/hold windows
	// reliably and are rejected up front.
	maximumSamplePeriod = 20e-9

	frameBits    = 64
	preambleBits = 32
)

// Timing holds the sample-domain geometry derived from a capture's sample
// period. Values are recomputed for every decode call; nothing is cached.
type Timing struct {
	// BitSampleLength is the number of samples spanned by one bit period at
	// the minimum clock period, less one.
	BitSampleLength int

	// ReadSampleOffset is the distance, in samples, from a rising clock edge
	// to the point where slave-driven bits are sampled. The slave's output is
	// only guaranteed 0-300 ns after the edge, so ~350 ns (7/8 of the minimum
	// clock period) is the empirically safe sampling point.
	ReadSampleOffset int
}

// DeriveTiming computes the decode geometry for the given sample period in
// seconds per sample.
func DeriveTiming(samplePeriod float64) Timing {
	samplesPerBit := minimumClockPeriod / samplePeriod
	return Timing{
		BitSampleLength:  int(samplesPerBit) - 1,
		ReadSampleOffset: int(samplesPerBit * 7 / 8),
	}
}
