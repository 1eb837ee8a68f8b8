package mdio

import (
	"errors"
	"fmt"
)

// Channel names required in the input map.
const (
	ChannelClock = "MDC"
	ChannelData  = "MDIO"
)

var (
	ErrMissingChannel = errors.New("required channel missing")
	ErrChannelLength  = errors.New("MDC and MDIO sample counts differ")
	ErrSamplePeriod   = errors.New("sample period must be positive")
)

// Decode scans one capture for MDIO frames and returns the annotations in
// emission order. The channels map must contain "MDC" and "MDIO" entries of
// equal length; params is accepted for interface compatibility and unused.
//
// Decode is a pure function of its inputs: it keeps no state between calls
// and is safe to invoke concurrently from independent goroutines.
func Decode(channels map[string][]bool, params map[string]string, samplePeriod float64) ([]FieldEvent, error) {
	clock, ok := channels[ChannelClock]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingChannel, ChannelClock)
	}
	data, ok := channels[ChannelData]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingChannel, ChannelData)
	}
	if len(clock) != len(data) {
		return nil, ErrChannelLength
	}
	if samplePeriod <= 0 {
		return nil, ErrSamplePeriod
	}
	_ = params
	return decode(clock, data, samplePeriod), nil
}

func decode(clock, data []bool, samplePeriod float64) []FieldEvent {
	n := len(clock)
	timing := DeriveTiming(samplePeriod)

	if samplePeriod > maximumSamplePeriod {
		return []FieldEvent{{
			StartSample: int(0.4 * float64(n)),
			EndSample:   int(0.7 * float64(n)),
			Category:    Diagnostic,
			Label:       "sample period too large",
		}}
	}
	if frameBits*timing.BitSampleLength > n {
		return []FieldEvent{{
			StartSample: int(0.1 * float64(n)),
			EndSample:   int(0.9 * float64(n)),
			Category:    Diagnostic,
			Label:       "Viewport fast decode not supported",
		}}
	}

	var out []FieldEvent
	outer := newEdgeScanner(clock)
	for {
		start, ok := outer.next()
		if !ok {
			break
		}
		// A frame candidate is a rising edge with the data line high. The
		// outer scan deliberately does not skip samples consumed by an
		// earlier attempt; every edge is re-tried as a fresh candidate.
		if !data[start] {
			continue
		}
		attempt := frameAttempt{clock: clock, data: data, timing: timing}
		out = attempt.run(start, out)
	}
	return out
}

// edgeScanner walks the clock channel yielding rising-edge sample indices:
// positions i where clock[i-1] is low and clock[i] is high.
type edgeScanner struct {
	clock []bool
	pos   int
}

func newEdgeScanner(clock []bool) *edgeScanner {
	return &edgeScanner{clock: clock, pos: 1}
}

// from positions the scanner so the next edge returned lies strictly after i.
func (s *edgeScanner) from(i int) {
	s.pos = i + 1
	if s.pos < 1 {
		s.pos = 1
	}
}

func (s *edgeScanner) next() (int, bool) {
	for i := s.pos; i < len(s.clock); i++ {
		if s.clock[i] && !s.clock[i-1] {
			s.pos = i + 1
			return i, true
		}
	}
	s.pos = len(s.clock)
	return 0, false
}
