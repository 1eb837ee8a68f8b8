package mdio

import "errors"

// ErrBitRange reports a field decode requested outside the captured bits.
// Callers get the zero sentinel back and keep going; a malformed field must
// never take down the scan.
var ErrBitRange = errors.New("bit range outside captured bits")

// decodeUnsigned folds bits[lo..hi], both bounds inclusive, MSB-first into an
// unsigned value.
func decodeUnsigned(bits []bool, lo, hi int) (uint, error) {
	if lo > hi || lo < 0 || hi >= len(bits) {
		return 0, ErrBitRange
	}
	var v uint
	for i := lo; i <= hi; i++ {
		v <<= 1
		if bits[i] {
			v |= 1
		}
	}
	return v, nil
}

// bitString renders bits as a "0"/"1" string in buffer order (MSB first).
func bitString(bits []bool) string {
	out := make([]byte, len(bits))
	for i, v := range bits {
		if v {
			out[i] = '1'
		} else {
			out[i] = '0'
		}
	}
	return string(out)
}
