package mdio

import "testing"

func TestDeriveTiming(t *testing.T) {
	tests := []struct {
		name         string
		samplePeriod float64
		wantBitLen   int
		wantOffset   int
	}{
		{name: "10ns", samplePeriod: 10e-9, wantBitLen: 39, wantOffset: 35},
		{name: "20ns", samplePeriod: 20e-9, wantBitLen: 19, wantOffset: 17},
		{name: "5ns", samplePeriod: 5e-9, wantBitLen: 79, wantOffset: 70},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveTiming(tc.samplePeriod)
			if got.BitSampleLength != tc.wantBitLen {
				t.Fatalf("BitSampleLength = %d, want %d", got.BitSampleLength, tc.wantBitLen)
			}
			if got.ReadSampleOffset != tc.wantOffset {
				t.Fatalf("ReadSampleOffset = %d, want %d", got.ReadSampleOffset, tc.wantOffset)
			}
		})
	}
}
