package mdio

import (
	"errors"
	"testing"
)

func TestDecodeUnsigned(t *testing.T) {
	bits := []bool{false, false, false, true, true} // 0b00011

	tests := []struct {
		name    string
		lo, hi  int
		want    uint
		wantErr bool
	}{
		{name: "full range", lo: 0, hi: 4, want: 3},
		{name: "subrange", lo: 3, hi: 4, want: 3},
		{name: "single bit", lo: 3, hi: 3, want: 1},
		{name: "reversed bounds", lo: 5, hi: 2, wantErr: true},
		{name: "negative start", lo: -1, hi: 2, wantErr: true},
		{name: "end past buffer", lo: 0, hi: len(bits), wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeUnsigned(bits, tc.lo, tc.hi)
			if tc.wantErr {
				if !errors.Is(err, ErrBitRange) {
					t.Fatalf("expected ErrBitRange, got %v", err)
				}
				if got != 0 {
					t.Fatalf("sentinel = %d, want 0", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeUnsigned returned error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("value = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestBitString(t *testing.T) {
	got := bitString([]bool{true, false, true, true})
	if got != "1011" {
		t.Fatalf("bitString = %q, want %q", got, "1011")
	}
}
