package main

import (
	"reflect"
	"testing"

	"example.com/mdiogate/internal/mdio"
)

func TestSplitInputs(t *testing.T) {
	got := splitInputs(" a.mdcap, ,b.json,")
	want := []string{"a.mdcap", "b.json"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("splitInputs = %v, want %v", got, want)
	}
	if splitInputs("") != nil {
		t.Fatalf("empty input must yield nil")
	}
}

func TestGenCapturesDecode(t *testing.T) {
	for name, c := range genCaptures(40, 10e-9) {
		events, err := mdio.Decode(c.Channels, nil, c.SamplePeriod)
		if err != nil {
			t.Fatalf("%s: Decode failed: %v", name, err)
		}
		txs := mdio.Transactions(events)
		if len(txs) != 1 || !txs[0].Complete {
			t.Fatalf("%s: transactions = %+v", name, txs)
		}
	}
}
