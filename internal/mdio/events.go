package mdio

// Category classifies a decoded annotation.
type Category string

const (
	Structural    Category = "structural"
	OpcodeTag     Category = "opcode"
	AddressTag    Category = "address"
	TurnaroundTag Category = "turnaround"
	DataTag       Category = "data"
	Diagnostic    Category = "diagnostic"
)

// FieldEvent is one labeled annotation over an inclusive span of sample
// indices in the input channels. Conversion to time is the caller's business:
// time = index * samplePeriod.
type FieldEvent struct {
	StartSample int      `json:"startSample"`
	EndSample   int      `json:"endSample"`
	Category    Category `json:"category"`
	Label       string   `json:"label"`
}
