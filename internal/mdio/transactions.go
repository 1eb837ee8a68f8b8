package mdio

// Transaction summarizes one frame attempt's annotations. Attempts that
// aborted after emitting their structural events show up as incomplete
// transactions; attempts that aborted earlier leave no trace.
type Transaction struct {
	Opcode      string `json:"opcode,omitempty"`
	IsRead      bool   `json:"isRead"`
	PhyAddr     string `json:"phyAddr,omitempty"`
	RegAddr     string `json:"regAddr,omitempty"`
	Turnaround  string `json:"turnaround,omitempty"`
	Data        string `json:"data,omitempty"`
	StartSample int    `json:"startSample"`
	EndSample   int    `json:"endSample"`
	Complete    bool   `json:"complete"`
}

// Transactions groups a decode result into per-frame summaries. Frames are
// delimited by Structural "PREAMBLE" events; events within one attempt are
// emitted in increasing sample order, so a simple forward walk suffices.
func Transactions(events []FieldEvent) []Transaction {
	var out []Transaction
	var cur *Transaction
	for _, ev := range events {
		switch ev.Category {
		case Structural:
			if ev.Label == "PREAMBLE" {
				out = append(out, Transaction{StartSample: ev.StartSample, EndSample: ev.EndSample})
				cur = &out[len(out)-1]
			} else if cur != nil {
				cur.EndSample = ev.EndSample
			}
		case OpcodeTag:
			if cur != nil {
				cur.Opcode = ev.Label
				cur.IsRead = ev.Label == "R"
				cur.EndSample = ev.EndSample
			}
		case AddressTag:
			if cur == nil {
				continue
			}
			if cur.PhyAddr == "" {
				cur.PhyAddr = ev.Label
			} else {
				cur.RegAddr = ev.Label
			}
			cur.EndSample = ev.EndSample
		case TurnaroundTag:
			if cur != nil {
				cur.Turnaround = ev.Label
				cur.EndSample = ev.EndSample
			}
		case DataTag:
			if cur != nil {
				cur.Data = ev.Label
				cur.EndSample = ev.EndSample
				cur.Complete = true
				cur = nil
			}
		}
	}
	return out
}
