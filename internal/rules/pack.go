package rules

// DefaultRulePack is the baseline check set applied when no rule pack file is
// supplied on the command line or to the daemon.
func DefaultRulePack() RulePack {
	return RulePack{
		RulePackId: "mdio-baseline",
		Version:    "1.0.0",
		Rules: []Rule{
			{
				RuleId:    "MD-001",
				Name:      "decode preflight",
				CheckFunc: "CheckDecodePreflight",
				Severity:  ERROR,
				Refs:      []string{"IEEE 802.3 22.2.2.13"},
				Message:   "capture must satisfy decoder timing preconditions",
			},
			{
				RuleId:    "MD-002",
				Name:      "frames present",
				CheckFunc: "CheckFramesPresent",
				Severity:  WARN,
				Refs:      []string{"IEEE 802.3 22.2.4.5"},
				Message:   "capture should contain at least one complete frame",
			},
			{
				RuleId:    "MD-003",
				Name:      "opcode extensions",
				CheckFunc: "CheckOpcodeExtensions",
				Severity:  WARN,
				Refs:      []string{"IEEE 802.3 22.2.4.5.4"},
				Message:   "opcodes outside read/write are vendor extensions",
			},
			{
				RuleId:    "MD-004",
				Name:      "write turnaround",
				CheckFunc: "CheckWriteTurnaround",
				Severity:  WARN,
				Refs:      []string{"IEEE 802.3 22.2.4.5.7"},
				Message:   "write frames must drive the turnaround high first",
			},
			{
				RuleId:    "MD-005",
				Name:      "address survey",
				CheckFunc: "CheckAddressRange",
				Severity:  INFO,
				Refs:      []string{"IEEE 802.3 22.2.4.5.5"},
				Message:   "summarize addressed phys",
			},
		},
	}
}
