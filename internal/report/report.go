// Package report renders decode results as JSON documents, PDF summaries and
// QR codes for capture digests.
package report

import (
	"encoding/json"
	"os"

	"example.com/mdiogate/internal/mdio"
	"example.com/mdiogate/internal/rules"
)

// DecodeReport is the archival record of one decoded capture: identity,
// per-frame summaries and rule findings.
type DecodeReport struct {
	Capture       string             `json:"capture"`
	CaptureSHA256 string             `json:"captureSha256,omitempty"`
	SamplePeriod  float64            `json:"samplePeriod"`
	Summary       Summary            `json:"summary"`
	Transactions  []mdio.Transaction `json:"transactions"`
	Findings      []rules.Diagnostic `json:"findings,omitempty"`
}

type Summary struct {
	Frames     int  `json:"frames"`
	Reads      int  `json:"reads"`
	Writes     int  `json:"writes"`
	Incomplete int  `json:"incomplete"`
	Errors     int  `json:"errors"`
	Warnings   int  `json:"warnings"`
	Pass       bool `json:"pass"`
}

// Build assembles a DecodeReport from a decode result and its rule findings.
func Build(captureName, captureSHA256 string, samplePeriod float64, events []mdio.FieldEvent, findings []rules.Diagnostic) DecodeReport {
	rep := DecodeReport{
		Capture:       captureName,
		CaptureSHA256: captureSHA256,
		SamplePeriod:  samplePeriod,
		Transactions:  mdio.Transactions(events),
		Findings:      findings,
	}
	for _, tx := range rep.Transactions {
		rep.Summary.Frames++
		switch {
		case !tx.Complete:
			rep.Summary.Incomplete++
		case tx.IsRead:
			rep.Summary.Reads++
		case tx.Opcode == "W":
			rep.Summary.Writes++
		}
	}
	for _, d := range findings {
		switch d.Severity {
		case rules.ERROR:
			rep.Summary.Errors++
		case rules.WARN:
			rep.Summary.Warnings++
		}
	}
	rep.Summary.Pass = rep.Summary.Errors == 0
	return rep
}

func SaveJSON(rep DecodeReport, out string) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func LoadJSON(path string) (DecodeReport, error) {
	var rep DecodeReport
	b, err := os.ReadFile(path)
	if err != nil {
		return rep, err
	}
	err = json.Unmarshal(b, &rep)
	return rep, err
}
