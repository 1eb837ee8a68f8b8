package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"example.com/mdiogate/internal/rules"
)

// SavePDF renders the decode report into a PDF document.
func SavePDF(rep DecodeReport, out string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("MDIO Decode Report", false)
	pdf.SetAuthor("mdioctl", false)
	pdf.SetCreator("mdioctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "MDIO Decode Report")
	addCaptureSection(pdf, rep)
	addSummarySection(pdf, rep.Summary)
	addTransactionSection(pdf, rep)
	addFindingsSection(pdf, rep.Findings)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addCaptureSection(pdf *gofpdf.Fpdf, rep DecodeReport) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Capture")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Name", value: emptyFallback(rep.Capture, "-")},
		{label: "SHA-256", value: emptyFallback(rep.CaptureSHA256, "-")},
		{label: "Sample Period", value: samplePeriodLabel(rep.SamplePeriod)},
	}
	for _, item := range items {
		pdf.CellFormat(40, 6, item.label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
	}
	pdf.Ln(4)
}

func addSummarySection(pdf *gofpdf.Fpdf, s Summary) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Frames", value: strconv.Itoa(s.Frames)},
		{label: "Reads", value: strconv.Itoa(s.Reads)},
		{label: "Writes", value: strconv.Itoa(s.Writes)},
		{label: "Incomplete", value: strconv.Itoa(s.Incomplete)},
		{label: "Errors", value: strconv.Itoa(s.Errors)},
		{label: "Warnings", value: strconv.Itoa(s.Warnings)},
		{label: "Overall", value: passLabel(s.Pass)},
	}
	for _, item := range items {
		pdf.CellFormat(40, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addTransactionSection(pdf *gofpdf.Fpdf, rep DecodeReport) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Transactions")
	pdf.Ln(9)

	if len(rep.Transactions) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No frames decoded.", "", "L", false)
		pdf.Ln(4)
		return
	}

	headers := []string{"#", "Op", "PHY", "Reg", "TA", "Data", "Samples", "State"}
	widths := []float64{10, 12, 18, 18, 14, 44, 48, 16}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	lineHeight := 5.0
	for i, tx := range rep.Transactions {
		values := []string{
			strconv.Itoa(i + 1),
			emptyFallback(tx.Opcode, "-"),
			emptyFallback(tx.PhyAddr, "-"),
			emptyFallback(tx.RegAddr, "-"),
			emptyFallback(tx.Turnaround, "-"),
			emptyFallback(tx.Data, "-"),
			fmt.Sprintf("%d..%d", tx.StartSample, tx.EndSample),
			completeLabel(tx.Complete),
		}
		renderTableRow(pdf, widths, values, lineHeight)
	}
	pdf.Ln(4)
}

func addFindingsSection(pdf *gofpdf.Fpdf, findings []rules.Diagnostic) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Findings")
	pdf.Ln(9)

	if len(findings) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No findings recorded.", "", "L", false)
		return
	}

	for i, d := range findings {
		pdf.SetFont("Helvetica", "B", 10)
		header := fmt.Sprintf("%d. %s (%s)", i+1, d.RuleId, severityLabel(d.Severity))
		pdf.MultiCell(0, 5, header, "", "L", false)

		if msg := strings.TrimSpace(d.Message); msg != "" {
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, msg, "", "L", false)
		}

		meta := findingMetadata(d)
		if meta != "" {
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, 4, meta, "", "L", false)
		}

		if len(d.Refs) > 0 {
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, 4, "Refs: "+strings.Join(d.Refs, ", "), "", "L", false)
		}

		pdf.Ln(2)
	}
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(val)
		if text == "" {
			text = "-"
		}
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		cellText := strings.Join(lines, "\n")
		pdf.MultiCell(widths[i], lineHeight, cellText, "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func samplePeriodLabel(sp float64) string {
	if sp <= 0 {
		return "-"
	}
	return fmt.Sprintf("%g ns", sp*1e9)
}

func passLabel(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

func completeLabel(complete bool) string {
	if complete {
		return "ok"
	}
	return "partial"
}

func severityLabel(sev rules.Severity) string {
	if s := strings.TrimSpace(string(sev)); s != "" {
		return s
	}
	return "UNKNOWN"
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}

func findingMetadata(d rules.Diagnostic) string {
	parts := make([]string, 0, 4)
	if !d.Ts.IsZero() {
		parts = append(parts, d.Ts.Format(time.RFC3339))
	}
	if d.Capture != "" {
		parts = append(parts, d.Capture)
	}
	if d.StartSample != nil && d.EndSample != nil {
		parts = append(parts, fmt.Sprintf("Samples %d..%d", *d.StartSample, *d.EndSample))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " / ")
}
