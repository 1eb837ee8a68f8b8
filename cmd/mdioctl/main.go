package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/afero"

	"example.com/mdiogate/internal/capture"
	"example.com/mdiogate/internal/common"
	"example.com/mdiogate/internal/manifest"
	"example.com/mdiogate/internal/mdio"
	"example.com/mdiogate/internal/report"
	"example.com/mdiogate/internal/rules"
	"example.com/mdiogate/internal/wavegen"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	switch cmd {
	case "decode":
		decodeCmd(os.Args[2:])
	case "check":
		checkCmd(os.Args[2:])
	case "report":
		reportCmd(os.Args[2:])
	case "manifest":
		manifestCmd(os.Args[2:])
	case "gen":
		genCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Printf(`mdioctl %s (built %s) <command> [options]

Commands:
  decode    --in <capture.mdcap|dump.csv> [--sample-period-ns <ns>] [--out <events.jsonl>] [--metrics]
  check     --in <capture> [--sample-period-ns <ns>] [--rules <rulepack.json>] --out <diagnostics.jsonl> --acceptance <acceptance.json>
  report    --in <capture> [--sample-period-ns <ns>] [--rules <rulepack.json>] --out <report.json> [--pdf <report.pdf>] [--qr <hash.png>]
  manifest  --inputs <comma-separated> --out <manifest.json>
  gen       --out <dir>
`, version, buildDate)
}

// loadCapture opens either container. CSV dumps carry no sample period, so it
// must come from the flag.
func loadCapture(path string, samplePeriodNs float64) (*capture.Capture, error) {
	fsys := afero.NewOsFs()
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		if samplePeriodNs <= 0 {
			return nil, fmt.Errorf("--sample-period-ns required for csv captures")
		}
		return capture.LoadCSV(fsys, path, samplePeriodNs*1e-9)
	}
	return capture.Load(fsys, path)
}

func decodeCapture(c *capture.Capture, metrics *common.Metrics) ([]mdio.FieldEvent, error) {
	if metrics != nil {
		metrics.Start()
	}
	events, err := mdio.Decode(c.Channels, nil, c.SamplePeriod)
	if metrics != nil {
		metrics.AddSamples(int64(c.SampleCount()))
		metrics.AddEvents(int64(len(events)))
		metrics.AddFrames(int64(len(mdio.Transactions(events))))
		metrics.Stop()
	}
	return events, err
}

func writeEventsNDJSON(path string, events []mdio.FieldEvent) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}

func printMetrics(metrics *common.Metrics) {
	snap := metrics.Snapshot()
	fmt.Printf("decoded %s in %s (%.1f Msa/s)\n",
		common.FormatSamples(snap.Samples),
		snap.Duration.Round(time.Microsecond),
		snap.ThroughputSamplesPerSecond()/1e6)
}

func decodeCmd(args []string) {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	in := fs.String("in", "", "input capture (.mdcap or .csv)")
	samplePeriodNs := fs.Float64("sample-period-ns", 0, "sample period in ns (csv only)")
	out := fs.String("out", "", "events output (jsonl); omit to print transactions only")
	metricsFlag := fs.Bool("metrics", false, "print decode throughput metrics")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	c, err := loadCapture(*in, *samplePeriodNs)
	if err != nil {
		fmt.Println("load capture:", err)
		os.Exit(1)
	}
	var metrics *common.Metrics
	if *metricsFlag {
		metrics = common.NewMetrics()
		metrics.SetTotalSamples(int64(c.SampleCount()))
	}
	events, err := decodeCapture(c, metrics)
	if err != nil {
		fmt.Println("decode:", err)
		os.Exit(1)
	}
	if *out != "" {
		if err := writeEventsNDJSON(*out, events); err != nil {
			fmt.Println("write events:", err)
			os.Exit(1)
		}
	}

	txs := mdio.Transactions(events)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tOP\tPHY\tREG\tTA\tDATA\tSAMPLES\tSTATE")
	for i, tx := range txs {
		state := "ok"
		if !tx.Complete {
			state = "partial"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d..%d\t%s\n",
			i+1, dash(tx.Opcode), dash(tx.PhyAddr), dash(tx.RegAddr),
			dash(tx.Turnaround), dash(tx.Data), tx.StartSample, tx.EndSample, state)
	}
	w.Flush()
	fmt.Printf("%d events, %d frames\n", len(events), len(txs))
	if metrics != nil {
		printMetrics(metrics)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func loadRulePackFlag(path string) (rules.RulePack, error) {
	if path == "" {
		return rules.DefaultRulePack(), nil
	}
	return rules.LoadRulePack(path)
}

func evalCapture(c *capture.Capture, events []mdio.FieldEvent, rp rules.RulePack) (*rules.Engine, []rules.Diagnostic, error) {
	engine := rules.NewEngine(rp)
	engine.RegisterBuiltins()
	ctx := &rules.Context{CaptureName: c.Name, SamplePeriod: c.SamplePeriod, Events: events}
	diags, err := engine.Eval(ctx)
	return engine, diags, err
}

func checkCmd(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	in := fs.String("in", "", "input capture (.mdcap or .csv)")
	samplePeriodNs := fs.Float64("sample-period-ns", 0, "sample period in ns (csv only)")
	rulesPath := fs.String("rules", "", "rulepack.json; omit for the baseline pack")
	outDiag := fs.String("out", "diagnostics.jsonl", "diagnostics output")
	outAcc := fs.String("acceptance", "acceptance.json", "acceptance json")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	c, err := loadCapture(*in, *samplePeriodNs)
	if err != nil {
		fmt.Println("load capture:", err)
		os.Exit(1)
	}
	rp, err := loadRulePackFlag(*rulesPath)
	if err != nil {
		fmt.Println("load rulepack:", err)
		os.Exit(1)
	}
	events, err := decodeCapture(c, nil)
	if err != nil {
		fmt.Println("decode:", err)
		os.Exit(1)
	}
	engine, _, err := evalCapture(c, events, rp)
	if err != nil {
		fmt.Println("eval:", err)
		os.Exit(1)
	}
	if err := engine.WriteDiagnosticsNDJSON(*outDiag); err != nil {
		fmt.Println("write diagnostics:", err)
		os.Exit(1)
	}
	acc := engine.MakeAcceptance()
	b, err := json.MarshalIndent(acc, "", "  ")
	if err != nil {
		fmt.Println("encode acceptance:", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*outAcc, b, 0644); err != nil {
		fmt.Println("write acceptance:", err)
		os.Exit(1)
	}
	fmt.Printf("%d findings (%d errors, %d warnings)\n",
		acc.Summary.Total, acc.Summary.Errors, acc.Summary.Warnings)
	if !acc.Summary.Pass {
		os.Exit(3)
	}
}

func reportCmd(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	in := fs.String("in", "", "input capture (.mdcap or .csv)")
	samplePeriodNs := fs.Float64("sample-period-ns", 0, "sample period in ns (csv only)")
	rulesPath := fs.String("rules", "", "rulepack.json; omit for the baseline pack")
	out := fs.String("out", "report.json", "report json output")
	pdfOut := fs.String("pdf", "", "report pdf output")
	qrOut := fs.String("qr", "", "capture hash QR png output")
	fs.Parse(args)

	if *in == "" {
		fmt.Println("required: --in")
		os.Exit(1)
	}
	c, err := loadCapture(*in, *samplePeriodNs)
	if err != nil {
		fmt.Println("load capture:", err)
		os.Exit(1)
	}
	digest, err := capture.Digest(afero.NewOsFs(), *in)
	if err != nil {
		fmt.Println("digest:", err)
		os.Exit(1)
	}
	rp, err := loadRulePackFlag(*rulesPath)
	if err != nil {
		fmt.Println("load rulepack:", err)
		os.Exit(1)
	}
	events, err := decodeCapture(c, nil)
	if err != nil {
		fmt.Println("decode:", err)
		os.Exit(1)
	}
	_, diags, err := evalCapture(c, events, rp)
	if err != nil {
		fmt.Println("eval:", err)
		os.Exit(1)
	}
	rep := report.Build(c.Name, digest, c.SamplePeriod, events, diags)
	if err := report.SaveJSON(rep, *out); err != nil {
		fmt.Println("write report:", err)
		os.Exit(1)
	}
	if *pdfOut != "" {
		if err := report.SavePDF(rep, *pdfOut); err != nil {
			fmt.Println("write pdf:", err)
			os.Exit(1)
		}
	}
	if *qrOut != "" {
		png, err := report.CaptureHashToQR(digest, 256)
		if err != nil {
			fmt.Println("qr:", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*qrOut, png, 0644); err != nil {
			fmt.Println("write qr:", err)
			os.Exit(1)
		}
	}
	fmt.Printf("report: %d frames, %s\n", rep.Summary.Frames, passLabel(rep.Summary.Pass))
}

func passLabel(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

func manifestCmd(args []string) {
	fs := flag.NewFlagSet("manifest", flag.ExitOnError)
	inputs := fs.String("inputs", "", "comma-separated artifact paths")
	out := fs.String("out", "manifest.json", "manifest output")
	fs.Parse(args)

	paths := splitInputs(*inputs)
	if len(paths) == 0 {
		fmt.Println("required: --inputs")
		os.Exit(1)
	}
	m, err := manifest.Build(paths)
	if err != nil {
		fmt.Println("build manifest:", err)
		os.Exit(1)
	}
	if err := manifest.Save(m, *out); err != nil {
		fmt.Println("write manifest:", err)
		os.Exit(1)
	}
	fmt.Printf("manifest: %d items\n", len(m.Items))
}

func splitInputs(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func genCmd(args []string) {
	fs := flag.NewFlagSet("gen", flag.ExitOnError)
	out := fs.String("out", ".", "output directory for sample captures")
	samplesPerBit := fs.Int("samples-per-bit", 40, "bit cell width in samples")
	samplePeriodNs := fs.Float64("sample-period-ns", 10, "sample period in ns")
	fs.Parse(args)

	fsys := afero.NewOsFs()
	if err := fsys.MkdirAll(*out, 0o755); err != nil {
		fmt.Println("create output dir:", err)
		os.Exit(1)
	}
	for name, c := range genCaptures(*samplesPerBit, *samplePeriodNs*1e-9) {
		path := filepath.Join(*out, name)
		if err := capture.Save(fsys, path, c); err != nil {
			fmt.Printf("write %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Println("wrote", path)
	}
}

// genCaptures builds the canned demo set: one write, one read and one frame
// whose preamble breaks before a clean retry.
func genCaptures(samplesPerBit int, samplePeriod float64) map[string]*capture.Capture {
	write := wavegen.NewBuilder(samplesPerBit)
	write.Idle(200)
	write.WriteFrame(3, 7, 0xABCD)
	write.Idle(200)

	read := wavegen.NewBuilder(samplesPerBit)
	read.Idle(200)
	read.ReadFrame(5, 9, 0x1234)
	read.Idle(200)

	broken := wavegen.NewBuilder(samplesPerBit)
	broken.Idle(200)
	broken.Preamble(12)
	broken.Idle(120)
	broken.WriteFrame(3, 7, 0xABCD)
	broken.Idle(200)

	return map[string]*capture.Capture{
		"write.mdcap":           {Name: "gen-write", SamplePeriod: samplePeriod, Channels: write.Channels()},
		"read.mdcap":            {Name: "gen-read", SamplePeriod: samplePeriod, Channels: read.Channels()},
		"broken_preamble.mdcap": {Name: "gen-broken-preamble", SamplePeriod: samplePeriod, Channels: broken.Channels()},
	}
}
