// Command session-report renders a per-rep peak velocity bar chart (HTML)
// from a repwatch session log. Peak velocity loss across a set is the
// fatigue signal velocity-based training revolves around, so the chart
// makes drop-off visible at a glance.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/swingdata/repwatch/internal/engine"
	"github.com/swingdata/repwatch/internal/units"
)

var (
	input    = flag.String("input", "", "Session log JSONL path")
	output   = flag.String("output", "report.html", "Output HTML path")
	displayU = flag.String("units", units.MPS, "Display units: mps, mph, kmph, kph")
)

// repPeak is one credited rep reconstructed from the update stream: the
// peak velocity reported on the frame where the rep count incremented.
type repPeak struct {
	Number int
	Peak   float64
}

func main() {
	flag.Parse()
	if *input == "" {
		log.Fatal("usage: session-report -input session.jsonl [-output report.html]")
	}
	if !units.IsValid(*displayU) {
		log.Fatalf("invalid units %q", *displayU)
	}

	reps, err := collectReps(*input)
	if err != nil {
		log.Fatalf("read log: %v", err)
	}
	if len(reps) == 0 {
		log.Fatal("no credited reps in the session log")
	}

	if err := render(reps, *displayU, *output); err != nil {
		log.Fatalf("render: %v", err)
	}
	fmt.Printf("wrote %s (%d reps)\n", *output, len(reps))
}

func collectReps(path string) ([]repPeak, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var reps []repPeak
	prev := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<20)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var u engine.Update
		if err := json.Unmarshal(scanner.Bytes(), &u); err != nil {
			return nil, fmt.Errorf("malformed log line: %w", err)
		}
		if u.RepCount > prev {
			reps = append(reps, repPeak{Number: u.RepCount, Peak: u.Peak})
			prev = u.RepCount
		}
	}
	return reps, scanner.Err()
}

func render(reps []repPeak, displayUnits, path string) error {
	labels := make([]string, len(reps))
	data := make([]opts.BarData, len(reps))
	best := 0.0
	for i, r := range reps {
		labels[i] = fmt.Sprintf("rep %d", r.Number)
		v := units.ConvertVelocity(r.Peak, displayUnits)
		data[i] = opts.BarData{Value: v}
		if v > best {
			best = v
		}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Session report", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Peak velocity per rep",
			Subtitle: fmt.Sprintf("%d reps, best %.2f %s", len(reps), best, displayUnits),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: displayUnits}),
	)
	bar.SetXAxis(labels).AddSeries("peak velocity", data,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
	)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return bar.Render(f)
}
