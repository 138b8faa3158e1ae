// Command session-plot renders a velocity trace from a repwatch session log
// (the JSONL written by repwatch -log), with a marker at each credited rep.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/swingdata/repwatch/internal/engine"
)

var (
	input  = flag.String("input", "", "Session log JSONL path")
	output = flag.String("output", "session.png", "Output PNG path")
)

func main() {
	flag.Parse()
	if *input == "" {
		log.Fatal("usage: session-plot -input session.jsonl [-output session.png]")
	}

	updates, err := readLog(*input)
	if err != nil {
		log.Fatalf("read log: %v", err)
	}
	if len(updates) == 0 {
		log.Fatal("session log is empty")
	}

	if err := render(updates, *output); err != nil {
		log.Fatalf("render: %v", err)
	}
	fmt.Printf("wrote %s (%d frames)\n", *output, len(updates))
}

func readLog(path string) ([]engine.Update, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var updates []engine.Update
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
		updates = append(updates, u)
	}
	return updates, scanner.Err()
}

func render(updates []engine.Update, path string) error {
	t0 := updates[0].UnixNanos

	velocity := make(plotter.XYs, 0, len(updates))
	peaks := make(plotter.XYs, 0, len(updates))
	repMarks := make(plotter.XYs, 0, 16)
	prevReps := 0
	for _, u := range updates {
		x := float64(u.UnixNanos-t0) / 1e9
		velocity = append(velocity, plotter.XY{X: x, Y: u.Velocity})
		peaks = append(peaks, plotter.XY{X: x, Y: u.Peak})
		if u.RepCount > prevReps {
			repMarks = append(repMarks, plotter.XY{X: x, Y: u.Peak})
			prevReps = u.RepCount
		}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Session velocity — %d reps", prevReps)
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "vertical velocity (m/s)"

	vLine, err := plotter.NewLine(velocity)
	if err != nil {
		return err
	}
	vLine.Width = vg.Points(1)

	pLine, err := plotter.NewLine(peaks)
	if err != nil {
		return err
	}
	pLine.Width = vg.Points(1)
	pLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	marks, err := plotter.NewScatter(repMarks)
	if err != nil {
		return err
	}

	p.Add(vLine, pLine, marks)
	p.Legend.Add("velocity", vLine)
	p.Legend.Add("rep peak", pLine)
	p.Legend.Add("rep credited", marks)
	p.Legend.Top = true

	return p.Save(10*vg.Inch, 4*vg.Inch, path)
}
