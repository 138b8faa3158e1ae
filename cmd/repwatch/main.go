// Command repwatch feeds a pose keypoint stream through the phase
// segmentation and rep-counting engine, serves live state over HTTP, and
// optionally writes a per-frame session log for the analysis tools.
//
// Input is JSON Lines, one frame per line:
//
//	{"t": <unix nanos>, "kp": [{"x":..,"y":..,"z":..,"c":..} x33], "scores": [8 floats]}
//
// The scores field carries the external classifier's per-phase logits for
// that frame; lines without it leave the decoder holding its phase.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/swingdata/repwatch/api"
	"github.com/swingdata/repwatch/internal/config"
	"github.com/swingdata/repwatch/internal/engine"
	"github.com/swingdata/repwatch/internal/monitoring"
	"github.com/swingdata/repwatch/internal/pose"
	"github.com/swingdata/repwatch/internal/session"
	"github.com/swingdata/repwatch/internal/timeutil"
	"github.com/swingdata/repwatch/internal/units"
)

var (
	input      = flag.String("input", "-", "Frame JSONL path, or - for stdin")
	listen     = flag.String("listen", ":8080", "Listen address for the status API")
	configPath = flag.String("config", "", "Tuning config JSON (defaults to built-in values)")
	sessionLog = flag.String("log", "", "Write per-frame session log JSONL to this path")
	displayU   = flag.String("units", units.MPS, "Display units: mps, mph, kmph, kph")
	realtime   = flag.Bool("realtime", false, "Pace frames by their timestamps instead of replaying flat out")
	height     = flag.Float64("height", 0, "Subject height in meters; calibrate on the first usable frame")
)

// frameRecord is one input line: a frame plus the classifier's score row.
type frameRecord struct {
	pose.Frame
	Scores []float64 `json:"scores,omitempty"`
}

// scriptedClassifier replays score rows carried alongside the frame stream.
// The model itself ran elsewhere; this adapter only honours the cadence
// contract.
type scriptedClassifier struct {
	row []float64
}

func (c *scriptedClassifier) set(row []float64) { c.row = row }

func (c *scriptedClassifier) Submit(pose.FeatureVector) bool { return true }

func (c *scriptedClassifier) Poll() ([]float64, bool) {
	if c.row == nil {
		return nil, false
	}
	row := c.row
	c.row = nil
	return row, true
}

func main() {
	flag.Parse()

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		loaded, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		tuning = loaded
	}

	in := os.Stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			log.Fatalf("open input: %v", err)
		}
		defer f.Close()
		in = f
	}

	var logW *bufio.Writer
	if *sessionLog != "" {
		f, err := os.Create(*sessionLog)
		if err != nil {
			log.Fatalf("create session log: %v", err)
		}
		defer f.Close()
		logW = bufio.NewWriter(f)
		defer logW.Flush()
	}

	cls := &scriptedClassifier{}
	eng := engine.New(tuning, cls)

	// One mutual-exclusion boundary per session: the frame loop and the
	// calibration endpoint both take it before touching the engine.
	var mu sync.Mutex
	server := api.NewServer(func(h float64) error {
		mu.Lock()
		defer mu.Unlock()
		return eng.Calibrate(h)
	}, *displayU)

	eng.OnUpdate(func(u engine.Update) {
		server.Publish(u)
		if logW != nil {
			line, err := json.Marshal(u)
			if err != nil {
				monitoring.Logf("session log: marshal: %v", err)
				return
			}
			logW.Write(line)
			logW.WriteByte('\n')
		}
	})
	eng.OnRep(func(e session.RepEvent) {
		server.PublishRep(e)
	})

	go func() {
		monitoring.Logf("status API listening on %s", *listen)
		if err := http.ListenAndServe(*listen, server); err != nil {
			log.Fatalf("http server: %v", err)
		}
	}()

	if err := run(in, eng, cls, &mu, timeutil.RealClock{}, *realtime, *height); err != nil {
		log.Fatalf("frame loop: %v", err)
	}
}

// run reads frames until EOF, feeding each through the engine in arrival
// order.
func run(in io.Reader, eng *engine.Engine, cls *scriptedClassifier, mu *sync.Mutex, clock timeutil.Clock, realtime bool, heightMeters float64) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<20)

	var prevNanos int64
	calibrated := heightMeters <= 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec frameRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			monitoring.Logf("skipping malformed line %d: %v", lineNo, err)
			continue
		}

		if realtime && prevNanos != 0 && rec.UnixNanos > prevNanos {
			clock.Sleep(time.Duration(rec.UnixNanos-prevNanos) * time.Nanosecond)
		}
		prevNanos = rec.UnixNanos

		mu.Lock()
		cls.set(rec.Scores)
		eng.ProcessFrame(&rec.Frame)
		if !calibrated {
			if err := eng.Calibrate(heightMeters); err == nil {
				calibrated = true
			}
		}
		mu.Unlock()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read frames: %w", err)
	}

	snap := eng.Snapshot()
	monitoring.Logf("stream ended: %d reps, dropped %d classifications",
		snap.RepCount, eng.DroppedClassifications())
	return nil
}
