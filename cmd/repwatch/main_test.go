package main

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/swingdata/repwatch/internal/config"
	"github.com/swingdata/repwatch/internal/decode"
	"github.com/swingdata/repwatch/internal/engine"
	"github.com/swingdata/repwatch/internal/monitoring"
	"github.com/swingdata/repwatch/internal/pose"
	"github.com/swingdata/repwatch/internal/timeutil"
)

func init() {
	monitoring.SetLogger(nil)
}

var testNanos int64 = 1_000_000_000

func testFrame() pose.Frame {
	testNanos += 33_000_000
	f := pose.Frame{UnixNanos: testNanos}
	for i := range f.Keypoints {
		f.Keypoints[i] = pose.Keypoint{X: 0.5, Y: 0.5, Confidence: 0.9}
	}
	f.Keypoints[pose.Nose] = pose.Keypoint{X: 0.5, Y: 0.10, Confidence: 0.9}
	f.Keypoints[pose.LeftShoulder] = pose.Keypoint{X: 0.48, Y: 0.30, Confidence: 0.9}
	f.Keypoints[pose.RightShoulder] = pose.Keypoint{X: 0.52, Y: 0.30, Confidence: 0.9}
	f.Keypoints[pose.LeftHip] = pose.Keypoint{X: 0.48, Y: 0.55, Confidence: 0.9}
	f.Keypoints[pose.RightHip] = pose.Keypoint{X: 0.52, Y: 0.55, Confidence: 0.9}
	f.Keypoints[pose.LeftWrist] = pose.Keypoint{X: 0.45, Y: 0.45, Confidence: 0.9}
	f.Keypoints[pose.RightWrist] = pose.Keypoint{X: 0.55, Y: 0.45, Confidence: 0.9}
	f.Keypoints[pose.LeftKnee] = pose.Keypoint{X: 0.48, Y: 0.72, Confidence: 0.9}
	f.Keypoints[pose.RightKnee] = pose.Keypoint{X: 0.52, Y: 0.72, Confidence: 0.9}
	f.Keypoints[pose.LeftAnkle] = pose.Keypoint{X: 0.48, Y: 0.90, Confidence: 0.9}
	f.Keypoints[pose.RightAnkle] = pose.Keypoint{X: 0.52, Y: 0.90, Confidence: 0.9}
	return f
}

func hingedTestFrame() pose.Frame {
	f := testFrame()
	f.Keypoints[pose.LeftShoulder].Y = 0.45
	f.Keypoints[pose.RightShoulder].Y = 0.45
	f.Keypoints[pose.LeftWrist].Y = 0.65
	f.Keypoints[pose.RightWrist].Y = 0.65
	return f
}

func handOnBellTestFrame() pose.Frame {
	f := hingedTestFrame()
	f.Keypoints[pose.LeftWrist] = pose.Keypoint{X: 0.48, Y: 0.88, Confidence: 0.9}
	return f
}

func scoresFor(p decode.Phase) []float64 {
	row := make([]float64, decode.PhaseCount)
	for i := range row {
		row[i] = -10
	}
	row[p] = 40
	return row
}

func buildStream(t *testing.T, recs []frameRecord) string {
	t.Helper()
	var b strings.Builder
	for _, r := range recs {
		line, err := json.Marshal(r)
		if err != nil {
			t.Fatal(err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func TestRunCountsRepFromStream(t *testing.T) {
	recs := []frameRecord{
		{Frame: testFrame(), Scores: scoresFor(decode.Standing)},
		{Frame: handOnBellTestFrame(), Scores: scoresFor(decode.HandOnBell)},
		{Frame: hingedTestFrame(), Scores: scoresFor(decode.Hike)},
		{Frame: hingedTestFrame(), Scores: scoresFor(decode.Pull)},
		{Frame: hingedTestFrame(), Scores: scoresFor(decode.Float)},
		{Frame: hingedTestFrame(), Scores: scoresFor(decode.Lockout)},
		{Frame: hingedTestFrame(), Scores: scoresFor(decode.Drop)},
		{Frame: hingedTestFrame(), Scores: scoresFor(decode.Park)},
	}

	cls := &scriptedClassifier{}
	eng := engine.New(config.EmptyTuningConfig(), cls)
	var mu sync.Mutex

	err := run(strings.NewReader(buildStream(t, recs)), eng, cls, &mu,
		timeutil.NewFakeClock(time.Unix(0, 0)), false, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	snap := eng.Snapshot()
	if !snap.Locked {
		t.Error("expected session to lock from stream geometry")
	}
	if snap.RepCount != 1 {
		t.Errorf("RepCount = %d, want 1", snap.RepCount)
	}
	if eng.Phase() != decode.Park {
		t.Errorf("final phase = %v, want %v", eng.Phase(), decode.Park)
	}
}

func TestRunSkipsMalformedLines(t *testing.T) {
	stream := "not json\n\n" + buildStream(t, []frameRecord{
		{Frame: testFrame(), Scores: scoresFor(decode.Standing)},
	})

	cls := &scriptedClassifier{}
	eng := engine.New(config.EmptyTuningConfig(), cls)
	var mu sync.Mutex
	if err := run(strings.NewReader(stream), eng, cls, &mu,
		timeutil.NewFakeClock(time.Unix(0, 0)), false, 0); err != nil {
		t.Fatalf("run must tolerate malformed lines, got %v", err)
	}
}

func TestRunRealtimePacingUsesClock(t *testing.T) {
	recs := []frameRecord{
		{Frame: testFrame()},
		{Frame: testFrame()},
		{Frame: testFrame()},
	}
	clock := timeutil.NewFakeClock(time.Unix(0, 0))
	cls := &scriptedClassifier{}
	eng := engine.New(config.EmptyTuningConfig(), cls)
	var mu sync.Mutex

	start := clock.Now()
	if err := run(strings.NewReader(buildStream(t, recs)), eng, cls, &mu, clock, true, 0); err != nil {
		t.Fatalf("run: %v", err)
	}
	// Two 33ms inter-frame gaps slept on the fake clock.
	if got := clock.Since(start); got != 66*time.Millisecond {
		t.Errorf("paced %v on the clock, want 66ms", got)
	}
}

func TestRunAutoCalibratesWithHeight(t *testing.T) {
	recs := []frameRecord{{Frame: testFrame()}}
	cls := &scriptedClassifier{}
	eng := engine.New(config.EmptyTuningConfig(), cls)
	var mu sync.Mutex

	if err := run(strings.NewReader(buildStream(t, recs)), eng, cls, &mu,
		timeutil.NewFakeClock(time.Unix(0, 0)), false, 1.80); err != nil {
		t.Fatalf("run: %v", err)
	}
	p, ok := eng.Profile()
	if !ok || p.MetersPerUnit <= 0 {
		t.Errorf("expected calibration from -height, got %+v ok=%v", p, ok)
	}
}

func TestScriptedClassifierCadence(t *testing.T) {
	cls := &scriptedClassifier{}
	if _, ok := cls.Poll(); ok {
		t.Error("empty classifier must report no scores")
	}
	cls.set(scoresFor(decode.Hike))
	if !cls.Submit(pose.FeatureVector{}) {
		t.Error("scripted classifier never reports busy")
	}
	row, ok := cls.Poll()
	if !ok || row[decode.Hike] != 40 {
		t.Errorf("Poll = %v, %v", row, ok)
	}
	if _, ok := cls.Poll(); ok {
		t.Error("scores must drain after one poll")
	}
}
