package engine

import (
	"testing"

	"github.com/swingdata/repwatch/internal/config"
	"github.com/swingdata/repwatch/internal/decode"
	"github.com/swingdata/repwatch/internal/monitoring"
	"github.com/swingdata/repwatch/internal/pose"
)

func init() {
	monitoring.SetLogger(nil)
}

func tuning() *config.TuningConfig {
	return config.EmptyTuningConfig()
}

var nanos int64 = 1_000_000_000

func nextFrame() pose.Frame {
	nanos += 33_000_000
	f := pose.Frame{UnixNanos: nanos}
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

func handOnBellFrame() pose.Frame {
	f := nextFrame()
	f.Keypoints[pose.LeftShoulder].Y = 0.45
	f.Keypoints[pose.RightShoulder].Y = 0.45
	f.Keypoints[pose.RightWrist].Y = 0.65
	f.Keypoints[pose.LeftWrist] = pose.Keypoint{X: 0.48, Y: 0.88, Confidence: 0.9}
	return f
}

// busyClassifier reports inference permanently in flight.
type busyClassifier struct{ submits int }

func (c *busyClassifier) Submit(pose.FeatureVector) bool { c.submits++; return false }
func (c *busyClassifier) Poll() ([]float64, bool)        { return nil, false }

func favour(p decode.Phase) []float64 {
	row := make([]float64, decode.PhaseCount)
	for i := range row {
		row[i] = -10
	}
	row[p] = 40
	return row
}

func TestBusyClassifierDropsButGeometryRuns(t *testing.T) {
	bc := &busyClassifier{}
	e := New(tuning(), bc)

	st := nextFrame()
	e.ProcessFrame(&st)
	hb := handOnBellFrame()
	u := e.ProcessFrame(&hb)

	// Every valid frame was offered and dropped from classification...
	if got := e.DroppedClassifications(); got != 2 {
		t.Errorf("DroppedClassifications = %d, want 2", got)
	}
	if bc.submits != 2 {
		t.Errorf("classifier offered %d frames, want 2", bc.submits)
	}
	// ...yet the geometric side lock still fired.
	if !u.Locked {
		t.Error("side lock must run independently of classifier cadence")
	}
	if u.Phase != decode.Standing.String() {
		t.Errorf("phase must hold at start without decodes, got %q", u.Phase)
	}
}

func TestSyncClassifierDrivesDecoder(t *testing.T) {
	next := decode.HandOnBell
	cls := &SyncClassifier{
		Infer: func([pose.FeatureCount]float64) ([]float64, bool) {
			return favour(next), true
		},
	}
	e := New(tuning(), cls)

	f := nextFrame()
	u := e.ProcessFrame(&f)
	if u.Phase != "HANDONBELL" {
		t.Errorf("decoded phase = %q, want HANDONBELL", u.Phase)
	}

	next = decode.Hike
	f = nextFrame()
	u = e.ProcessFrame(&f)
	if u.Phase != "HIKE" {
		t.Errorf("decoded phase = %q, want HIKE", u.Phase)
	}
}

func TestClassifierNoContextIsNoOp(t *testing.T) {
	cls := &SyncClassifier{
		Infer: func([pose.FeatureCount]float64) ([]float64, bool) {
			return nil, false // still buffering context
		},
	}
	e := New(tuning(), cls)

	f := nextFrame()
	u := e.ProcessFrame(&f)
	if u.Phase != decode.StartPhase.String() {
		t.Errorf("no-context frames must hold phase, got %q", u.Phase)
	}
}

func TestInvalidFrameRetainsLastOutput(t *testing.T) {
	cls := &SyncClassifier{
		Infer: func([pose.FeatureCount]float64) ([]float64, bool) {
			return favour(decode.HandOnBell), true
		},
	}
	e := New(tuning(), cls)

	f := nextFrame()
	e.ProcessFrame(&f)

	// Drop every landmark below the floor: extraction invalid, classifier
	// skipped, previous phase retained.
	bad := nextFrame()
	for i := range bad.Keypoints {
		bad.Keypoints[i].Confidence = 0.1
	}
	u := e.ProcessFrame(&bad)
	if u.Phase != "HANDONBELL" {
		t.Errorf("invalid frame must retain last phase, got %q", u.Phase)
	}
	if u.Tier != TierPoor {
		t.Errorf("tier for an invisible frame = %q, want %q", u.Tier, TierPoor)
	}
}

func TestOccludedFrameHoldsVelocity(t *testing.T) {
	e := New(tuning(), nil)

	st := nextFrame()
	e.ProcessFrame(&st)
	hb := handOnBellFrame()
	if u := e.ProcessFrame(&hb); !u.Locked {
		t.Fatal("setup: expected lock")
	}

	// Wrist travelling upward: a real positive velocity reading.
	lift := handOnBellFrame()
	lift.Keypoints[pose.LeftWrist].Y = 0.40
	u := e.ProcessFrame(&lift)
	if u.Velocity <= 0 {
		t.Fatalf("setup: expected upward velocity, got %v", u.Velocity)
	}
	held := u.Velocity

	// Full occlusion: no velocity reading exists for this frame, so the
	// reported value holds instead of collapsing to zero.
	bad := nextFrame()
	for i := range bad.Keypoints {
		bad.Keypoints[i].Confidence = 0.1
	}
	u = e.ProcessFrame(&bad)
	if u.Velocity != held {
		t.Errorf("velocity after occluded frame = %v, want held %v", u.Velocity, held)
	}
}

func TestTimestampRegressionResets(t *testing.T) {
	e := New(tuning(), nil)

	st := nextFrame()
	e.ProcessFrame(&st)
	hb := handOnBellFrame()
	u := e.ProcessFrame(&hb)
	if !u.Locked {
		t.Fatal("setup: expected lock")
	}

	// A frame from the past (loop/seek): everything resets before it is
	// processed.
	old := st
	old.UnixNanos = st.UnixNanos - 5_000_000_000
	u = e.ProcessFrame(&old)
	if u.Locked {
		t.Error("regression must unlock the session")
	}
	if u.Phase != decode.StartPhase.String() {
		t.Errorf("regression must reset the decoder, got %q", u.Phase)
	}
	if u.RepCount != 0 {
		t.Errorf("regression must clear reps, got %d", u.RepCount)
	}
}

func TestCalibrateLifecycle(t *testing.T) {
	e := New(tuning(), nil)

	if err := e.Calibrate(1.80); err != ErrNoFrame {
		t.Errorf("calibrate before any frame = %v, want ErrNoFrame", err)
	}

	f := nextFrame()
	e.ProcessFrame(&f)
	if err := e.Calibrate(1.80); err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	p, ok := e.Profile()
	if !ok || p.MetersPerUnit <= 0 {
		t.Fatalf("expected positive profile, got %+v ok=%v", p, ok)
	}

	// A rejected recalibration leaves the prior profile untouched.
	bad := nextFrame()
	for i := range bad.Keypoints {
		bad.Keypoints[i].Confidence = 0.1
	}
	e.ProcessFrame(&bad)
	if err := e.Calibrate(1.80); err == nil {
		t.Fatal("expected calibration rejection on invisible frame")
	}
	p2, ok := e.Profile()
	if !ok || p2 != p {
		t.Errorf("failed calibration mutated profile: %+v → %+v", p, p2)
	}
}

func TestUpdateCallbackFires(t *testing.T) {
	e := New(tuning(), nil)
	var got []Update
	e.OnUpdate(func(u Update) { got = append(got, u) })

	f := nextFrame()
	e.ProcessFrame(&f)
	f = nextFrame()
	e.ProcessFrame(&f)

	if len(got) != 2 {
		t.Fatalf("callback fired %d times, want 2", len(got))
	}
	if got[1].UnixNanos <= got[0].UnixNanos {
		t.Error("updates must carry advancing frame timestamps")
	}
	if got[0].Tier != TierGood {
		t.Errorf("tier = %q, want %q", got[0].Tier, TierGood)
	}
}
