package pose

import (
	"math"
	"testing"
)

func TestFilterFirstSamplePassesThrough(t *testing.T) {
	f := NewFilter(1.0, 0.3, 1.0)
	got := f.Filter(10.0, 0.42)
	if got != 0.42 {
		t.Errorf("first sample must pass through raw, got %v", got)
	}
}

func TestFilterNonAdvancingTimestamp(t *testing.T) {
	f := NewFilter(1.0, 0.3, 1.0)
	f.Filter(10.0, 0.5)
	f.Filter(10.033, 0.6)

	// Equal timestamp: no division by zero, finite passthrough.
	got := f.Filter(10.033, 0.7)
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Fatalf("non-advancing timestamp produced non-finite output: %v", got)
	}
	if got != 0.7 {
		t.Errorf("stalled timestamp must reset and pass raw through, got %v", got)
	}

	// Backwards timestamp behaves the same.
	got = f.Filter(9.0, 0.8)
	if got != 0.8 {
		t.Errorf("backwards timestamp must reset and pass raw through, got %v", got)
	}
}

func TestFilterSmoothsJitter(t *testing.T) {
	f := NewFilter(1.0, 0.0, 1.0) // beta 0: fixed cutoff, heavy smoothing
	tNow := 0.0
	f.Filter(tNow, 0.5)

	// Alternating jitter around 0.5 at 30fps. Output must stay closer to
	// the mean than the raw jitter amplitude.
	var out float64
	for i := 1; i <= 60; i++ {
		tNow += 1.0 / 30.0
		raw := 0.5
		if i%2 == 0 {
			raw += 0.05
		} else {
			raw -= 0.05
		}
		out = f.Filter(tNow, raw)
	}
	if math.Abs(out-0.5) >= 0.05 {
		t.Errorf("smoothed jitter |%v - 0.5| should be below raw amplitude 0.05", out)
	}
}

func TestFilterTracksFastMotion(t *testing.T) {
	slow := NewFilter(1.0, 0.0, 1.0)
	fast := NewFilter(1.0, 5.0, 1.0)

	// Step ramp: a high beta filter should lag less.
	tNow := 0.0
	slow.Filter(tNow, 0.0)
	fast.Filter(tNow, 0.0)
	var slowOut, fastOut float64
	for i := 1; i <= 30; i++ {
		tNow += 1.0 / 30.0
		x := float64(i) * 0.02 // steady fast rise
		slowOut = slow.Filter(tNow, x)
		fastOut = fast.Filter(tNow, x)
	}
	target := 30 * 0.02
	if math.Abs(fastOut-target) >= math.Abs(slowOut-target) {
		t.Errorf("adaptive cutoff should reduce lag: fast err %v, slow err %v",
			math.Abs(fastOut-target), math.Abs(slowOut-target))
	}
}

func TestFilterReset(t *testing.T) {
	f := NewFilter(1.0, 0.3, 1.0)
	f.Filter(1.0, 0.1)
	f.Filter(1.1, 0.2)
	f.Reset()
	if got := f.Filter(0.5, 0.9); got != 0.9 {
		t.Errorf("after reset first sample must pass through, got %v", got)
	}
}

func TestFilterBankIndependence(t *testing.T) {
	b := NewFilterBank(1.0, 0.3, 1.0)

	f1 := Frame{UnixNanos: 1_000_000_000}
	for i := range f1.Keypoints {
		f1.Keypoints[i] = Keypoint{X: 0.5, Y: 0.5, Z: 0, Confidence: 0.9}
	}
	out1 := b.Smooth(&f1)
	if out1.Keypoints[Nose].X != 0.5 {
		t.Errorf("first smoothed frame must equal raw, got %v", out1.Keypoints[Nose].X)
	}

	// Move only the nose; other landmarks must be unaffected.
	f2 := f1
	f2.UnixNanos += 33_000_000
	f2.Keypoints[Nose].X = 0.6
	out2 := b.Smooth(&f2)
	if out2.Keypoints[Nose].X <= 0.5 || out2.Keypoints[Nose].X >= 0.6 {
		t.Errorf("nose should smooth between 0.5 and 0.6, got %v", out2.Keypoints[Nose].X)
	}
	if out2.Keypoints[LeftHip].X != 0.5 {
		t.Errorf("unmoved landmark must be unchanged, got %v", out2.Keypoints[LeftHip].X)
	}
	if out2.Keypoints[Nose].Confidence != 0.9 {
		t.Errorf("confidence must pass through, got %v", out2.Keypoints[Nose].Confidence)
	}
}
