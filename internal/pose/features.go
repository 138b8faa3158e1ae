package pose

import "math"

// Feature normalization constants. These are a frozen numeric contract with
// the trained classifier: the model learned against inputs scaled exactly
// this way, so changing any of them silently invalidates every checkpoint.
// Not tunables.
const (
	// angleNorm divides joint angles in degrees into [0, 1].
	angleNorm = 180.0
	// angularVelNorm is the full-scale angular velocity in degrees/second.
	angularVelNorm = 600.0
	// verticalVelNorm is the full-scale wrist vertical velocity in
	// normalized image units/second.
	verticalVelNorm = 2.0
)

// FeatureCount is the length of the classifier input vector.
const FeatureCount = 8

// FeatureVector is one frame of classifier input. Field order mirrors the
// training schema and is frozen: Vector() emits the fields in exactly this
// order, and the array return type pins the length at compile time.
type FeatureVector struct {
	HipAngle     float64 // shoulder-hip-knee angle / angleNorm
	KneeAngle    float64 // hip-knee-ankle angle / angleNorm
	HipAngleVel  float64 // deg/s / angularVelNorm, backward difference
	KneeAngleVel float64 // deg/s / angularVelNorm, backward difference
	WristHeight  float64 // raw normalized wrist y (image space, y down)
	WristVel     float64 // units/s / verticalVelNorm, backward difference
	TorsoLean    float64 // shoulder-hip horizontal offset, side-invariant sign
	SideFlag     float64 // 0 = left, 1 = right
}

// Vector returns the features in their frozen wire order.
func (v FeatureVector) Vector() [FeatureCount]float64 {
	return [FeatureCount]float64{
		v.HipAngle,
		v.KneeAngle,
		v.HipAngleVel,
		v.KneeAngleVel,
		v.WristHeight,
		v.WristVel,
		v.TorsoLean,
		v.SideFlag,
	}
}

// ExtractorConfig holds the extraction thresholds and the fallback scale
// used for real-world velocity before calibration.
type ExtractorConfig struct {
	MinConfidence        float64
	DefaultMetersPerUnit float64
}

// Extractor turns frames into classifier feature vectors plus a real-world
// vertical velocity for the session referee. It caches the previous valid
// frame's angles so velocities are backward finite differences; invalid
// frames leave the cache untouched and the next valid frame differentiates
// across the gap.
type Extractor struct {
	cfg ExtractorConfig

	hasPrev       bool
	prevT         float64
	prevHipAngle  float64 // degrees
	prevKneeAngle float64 // degrees
	prevWristY    float64
}

// NewExtractor returns an extractor with empty cache.
func NewExtractor(cfg ExtractorConfig) *Extractor {
	return &Extractor{cfg: cfg}
}

// Reset clears the previous-frame cache. The next extraction reports zero
// velocities.
func (e *Extractor) Reset() {
	e.hasPrev = false
}

// angleDeg returns the angle at vertex b formed by points a and c, in
// degrees. The cosine is clamped to [-1, 1] before acos: float error on
// near-collinear triples pushes the raw value fractionally outside the
// range and must never surface as NaN. Degenerate zero-length segments
// yield 0.
func angleDeg(a, b, c Keypoint) float64 {
	v1x, v1y := a.X-b.X, a.Y-b.Y
	v2x, v2y := c.X-b.X, c.Y-b.Y
	n1 := math.Hypot(v1x, v1y)
	n2 := math.Hypot(v2x, v2y)
	if n1 == 0 || n2 == 0 {
		return 0
	}
	cos := (v1x*v2x + v1y*v2y) / (n1 * n2)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// Extract computes the feature vector and the true vertical wrist velocity
// in m/s (upward positive) for one frame. Side selects the landmark subset;
// SideNone falls back to the left side. Returns ok=false when any required
// landmark is below the confidence floor, in which case nothing is cached
// and callers should skip the frame.
//
// The m/s velocity uses the calibration scale (or the default assumed scale
// when profile is nil) and is independent of the normalized WristVel feature
// fed to the classifier — the two must never be conflated.
func (e *Extractor) Extract(frame *Frame, side Side, profile *CalibrationProfile) (FeatureVector, float64, bool) {
	shoulder := side.Shoulder()
	hip := side.Hip()
	knee := side.Knee()
	ankle := side.Ankle()
	wrist := side.Wrist()

	if !frame.Visible(e.cfg.MinConfidence, shoulder, hip, knee, ankle, wrist) {
		return FeatureVector{}, 0, false
	}

	hipAngle := angleDeg(frame.At(shoulder), frame.At(hip), frame.At(knee))
	kneeAngle := angleDeg(frame.At(hip), frame.At(knee), frame.At(ankle))
	wristY := frame.At(wrist).Y

	lean := frame.At(shoulder).X - frame.At(hip).X
	sideFlag := 0.0
	if side == SideRight {
		// Mirror so a forward lean has the same sign on either side.
		lean = -lean
		sideFlag = 1.0
	}

	v := FeatureVector{
		HipAngle:    hipAngle / angleNorm,
		KneeAngle:   kneeAngle / angleNorm,
		WristHeight: wristY,
		TorsoLean:   lean,
		SideFlag:    sideFlag,
	}

	var vMps float64
	tNow := frame.Seconds()
	if e.hasPrev && tNow > e.prevT {
		dt := tNow - e.prevT
		v.HipAngleVel = (hipAngle - e.prevHipAngle) / dt / angularVelNorm
		v.KneeAngleVel = (kneeAngle - e.prevKneeAngle) / dt / angularVelNorm
		v.WristVel = (wristY - e.prevWristY) / dt / verticalVelNorm

		metersPerUnit := e.cfg.DefaultMetersPerUnit
		if profile != nil && profile.MetersPerUnit > 0 {
			metersPerUnit = profile.MetersPerUnit
		}
		// Image y grows downwards; upward motion is positive velocity.
		vMps = -(wristY - e.prevWristY) / dt * metersPerUnit
	}

	e.hasPrev = true
	e.prevT = tNow
	e.prevHipAngle = hipAngle
	e.prevKneeAngle = kneeAngle
	e.prevWristY = wristY

	return v, vMps, true
}
