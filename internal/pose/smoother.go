package pose

import "math"

// Filter is a one-euro adaptive low-pass filter for a single scalar. At low
// speeds the cutoff drops and smoothing dominates jitter; during fast motion
// the cutoff rises so the output tracks with little lag. State persists for
// the engine lifetime and is mutated on every sample.
type Filter struct {
	minCutoff float64 // Hz, cutoff at rest
	beta      float64 // cutoff gain per unit of speed
	dCutoff   float64 // Hz, fixed cutoff for the derivative estimate

	hasPrev bool
	prevT   float64 // seconds
	prevX   float64 // previous filtered value
	prevDx  float64 // previous filtered derivative
}

// NewFilter returns a one-euro filter with the given cutoffs.
func NewFilter(minCutoff, beta, dCutoff float64) *Filter {
	return &Filter{minCutoff: minCutoff, beta: beta, dCutoff: dCutoff}
}

// smoothingAlpha converts a cutoff frequency and a sample interval into an
// exponential smoothing factor in (0, 1).
func smoothingAlpha(dt, cutoff float64) float64 {
	tau := 1.0 / (2.0 * math.Pi * cutoff)
	return 1.0 / (1.0 + tau/dt)
}

// Filter feeds one timestamped sample through the filter and returns the
// smoothed value. The first sample, or any sample whose timestamp does not
// advance (time moved backwards or stalled), resets the filter and passes
// the raw value through unchanged.
func (f *Filter) Filter(tSeconds, x float64) float64 {
	if !f.hasPrev || tSeconds <= f.prevT {
		f.hasPrev = true
		f.prevT = tSeconds
		f.prevX = x
		f.prevDx = 0
		return x
	}

	dt := tSeconds - f.prevT

	dx := (x - f.prevX) / dt
	aD := smoothingAlpha(dt, f.dCutoff)
	dxHat := aD*dx + (1-aD)*f.prevDx

	cutoff := f.minCutoff + f.beta*math.Abs(dxHat)
	a := smoothingAlpha(dt, cutoff)
	xHat := a*x + (1-a)*f.prevX

	f.prevT = tSeconds
	f.prevX = xHat
	f.prevDx = dxHat
	return xHat
}

// Reset clears the filter memory. The next sample passes through raw.
func (f *Filter) Reset() {
	f.hasPrev = false
	f.prevT = 0
	f.prevX = 0
	f.prevDx = 0
}

// FilterBank owns one independent Filter per tracked scalar: every landmark
// coordinate axis. There is no cross-coordinate coupling. Constructed once
// per engine and reset on timestamp regressions.
type FilterBank struct {
	filters [NumLandmarks][NumAxes]Filter
}

// NewFilterBank builds a bank of identically tuned filters.
func NewFilterBank(minCutoff, beta, dCutoff float64) *FilterBank {
	b := &FilterBank{}
	for i := range b.filters {
		for j := range b.filters[i] {
			b.filters[i][j] = Filter{minCutoff: minCutoff, beta: beta, dCutoff: dCutoff}
		}
	}
	return b
}

// Smooth filters every coordinate of the frame and returns the smoothed
// copy. Confidence scores pass through untouched.
func (b *FilterBank) Smooth(f *Frame) Frame {
	t := f.Seconds()
	out := *f
	for i := range f.Keypoints {
		kp := &f.Keypoints[i]
		out.Keypoints[i].X = b.filters[i][0].Filter(t, kp.X)
		out.Keypoints[i].Y = b.filters[i][1].Filter(t, kp.Y)
		out.Keypoints[i].Z = b.filters[i][2].Filter(t, kp.Z)
	}
	return out
}

// Reset clears every filter in the bank.
func (b *FilterBank) Reset() {
	for i := range b.filters {
		for j := range b.filters[i] {
			b.filters[i][j].Reset()
		}
	}
}
