package pose

// Keypoint is one estimated body landmark for one frame. Coordinates are in
// normalized image space: x and y in [0, 1] with y increasing downwards, z
// in the estimator's depth units. Confidence is the estimator's visibility
// score in [0, 1]. Immutable once the frame is built.
type Keypoint struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Confidence float64 `json:"c"`
}

// Frame is one instant of the pose stream: a timestamp plus the full
// landmark set. Timestamps must be monotonically non-decreasing within one
// session; a regression signals a loop or seek and forces stateful
// components to reset.
type Frame struct {
	UnixNanos int64                  `json:"t"`
	Keypoints [NumLandmarks]Keypoint `json:"kp"`
}

// Seconds returns the frame timestamp in seconds.
func (f *Frame) Seconds() float64 {
	return float64(f.UnixNanos) / 1e9
}

// At returns the keypoint for the given landmark.
func (f *Frame) At(l Landmark) Keypoint {
	return f.Keypoints[l]
}

// Visible reports whether every listed landmark meets the confidence floor.
func (f *Frame) Visible(minConfidence float64, landmarks ...Landmark) bool {
	for _, l := range landmarks {
		if f.Keypoints[l].Confidence < minConfidence {
			return false
		}
	}
	return true
}

// MeanConfidence returns the average confidence over the listed landmarks,
// or over all landmarks when none are listed.
func (f *Frame) MeanConfidence(landmarks ...Landmark) float64 {
	if len(landmarks) == 0 {
		sum := 0.0
		for i := range f.Keypoints {
			sum += f.Keypoints[i].Confidence
		}
		return sum / NumLandmarks
	}
	sum := 0.0
	for _, l := range landmarks {
		sum += f.Keypoints[l].Confidence
	}
	return sum / float64(len(landmarks))
}
