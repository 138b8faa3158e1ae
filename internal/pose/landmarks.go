// Package pose holds the keypoint data model and the per-frame kinematic
// stages: coordinate smoothing, real-world-scale calibration, and feature
// extraction for the external phase classifier.
package pose

// Landmark identifies a body keypoint by its fixed index in a Frame. The
// numbering follows the 33-point convention of the upstream pose estimator
// and is a wire contract: indices must never be reassigned.
type Landmark int

const (
	Nose Landmark = 0

	LeftShoulder  Landmark = 11
	RightShoulder Landmark = 12
	LeftElbow     Landmark = 13
	RightElbow    Landmark = 14
	LeftWrist     Landmark = 15
	RightWrist    Landmark = 16

	LeftHip    Landmark = 23
	RightHip   Landmark = 24
	LeftKnee   Landmark = 25
	RightKnee  Landmark = 26
	LeftAnkle  Landmark = 27
	RightAnkle Landmark = 28
	LeftHeel   Landmark = 29
	RightHeel  Landmark = 30
)

// NumLandmarks is the number of keypoints per frame.
const NumLandmarks = 33

// Axes tracked per landmark by the smoother bank.
const NumAxes = 3

// Side selects which body side supplies the limb landmarks for feature
// extraction and session geometry.
type Side int

const (
	SideNone Side = iota
	SideLeft
	SideRight
)

func (s Side) String() string {
	switch s {
	case SideLeft:
		return "left"
	case SideRight:
		return "right"
	default:
		return "none"
	}
}

// Shoulder returns the shoulder landmark for the side. SideNone defaults to
// the left side, the canonical fallback when no side has been locked yet.
func (s Side) Shoulder() Landmark {
	if s == SideRight {
		return RightShoulder
	}
	return LeftShoulder
}

func (s Side) Elbow() Landmark {
	if s == SideRight {
		return RightElbow
	}
	return LeftElbow
}

func (s Side) Wrist() Landmark {
	if s == SideRight {
		return RightWrist
	}
	return LeftWrist
}

func (s Side) Hip() Landmark {
	if s == SideRight {
		return RightHip
	}
	return LeftHip
}

func (s Side) Knee() Landmark {
	if s == SideRight {
		return RightKnee
	}
	return LeftKnee
}

func (s Side) Ankle() Landmark {
	if s == SideRight {
		return RightAnkle
	}
	return LeftAnkle
}

// Opposite returns the other body side. SideNone maps to itself.
func (s Side) Opposite() Side {
	switch s {
	case SideLeft:
		return SideRight
	case SideRight:
		return SideLeft
	default:
		return SideNone
	}
}
