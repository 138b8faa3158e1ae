// Package decode segments the pose stream into movement phases with a
// grammar-constrained streaming Viterbi decoder over externally produced
// classifier scores.
package decode

// Phase is one discrete stage of the swing cycle. The integer values index
// classifier score rows and the grammar cost matrix, so the order is a wire
// contract with the trained model.
type Phase int

const (
	Standing Phase = iota
	HandOnBell
	Hike
	Pull
	Float
	Lockout
	Drop
	Park
)

// PhaseCount is the number of phases and the expected classifier row width.
const PhaseCount = 8

// StartPhase is the canonical phase a fresh or reset decoder sits in.
const StartPhase = Standing

var phaseNames = [PhaseCount]string{
	"STANDING",
	"HANDONBELL",
	"HIKE",
	"PULL",
	"FLOAT",
	"LOCKOUT",
	"DROP",
	"PARK",
}

func (p Phase) String() string {
	if p < 0 || p >= PhaseCount {
		return "UNKNOWN"
	}
	return phaseNames[p]
}

// Concentric reports whether the phase is in the upward, against-gravity
// portion of the cycle. Velocity peaks are only meaningful here.
func (p Phase) Concentric() bool {
	return p == Pull || p == Float
}
