// Package session owns the debounced finite-state referee that turns
// decoded phases, raw keypoints, and real-world velocity into side lock,
// rep counts, and gated velocity metrics.
package session

import (
	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/swingdata/repwatch/internal/config"
	"github.com/swingdata/repwatch/internal/decode"
	"github.com/swingdata/repwatch/internal/monitoring"
	"github.com/swingdata/repwatch/internal/pose"
)

// Config holds the referee thresholds. All geometric distances are in
// normalized image units; velocities in m/s; debounces in frames.
type Config struct {
	MinConfidence float64 // floor for landmarks used in geometric checks

	WarmupFrames           int     // frames averaged into the neutral posture baseline
	SideLockWristAnkleDist float64 // max wrist-to-ankle distance for side lock

	StandupExtensionFraction float64 // fraction of max extension counting as "stood up"
	StandupDebounceFrames    int

	HingeExtensionFraction float64 // extension below this fraction counts as hinged
	ParkVelocityEpsilon    float64 // |v| below this counts as still
	ParkCancelVelocity     float64 // |v| above this cancels a nominal park
	ParkDebounceFrames     int
}

// ConfigFromTuning builds a referee Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		MinConfidence:            cfg.GetMinLandmarkConfidence(),
		WarmupFrames:             cfg.GetWarmupFrames(),
		SideLockWristAnkleDist:   cfg.GetSideLockWristAnkleDist(),
		StandupExtensionFraction: cfg.GetStandupExtensionFraction(),
		StandupDebounceFrames:    cfg.GetStandupDebounceFrames(),
		HingeExtensionFraction:   cfg.GetHingeExtensionFraction(),
		ParkVelocityEpsilon:      cfg.GetParkVelocityEpsilon(),
		ParkCancelVelocity:       cfg.GetParkCancelVelocity(),
		ParkDebounceFrames:       cfg.GetParkDebounceFrames(),
	}
}

// DecoderControl is the referee's authority channel into the decoder. It is
// a first-class, documented contract rather than an implicit mutation:
// ending or aborting a session snaps the decoder back to its start phase so
// drift never survives across sessions, and detecting a park steers the
// decoder onto PARK when the classifier lags behind the geometry.
type DecoderControl interface {
	Reset()
	Override(decode.Phase)
}

// RepEvent describes one credited repetition.
type RepEvent struct {
	ID           string  `json:"id"`
	SessionID    string  `json:"session_id"`
	Number       int     `json:"number"`
	PeakVelocity float64 `json:"peak_velocity_mps"`
	UnixNanos    int64   `json:"t"`
}

// EndReason distinguishes why a session unlocked.
type EndReason string

const (
	EndFalseStart EndReason = "false_start" // stood up before the first rep
	EndStoodUp    EndReason = "stood_up"    // parked the bell and stood up
	EndReset      EndReason = "reset"       // external reset (seek, teardown)
)

// Machine is the per-session referee. Single-writer: feed frames from one
// goroutine only.
type Machine struct {
	cfg     Config
	decoder DecoderControl

	// Auto-calibration accumulator. The classifier is not reliable for
	// session-boundary detection, so "has the user stood up" is answered
	// purely from this geometric baseline. The maximum tracks every
	// frame; the neutral warm-up mean accumulates only before a lock so
	// working postures never contaminate it.
	warmupExtensions []float64
	neutralExtension float64
	maxExtension     float64

	locked    bool
	sessionID string
	side      pose.Side
	repCount  int

	currentVelocity float64
	peakVelocity    float64
	enteredPower    bool
	reachedTop      bool

	parked        bool
	parkFrames    int
	standupFrames int

	prevPhase decode.Phase

	onRep func(RepEvent)
	onEnd func(sessionID string, reps int, reason EndReason)
}

// New returns a referee wired to the given decoder control.
func New(cfg Config, decoder DecoderControl) *Machine {
	return &Machine{
		cfg:       cfg,
		decoder:   decoder,
		side:      pose.SideNone,
		prevPhase: decode.StartPhase,
	}
}

// OnRep registers a callback fired once per credited rep.
func (m *Machine) OnRep(f func(RepEvent)) { m.onRep = f }

// OnSessionEnd registers a callback fired when a locked session unlocks.
func (m *Machine) OnSessionEnd(f func(sessionID string, reps int, reason EndReason)) {
	m.onEnd = f
}

// Snapshot is the referee state exposed per frame.
type Snapshot struct {
	SessionID       string    `json:"session_id,omitempty"`
	Locked          bool      `json:"locked"`
	Side            pose.Side `json:"-"`
	RepCount        int       `json:"reps"`
	Parked          bool      `json:"parked"`
	CurrentVelocity float64   `json:"velocity_mps"`
	PeakVelocity    float64   `json:"peak_velocity_mps"`
}

// Snapshot returns the current referee state.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		SessionID:       m.sessionID,
		Locked:          m.locked,
		Side:            m.side,
		RepCount:        m.repCount,
		Parked:          m.parked,
		CurrentVelocity: m.currentVelocity,
		PeakVelocity:    m.peakVelocity,
	}
}

// Side returns the locked side, or SideNone.
func (m *Machine) Side() pose.Side { return m.side }

// NeutralExtension returns the warm-up average of the torso extension
// metric, or 0 until the warm-up completes. Once set it is the reference
// for the stand-up and hinge thresholds.
func (m *Machine) NeutralExtension() float64 { return m.neutralExtension }

// MaxExtension returns the maximum torso extension observed so far.
func (m *Machine) MaxExtension() float64 { return m.maxExtension }

// Observe feeds one frame: the decoded phase, the raw (unsmoothed) frame
// for geometric checks, and the real-world vertical velocity in m/s. vOK
// reports whether the frame yielded a usable velocity; when false, the
// reported velocity holds at its last value and every velocity-dependent
// check degrades to "condition not met". All checks degrade the same way on
// low-confidence input; per-frame noise is expected, not exceptional.
func (m *Machine) Observe(phase decode.Phase, frame *pose.Frame, vMps float64, vOK bool) {
	m.updateAutoCalibration(frame)

	if !m.locked {
		m.trySideLock(frame)
		m.prevPhase = phase
		return
	}

	m.countReps(phase, frame.UnixNanos)
	m.gateVelocity(phase, vMps, vOK)

	if m.repCount == 0 {
		// A lifter who stands fully upright before completing a rep
		// grabbed the bell by mistake or bailed: treat as false start.
		if m.debounceStandup(frame) {
			m.unlock(EndFalseStart)
		}
	} else {
		m.watchForParkAndEnd(frame, vMps, vOK)
	}

	m.prevPhase = phase
}

// Reset returns the referee to its initial state, including the
// auto-calibration accumulator. Used on timestamp regressions and teardown.
func (m *Machine) Reset() {
	if m.locked {
		m.unlock(EndReset)
	}
	m.warmupExtensions = nil
	m.neutralExtension = 0
	m.maxExtension = 0
	m.prevPhase = decode.StartPhase
}

// torsoExtension measures how upright the trunk is: the vertical distance
// from hip line to shoulder line in image units. Standing tall maximises
// it; a deep hinge collapses it. Returns ok=false when the trunk landmarks
// are not confidently visible.
func (m *Machine) torsoExtension(frame *pose.Frame) (float64, bool) {
	if !frame.Visible(m.cfg.MinConfidence,
		pose.LeftShoulder, pose.RightShoulder, pose.LeftHip, pose.RightHip) {
		return 0, false
	}
	shoulderY := (frame.At(pose.LeftShoulder).Y + frame.At(pose.RightShoulder).Y) / 2
	hipY := (frame.At(pose.LeftHip).Y + frame.At(pose.RightHip).Y) / 2
	return hipY - shoulderY, true
}

func (m *Machine) updateAutoCalibration(frame *pose.Frame) {
	ext, ok := m.torsoExtension(frame)
	if !ok {
		return
	}
	if !m.locked && len(m.warmupExtensions) < m.cfg.WarmupFrames {
		m.warmupExtensions = append(m.warmupExtensions, ext)
		if len(m.warmupExtensions) == m.cfg.WarmupFrames {
			m.neutralExtension = stat.Mean(m.warmupExtensions, nil)
		}
	}
	if ext > m.maxExtension {
		m.maxExtension = ext
	}
}

// trySideLock runs the geometric hand-on-bell check for each side and locks
// the first side that satisfies it: wrist below the knee and within reach
// of the ankle.
func (m *Machine) trySideLock(frame *pose.Frame) {
	for _, side := range []pose.Side{pose.SideLeft, pose.SideRight} {
		wrist, knee, ankle := side.Wrist(), side.Knee(), side.Ankle()
		if !frame.Visible(m.cfg.MinConfidence, wrist, knee, ankle) {
			continue
		}
		w, a := frame.At(wrist), frame.At(ankle)
		if w.Y <= frame.At(knee).Y {
			continue // wrist not below the knee (y grows downward)
		}
		dx, dy := w.X-a.X, w.Y-a.Y
		if dx*dx+dy*dy > m.cfg.SideLockWristAnkleDist*m.cfg.SideLockWristAnkleDist {
			continue
		}
		m.lock(side)
		return
	}
}

func (m *Machine) lock(side pose.Side) {
	m.locked = true
	m.side = side
	m.sessionID = uuid.NewString()
	m.repCount = 0
	m.currentVelocity = 0
	m.peakVelocity = 0
	m.enteredPower = false
	m.reachedTop = false
	m.parked = false
	m.parkFrames = 0
	m.standupFrames = 0
	monitoring.Logf("session %s: locked %s side", m.sessionID, side)
}

func (m *Machine) unlock(reason EndReason) {
	id, reps := m.sessionID, m.repCount
	m.locked = false
	m.side = pose.SideNone
	m.sessionID = ""
	m.repCount = 0
	m.currentVelocity = 0
	m.peakVelocity = 0
	m.enteredPower = false
	m.reachedTop = false
	m.parked = false
	m.parkFrames = 0
	m.standupFrames = 0
	m.decoder.Reset()
	monitoring.Logf("session %s: ended (%s) after %d reps", id, reason, reps)
	if m.onEnd != nil {
		m.onEnd(id, reps, reason)
	}
}

// countReps drives the ordered-flag rep cycle. A rep is credited only for
// the complete PULL → LOCKOUT → DROP sequence; partial or aborted lifts
// never increment the count.
func (m *Machine) countReps(phase decode.Phase, atNanos int64) {
	entered := phase != m.prevPhase

	switch {
	case entered && phase == decode.Pull:
		m.enteredPower = true
		m.reachedTop = false
		m.peakVelocity = 0
	case entered && phase == decode.Lockout && m.enteredPower:
		m.reachedTop = true
	case entered && phase == decode.Drop && m.prevPhase == decode.Lockout && m.reachedTop:
		m.repCount++
		m.enteredPower = false
		m.reachedTop = false
		monitoring.Logf("session %s: rep %d credited, peak %.2f m/s", m.sessionID, m.repCount, m.peakVelocity)
		if m.onRep != nil {
			m.onRep(RepEvent{
				ID:           uuid.NewString(),
				SessionID:    m.sessionID,
				Number:       m.repCount,
				PeakVelocity: m.peakVelocity,
				UnixNanos:    atNanos,
			})
		}
	}
}

// gateVelocity reports the current velocity every frame with a usable
// reading but only raises the peak while the decoded phase is concentric.
// Frames without a reading hold the last reported value.
func (m *Machine) gateVelocity(phase decode.Phase, vMps float64, vOK bool) {
	if !vOK {
		return
	}
	m.currentVelocity = vMps
	if phase.Concentric() && vMps > m.peakVelocity {
		m.peakVelocity = vMps
	}
}

// referenceExtension is the standing-posture yardstick: the warm-up
// neutral baseline once it exists, otherwise the running maximum. Overhead
// lockouts raise the shoulder line past the true standing posture and
// inflate the maximum, so the warm-up mean is preferred once available.
func (m *Machine) referenceExtension() float64 {
	if m.neutralExtension > 0 {
		return m.neutralExtension
	}
	return m.maxExtension
}

// stoodUp is the geometric session-boundary condition: trunk extended near
// the standing reference with both wrists above the hips.
func (m *Machine) stoodUp(frame *pose.Frame) bool {
	ext, ok := m.torsoExtension(frame)
	ref := m.referenceExtension()
	if !ok || ref <= 0 {
		return false
	}
	if ext < m.cfg.StandupExtensionFraction*ref {
		return false
	}
	if !frame.Visible(m.cfg.MinConfidence,
		pose.LeftWrist, pose.RightWrist, pose.LeftHip, pose.RightHip) {
		return false
	}
	return frame.At(pose.LeftWrist).Y < frame.At(pose.LeftHip).Y &&
		frame.At(pose.RightWrist).Y < frame.At(pose.RightHip).Y
}

// debounceStandup counts consecutive stood-up frames and reports when the
// condition has been sustained long enough.
func (m *Machine) debounceStandup(frame *pose.Frame) bool {
	if m.stoodUp(frame) {
		m.standupFrames++
	} else {
		m.standupFrames = 0
	}
	return m.standupFrames >= m.cfg.StandupDebounceFrames
}

// watchForParkAndEnd handles the mid-set endgame: a sustained hinged,
// near-still posture parks the bell; standing up from parked ends the
// session. A velocity spike while nominally parked cancels the flag so a
// momentary pause mid-set never ends a session.
func (m *Machine) watchForParkAndEnd(frame *pose.Frame, vMps float64, vOK bool) {
	if m.parked {
		if vOK && (vMps > m.cfg.ParkCancelVelocity || vMps < -m.cfg.ParkCancelVelocity) {
			m.parked = false
			m.parkFrames = 0
			m.standupFrames = 0
			monitoring.Logf("session %s: park cancelled by velocity spike", m.sessionID)
			return
		}
		if m.debounceStandup(frame) {
			m.unlock(EndStoodUp)
		}
		return
	}

	ext, ok := m.torsoExtension(frame)
	ref := m.referenceExtension()
	hinged := ok && ref > 0 && ext < m.cfg.HingeExtensionFraction*ref
	// An occluded wrist produces no velocity reading; that is not
	// stillness.
	still := vOK && vMps < m.cfg.ParkVelocityEpsilon && vMps > -m.cfg.ParkVelocityEpsilon
	if hinged && still {
		m.parkFrames++
	} else {
		m.parkFrames = 0
	}
	if m.parkFrames >= m.cfg.ParkDebounceFrames {
		m.parked = true
		m.standupFrames = 0
		m.decoder.Override(decode.Park)
		monitoring.Logf("session %s: parked", m.sessionID)
	}
}
