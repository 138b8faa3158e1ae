// Package engine wires the per-frame pipeline: smoothing, feature
// extraction, classifier hand-off, grammar-constrained decoding, and the
// session referee. Engines are explicitly constructed and caller-owned so
// multiple sessions and tests run independently; there is no package-level
// instance.
package engine

import (
	"errors"

	"github.com/swingdata/repwatch/internal/config"
	"github.com/swingdata/repwatch/internal/decode"
	"github.com/swingdata/repwatch/internal/monitoring"
	"github.com/swingdata/repwatch/internal/pose"
	"github.com/swingdata/repwatch/internal/session"
)

// TrackingTier is the coarse per-frame confidence signal for UI display.
type TrackingTier string

const (
	TierGood TrackingTier = "good"
	TierOK   TrackingTier = "ok"
	TierPoor TrackingTier = "poor"
)

// Update is the per-frame output delivered to the UI collaborator.
type Update struct {
	UnixNanos int64        `json:"t"`
	Phase     string       `json:"phase"`
	Side      string       `json:"side"`
	SessionID string       `json:"session_id,omitempty"`
	Locked    bool         `json:"locked"`
	Parked    bool         `json:"parked"`
	RepCount  int          `json:"reps"`
	Velocity  float64      `json:"velocity_mps"`
	Peak      float64      `json:"peak_velocity_mps"`
	Tier      TrackingTier `json:"tier"`
}

// ErrNoFrame is returned by Calibrate before any frame has been processed.
var ErrNoFrame = errors.New("no frame processed yet")

// Engine processes one frame at a time, in strict arrival order, on a
// single goroutine. All stage state (filter bank, feature cache, decoder,
// referee) lives for the engine lifetime and resets together on a timestamp
// regression.
type Engine struct {
	bank      *pose.FilterBank
	extractor *pose.Extractor
	decoder   *decode.Decoder
	referee   *session.Machine

	calibCfg pose.CalibrationConfig
	profile  *pose.CalibrationProfile

	classifier Classifier
	steps      int
	scoreRows  [][]float64

	onUpdate func(Update)

	hasFrame  bool
	lastFrame pose.Frame
	lastPhase decode.Phase

	droppedClassifications int
}

// New builds an engine from tuning config and an external classifier.
// classifier may be nil, in which case decoding never advances and only
// geometry-driven state (side lock, auto-calibration) runs.
func New(cfg *config.TuningConfig, classifier Classifier) *Engine {
	grammar := decode.NewSwingGrammar(cfg.GetSelfTransitionBonus(), cfg.GetIllegalTransitionPenalty())
	decoder := decode.NewDecoder(grammar, cfg.GetStepsPerDecode())

	e := &Engine{
		bank: pose.NewFilterBank(
			cfg.GetSmootherMinCutoff(),
			cfg.GetSmootherBeta(),
			cfg.GetSmootherDerivativeCutoff(),
		),
		extractor: pose.NewExtractor(pose.ExtractorConfig{
			MinConfidence:        cfg.GetMinLandmarkConfidence(),
			DefaultMetersPerUnit: cfg.GetDefaultMetersPerUnit(),
		}),
		decoder: decoder,
		referee: session.New(session.ConfigFromTuning(cfg), decoder),
		calibCfg: pose.CalibrationConfig{
			MinConfidence:         cfg.GetCalibrationMinConfidence(),
			GoodConfidence:        cfg.GetCalibrationGoodConfidence(),
			EyeToAnkleHeightRatio: cfg.GetEyeToAnkleHeightRatio(),
		},
		classifier: classifier,
		steps:      cfg.GetStepsPerDecode(),
		lastPhase:  decode.StartPhase,
	}
	return e
}

// OnUpdate registers the per-frame UI callback.
func (e *Engine) OnUpdate(f func(Update)) { e.onUpdate = f }

// OnRep registers a callback fired once per credited rep.
func (e *Engine) OnRep(f func(session.RepEvent)) { e.referee.OnRep(f) }

// OnSessionEnd registers a callback fired when a session unlocks.
func (e *Engine) OnSessionEnd(f func(sessionID string, reps int, reason session.EndReason)) {
	e.referee.OnSessionEnd(f)
}

// ProcessFrame ingests one frame. Frames must arrive in order; a timestamp
// regression is treated as a loop or seek and resets every stateful stage
// before the frame is processed.
func (e *Engine) ProcessFrame(frame *pose.Frame) Update {
	if e.hasFrame && frame.UnixNanos < e.lastFrame.UnixNanos {
		monitoring.Logf("engine: timestamp regression (%d < %d), resetting",
			frame.UnixNanos, e.lastFrame.UnixNanos)
		e.reset()
	}
	e.hasFrame = true
	e.lastFrame = *frame

	// Smoothing and feature extraction run every frame, independent of
	// classifier cadence.
	smoothed := e.bank.Smooth(frame)
	vec, vMps, valid := e.extractor.Extract(&smoothed, e.referee.Side(), e.profile)

	phase := e.lastPhase
	if valid && e.classifier != nil {
		if !e.classifier.Submit(vec) {
			e.droppedClassifications++
		}
		if scores, ok := e.classifier.Poll(); ok {
			e.scoreRows = append(e.scoreRows, scores)
			if len(e.scoreRows) == e.steps {
				phase = e.decoder.Decode(e.scoreRows)
				e.scoreRows = e.scoreRows[:0]
			}
		}
	}
	// The referee sees raw keypoints: its geometric checks were tuned on
	// unfiltered data and must not inherit smoother lag. An invalid frame
	// carries no velocity reading; the referee holds its last one.
	e.referee.Observe(phase, frame, vMps, valid)

	// The referee may have reset the decoder (session end, false start);
	// the decoder's persisted phase is authoritative for display.
	e.lastPhase = e.decoder.Current()

	u := e.buildUpdate(frame)
	if e.onUpdate != nil {
		e.onUpdate(u)
	}
	return u
}

// Calibrate runs the scale estimator against the most recent raw frame. A
// failed calibration returns the error and leaves any prior profile intact.
func (e *Engine) Calibrate(heightMeters float64) error {
	if !e.hasFrame {
		return ErrNoFrame
	}
	p, err := pose.Calibrate(&e.lastFrame, heightMeters, e.calibCfg)
	if err != nil {
		monitoring.Logf("engine: calibration rejected: %v", err)
		return err
	}
	e.profile = &p
	monitoring.Logf("engine: calibrated %.2fm subject, %.3f m/unit (%s)",
		p.HeightMeters, p.MetersPerUnit, p.Quality)
	return nil
}

// Profile returns the active calibration profile, if any.
func (e *Engine) Profile() (pose.CalibrationProfile, bool) {
	if e.profile == nil {
		return pose.CalibrationProfile{}, false
	}
	return *e.profile, true
}

// DroppedClassifications reports how many valid frames were dropped from
// classification because inference was still in flight.
func (e *Engine) DroppedClassifications() int { return e.droppedClassifications }

// Snapshot returns the current referee state without processing a frame.
func (e *Engine) Snapshot() session.Snapshot { return e.referee.Snapshot() }

// Phase returns the last decoded phase.
func (e *Engine) Phase() decode.Phase { return e.lastPhase }

// reset clears every stateful stage. The calibration profile survives: it
// is mutated only by explicit Calibrate calls.
func (e *Engine) reset() {
	e.bank.Reset()
	e.extractor.Reset()
	e.decoder.Reset()
	e.referee.Reset()
	e.scoreRows = e.scoreRows[:0]
	e.lastPhase = decode.StartPhase
}

func (e *Engine) buildUpdate(frame *pose.Frame) Update {
	snap := e.referee.Snapshot()
	return Update{
		UnixNanos: frame.UnixNanos,
		Phase:     e.lastPhase.String(),
		Side:      snap.Side.String(),
		SessionID: snap.SessionID,
		Locked:    snap.Locked,
		Parked:    snap.Parked,
		RepCount:  snap.RepCount,
		Velocity:  snap.CurrentVelocity,
		Peak:      snap.PeakVelocity,
		Tier:      trackingTier(frame),
	}
}

// trackingTier grades the frame by mean confidence over the landmarks the
// pipeline actually consumes.
func trackingTier(frame *pose.Frame) TrackingTier {
	mean := frame.MeanConfidence(
		pose.LeftShoulder, pose.RightShoulder,
		pose.LeftHip, pose.RightHip,
		pose.LeftKnee, pose.RightKnee,
		pose.LeftAnkle, pose.RightAnkle,
		pose.LeftWrist, pose.RightWrist,
	)
	switch {
	case mean >= 0.8:
		return TierGood
	case mean >= 0.5:
		return TierOK
	default:
		return TierPoor
	}
}
