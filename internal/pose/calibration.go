package pose

import (
	"errors"
	"fmt"
)

// Calibration quality tiers, derived from detection confidence at capture.
type CalibrationQuality string

const (
	CalibrationGood CalibrationQuality = "good"
	CalibrationOK   CalibrationQuality = "ok"
)

// ErrLowVisibility is returned when calibration landmarks are not visible
// with enough confidence. The caller should prompt the user to step fully
// into frame; no profile state is mutated.
var ErrLowVisibility = errors.New("calibration landmarks below confidence floor")

// CalibrationProfile converts normalized image-space distances into meters.
// MetersPerUnit is strictly positive once a profile exists. A profile
// persists for the session and is only replaced by another Calibrate call.
type CalibrationProfile struct {
	HeightMeters  float64            `json:"height_m"`
	MetersPerUnit float64            `json:"meters_per_unit"`
	Quality       CalibrationQuality `json:"quality"`
	LockedAtNanos int64              `json:"locked_at"`
}

// CalibrationConfig holds the thresholds and the anthropometric correction
// used to turn a partial body span into a full-height estimate.
type CalibrationConfig struct {
	MinConfidence  float64 // floor for the calibration landmarks
	GoodConfidence float64 // tier boundary for CalibrationGood

	// EyeToAnkleHeightRatio approximates the nose-to-ankle span as this
	// fraction of full standing height. A heuristic, not a validated
	// constant; tunable via config, never silently adjusted in code.
	EyeToAnkleHeightRatio float64
}

// Calibrate derives a scale profile from one fully visible standing frame
// and the subject's known height. Each successful call fully overwrites any
// prior profile; a rejected call changes nothing.
func Calibrate(frame *Frame, heightMeters float64, cfg CalibrationConfig) (CalibrationProfile, error) {
	if heightMeters <= 0 {
		return CalibrationProfile{}, fmt.Errorf("height must be positive, got %v", heightMeters)
	}

	if !frame.Visible(cfg.MinConfidence, Nose, LeftAnkle, RightAnkle) {
		return CalibrationProfile{}, ErrLowVisibility
	}

	nose := frame.At(Nose)
	ankleY := (frame.At(LeftAnkle).Y + frame.At(RightAnkle).Y) / 2

	// y grows downwards, so a standing subject has the nose above the
	// ankles. A non-positive span means the subject is not upright (or
	// the estimate is garbage) and cannot seed a scale.
	span := ankleY - nose.Y
	if span <= 0 {
		return CalibrationProfile{}, fmt.Errorf("non-positive body span %v: subject not upright", span)
	}

	correctedSpan := span / cfg.EyeToAnkleHeightRatio

	quality := CalibrationOK
	if frame.MeanConfidence(Nose, LeftAnkle, RightAnkle) >= cfg.GoodConfidence {
		quality = CalibrationGood
	}

	return CalibrationProfile{
		HeightMeters:  heightMeters,
		MetersPerUnit: heightMeters / correctedSpan,
		Quality:       quality,
		LockedAtNanos: frame.UnixNanos,
	}, nil
}
