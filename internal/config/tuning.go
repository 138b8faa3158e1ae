package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// Fields are pointers so a partial JSON file only overrides what it names;
// the Get* accessors supply the fallback defaults.
//
// Feature normalization constants are deliberately absent: they are a frozen
// numeric contract with the trained classifier, not tunables.
type TuningConfig struct {
	// Smoother params (one-euro filter)
	SmootherMinCutoff        *float64 `json:"smoother_min_cutoff,omitempty"`
	SmootherBeta             *float64 `json:"smoother_beta,omitempty"`
	SmootherDerivativeCutoff *float64 `json:"smoother_derivative_cutoff,omitempty"`

	// Feature extraction params
	MinLandmarkConfidence *float64 `json:"min_landmark_confidence,omitempty"`

	// Calibration params
	CalibrationMinConfidence  *float64 `json:"calibration_min_confidence,omitempty"`
	CalibrationGoodConfidence *float64 `json:"calibration_good_confidence,omitempty"`
	EyeToAnkleHeightRatio     *float64 `json:"eye_to_ankle_height_ratio,omitempty"`
	DefaultMetersPerUnit      *float64 `json:"default_meters_per_unit,omitempty"`

	// Decoder params
	SelfTransitionBonus      *float64 `json:"self_transition_bonus,omitempty"`
	IllegalTransitionPenalty *float64 `json:"illegal_transition_penalty,omitempty"`
	StepsPerDecode           *int     `json:"steps_per_decode,omitempty"`

	// Session state machine params
	WarmupFrames             *int     `json:"warmup_frames,omitempty"`
	SideLockWristAnkleDist   *float64 `json:"side_lock_wrist_ankle_dist,omitempty"`
	StandupExtensionFraction *float64 `json:"standup_extension_fraction,omitempty"`
	StandupDebounceFrames    *int     `json:"standup_debounce_frames,omitempty"`
	HingeExtensionFraction   *float64 `json:"hinge_extension_fraction,omitempty"`
	ParkVelocityEpsilon      *float64 `json:"park_velocity_epsilon,omitempty"`
	ParkCancelVelocity       *float64 `json:"park_cancel_velocity,omitempty"`
	ParkDebounceFrames       *int     `json:"park_debounce_frames,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Every Get* accessor then returns its built-in default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the JSON retain their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from
// DefaultConfigPath, searching from the current directory up towards the
// repository root. Falls back to the built-in accessor defaults when the
// file cannot be found, so tests run from any package directory.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/<pkg>/
		"../../../" + DefaultConfigPath, // from cmd/tools/<pkg>/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	// Fall back to built-in defaults: an empty config resolves every
	// accessor to its default value, which is what the defaults file
	// records anyway.
	return EmptyTuningConfig()
}

// Validate checks that all set fields are within valid operating ranges.
func (c *TuningConfig) Validate() error {
	checkPositive := func(name string, v *float64) error {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, *v)
		}
		return nil
	}
	checkFraction := func(name string, v *float64) error {
		if v != nil && (*v <= 0 || *v > 1) {
			return fmt.Errorf("%s must be in (0, 1], got %v", name, *v)
		}
		return nil
	}
	checkMinInt := func(name string, v *int, min int) error {
		if v != nil && *v < min {
			return fmt.Errorf("%s must be >= %d, got %d", name, min, *v)
		}
		return nil
	}

	for _, err := range []error{
		checkPositive("smoother_min_cutoff", c.SmootherMinCutoff),
		checkPositive("smoother_derivative_cutoff", c.SmootherDerivativeCutoff),
		checkFraction("min_landmark_confidence", c.MinLandmarkConfidence),
		checkFraction("calibration_min_confidence", c.CalibrationMinConfidence),
		checkFraction("calibration_good_confidence", c.CalibrationGoodConfidence),
		checkFraction("eye_to_ankle_height_ratio", c.EyeToAnkleHeightRatio),
		checkPositive("default_meters_per_unit", c.DefaultMetersPerUnit),
		checkPositive("illegal_transition_penalty", c.IllegalTransitionPenalty),
		checkMinInt("steps_per_decode", c.StepsPerDecode, 1),
		checkMinInt("warmup_frames", c.WarmupFrames, 1),
		checkPositive("side_lock_wrist_ankle_dist", c.SideLockWristAnkleDist),
		checkFraction("standup_extension_fraction", c.StandupExtensionFraction),
		checkMinInt("standup_debounce_frames", c.StandupDebounceFrames, 1),
		checkFraction("hinge_extension_fraction", c.HingeExtensionFraction),
		checkPositive("park_velocity_epsilon", c.ParkVelocityEpsilon),
		checkPositive("park_cancel_velocity", c.ParkCancelVelocity),
		checkMinInt("park_debounce_frames", c.ParkDebounceFrames, 1),
	} {
		if err != nil {
			return err
		}
	}
	if c.SmootherBeta != nil && *c.SmootherBeta < 0 {
		return fmt.Errorf("smoother_beta must be non-negative, got %v", *c.SmootherBeta)
	}
	if c.SelfTransitionBonus != nil && *c.SelfTransitionBonus < 0 {
		return fmt.Errorf("self_transition_bonus must be non-negative, got %v", *c.SelfTransitionBonus)
	}
	return nil
}

// Accessors with fallback defaults.

func (c *TuningConfig) GetSmootherMinCutoff() float64 {
	if c.SmootherMinCutoff != nil {
		return *c.SmootherMinCutoff
	}
	return 1.0
}

func (c *TuningConfig) GetSmootherBeta() float64 {
	if c.SmootherBeta != nil {
		return *c.SmootherBeta
	}
	return 0.3
}

func (c *TuningConfig) GetSmootherDerivativeCutoff() float64 {
	if c.SmootherDerivativeCutoff != nil {
		return *c.SmootherDerivativeCutoff
	}
	return 1.0
}

func (c *TuningConfig) GetMinLandmarkConfidence() float64 {
	if c.MinLandmarkConfidence != nil {
		return *c.MinLandmarkConfidence
	}
	return 0.5
}

func (c *TuningConfig) GetCalibrationMinConfidence() float64 {
	if c.CalibrationMinConfidence != nil {
		return *c.CalibrationMinConfidence
	}
	return 0.6
}

func (c *TuningConfig) GetCalibrationGoodConfidence() float64 {
	if c.CalibrationGoodConfidence != nil {
		return *c.CalibrationGoodConfidence
	}
	return 0.85
}

func (c *TuningConfig) GetEyeToAnkleHeightRatio() float64 {
	if c.EyeToAnkleHeightRatio != nil {
		return *c.EyeToAnkleHeightRatio
	}
	// Heuristic anthropometric approximation: the nose-to-ankle span is
	// taken as this fraction of standing height. Uncalibrated against
	// ground truth; override via tuning JSON rather than editing.
	return 0.88
}

func (c *TuningConfig) GetDefaultMetersPerUnit() float64 {
	if c.DefaultMetersPerUnit != nil {
		return *c.DefaultMetersPerUnit
	}
	// Assumed scale before calibration: a full normalized unit spans
	// roughly an average adult height.
	return 1.7
}

func (c *TuningConfig) GetSelfTransitionBonus() float64 {
	if c.SelfTransitionBonus != nil {
		return *c.SelfTransitionBonus
	}
	return 0.6
}

func (c *TuningConfig) GetIllegalTransitionPenalty() float64 {
	if c.IllegalTransitionPenalty != nil {
		return *c.IllegalTransitionPenalty
	}
	return 1e4
}

func (c *TuningConfig) GetStepsPerDecode() int {
	if c.StepsPerDecode != nil {
		return *c.StepsPerDecode
	}
	return 1
}

func (c *TuningConfig) GetWarmupFrames() int {
	if c.WarmupFrames != nil {
		return *c.WarmupFrames
	}
	return 30
}

func (c *TuningConfig) GetSideLockWristAnkleDist() float64 {
	if c.SideLockWristAnkleDist != nil {
		return *c.SideLockWristAnkleDist
	}
	return 0.12
}

func (c *TuningConfig) GetStandupExtensionFraction() float64 {
	if c.StandupExtensionFraction != nil {
		return *c.StandupExtensionFraction
	}
	return 0.85
}

func (c *TuningConfig) GetStandupDebounceFrames() int {
	if c.StandupDebounceFrames != nil {
		return *c.StandupDebounceFrames
	}
	return 45
}

func (c *TuningConfig) GetHingeExtensionFraction() float64 {
	if c.HingeExtensionFraction != nil {
		return *c.HingeExtensionFraction
	}
	return 0.6
}

func (c *TuningConfig) GetParkVelocityEpsilon() float64 {
	if c.ParkVelocityEpsilon != nil {
		return *c.ParkVelocityEpsilon
	}
	return 0.08
}

func (c *TuningConfig) GetParkCancelVelocity() float64 {
	if c.ParkCancelVelocity != nil {
		return *c.ParkCancelVelocity
	}
	return 0.5
}

func (c *TuningConfig) GetParkDebounceFrames() int {
	if c.ParkDebounceFrames != nil {
		return *c.ParkDebounceFrames
	}
	return 30
}
