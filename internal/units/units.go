// Package units provides shared constants and conversion for velocity units.
// The engine computes velocities in m/s; display surfaces convert on output.
package units

import "strings"

// Unit constants
const (
	MPS  = "mps"
	MPH  = "mph"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid unit values.
var ValidUnits = []string{MPS, MPH, KMPH, KPH}

// IsValid checks if the given unit is in the list of valid units.
func IsValid(unit string) bool {
	unit = strings.ToLower(unit)
	for _, v := range ValidUnits {
		if unit == v {
			return true
		}
	}
	return false
}

// ConvertVelocity converts a velocity from meters per second to the target
// units. Unknown units pass the m/s value through unchanged.
func ConvertVelocity(vMps float64, targetUnits string) float64 {
	switch strings.ToLower(targetUnits) {
	case MPS:
		return vMps
	case MPH:
		return vMps * 2.2369362920544
	case KMPH, KPH:
		return vMps * 3.6
	default:
		return vMps
	}
}
