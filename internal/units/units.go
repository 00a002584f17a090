// Package units provides shared constants, conversions and validation for
// speed and distance units.
package units

// MetersPerNauticalMile is the length of one nautical mile (one minute of latitude).
const MetersPerNauticalMile = 1852.0

// Unit constants
const (
	MPS  = "mps"
	KN   = "kn"
	KMPH = "kmph"
	MPH  = "mph"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MPS, KN, KMPH, MPH}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "mps, kn, kmph, mph"
}

// MPSToKnots converts metres per second to knots.
func MPSToKnots(v float64) float64 { return v * 3600 / MetersPerNauticalMile }

// KnotsToMPS converts knots to metres per second.
func KnotsToMPS(v float64) float64 { return v * MetersPerNauticalMile / 3600 }

// MetersToNM converts metres to nautical miles.
func MetersToNM(m float64) float64 { return m / MetersPerNauticalMile }

// NMToMeters converts nautical miles to metres.
func NMToMeters(nm float64) float64 { return nm * MetersPerNauticalMile }

// ConvertSpeed converts a speed from meters per second to the target units.
// Unknown units leave the value in m/s.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case KN:
		return MPSToKnots(speedMPS)
	case KMPH:
		return speedMPS * 3.6
	case MPH:
		return speedMPS * 2.2369362920544
	default:
		return speedMPS
	}
}
