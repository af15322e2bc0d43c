package sensor

import "math"

const (
	// MaxAcceleration bounds plausible hand-held device acceleration,
	// gravity included. Values above it are stuck or garbage sensors.
	MaxAcceleration = 50 // m/s²

	// MaxRotationRate bounds plausible device rotation rate per axis.
	MaxRotationRate = 2000 // °/s
)

// Validate reports whether a reading is physically plausible. It is a
// pure predicate: NaN or infinite values fail for every kind,
// acceleration and rotation rate additionally fail outside their
// per-axis bounds, and GPS fixes fail only on non-finite values
// (absent optional fields are valid absence, not failure).
func Validate(r Reading) bool {
	switch v := r.(type) {
	case Acceleration:
		return inBounds(v.X, MaxAcceleration) &&
			inBounds(v.Y, MaxAcceleration) &&
			inBounds(v.Z, MaxAcceleration)

	case RotationRate:
		return inBounds(v.Alpha, MaxRotationRate) &&
			inBounds(v.Beta, MaxRotationRate) &&
			inBounds(v.Gamma, MaxRotationRate)

	case GpsFix:
		if !finite(v.Latitude) || !finite(v.Longitude) || !finite(v.Accuracy) {
			return false
		}
		for _, f := range []*float64{v.Altitude, v.AltitudeAccuracy, v.Heading, v.Speed} {
			if f != nil && !finite(*f) {
				return false
			}
		}
		return true

	default:
		return false
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func inBounds(f, bound float64) bool {
	return finite(f) && math.Abs(f) <= bound
}
