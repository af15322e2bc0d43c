// Package sensor defines the reading model shared by the sampling loop,
// the recording session and the storage/export layers. A reading is one
// timestamped observation of a specific kind; kinds are modelled as
// concrete types behind the Reading interface so that consumers match on
// the type rather than probe for field presence.
package sensor

import "time"

// Kind identifies the sensor a reading came from.
type Kind string

const (
	KindAcceleration Kind = "acceleration"
	KindRotationRate Kind = "rotation_rate"
	KindGpsFix       Kind = "gps_fix"
)

// Reading is a single sensor observation. Every numeric field of a
// stored or forwarded reading is finite; Validate enforces this before
// anything enters a batch.
type Reading interface {
	// ReadingKind returns the sensor kind tag.
	ReadingKind() Kind

	// CapturedAt returns the wall-clock capture time.
	CapturedAt() time.Time
}

// Acceleration is a device acceleration reading in m/s², gravity included.
type Acceleration struct {
	X, Y, Z float64

	Wall time.Time // wall-clock capture time
	Mono float64   // monotonic capture time in milliseconds
}

func (a Acceleration) ReadingKind() Kind     { return KindAcceleration }
func (a Acceleration) CapturedAt() time.Time { return a.Wall }

// RotationRate is a device rotation rate reading in °/s.
type RotationRate struct {
	Alpha, Beta, Gamma float64

	Wall time.Time
	Mono float64
}

func (r RotationRate) ReadingKind() Kind     { return KindRotationRate }
func (r RotationRate) CapturedAt() time.Time { return r.Wall }

// GpsFix is a GPS position fix. Altitude, AltitudeAccuracy, Heading and
// Speed are optional; nil means the receiver did not report them.
type GpsFix struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64 // horizontal accuracy in meters

	Altitude         *float64
	AltitudeAccuracy *float64
	Heading          *float64
	Speed            *float64

	Wall time.Time
}

func (g GpsFix) ReadingKind() Kind     { return KindGpsFix }
func (g GpsFix) CapturedAt() time.Time { return g.Wall }

// MotionEvent is the raw payload captured by a motion source before any
// validation or rate limiting. Either part may be absent when the
// hardware reports only one of the two sensors.
type MotionEvent struct {
	Acceleration *Acceleration
	RotationRate *RotationRate
}
