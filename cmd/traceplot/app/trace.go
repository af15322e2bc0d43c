package app

import (
	"math"
	"time"

	"motion-recorder/internal/sensor"
)

// axisSample is one point of a three-axis trace.
type axisSample struct {
	At     time.Time
	Values [3]float64
}

// TraceData accumulates the motion readings of one recording, split by
// sensor, with symmetric value bounds for scaling.
type TraceData struct {
	Accel    []axisSample
	Rotation []axisSample

	Start, End time.Time

	AccelBound    float64
	RotationBound float64
}

func NewTraceData() *TraceData {
	return &TraceData{}
}

// Update folds one stored reading into the trace. GPS fixes carry no
// plottable axes and are skipped.
func (t *TraceData) Update(r sensor.Reading) {
	at := r.CapturedAt()
	if t.Start.IsZero() || at.Before(t.Start) {
		t.Start = at
	}
	if at.After(t.End) {
		t.End = at
	}

	switch v := r.(type) {
	case sensor.Acceleration:
		t.Accel = append(t.Accel, axisSample{At: at, Values: [3]float64{v.X, v.Y, v.Z}})
		t.AccelBound = maxBound(t.AccelBound, v.X, v.Y, v.Z)

	case sensor.RotationRate:
		t.Rotation = append(t.Rotation, axisSample{At: at, Values: [3]float64{v.Alpha, v.Beta, v.Gamma}})
		t.RotationBound = maxBound(t.RotationBound, v.Alpha, v.Beta, v.Gamma)
	}
}

// Points returns the total number of plotted samples.
func (t *TraceData) Points() int {
	return len(t.Accel) + len(t.Rotation)
}

// Duration returns the covered time span.
func (t *TraceData) Duration() time.Duration {
	if t.Start.IsZero() {
		return 0
	}
	return t.End.Sub(t.Start)
}

func maxBound(current float64, values ...float64) float64 {
	for _, v := range values {
		if abs := math.Abs(v); abs > current {
			current = abs
		}
	}
	return current
}
