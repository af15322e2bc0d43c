// Package source defines the contract between raw sensor producers and
// the sampling pipeline.
package source

import (
	"context"

	"motion-recorder/internal/sensor"
)

// Sink receives raw sensor data from a source. The recording engine
// satisfies it. Motion events land in a coalescing slot and may be
// overwritten before the sampling loop reads them; GPS fixes are
// handed to the pipeline directly.
type Sink interface {
	PutMotion(ev *sensor.MotionEvent)
	OfferGPS(fix sensor.GpsFix)
}

// Source produces raw sensor data until the context is cancelled.
type Source interface {
	Run(ctx context.Context) error
}
