// Package sim generates synthetic motion and GPS data for development
// and load testing without sensor hardware attached.
package sim

import (
	"context"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"motion-recorder/internal/sensor"
	"motion-recorder/internal/source"
)

const (
	// DefaultEmitInterval is deliberately faster than any sampling
	// target so the coalescing slot sees overwrites, like a real
	// high-rate IMU would cause.
	DefaultEmitInterval = 4 * time.Millisecond

	DefaultGPSInterval = time.Second

	gravity = 9.81
)

// WithLogger sets the generator's logger.
func WithLogger(logger *slog.Logger) func(*Generator) {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithEmitInterval sets the motion event emit interval.
func WithEmitInterval(interval time.Duration) func(*Generator) {
	return func(g *Generator) {
		if interval > 0 {
			g.emitInterval = interval
		}
	}
}

// WithGPSInterval sets the GPS fix emit interval. Zero disables GPS.
func WithGPSInterval(interval time.Duration) func(*Generator) {
	return func(g *Generator) {
		g.gpsInterval = interval
	}
}

// WithSeed makes the generated jitter deterministic.
func WithSeed(seed uint64) func(*Generator) {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewPCG(seed, seed))
	}
}

// WithOrigin sets the starting coordinates of the GPS walk.
func WithOrigin(lat, lon float64) func(*Generator) {
	return func(g *Generator) {
		g.lat, g.lon = lat, lon
	}
}

// Generator emits sinusoidal motion with random jitter and a slow GPS
// random walk.
type Generator struct {
	sink source.Sink

	logger       *slog.Logger
	emitInterval time.Duration
	gpsInterval  time.Duration
	rng          *rand.Rand

	lat, lon float64
}

// NewGenerator creates a generator feeding the given sink.
func NewGenerator(sink source.Sink, options ...func(*Generator)) *Generator {
	g := Generator{
		sink:         sink,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		emitInterval: DefaultEmitInterval,
		gpsInterval:  DefaultGPSInterval,
		rng:          rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		lat:          -33.8688,
		lon:          151.2093,
	}
	for _, option := range options {
		option(&g)
	}
	return &g
}

// Run emits events until the context is cancelled.
func (g *Generator) Run(ctx context.Context) error {
	g.logger.Info("starting simulated sensor source",
		slog.Duration("emitInterval", g.emitInterval),
		slog.Duration("gpsInterval", g.gpsInterval))

	motion := time.NewTicker(g.emitInterval)
	defer motion.Stop()

	var gps <-chan time.Time
	if g.gpsInterval > 0 {
		t := time.NewTicker(g.gpsInterval)
		defer t.Stop()
		gps = t.C
	}

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			g.logger.Info("simulated sensor source stopped")
			return nil

		case now := <-motion.C:
			g.sink.PutMotion(g.motionEvent(now, now.Sub(start)))

		case now := <-gps:
			g.sink.OfferGPS(g.gpsFix(now))
		}
	}
}

func (g *Generator) motionEvent(now time.Time, elapsed time.Duration) *sensor.MotionEvent {
	phase := elapsed.Seconds() * 2 * math.Pi
	mono := elapsed.Seconds() * 1000

	return &sensor.MotionEvent{
		Acceleration: &sensor.Acceleration{
			X:    0.5*math.Sin(phase) + g.jitter(0.05),
			Y:    0.3*math.Cos(phase/2) + g.jitter(0.05),
			Z:    gravity + g.jitter(0.1),
			Wall: now,
			Mono: mono,
		},
		RotationRate: &sensor.RotationRate{
			Alpha: 15 * math.Sin(phase/3),
			Beta:  10 * math.Cos(phase/5),
			Gamma: g.jitter(2),
			Wall:  now,
			Mono:  mono,
		},
	}
}

func (g *Generator) gpsFix(now time.Time) sensor.GpsFix {
	// Roughly a meter of drift per fix.
	g.lat += g.jitter(1e-5)
	g.lon += g.jitter(1e-5)

	speed := math.Abs(g.jitter(2))
	return sensor.GpsFix{
		Latitude:  g.lat,
		Longitude: g.lon,
		Accuracy:  5 + math.Abs(g.jitter(3)),
		Speed:     &speed,
		Wall:      now,
	}
}

func (g *Generator) jitter(scale float64) float64 {
	return (g.rng.Float64()*2 - 1) * scale
}
