package sampling

import (
	"math"
	"sync/atomic"
	"time"
)

// Battery level thresholds and the rates they select. There is no
// hysteresis: a level oscillating across a threshold flips the target
// rate on every update.
const (
	batteryLow  = 0.2
	batteryHalf = 0.5

	rateLowBattery  = 60.0  // Hz when battery < 20%
	rateHalfBattery = 100.0 // Hz when battery < 50%

	// DefaultMaxRateHz is the target rate on a healthy battery.
	DefaultMaxRateHz = 140.0
)

// RateController holds the current target sampling rate and adjusts it
// from battery level updates. The rate is read on every loop tick and
// written from the battery monitor goroutine, so it is kept in an
// atomic cell rather than behind a lock.
type RateController struct {
	maxRateHz float64
	rateBits  atomic.Uint64
}

// NewRateController returns a controller targeting maxRateHz until the
// first battery update arrives. A non-positive max falls back to
// DefaultMaxRateHz.
func NewRateController(maxRateHz float64) *RateController {
	if maxRateHz <= 0 {
		maxRateHz = DefaultMaxRateHz
	}

	rc := RateController{maxRateHz: maxRateHz}
	rc.rateBits.Store(math.Float64bits(maxRateHz))
	return &rc
}

// CurrentRateHz returns the current target sampling rate.
func (rc *RateController) CurrentRateHz() float64 {
	return math.Float64frombits(rc.rateBits.Load())
}

// TargetInterval returns the minimum time between accepted samples at
// the current target rate.
func (rc *RateController) TargetInterval() time.Duration {
	return time.Duration(float64(time.Second) / rc.CurrentRateHz())
}

// OnBatteryLevel re-evaluates the target rate for a battery level in
// [0, 1]. Out-of-range levels are clamped.
func (rc *RateController) OnBatteryLevel(level float64) {
	level = math.Min(math.Max(level, 0), 1)

	var rate float64
	switch {
	case level < batteryLow:
		rate = rateLowBattery
	case level < batteryHalf:
		rate = rateHalfBattery
	default:
		rate = rc.maxRateHz
	}

	rc.rateBits.Store(math.Float64bits(rate))
}
