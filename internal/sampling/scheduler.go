package sampling

import (
	"context"
	"time"
)

// DefaultHeartbeatInterval approximates a display refresh tick. The
// heartbeat only paces the loop; the rate controller decides which
// ticks actually accept a sample.
const DefaultHeartbeatInterval = time.Second / 60

// Scheduler delivers the loop's ticks. Production uses the heartbeat
// ticker; tests drive the loop with a manual scheduler so that time is
// fully under the test's control.
type Scheduler interface {
	// Ticks returns the channel the loop selects on. Each value is
	// the tick's current time.
	Ticks() <-chan time.Time

	// Run blocks producing ticks until the context is cancelled.
	Run(ctx context.Context)
}

// HeartbeatScheduler emits ticks at a fixed interval.
type HeartbeatScheduler struct {
	interval time.Duration
	ch       chan time.Time
}

// NewHeartbeatScheduler returns a scheduler ticking every interval,
// or every DefaultHeartbeatInterval when interval is not positive.
func NewHeartbeatScheduler(interval time.Duration) *HeartbeatScheduler {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &HeartbeatScheduler{
		interval: interval,
		ch:       make(chan time.Time, 1),
	}
}

func (h *HeartbeatScheduler) Ticks() <-chan time.Time { return h.ch }

func (h *HeartbeatScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case now := <-ticker.C:
			// Drop the tick if the loop is mid-tick; the next one
			// will carry fresher time anyway.
			select {
			case h.ch <- now:
			default:
			}
		}
	}
}
