// Package recording accumulates dispatched sensor batches into ordered
// per-recording buffers and owns the engine that wires the sampling
// pipeline to its collaborators.
package recording

import (
	"sync"
	"time"

	"motion-recorder/internal/sensor"
)

// rateWindow is the rolling window used to compute the effective
// sample rate. It resets whenever a window elapses, so the reported
// rate reflects recent throughput rather than the whole recording.
const rateWindow = 2 * time.Second

// Stats summarizes a finished (or running) recording.
type Stats struct {
	TotalPoints int           // readings accumulated
	Duration    time.Duration // wall time from start to stop
	AverageHz   float64       // effective rate over the recent window
	StartedAt   time.Time
	Identity    string // opaque per-user tag, never interpreted
}

// Session accumulates dispatched batches for the active recording. It
// appends in dispatch order and never reorders across kinds; consumers
// needing a merged chronological stream sort on the readings' own
// timestamps.
type Session struct {
	mu sync.Mutex

	active    bool
	startedAt time.Time
	identity  string
	buffer    []sensor.Reading

	totalPoints int
	windowStart time.Time
	windowCount int
	windowHz    float64
}

// NewSession returns an inactive session.
func NewSession() *Session {
	return &Session{}
}

// Start begins a recording. Starting an already-active session resets
// its buffer and counters.
func (s *Session) Start(startedAt time.Time, identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = true
	s.startedAt = startedAt
	s.identity = identity
	s.buffer = nil
	s.totalPoints = 0
	s.windowStart = startedAt
	s.windowCount = 0
	s.windowHz = 0
}

// Active reports whether a recording is in progress.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// AddReading appends a single reading to the recording buffer.
func (s *Session) AddReading(r sensor.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}
	s.buffer = append(s.buffer, r)
	s.countLocked(1, time.Now())
}

// AddBatch appends a dispatched batch. The batch's ownership has
// already transferred to the session; it is retained as-is.
func (s *Session) AddBatch(batch []sensor.Reading) {
	if len(batch) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}
	s.buffer = append(s.buffer, batch...)
	s.countLocked(len(batch), time.Now())
}

// EffectiveHz returns the sample rate over the recent window.
func (s *Session) EffectiveHz() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hzLocked(time.Now())
}

// Stop ends the recording and returns the complete ordered buffer with
// final statistics. It is idempotent with respect to the buffer: a
// second call returns an empty buffer and zero stats, not an error.
func (s *Session) Stop() ([]sensor.Reading, Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil, Stats{}
	}

	now := time.Now()
	stats := Stats{
		TotalPoints: s.totalPoints,
		Duration:    now.Sub(s.startedAt),
		AverageHz:   s.hzLocked(now),
		StartedAt:   s.startedAt,
		Identity:    s.identity,
	}

	buffer := s.buffer
	s.buffer = nil
	s.active = false
	s.totalPoints = 0
	s.windowCount = 0
	s.windowHz = 0

	return buffer, stats
}

func (s *Session) countLocked(n int, now time.Time) {
	s.totalPoints += n
	s.windowCount += n

	if elapsed := now.Sub(s.windowStart); elapsed >= rateWindow {
		s.windowHz = float64(s.windowCount) / elapsed.Seconds()
		s.windowStart = now
		s.windowCount = 0
	}
}

func (s *Session) hzLocked(now time.Time) float64 {
	if elapsed := now.Sub(s.windowStart); elapsed >= 250*time.Millisecond && s.windowCount > 0 {
		return float64(s.windowCount) / elapsed.Seconds()
	}
	if s.windowHz > 0 {
		return s.windowHz
	}
	if elapsed := now.Sub(s.startedAt); elapsed > 0 && s.totalPoints > 0 {
		return float64(s.totalPoints) / elapsed.Seconds()
	}
	return 0
}
