package sampling

import (
	"sync"
	"time"

	"motion-recorder/internal/sensor"
)

// EventSlot decouples event arrival from processing: sources overwrite
// the single slot on every hardware event and the sampling loop drains
// it on its own schedule. If several events arrive between two ticks
// only the last survives: intentional coalescing, equivalent to a
// depth-1 ring buffer. Do not replace this with a queue; an unbounded
// queue reintroduces latency buildup under sustained overrate input.
type EventSlot struct {
	mu         sync.Mutex
	event      *sensor.MotionEvent
	lastUpdate time.Time
}

// NewEventSlot returns an empty slot.
func NewEventSlot() *EventSlot {
	return &EventSlot{}
}

// Put overwrites the pending event. O(1), no allocation beyond the
// event itself; safe to call from any source goroutine.
func (s *EventSlot) Put(ev *sensor.MotionEvent) {
	if ev == nil {
		return
	}

	s.mu.Lock()
	s.event = ev
	s.lastUpdate = time.Now()
	s.mu.Unlock()
}

// Take removes and returns the pending event, or nil when nothing
// arrived since the previous Take. Consuming on read is what keeps a
// stalled source from being re-sampled as duplicate readings.
func (s *EventSlot) Take() *sensor.MotionEvent {
	s.mu.Lock()
	ev := s.event
	s.event = nil
	s.mu.Unlock()
	return ev
}

// LastUpdate returns the arrival time of the most recent event, zero if
// none arrived yet. Used by the stall watchdog.
func (s *EventSlot) LastUpdate() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdate
}
