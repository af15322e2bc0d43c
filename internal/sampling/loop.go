package sampling

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"motion-recorder/internal/sensor"
)

const (
	// DefaultBatchSize is the per-kind batch size that triggers an
	// immediate dispatch.
	DefaultBatchSize = 10

	// DefaultFlushInterval bounds how long a slowly-filling batch may
	// sit before it is dispatched regardless of size.
	DefaultFlushInterval = 100 * time.Millisecond

	// DefaultDisplayInterval throttles live-display pushes so a
	// 140 Hz sample stream does not cause 140 Hz display churn.
	DefaultDisplayInterval = 100 * time.Millisecond
)

// State is the sampling loop's lifecycle state.
type State uint8

const (
	// Idle: no loop running, nothing is sampled.
	Idle State = iota

	// UIOnly: the loop runs and feeds the live display, but nothing
	// is appended to recording batches.
	UIOnly

	// Recording: as UIOnly, plus accepted readings are batched and
	// dispatched downstream.
	Recording
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case UIOnly:
		return "ui-only"
	case Recording:
		return "recording"
	default:
		return "unknown"
	}
}

// DispatchFunc receives a completed or flushed batch. Ownership of the
// slice transfers to the receiver; the loop never touches it again.
type DispatchFunc func(kind sensor.Kind, batch []sensor.Reading)

// DisplayFunc receives throttled validated readings for live display.
// It must return promptly; the loop calls it inline on its own tick.
type DisplayFunc func(r sensor.Reading)

// WithLogger sets the loop's logger.
func WithLogger(logger *slog.Logger) func(*Loop) {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithBatchSize sets the per-kind dispatch threshold.
func WithBatchSize(size int) func(*Loop) {
	return func(l *Loop) {
		if size > 0 {
			l.batchSize = size
		}
	}
}

// WithFlushInterval sets the periodic flush interval.
func WithFlushInterval(interval time.Duration) func(*Loop) {
	return func(l *Loop) {
		if interval > 0 {
			l.flushInterval = interval
		}
	}
}

// WithDisplay attaches a live-display sink.
func WithDisplay(display DisplayFunc) func(*Loop) {
	return func(l *Loop) {
		l.display = display
	}
}

// WithDisplayInterval sets the live-display throttle interval.
func WithDisplayInterval(interval time.Duration) func(*Loop) {
	return func(l *Loop) {
		if interval > 0 {
			l.displayInterval = interval
		}
	}
}

// Loop reconciles the event-driven, variable-rate sensor feed with a
// fixed-rate consumption schedule. Sources overwrite the event slot as
// fast as the hardware fires; the loop drains the slot at most once per
// target interval, validates what it finds, and accumulates per-kind
// batches that are dispatched on a size threshold or the periodic
// flush, whichever fires first.
type Loop struct {
	slot     *EventSlot
	rate     *RateController
	dispatch DispatchFunc

	display         DisplayFunc
	displayInterval time.Duration
	batchSize       int
	flushInterval   time.Duration
	logger          *slog.Logger

	mu           sync.Mutex
	state        State
	lastAccepted time.Time
	lastDisplay  time.Time
	pending      map[sensor.Kind][]sensor.Reading

	accepted uint64 // readings that passed validation
	rejected uint64 // readings dropped by validation
}

// NewLoop creates a sampling loop. The dispatch function is required;
// everything downstream of it is the receiver's concern.
func NewLoop(slot *EventSlot, rate *RateController, dispatch DispatchFunc, options ...func(*Loop)) *Loop {
	l := Loop{
		slot:            slot,
		rate:            rate,
		dispatch:        dispatch,
		displayInterval: DefaultDisplayInterval,
		batchSize:       DefaultBatchSize,
		flushInterval:   DefaultFlushInterval,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		pending:         make(map[sensor.Kind][]sensor.Reading),
	}

	for _, option := range options {
		option(&l)
	}

	return &l
}

// Run drives the loop from the scheduler until the context is
// cancelled, then flushes any partial batches and returns to Idle. The
// size-threshold and flush-timer dispatch triggers are both active the
// whole time.
func (l *Loop) Run(ctx context.Context, sched Scheduler) {
	l.mu.Lock()
	// StartRecording may legitimately run before the loop does; a
	// recording requested early must survive startup.
	if l.state == Idle {
		l.state = UIOnly
	}
	l.mu.Unlock()

	l.logger.Info("sampling loop started", slog.Float64("targetHz", l.rate.CurrentRateHz()))

	go sched.Run(ctx)

	flush := time.NewTicker(l.flushInterval)
	defer flush.Stop()

	for {
		select {
		case <-ctx.Done():
			l.StopRecording()

			l.mu.Lock()
			accepted, rejected := l.accepted, l.rejected
			l.state = Idle
			l.mu.Unlock()

			l.logger.Info("sampling loop stopped",
				slog.Uint64("accepted", accepted),
				slog.Uint64("rejected", rejected))
			return

		case now := <-sched.Ticks():
			l.tick(now)

		case <-flush.C:
			l.flushPending()
		}
	}
}

// State returns the loop's current state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Accepted returns the number of readings that passed validation.
func (l *Loop) Accepted() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accepted
}

// Rejected returns the number of readings dropped by validation.
func (l *Loop) Rejected() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rejected
}

// StartRecording switches the loop to Recording. Batching begins with
// the next accepted tick; nothing is captured retroactively. It may be
// called before Run, in which case the loop comes up recording.
func (l *Loop) StartRecording() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = Recording
}

// StopRecording flushes every partially-filled batch so no tail data
// is lost and returns the loop to UIOnly sampling. Calling it when not
// recording is a no-op.
func (l *Loop) StopRecording() {
	l.mu.Lock()
	if l.state != Recording {
		l.mu.Unlock()
		return
	}

	out := l.takeAllLocked()
	l.state = UIOnly
	l.mu.Unlock()

	l.emit(out)
}

// OfferGPS validates and records a GPS fix. Fixes arrive on their own
// event cadence and bypass the motion rate limiter; the flush timer
// bounds their batch latency.
func (l *Loop) OfferGPS(fix sensor.GpsFix) {
	l.mu.Lock()

	if !sensor.Validate(fix) {
		l.rejected++
		l.mu.Unlock()
		return
	}
	l.accepted++

	recording := l.state == Recording
	var out []dispatched
	if recording {
		l.pending[sensor.KindGpsFix] = append(l.pending[sensor.KindGpsFix], fix)
		if len(l.pending[sensor.KindGpsFix]) >= l.batchSize {
			out = append(out, dispatched{sensor.KindGpsFix, l.takeLocked(sensor.KindGpsFix)})
		}
	}
	display := l.display
	l.mu.Unlock()

	if display != nil {
		display(fix)
	}
	l.emit(out)
}

type dispatched struct {
	kind  sensor.Kind
	batch []sensor.Reading
}

// tick is one loop invocation. It decides to act or skip based on the
// rate controller's target interval, drains the event slot, validates,
// pushes throttled display updates and batches while recording.
func (l *Loop) tick(now time.Time) {
	l.mu.Lock()

	if !l.lastAccepted.IsZero() && now.Sub(l.lastAccepted) < l.rate.TargetInterval() {
		l.mu.Unlock()
		return
	}

	ev := l.slot.Take()
	if ev == nil {
		// Nothing arrived since the last accepted tick. Not an
		// error; the next tick tries again.
		l.mu.Unlock()
		return
	}

	var readings []sensor.Reading
	if ev.Acceleration != nil {
		readings = append(readings, *ev.Acceleration)
	}
	if ev.RotationRate != nil {
		readings = append(readings, *ev.RotationRate)
	}

	var valid []sensor.Reading
	for _, r := range readings {
		if sensor.Validate(r) {
			valid = append(valid, r)
			l.accepted++
		} else {
			l.rejected++
		}
	}
	if len(valid) == 0 {
		l.mu.Unlock()
		return
	}

	var toDisplay []sensor.Reading
	if l.display != nil && now.Sub(l.lastDisplay) >= l.displayInterval {
		toDisplay = valid
		l.lastDisplay = now
	}

	var out []dispatched
	if l.state == Recording {
		for _, r := range valid {
			kind := r.ReadingKind()
			l.pending[kind] = append(l.pending[kind], r)
			if len(l.pending[kind]) >= l.batchSize {
				out = append(out, dispatched{kind, l.takeLocked(kind)})
			}
		}
	}

	l.lastAccepted = now
	display := l.display
	l.mu.Unlock()

	for _, r := range toDisplay {
		display(r)
	}
	l.emit(out)
}

// flushPending dispatches every non-empty pending batch regardless of
// size, bounding delivery latency when the sample rate is low.
func (l *Loop) flushPending() {
	l.mu.Lock()
	out := l.takeAllLocked()
	l.mu.Unlock()

	l.emit(out)
}

// takeLocked detaches a kind's pending batch, leaving a fresh slice
// behind so the dispatched one is never aliased.
func (l *Loop) takeLocked(kind sensor.Kind) []sensor.Reading {
	batch := l.pending[kind]
	l.pending[kind] = nil
	return batch
}

func (l *Loop) takeAllLocked() []dispatched {
	var out []dispatched
	for kind, batch := range l.pending {
		if len(batch) > 0 {
			out = append(out, dispatched{kind, batch})
			l.pending[kind] = nil
		}
	}
	return out
}

// emit hands batches to the dispatch function. A panicking receiver
// must not unwind into the loop; its own state is already consistent
// by the time emit runs.
func (l *Loop) emit(out []dispatched) {
	for _, d := range out {
		l.emitOne(d.kind, d.batch)
	}
}

func (l *Loop) emitOne(kind sensor.Kind, batch []sensor.Reading) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("dispatch panicked", slog.String("kind", string(kind)), slog.Any("panic", r))
		}
	}()

	l.dispatch(kind, batch)
}
