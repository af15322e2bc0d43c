package recording

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"motion-recorder/internal/sampling"
	"motion-recorder/internal/sensor"
)

const (
	defaultPersistChunk    = 100
	defaultWatchdogTimeout = 5 * time.Second

	persistQueueSize = 256
	watchdogInterval = time.Second
)

// Persister is the narrow storage contract the engine depends on.
// Writes are fire-and-forget from the engine's perspective; chunking
// beyond persistChunk and backpressure are the implementation's
// concern.
type Persister interface {
	CreateRecording(ctx context.Context, identity string, config any) (recordingID int64, err error)
	BatchInsertReadings(ctx context.Context, recordingID int64, readings []sensor.Reading) error
	FinishRecording(ctx context.Context, recordingID int64, stats Stats) error
}

// IdentityProvider supplies the stable per-user identifier attached to
// recordings at start time. The engine treats it as an opaque tag.
type IdentityProvider interface {
	ID() (string, error)
}

// WithEngineLogger sets the engine's logger.
func WithEngineLogger(logger *slog.Logger) func(*Engine) {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMaxRate sets the rate controller's maximum target rate in Hz.
func WithMaxRate(hz float64) func(*Engine) {
	return func(e *Engine) {
		e.maxRateHz = hz
	}
}

// WithDisplay attaches a live-display sink to the sampling loop.
func WithDisplay(display sampling.DisplayFunc) func(*Engine) {
	return func(e *Engine) {
		e.display = display
	}
}

// WithBatchSize sets the sampling loop's dispatch threshold.
func WithBatchSize(size int) func(*Engine) {
	return func(e *Engine) {
		e.batchSize = size
	}
}

// WithFlushInterval sets the sampling loop's periodic flush interval.
func WithFlushInterval(interval time.Duration) func(*Engine) {
	return func(e *Engine) {
		e.flushInterval = interval
	}
}

// WithScheduler overrides the loop's tick scheduler. Tests use this to
// drive ticks manually.
func WithScheduler(sched sampling.Scheduler) func(*Engine) {
	return func(e *Engine) {
		e.sched = sched
	}
}

// WithMaxDuration enforces a maximum recording length; the engine
// stops the recording itself when it elapses. Zero disables the limit.
func WithMaxDuration(d time.Duration) func(*Engine) {
	return func(e *Engine) {
		e.maxDuration = d
	}
}

// WithWatchdogTimeout sets how long the raw event feed may stay silent
// during a recording before a stall warning is logged. Zero disables
// the watchdog.
func WithWatchdogTimeout(d time.Duration) func(*Engine) {
	return func(e *Engine) {
		e.watchdogTimeout = d
	}
}

// WithPersistChunkSize caps the number of readings stored within a
// single database transaction.
func WithPersistChunkSize(size int) func(*Engine) {
	return func(e *Engine) {
		if size > 0 {
			e.persistChunk = size
		}
	}
}

// Engine owns the sampling pipeline end to end: the rate controller,
// the event slot, the sampling loop and the recording session, with
// storage and identity collaborators injected at construction. Sources
// push raw events in; the engine hands dispatched batches to the
// session synchronously and to storage asynchronously, so a slow disk
// never stalls sampling.
type Engine struct {
	store    Persister
	identity IdentityProvider

	rate    *sampling.RateController
	slot    *sampling.EventSlot
	loop    *sampling.Loop
	session *Session
	sched   sampling.Scheduler

	logger          *slog.Logger
	display         sampling.DisplayFunc
	maxRateHz       float64
	batchSize       int
	flushInterval   time.Duration
	maxDuration     time.Duration
	watchdogTimeout time.Duration
	persistChunk    int

	mu          sync.Mutex
	recordingID atomic.Int64 // read by dispatch on the loop's goroutine
	stopTimer   *time.Timer

	// deferred holds readings the persist queue rejected; they are
	// written synchronously when the recording stops. Guarded by its
	// own mutex because dispatch runs without the engine lock.
	dropMu   sync.Mutex
	deferred []sensor.Reading

	persistQueue chan persistBatch
	wg           sync.WaitGroup
}

type persistBatch struct {
	recordingID int64
	readings    []sensor.Reading
}

// NewEngine assembles a recording engine around the given storage and
// identity collaborators.
func NewEngine(store Persister, identity IdentityProvider, options ...func(*Engine)) *Engine {
	e := Engine{
		store:           store,
		identity:        identity,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxRateHz:       sampling.DefaultMaxRateHz,
		batchSize:       sampling.DefaultBatchSize,
		flushInterval:   sampling.DefaultFlushInterval,
		watchdogTimeout: defaultWatchdogTimeout,
		persistChunk:    defaultPersistChunk,
		persistQueue:    make(chan persistBatch, persistQueueSize),
	}

	for _, option := range options {
		option(&e)
	}

	e.rate = sampling.NewRateController(e.maxRateHz)
	e.slot = sampling.NewEventSlot()
	e.session = NewSession()

	loopOptions := []func(*sampling.Loop){
		sampling.WithLogger(e.logger),
		sampling.WithBatchSize(e.batchSize),
		sampling.WithFlushInterval(e.flushInterval),
	}
	if e.display != nil {
		loopOptions = append(loopOptions, sampling.WithDisplay(e.display))
	}
	e.loop = sampling.NewLoop(e.slot, e.rate, e.dispatch, loopOptions...)

	if e.sched == nil {
		e.sched = sampling.NewHeartbeatScheduler(sampling.DefaultHeartbeatInterval)
	}

	return &e
}

// Run drives the engine until the context is cancelled. An active
// recording is finalized on the way out so no tail data is lost.
func (e *Engine) Run(ctx context.Context) error {
	e.wg.Add(1)
	go e.persistLoop()

	if e.watchdogTimeout > 0 {
		e.wg.Add(1)
		go e.watchdog(ctx)
	}

	e.loop.Run(ctx, e.sched)

	// The loop has flushed its batches into the dispatch path; now
	// finalize whatever recording is still open.
	if e.session.Active() {
		if _, err := e.StopRecording(context.Background()); err != nil {
			e.logger.Error(fmt.Sprintf("finalizing recording on shutdown: %s", err))
		}
	}

	close(e.persistQueue)
	e.wg.Wait()
	return nil
}

// PutMotion offers a raw motion event to the pipeline. Called from
// source goroutines; does nothing but overwrite the coalescing slot.
func (e *Engine) PutMotion(ev *sensor.MotionEvent) {
	e.slot.Put(ev)
}

// OfferGPS offers a GPS fix to the pipeline.
func (e *Engine) OfferGPS(fix sensor.GpsFix) {
	e.loop.OfferGPS(fix)
}

// OnBatteryLevel forwards a battery level update to the rate
// controller.
func (e *Engine) OnBatteryLevel(level float64) {
	e.rate.OnBatteryLevel(level)
	e.logger.Debug("battery level update",
		slog.Float64("level", level),
		slog.Float64("targetHz", e.rate.CurrentRateHz()))
}

// TargetRateHz returns the current target sampling rate.
func (e *Engine) TargetRateHz() float64 {
	return e.rate.CurrentRateHz()
}

// EffectiveHz returns the active recording's recent sample rate.
func (e *Engine) EffectiveHz() float64 {
	return e.session.EffectiveHz()
}

// Recording reports whether a recording is in progress.
func (e *Engine) Recording() bool {
	return e.session.Active()
}

// StartRecording creates a recording in storage and switches the loop
// to Recording. Batching begins with the next accepted tick.
func (e *Engine) StartRecording(ctx context.Context) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session.Active() {
		return 0, fmt.Errorf("recording %d already in progress", e.recordingID.Load())
	}

	id, err := e.identity.ID()
	if err != nil {
		return 0, fmt.Errorf("resolving identity: %w", err)
	}

	recordingID, err := e.store.CreateRecording(ctx, id, map[string]any{
		"maxRateHz":     e.maxRateHz,
		"batchSize":     e.batchSize,
		"flushInterval": e.flushInterval.String(),
	})
	if err != nil {
		return 0, fmt.Errorf("creating recording: %w", err)
	}

	e.recordingID.Store(recordingID)
	e.dropMu.Lock()
	e.deferred = nil
	e.dropMu.Unlock()
	e.session.Start(time.Now(), id)
	e.loop.StartRecording()

	if e.maxDuration > 0 {
		e.stopTimer = time.AfterFunc(e.maxDuration, func() {
			e.logger.Info("maximum recording duration reached",
				slog.Int64("recordingID", recordingID),
				slog.Duration("maxDuration", e.maxDuration))
			if _, err := e.StopRecording(context.Background()); err != nil {
				e.logger.Error(err.Error())
			}
		})
	}

	e.logger.Info("recording started",
		slog.Int64("recordingID", recordingID),
		slog.String("identity", id))

	return recordingID, nil
}

// StopRecording flushes the loop's partial batches, closes the session
// and stores the final statistics. Safe to call when no recording is
// active; it then returns zero stats and no error.
func (e *Engine) StopRecording(ctx context.Context) (Stats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.session.Active() {
		return Stats{}, nil
	}

	if e.stopTimer != nil {
		e.stopTimer.Stop()
		e.stopTimer = nil
	}

	// Flushing the loop synchronously re-enters dispatch, which
	// reads the recording ID without taking the engine lock.
	e.loop.StopRecording()

	_, stats := e.session.Stop()
	recordingID := e.recordingID.Load()
	e.recordingID.Store(0)

	e.flushDeferred(ctx, recordingID)

	if err := e.store.FinishRecording(ctx, recordingID, stats); err != nil {
		return stats, fmt.Errorf("storing recording summary: %w", err)
	}

	e.logger.Info("recording stopped",
		slog.Int64("recordingID", recordingID),
		slog.Int("totalPoints", stats.TotalPoints),
		slog.Duration("duration", stats.Duration),
		slog.String("averageHz", fmt.Sprintf("%.1f", stats.AverageHz)))

	return stats, nil
}

// dispatch receives batches from the sampling loop. The session append
// is synchronous and cheap; persistence goes through the queue so the
// loop's tick never waits on the database.
func (e *Engine) dispatch(kind sensor.Kind, batch []sensor.Reading) {
	e.session.AddBatch(batch)

	recordingID := e.recordingID.Load()
	if recordingID == 0 {
		return
	}

	select {
	case e.persistQueue <- persistBatch{recordingID: recordingID, readings: batch}:
	default:
		// The store is badly behind. Stashing the batch instead of
		// blocking keeps sampling alive; it reaches disk when the
		// recording stops.
		e.dropMu.Lock()
		e.deferred = append(e.deferred, batch...)
		e.dropMu.Unlock()
		e.logger.Warn("persist queue full, deferring batch until stop",
			slog.String("kind", string(kind)),
			slog.Int("size", len(batch)))
	}
}

// flushDeferred writes the readings the persist queue rejected during
// the recording. It runs synchronously at stop, when stalling no
// longer matters.
func (e *Engine) flushDeferred(ctx context.Context, recordingID int64) {
	e.dropMu.Lock()
	deferred := e.deferred
	e.deferred = nil
	e.dropMu.Unlock()

	if len(deferred) == 0 {
		return
	}

	e.logger.Info("writing readings deferred by a full persist queue",
		slog.Int64("recordingID", recordingID),
		slog.Int("count", len(deferred)))
	for chunk := range slices.Chunk(deferred, e.persistChunk) {
		if err := e.store.BatchInsertReadings(ctx, recordingID, chunk); err != nil {
			e.logger.Error(fmt.Sprintf("storing deferred readings: %s", err),
				slog.Int64("recordingID", recordingID))
		}
	}
}

func (e *Engine) persistLoop() {
	defer e.wg.Done()

	for b := range e.persistQueue {
		for chunk := range slices.Chunk(b.readings, e.persistChunk) {
			if err := e.store.BatchInsertReadings(context.Background(), b.recordingID, chunk); err != nil {
				e.logger.Error(fmt.Sprintf("storing readings: %s", err),
					slog.Int64("recordingID", b.recordingID))
			}
		}
	}
}

// watchdog warns when the raw event feed goes silent mid-recording.
// The loop itself cannot detect the loss; absence of slot updates over
// time is the only signal.
func (e *Engine) watchdog(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()

	var stalled bool
	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if !e.session.Active() {
				stalled = false
				continue
			}

			last := e.slot.LastUpdate()
			if last.IsZero() {
				continue
			}

			silent := time.Since(last)
			if silent > e.watchdogTimeout {
				if !stalled {
					e.logger.Warn("no raw motion events while recording",
						slog.Duration("silentFor", silent.Truncate(time.Millisecond)))
					stalled = true
				}
			} else {
				stalled = false
			}
		}
	}
}
