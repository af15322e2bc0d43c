package recording

import (
	"context"
	"sync"
	"testing"
	"time"

	"motion-recorder/internal/sensor"
)

type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	readings map[int64][]sensor.Reading
	finished map[int64]Stats
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nextID:   1,
		readings: make(map[int64][]sensor.Reading),
		finished: make(map[int64]Stats),
	}
}

func (f *fakeStore) CreateRecording(_ context.Context, _ string, _ any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	return id, nil
}

func (f *fakeStore) BatchInsertReadings(_ context.Context, id int64, readings []sensor.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readings[id] = append(f.readings[id], readings...)
	return nil
}

func (f *fakeStore) FinishRecording(_ context.Context, id int64, stats Stats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished[id] = stats
	return nil
}

func (f *fakeStore) stored(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.readings[id])
}

type fixedIdentity string

func (f fixedIdentity) ID() (string, error) { return string(f), nil }

// manualScheduler lets the test feed ticks to the loop directly.
type manualScheduler struct {
	ch chan time.Time
}

func (m *manualScheduler) Ticks() <-chan time.Time { return m.ch }
func (m *manualScheduler) Run(ctx context.Context) { <-ctx.Done() }

// tickSync sends a tick and then a same-timestamp tick. The second
// send cannot complete before the loop finished processing the first,
// so the caller knows the slot has been drained.
func tickSync(m *manualScheduler, now time.Time) {
	m.ch <- now
	m.ch <- now
}

func TestEngineRecordingRoundTrip(t *testing.T) {
	store := newFakeStore()
	sched := &manualScheduler{ch: make(chan time.Time)}

	e := NewEngine(store, fixedIdentity("anon-1"),
		WithScheduler(sched),
		WithBatchSize(5),
		WithWatchdogTimeout(0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()

	recordingID, err := e.StartRecording(context.Background())
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if !e.Recording() {
		t.Fatal("engine not recording after StartRecording")
	}

	base := time.Now()
	for i := 0; i < 12; i++ {
		now := base.Add(time.Duration(i) * 10 * time.Millisecond)
		e.PutMotion(&sensor.MotionEvent{
			Acceleration: &sensor.Acceleration{X: float64(i), Z: 9.81, Wall: now},
		})
		tickSync(sched, now)
	}

	stats, err := e.StopRecording(context.Background())
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if stats.TotalPoints != 12 {
		t.Errorf("TotalPoints = %d, want 12", stats.TotalPoints)
	}
	if stats.Identity != "anon-1" {
		t.Errorf("Identity = %q, want %q", stats.Identity, "anon-1")
	}

	// Persistence is asynchronous; wait for the queue to drain.
	deadline := time.Now().Add(time.Second)
	for store.stored(recordingID) < 12 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := store.stored(recordingID); got != 12 {
		t.Errorf("stored %d readings, want 12", got)
	}

	cancel()
	<-done

	store.mu.Lock()
	_, finished := store.finished[recordingID]
	store.mu.Unlock()
	if !finished {
		t.Error("recording summary was never stored")
	}
}

// A recording started before the engine's Run goroutine gets going
// must capture data; the start transition may not be dropped.
func TestEngineStartBeforeRun(t *testing.T) {
	store := newFakeStore()
	sched := &manualScheduler{ch: make(chan time.Time)}

	e := NewEngine(store, fixedIdentity("anon-1"),
		WithScheduler(sched),
		WithBatchSize(5),
		WithWatchdogTimeout(0))

	recordingID, err := e.StartRecording(context.Background())
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()

	base := time.Now()
	for i := 0; i < 10; i++ {
		now := base.Add(time.Duration(i) * 10 * time.Millisecond)
		e.PutMotion(&sensor.MotionEvent{
			Acceleration: &sensor.Acceleration{X: float64(i), Z: 9.81, Wall: now},
		})
		tickSync(sched, now)
	}

	stats, err := e.StopRecording(context.Background())
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if stats.TotalPoints != 10 {
		t.Errorf("TotalPoints = %d, want 10", stats.TotalPoints)
	}

	deadline := time.Now().Add(time.Second)
	for store.stored(recordingID) < 10 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := store.stored(recordingID); got != 10 {
		t.Errorf("stored %d readings, want 10", got)
	}

	cancel()
	<-done
}

// Batches rejected by a full persist queue are written when the
// recording stops instead of being lost.
func TestEngineBackfillsDeferredBatches(t *testing.T) {
	store := newFakeStore()
	e := NewEngine(store, fixedIdentity("anon-1"), WithWatchdogTimeout(0))

	// No persist goroutine is running and the queue has no capacity,
	// so every dispatch takes the deferred path.
	e.persistQueue = make(chan persistBatch)

	recordingID, err := e.StartRecording(context.Background())
	if err != nil {
		t.Fatalf("StartRecording: %v", err)
	}

	base := time.Now()
	for i := 0; i < 3; i++ {
		e.dispatch(sensor.KindAcceleration, []sensor.Reading{
			sensor.Acceleration{X: float64(i), Z: 9.81, Wall: base.Add(time.Duration(i) * time.Millisecond)},
		})
	}

	if got := store.stored(recordingID); got != 0 {
		t.Fatalf("stored %d readings before stop, want 0", got)
	}

	stats, err := e.StopRecording(context.Background())
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if stats.TotalPoints != 3 {
		t.Errorf("TotalPoints = %d, want 3", stats.TotalPoints)
	}
	if got := store.stored(recordingID); got != 3 {
		t.Errorf("stored %d readings after stop, want 3", got)
	}
}

func TestEngineDoubleStartFails(t *testing.T) {
	store := newFakeStore()
	e := NewEngine(store, fixedIdentity("anon-1"), WithWatchdogTimeout(0))

	if _, err := e.StartRecording(context.Background()); err != nil {
		t.Fatalf("first StartRecording: %v", err)
	}
	if _, err := e.StartRecording(context.Background()); err == nil {
		t.Error("second StartRecording succeeded, want error")
	}
}

func TestEngineStopWithoutStart(t *testing.T) {
	store := newFakeStore()
	e := NewEngine(store, fixedIdentity("anon-1"), WithWatchdogTimeout(0))

	stats, err := e.StopRecording(context.Background())
	if err != nil {
		t.Fatalf("StopRecording on idle engine: %v", err)
	}
	if stats.TotalPoints != 0 {
		t.Errorf("stats = %+v, want zero", stats)
	}
}

func TestEngineBatteryAdjustsTargetRate(t *testing.T) {
	e := NewEngine(newFakeStore(), fixedIdentity("anon-1"), WithMaxRate(140))

	if got := e.TargetRateHz(); got != 140 {
		t.Fatalf("initial rate = %v, want 140", got)
	}

	e.OnBatteryLevel(0.1)
	if got := e.TargetRateHz(); got != 60 {
		t.Errorf("rate after low battery = %v, want 60", got)
	}

	e.OnBatteryLevel(0.9)
	if got := e.TargetRateHz(); got != 140 {
		t.Errorf("rate after recharge = %v, want 140", got)
	}
}
