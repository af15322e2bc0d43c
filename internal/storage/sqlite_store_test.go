package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"motion-recorder/internal/recording"
	"motion-recorder/internal/sensor"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()
	s := NewSqliteStore(filepath.Join(t.TempDir(), "test.db"))
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing store: %v", err)
		}
	})
	return s
}

func testReadings(base time.Time) []sensor.Reading {
	alt := 42.0
	return []sensor.Reading{
		sensor.Acceleration{X: 0.1, Y: 0.2, Z: 9.8, Wall: base, Mono: 100},
		sensor.RotationRate{Alpha: 1, Beta: 2, Gamma: 3, Wall: base.Add(10 * time.Millisecond), Mono: 110},
		sensor.GpsFix{Latitude: -33.86, Longitude: 151.2, Accuracy: 5, Altitude: &alt, Wall: base.Add(20 * time.Millisecond)},
	}
}

func TestStoreRecordingLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateRecording(ctx, "anon-1", map[string]any{"maxRateHz": 140})
	if err != nil {
		t.Fatalf("CreateRecording: %v", err)
	}
	if id <= 0 {
		t.Fatalf("recording ID = %d, want > 0", id)
	}

	base := time.Now().UTC().Truncate(time.Millisecond)
	if err := s.BatchInsertReadings(ctx, id, testReadings(base)); err != nil {
		t.Fatalf("BatchInsertReadings: %v", err)
	}

	stats := recording.Stats{
		TotalPoints: 3,
		Duration:    time.Second,
		AverageHz:   3,
		StartedAt:   base,
		Identity:    "anon-1",
	}
	if err := s.FinishRecording(ctx, id, stats); err != nil {
		t.Fatalf("FinishRecording: %v", err)
	}

	rec, err := s.Recording(ctx, id)
	if err != nil {
		t.Fatalf("Recording: %v", err)
	}
	if rec.Identity != "anon-1" {
		t.Errorf("Identity = %q, want %q", rec.Identity, "anon-1")
	}
	if !rec.Finished() {
		t.Error("recording not marked finished")
	}
	if rec.TotalPoints != 3 {
		t.Errorf("TotalPoints = %d, want 3", rec.TotalPoints)
	}
	if rec.Config == nil {
		t.Error("config was not stored")
	}
}

func TestStoreReadingsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateRecording(ctx, "anon-1", nil)
	if err != nil {
		t.Fatalf("CreateRecording: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Millisecond)
	if err := s.BatchInsertReadings(ctx, id, testReadings(base)); err != nil {
		t.Fatalf("BatchInsertReadings: %v", err)
	}

	it, err := s.Readings(ctx, id)
	if err != nil {
		t.Fatalf("Readings: %v", err)
	}
	defer it.Close()

	var got []sensor.Reading
	for it.Next(ctx) {
		got = append(got, it.Current())
	}
	if err := it.Error(); err != nil {
		t.Fatalf("iterating: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("read %d readings, want 3", len(got))
	}

	accel, ok := got[0].(sensor.Acceleration)
	if !ok {
		t.Fatalf("first reading is %T, want Acceleration", got[0])
	}
	if accel.Z != 9.8 || accel.Mono != 100 {
		t.Errorf("acceleration = %+v", accel)
	}
	if !accel.Wall.Equal(base) {
		t.Errorf("wall time = %s, want %s", accel.Wall, base)
	}

	fix, ok := got[2].(sensor.GpsFix)
	if !ok {
		t.Fatalf("third reading is %T, want GpsFix", got[2])
	}
	if fix.Altitude == nil || *fix.Altitude != 42 {
		t.Errorf("altitude = %v, want 42", fix.Altitude)
	}
	if fix.Heading != nil {
		t.Errorf("heading = %v, want nil", fix.Heading)
	}
}

func TestStoreReadingsKindFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateRecording(ctx, "anon-1", nil)
	if err != nil {
		t.Fatalf("CreateRecording: %v", err)
	}
	if err := s.BatchInsertReadings(ctx, id, testReadings(time.Now().UTC())); err != nil {
		t.Fatalf("BatchInsertReadings: %v", err)
	}

	it, err := s.Readings(ctx, id, WithKind(sensor.KindRotationRate))
	if err != nil {
		t.Fatalf("Readings: %v", err)
	}
	defer it.Close()

	var n int
	for it.Next(ctx) {
		if got := it.Current().ReadingKind(); got != sensor.KindRotationRate {
			t.Errorf("kind = %s, want %s", got, sensor.KindRotationRate)
		}
		n++
	}
	if err := it.Error(); err != nil {
		t.Fatalf("iterating: %v", err)
	}
	if n != 1 {
		t.Errorf("filtered readings = %d, want 1", n)
	}
}

func TestStorePendingUploads(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Still running, must not appear in the pending list.
	if _, err := s.CreateRecording(ctx, "anon-1", nil); err != nil {
		t.Fatalf("CreateRecording: %v", err)
	}
	finished, err := s.CreateRecording(ctx, "anon-1", nil)
	if err != nil {
		t.Fatalf("CreateRecording: %v", err)
	}

	stats := recording.Stats{TotalPoints: 1, StartedAt: time.Now().UTC()}
	if err := s.FinishRecording(ctx, finished, stats); err != nil {
		t.Fatalf("FinishRecording: %v", err)
	}

	pending, err := s.PendingUploads(ctx)
	if err != nil {
		t.Fatalf("PendingUploads: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != finished {
		t.Fatalf("pending = %+v, want just recording %d", pending, finished)
	}

	if err := s.MarkUploaded(ctx, finished, time.Now().UTC()); err != nil {
		t.Fatalf("MarkUploaded: %v", err)
	}

	pending, err = s.PendingUploads(ctx)
	if err != nil {
		t.Fatalf("PendingUploads after upload: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after upload = %d, want 0", len(pending))
	}
}

func TestStoreDeleteRecording(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateRecording(ctx, "anon-1", nil)
	if err != nil {
		t.Fatalf("CreateRecording: %v", err)
	}
	if err := s.BatchInsertReadings(ctx, id, testReadings(time.Now().UTC())); err != nil {
		t.Fatalf("BatchInsertReadings: %v", err)
	}

	if err := s.DeleteRecording(ctx, id); err != nil {
		t.Fatalf("DeleteRecording: %v", err)
	}

	recs, err := s.Recordings(ctx)
	if err != nil {
		t.Fatalf("Recordings: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("recordings after delete = %d, want 0", len(recs))
	}

	it, err := s.Readings(ctx, id)
	if err != nil {
		t.Fatalf("Readings: %v", err)
	}
	defer it.Close()
	if it.Next(ctx) {
		t.Error("readings survived recording deletion")
	}
}

func TestStoreDatabaseSize(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.CreateRecording(context.Background(), "anon-1", nil); err != nil {
		t.Fatalf("CreateRecording: %v", err)
	}

	size, err := s.DatabaseSize()
	if err != nil {
		t.Fatalf("DatabaseSize: %v", err)
	}
	if size <= 0 {
		t.Errorf("database size = %d, want > 0", size)
	}
}
