package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"motion-recorder/internal/sensor"
)

// ErrNoData indicates that no readings exist for the given parameters.
var ErrNoData = fmt.Errorf("no data available")

// ReadingOption configures a ReadingIterator with specific filtering
// criteria.
type ReadingOption func(*ReadingIterator)

// WithKind restricts the iterator to readings of a single sensor kind.
func WithKind(kind sensor.Kind) ReadingOption {
	return func(it *ReadingIterator) {
		it.kind = &kind
	}
}

// WithStartTime sets the start time filter for the iterator.
// Readings captured before this time will be excluded.
func WithStartTime(t time.Time) ReadingOption {
	return func(it *ReadingIterator) {
		it.startTime = &t
	}
}

// WithEndTime sets the end time filter for the iterator.
// Readings captured after this time will be excluded.
func WithEndTime(t time.Time) ReadingOption {
	return func(it *ReadingIterator) {
		it.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters.
// This is a convenience function equivalent to applying both
// WithStartTime and WithEndTime.
func WithTimeRange(startTime, endTime time.Time) ReadingOption {
	return func(it *ReadingIterator) {
		it.startTime = &startTime
		it.endTime = &endTime
	}
}

// ReadingIterator provides an iterator-based interface for reading a
// recording's stored readings in capture-time order.
type ReadingIterator struct {
	db *sql.DB

	recordingID int64
	kind        *sensor.Kind
	startTime   *time.Time
	endTime     *time.Time

	rows    *sql.Rows
	current sensor.Reading
	err     error
}

func newReadingIterator(ctx context.Context, db *sql.DB, recordingID int64, opts ...ReadingOption) (*ReadingIterator, error) {
	it := &ReadingIterator{
		db:          db,
		recordingID: recordingID,
	}
	for _, opt := range opts {
		opt(it)
	}
	if err := it.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing iterator: %w", err)
	}
	return it, nil
}

func (it *ReadingIterator) init(ctx context.Context) (err error) {
	if it.db == nil {
		return errors.New("database connection required")
	}
	if it.recordingID <= 0 {
		return errors.New("recording ID required")
	}
	if it.startTime != nil && it.endTime != nil && it.startTime.After(*it.endTime) {
		return fmt.Errorf("start time %s is after end time %s", it.startTime, it.endTime)
	}

	var sb strings.Builder
	sb.WriteString(selectReadingsSQL)
	args := []any{it.recordingID}

	if it.kind != nil {
		sb.WriteString(" AND kind = ?")
		args = append(args, string(*it.kind))
	}
	if it.startTime != nil {
		sb.WriteString(" AND wall_time >= ?")
		args = append(args, it.startTime.UTC())
	}
	if it.endTime != nil {
		sb.WriteString(" AND wall_time <= ?")
		args = append(args, it.endTime.UTC())
	}
	sb.WriteString(" ORDER BY wall_time, id")

	stmt, err := it.db.PrepareContext(ctx, sb.String())
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if it.rows, err = stmt.QueryContext(ctx, args...); err != nil {
		return fmt.Errorf("querying readings: %w", err)
	}
	return nil
}

// Next advances the iterator and returns true if there is another
// reading, false when the iteration is complete or an error occurred.
func (it *ReadingIterator) Next(ctx context.Context) bool {
	if it.err != nil || it.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		it.err = ctx.Err()
		return false
	default:
	}

	if !it.rows.Next() {
		return false
	}

	var data readingData
	if it.err = it.rows.Scan(
		&data.ID,
		&data.RecordingID,
		&data.Kind,
		&data.WallTime,
		&data.MonoTime,
		&data.X,
		&data.Y,
		&data.Z,
		&data.Alpha,
		&data.Beta,
		&data.Gamma,
		&data.Latitude,
		&data.Longitude,
		&data.Accuracy,
		&data.Altitude,
		&data.AltitudeAccuracy,
		&data.Heading,
		&data.Speed,
	); it.err != nil {
		it.err = fmt.Errorf("scanning reading: %w", it.err)
		return false
	}

	if it.current, it.err = toReading(&data); it.err != nil {
		return false
	}
	return true
}

// Current returns the current reading in the iteration.
// If called after Next() returns false, the behavior is undefined.
func (it *ReadingIterator) Current() sensor.Reading {
	return it.current
}

// Error returns any error that occurred during iteration. If Next()
// returns false, Error() should be checked to distinguish between end
// of data and an error condition.
func (it *ReadingIterator) Error() error {
	if it.err != nil {
		return it.err
	}
	if it.rows != nil {
		return it.rows.Err()
	}
	return nil
}

// Close releases any resources associated with the iterator.
// After Close is called, the iterator should not be used.
func (it *ReadingIterator) Close() error {
	if it.rows != nil {
		err := it.rows.Close()
		it.current = nil
		it.rows = nil
		return err
	}
	return nil
}
