// Package storage persists recordings and their sensor readings in a
// SQLite database, using separate lazy read and write connections so
// exports can run while a recording is being written.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"motion-recorder/internal/recording"
	"motion-recorder/internal/sensor"
)

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a new database connection and initializes the
// schema using the Sqlite database
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateRecording(ctx context.Context, identity string, config any) (recordingID int64, err error) {
	var configData sql.NullString

	if config != nil {
		switch config.(type) {
		case string:
			configData.Valid = true
			configData.String = config.(string)

		case []byte:
			configData.Valid = true
			configData.String = string(config.([]byte))

		default:
			var p []byte
			if p, err = json.Marshal(config); err != nil {
				err = fmt.Errorf("marshaling config: %w", err)
				return
			}

			configData.Valid = true
			configData.String = string(p)
		}
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertRecordingSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, identity, configData)
	if err != nil {
		err = fmt.Errorf("inserting recording: %w", err)
		return
	}

	recordingID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting recording ID: %w", err)
	}
	return
}

func (s *SqliteStore) Recording(ctx context.Context, id int64) (rec *Recording, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectRecordingSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var data recordingData
	if err = scanRecording(stmt.QueryRowContext(ctx, id), &data); err != nil {
		err = fmt.Errorf("scanning recording: %w", err)
		return
	}

	return toRecording(&data), nil
}

func (s *SqliteStore) Recordings(ctx context.Context) ([]*Recording, error) {
	return s.queryRecordings(ctx, selectRecordingsSQL)
}

func (s *SqliteStore) PendingUploads(ctx context.Context) ([]*Recording, error) {
	return s.queryRecordings(ctx, selectPendingUploadsSQL)
}

func (s *SqliteStore) queryRecordings(ctx context.Context, query string) (recs []*Recording, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		err = fmt.Errorf("querying recordings: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var data recordingData
		if err = scanRecording(rows, &data); err != nil {
			err = fmt.Errorf("scanning recording: %w", err)
			return
		}
		recs = append(recs, toRecording(&data))
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating recordings: %w", err)
	}
	return
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(row rowScanner, data *recordingData) error {
	return row.Scan(
		&data.ID,
		&data.StartedAt,
		&data.StoppedAt,
		&data.Identity,
		&data.Config,
		&data.TotalPoints,
		&data.AverageHz,
		&data.UploadedAt,
	)
}

func (s *SqliteStore) BatchInsertReadings(ctx context.Context, recordingID int64, readings []sensor.Reading) (err error) {
	if len(readings) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	values := make([]any, 0, len(readings)*17)
	valuesPlaceholder := "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"

	var sb strings.Builder
	sb.WriteString(insertReadingSQL)

	for i, r := range readings {
		data, convErr := toReadingData(recordingID, r)
		if convErr != nil {
			return fmt.Errorf("converting reading: %w", convErr)
		}
		values = append(values,
			data.RecordingID,
			data.Kind,
			data.WallTime,
			data.MonoTime,
			data.X,
			data.Y,
			data.Z,
			data.Alpha,
			data.Beta,
			data.Gamma,
			data.Latitude,
			data.Longitude,
			data.Accuracy,
			data.Altitude,
			data.AltitudeAccuracy,
			data.Heading,
			data.Speed,
		)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(valuesPlaceholder)
	}

	// Single batch insert
	if _, err = tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting readings: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func (s *SqliteStore) FinishRecording(ctx context.Context, recordingID int64, stats recording.Stats) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, finishRecordingSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	stoppedAt := stats.StartedAt.Add(stats.Duration).UTC()
	if _, err = stmt.ExecContext(ctx, stoppedAt, stats.TotalPoints, stats.AverageHz, recordingID); err != nil {
		return fmt.Errorf("updating recording: %w", err)
	}
	return nil
}

// Readings creates an iterator over the recording's stored readings in
// capture-time order, applying optional filters.
func (s *SqliteStore) Readings(ctx context.Context, recordingID int64, opts ...ReadingOption) (*ReadingIterator, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newReadingIterator(ctx, db, recordingID, opts...)
}

func (s *SqliteStore) DeleteRecording(ctx context.Context, id int64) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	if _, err = tx.ExecContext(ctx, deleteReadingsSQL, id); err != nil {
		return fmt.Errorf("deleting readings: %w", err)
	}
	if _, err = tx.ExecContext(ctx, deleteRecordingSQL, id); err != nil {
		return fmt.Errorf("deleting recording: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SqliteStore) MarkUploaded(ctx context.Context, id int64, uploadedAt time.Time) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, markUploadedSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if _, err = stmt.ExecContext(ctx, uploadedAt.UTC(), id); err != nil {
		return fmt.Errorf("updating recording: %w", err)
	}
	return nil
}

// DatabaseSize returns the size of the database file in bytes. The WAL
// sidecar is not counted.
func (s *SqliteStore) DatabaseSize() (int64, error) {
	info, err := os.Stat(s.dbPath)
	if err != nil {
		return 0, fmt.Errorf("stat database: %w", err)
	}
	return info.Size(), nil
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		switch {
		case writeErr != nil && readErr != nil:
			s.closeErr = errors.Join(writeErr, readErr)
		case writeErr != nil:
			s.closeErr = writeErr
		case readErr != nil:
			s.closeErr = readErr
		}
	})

	return s.closeErr
}
