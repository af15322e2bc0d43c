package storage

import (
	"context"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"motion-recorder/internal/recording"
	"motion-recorder/internal/sensor"
)

// Store provides an interface for managing recording data storage
// operations. It handles recording metadata and sensor readings in a
// thread-safe manner. All operations that write to the database should
// be considered atomic.
type Store interface {
	// CreateRecording initializes a new recording and returns its unique
	// identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - identity: Stable anonymous identifier of the recording user
	//   - config: Optional capture configuration. Can be string, []byte,
	//     or JSON-serializable object
	//
	// Returns:
	//   - recordingID: Unique identifier for the created recording
	//   - error: If creation fails or context is cancelled
	CreateRecording(ctx context.Context, identity string, config any) (recordingID int64, err error)

	// Recording retrieves a specific recording by its ID.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - id: Unique recording identifier
	//
	// Returns:
	//   - rec: Pointer to recording metadata, nil if not found
	//   - error: If retrieval fails or context is cancelled
	Recording(ctx context.Context, id int64) (rec *Recording, err error)

	// Recordings returns all recordings stored in the database.
	// Results are ordered by start time in ascending order.
	Recordings(ctx context.Context) (recs []*Recording, err error)

	// BatchInsertReadings saves a batch of sensor readings for a
	// recording. All readings in the batch are stored in a single atomic
	// transaction.
	BatchInsertReadings(ctx context.Context, recordingID int64, readings []sensor.Reading) error

	// FinishRecording marks a recording as stopped and stores its final
	// statistics.
	FinishRecording(ctx context.Context, recordingID int64, stats recording.Stats) error

	// Readings creates an iterator over a recording's stored readings,
	// ordered by capture time. Supported options are WithKind,
	// WithStartTime, WithEndTime and WithTimeRange.
	//
	// The returned iterator must be closed after use to release database
	// resources. Each iterator instance should only be used from a
	// single goroutine.
	Readings(ctx context.Context, recordingID int64, opts ...ReadingOption) (*ReadingIterator, error)

	// DeleteRecording removes a recording and all of its readings.
	DeleteRecording(ctx context.Context, id int64) error

	// MarkUploaded records the time a recording was successfully
	// uploaded. Uploaded recordings are excluded from PendingUploads.
	MarkUploaded(ctx context.Context, id int64, uploadedAt time.Time) error

	// PendingUploads returns finished recordings that have not been
	// uploaded yet, oldest first.
	PendingUploads(ctx context.Context) (recs []*Recording, err error)

	// DatabaseSize returns the size of the database file in bytes.
	DatabaseSize() (int64, error)

	// Close releases all database connections and resources.
	// After Close is called, the store instance cannot be reused.
	// It is safe to call Close multiple times.
	Close() error
}
