package storage

import (
	"database/sql"
	"time"
)

// Recording represents a single capture session's metadata as stored in
// the database.
type Recording struct {
	ID          int64      `json:"ID"`                   // Unique identifier for the recording
	StartedAt   time.Time  `json:"startedAt"`            // When the recording began
	StoppedAt   *time.Time `json:"stoppedAt,omitempty"`  // When the recording finished, nil while running
	Identity    string     `json:"identity"`             // Stable anonymous identifier of the user
	Config      *string    `json:"config,omitempty"`     // Optional capture configuration in JSON format
	TotalPoints int64      `json:"totalPoints"`          // Number of readings accumulated
	AverageHz   *float64   `json:"averageHz,omitempty"`  // Effective sample rate, nil while running
	UploadedAt  *time.Time `json:"uploadedAt,omitempty"` // When the recording was uploaded, nil if pending
}

// Finished reports whether the recording has been stopped.
func (r *Recording) Finished() bool {
	return r.StoppedAt != nil
}

type recordingData struct {
	ID          int64
	StartedAt   time.Time
	StoppedAt   sql.NullTime
	Identity    string
	Config      sql.NullString
	TotalPoints int64
	AverageHz   sql.NullFloat64
	UploadedAt  sql.NullTime
}

type readingData struct {
	ID          int64
	RecordingID int64
	Kind        string
	WallTime    time.Time
	MonoTime    sql.NullFloat64

	X sql.NullFloat64
	Y sql.NullFloat64
	Z sql.NullFloat64

	Alpha sql.NullFloat64
	Beta  sql.NullFloat64
	Gamma sql.NullFloat64

	Latitude         sql.NullFloat64
	Longitude        sql.NullFloat64
	Accuracy         sql.NullFloat64
	Altitude         sql.NullFloat64
	AltitudeAccuracy sql.NullFloat64
	Heading          sql.NullFloat64
	Speed            sql.NullFloat64
}
