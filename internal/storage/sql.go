package storage

const initSchemaSQL = `
CREATE TABLE IF NOT EXISTS recordings (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    stopped_at   DATETIME,
    identity     TEXT NOT NULL,
    config       TEXT,
    total_points INTEGER NOT NULL DEFAULT 0,
    average_hz   REAL,
    uploaded_at  DATETIME
);

CREATE TABLE IF NOT EXISTS readings (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    recording_id      INTEGER NOT NULL,
    kind              TEXT NOT NULL,
    wall_time         DATETIME NOT NULL,
    mono_time         REAL,
    x                 REAL,
    y                 REAL,
    z                 REAL,
    alpha             REAL,
    beta              REAL,
    gamma             REAL,
    latitude          REAL,
    longitude         REAL,
    accuracy          REAL,
    altitude          REAL,
    altitude_accuracy REAL,
    heading           REAL,
    speed             REAL
);`

// Indexes are created on Close so bulk inserts during a recording do
// not pay for index maintenance.
const initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_readings_recording_time ON readings (recording_id, wall_time);
CREATE INDEX IF NOT EXISTS idx_readings_kind ON readings (recording_id, kind);
CREATE INDEX IF NOT EXISTS idx_recordings_uploaded ON recordings (uploaded_at);`

const (
	insertRecordingSQL = `
INSERT INTO recordings (
                        started_at,
                        identity,
                        config)
VALUES (CURRENT_TIMESTAMP, ?, ?)`

	selectRecordingSQL = `
SELECT
    id,
    started_at,
    stopped_at,
    identity,
    config,
    total_points,
    average_hz,
    uploaded_at
FROM recordings
WHERE
    id = ?`

	selectRecordingsSQL = `
SELECT
    id,
    started_at,
    stopped_at,
    identity,
    config,
    total_points,
    average_hz,
    uploaded_at
FROM recordings
ORDER BY started_at`

	selectPendingUploadsSQL = `
SELECT
    id,
    started_at,
    stopped_at,
    identity,
    config,
    total_points,
    average_hz,
    uploaded_at
FROM recordings
WHERE
    stopped_at IS NOT NULL
    AND uploaded_at IS NULL
ORDER BY started_at`

	finishRecordingSQL = `
UPDATE recordings
SET stopped_at   = ?,
    total_points = ?,
    average_hz   = ?
WHERE id = ?`

	markUploadedSQL = `
UPDATE recordings
SET uploaded_at = ?
WHERE id = ?`

	deleteReadingsSQL = `
DELETE FROM readings
WHERE recording_id = ?`

	deleteRecordingSQL = `
DELETE FROM recordings
WHERE id = ?`

	insertReadingSQL = `
INSERT INTO readings (recording_id,
                      kind,
                      wall_time,
                      mono_time,
                      x,
                      y,
                      z,
                      alpha,
                      beta,
                      gamma,
                      latitude,
                      longitude,
                      accuracy,
                      altitude,
                      altitude_accuracy,
                      heading,
                      speed)
VALUES `

	selectReadingsSQL = `
SELECT
    id,
    recording_id,
    kind,
    wall_time,
    mono_time,
    x,
    y,
    z,
    alpha,
    beta,
    gamma,
    latitude,
    longitude,
    accuracy,
    altitude,
    altitude_accuracy,
    heading,
    speed
FROM readings
WHERE
    recording_id = ?`
)
