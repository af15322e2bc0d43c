package storage

import (
	"database/sql"
	"fmt"

	"motion-recorder/internal/sensor"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

func nullFloatPtr(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func toReadingData(recordingID int64, r sensor.Reading) (*readingData, error) {
	data := readingData{
		RecordingID: recordingID,
		Kind:        string(r.ReadingKind()),
		WallTime:    r.CapturedAt().UTC(),
	}

	switch v := r.(type) {
	case sensor.Acceleration:
		data.MonoTime = nullFloat(v.Mono)
		data.X = nullFloat(v.X)
		data.Y = nullFloat(v.Y)
		data.Z = nullFloat(v.Z)

	case sensor.RotationRate:
		data.MonoTime = nullFloat(v.Mono)
		data.Alpha = nullFloat(v.Alpha)
		data.Beta = nullFloat(v.Beta)
		data.Gamma = nullFloat(v.Gamma)

	case sensor.GpsFix:
		data.Latitude = nullFloat(v.Latitude)
		data.Longitude = nullFloat(v.Longitude)
		data.Accuracy = nullFloat(v.Accuracy)
		data.Altitude = nullFloatPtr(v.Altitude)
		data.AltitudeAccuracy = nullFloatPtr(v.AltitudeAccuracy)
		data.Heading = nullFloatPtr(v.Heading)
		data.Speed = nullFloatPtr(v.Speed)

	default:
		return nil, fmt.Errorf("unsupported reading type %T", r)
	}

	return &data, nil
}

func toReading(data *readingData) (sensor.Reading, error) {
	switch sensor.Kind(data.Kind) {
	case sensor.KindAcceleration:
		return sensor.Acceleration{
			X:    data.X.Float64,
			Y:    data.Y.Float64,
			Z:    data.Z.Float64,
			Wall: data.WallTime,
			Mono: data.MonoTime.Float64,
		}, nil

	case sensor.KindRotationRate:
		return sensor.RotationRate{
			Alpha: data.Alpha.Float64,
			Beta:  data.Beta.Float64,
			Gamma: data.Gamma.Float64,
			Wall:  data.WallTime,
			Mono:  data.MonoTime.Float64,
		}, nil

	case sensor.KindGpsFix:
		return sensor.GpsFix{
			Latitude:         data.Latitude.Float64,
			Longitude:        data.Longitude.Float64,
			Accuracy:         data.Accuracy.Float64,
			Altitude:         floatPtr(data.Altitude),
			AltitudeAccuracy: floatPtr(data.AltitudeAccuracy),
			Heading:          floatPtr(data.Heading),
			Speed:            floatPtr(data.Speed),
			Wall:             data.WallTime,
		}, nil
	}

	return nil, fmt.Errorf("unknown reading kind %q", data.Kind)
}

func toRecording(data *recordingData) *Recording {
	rec := Recording{
		ID:          data.ID,
		StartedAt:   data.StartedAt,
		Identity:    data.Identity,
		TotalPoints: data.TotalPoints,
	}
	if data.StoppedAt.Valid {
		t := data.StoppedAt.Time
		rec.StoppedAt = &t
	}
	if data.Config.Valid {
		c := data.Config.String
		rec.Config = &c
	}
	if data.AverageHz.Valid {
		hz := data.AverageHz.Float64
		rec.AverageHz = &hz
	}
	if data.UploadedAt.Valid {
		t := data.UploadedAt.Time
		rec.UploadedAt = &t
	}
	return &rec
}
