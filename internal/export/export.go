// Package export renders stored recordings as CSV or JSON documents.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"motion-recorder/internal/sensor"
	"motion-recorder/internal/storage"
)

// Format selects the export output format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat converts a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Source is the reading iterator contract the exporters consume.
// *storage.ReadingIterator satisfies it.
type Source interface {
	Next(ctx context.Context) bool
	Current() sensor.Reading
	Error() error
}

// Record is one exported reading. All kinds share the flat shape;
// fields that do not apply to a kind are nil and render as blanks in
// CSV or are omitted from JSON.
type Record struct {
	Kind     string    `json:"kind"`
	WallTime time.Time `json:"wallTime"`
	MonoTime *float64  `json:"monoTime,omitempty"`

	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
	Z *float64 `json:"z,omitempty"`

	Alpha *float64 `json:"alpha,omitempty"`
	Beta  *float64 `json:"beta,omitempty"`
	Gamma *float64 `json:"gamma,omitempty"`

	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
	Accuracy         *float64 `json:"accuracy,omitempty"`
	Altitude         *float64 `json:"altitude,omitempty"`
	AltitudeAccuracy *float64 `json:"altitudeAccuracy,omitempty"`
	Heading          *float64 `json:"heading,omitempty"`
	Speed            *float64 `json:"speed,omitempty"`
}

// Document is the JSON export envelope: recording metadata followed by
// its readings in capture-time order.
type Document struct {
	Recording *storage.Recording `json:"recording,omitempty"`
	Readings  []Record           `json:"readings"`
}

func toRecord(r sensor.Reading) Record {
	rec := Record{
		Kind:     string(r.ReadingKind()),
		WallTime: r.CapturedAt(),
	}

	switch v := r.(type) {
	case sensor.Acceleration:
		rec.MonoTime = &v.Mono
		rec.X, rec.Y, rec.Z = &v.X, &v.Y, &v.Z

	case sensor.RotationRate:
		rec.MonoTime = &v.Mono
		rec.Alpha, rec.Beta, rec.Gamma = &v.Alpha, &v.Beta, &v.Gamma

	case sensor.GpsFix:
		rec.Latitude, rec.Longitude, rec.Accuracy = &v.Latitude, &v.Longitude, &v.Accuracy
		rec.Altitude = v.Altitude
		rec.AltitudeAccuracy = v.AltitudeAccuracy
		rec.Heading = v.Heading
		rec.Speed = v.Speed
	}

	return rec
}

// csvHeader lists the unified CSV columns. Every kind shares the same
// header; columns that do not apply to a row stay blank.
var csvHeader = []string{
	"kind", "wall_time", "mono_time",
	"x", "y", "z",
	"alpha", "beta", "gamma",
	"latitude", "longitude", "accuracy",
	"altitude", "altitude_accuracy", "heading", "speed",
}

func formatFloat(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'g', -1, 64)
}

func (r Record) csvRow() []string {
	return []string{
		r.Kind,
		r.WallTime.UTC().Format(time.RFC3339Nano),
		formatFloat(r.MonoTime),
		formatFloat(r.X),
		formatFloat(r.Y),
		formatFloat(r.Z),
		formatFloat(r.Alpha),
		formatFloat(r.Beta),
		formatFloat(r.Gamma),
		formatFloat(r.Latitude),
		formatFloat(r.Longitude),
		formatFloat(r.Accuracy),
		formatFloat(r.Altitude),
		formatFloat(r.AltitudeAccuracy),
		formatFloat(r.Heading),
		formatFloat(r.Speed),
	}
}

// WriteCSV streams the source's readings to w as CSV and returns the
// number of data rows written.
func WriteCSV(ctx context.Context, w io.Writer, src Source) (n int, err error) {
	cw := csv.NewWriter(w)

	if err = cw.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}

	for src.Next(ctx) {
		if err = cw.Write(toRecord(src.Current()).csvRow()); err != nil {
			return n, fmt.Errorf("writing row: %w", err)
		}
		n++
	}
	if err = src.Error(); err != nil {
		return n, fmt.Errorf("reading source: %w", err)
	}

	cw.Flush()
	if err = cw.Error(); err != nil {
		return n, fmt.Errorf("flushing output: %w", err)
	}
	return n, nil
}

// WriteJSON writes the recording and its readings to w as a single
// JSON document and returns the number of readings written.
func WriteJSON(ctx context.Context, w io.Writer, rec *storage.Recording, src Source) (int, error) {
	doc := Document{
		Recording: rec,
		Readings:  make([]Record, 0),
	}

	for src.Next(ctx) {
		doc.Readings = append(doc.Readings, toRecord(src.Current()))
	}
	if err := src.Error(); err != nil {
		return 0, fmt.Errorf("reading source: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return 0, fmt.Errorf("encoding document: %w", err)
	}
	return len(doc.Readings), nil
}

// Write renders the source in the given format.
func Write(ctx context.Context, w io.Writer, format Format, rec *storage.Recording, src Source) (int, error) {
	switch format {
	case FormatCSV:
		return WriteCSV(ctx, w, src)
	case FormatJSON:
		return WriteJSON(ctx, w, rec, src)
	}
	return 0, fmt.Errorf("unknown export format %q", format)
}
