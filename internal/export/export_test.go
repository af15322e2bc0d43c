package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"motion-recorder/internal/sensor"
)

// sliceSource feeds a fixed set of readings to the exporters.
type sliceSource struct {
	readings []sensor.Reading
	pos      int
}

func (s *sliceSource) Next(context.Context) bool {
	if s.pos >= len(s.readings) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceSource) Current() sensor.Reading { return s.readings[s.pos-1] }
func (s *sliceSource) Error() error            { return nil }

func sampleReadings() []sensor.Reading {
	wall := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	speed := 1.5
	return []sensor.Reading{
		sensor.Acceleration{X: 0.25, Y: -0.5, Z: 9.81, Wall: wall, Mono: 1000},
		sensor.RotationRate{Alpha: 10, Beta: 20, Gamma: 30, Wall: wall.Add(10 * time.Millisecond), Mono: 1010},
		sensor.GpsFix{Latitude: -33.86, Longitude: 151.2, Accuracy: 5, Speed: &speed, Wall: wall.Add(time.Second)},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteCSV(context.Background(), &buf, &sliceSource{readings: sampleReadings()})
	if err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if n != 3 {
		t.Errorf("rows written = %d, want 3", n)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parsing output: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("output rows = %d, want header + 3", len(rows))
	}
	if rows[0][0] != "kind" || rows[0][1] != "wall_time" {
		t.Errorf("header = %v", rows[0])
	}

	accel := rows[1]
	if accel[0] != string(sensor.KindAcceleration) {
		t.Errorf("kind = %q", accel[0])
	}
	if accel[1] != "2025-06-01T12:00:00Z" {
		t.Errorf("wall_time = %q", accel[1])
	}
	if accel[3] != "0.25" || accel[5] != "9.81" {
		t.Errorf("acceleration columns = %v", accel)
	}
	// Rotation and GPS columns stay blank on an acceleration row.
	if accel[6] != "" || accel[9] != "" {
		t.Errorf("unrelated columns not blank: %v", accel)
	}

	gps := rows[3]
	if gps[9] != "-33.86" || gps[15] != "1.5" {
		t.Errorf("gps columns = %v", gps)
	}
	if gps[12] != "" {
		t.Errorf("absent altitude not blank: %q", gps[12])
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteJSON(context.Background(), &buf, nil, &sliceSource{readings: sampleReadings()})
	if err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if n != 3 {
		t.Errorf("readings written = %d, want 3", n)
	}

	var doc Document
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("parsing output: %v", err)
	}
	if len(doc.Readings) != 3 {
		t.Fatalf("readings = %d, want 3", len(doc.Readings))
	}

	rot := doc.Readings[1]
	if rot.Kind != string(sensor.KindRotationRate) {
		t.Errorf("kind = %q", rot.Kind)
	}
	if rot.Alpha == nil || *rot.Alpha != 10 {
		t.Errorf("alpha = %v, want 10", rot.Alpha)
	}
	if rot.X != nil {
		t.Errorf("rotation row has x = %v", *rot.X)
	}

	// Absent fields are omitted from the wire form entirely.
	if strings.Contains(buf.String(), `"altitude"`) {
		t.Error("absent altitude serialized")
	}
}

func TestWriteJSONEmptySource(t *testing.T) {
	var buf bytes.Buffer
	if _, err := WriteJSON(context.Background(), &buf, nil, &sliceSource{}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var doc Document
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("parsing output: %v", err)
	}
	if doc.Readings == nil {
		t.Error("readings is null, want empty array")
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("csv"); err != nil || f != FormatCSV {
		t.Errorf("ParseFormat(csv) = %v, %v", f, err)
	}
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) succeeded")
	}
}
