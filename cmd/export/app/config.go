package app

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"motion-recorder/internal/export"
	"motion-recorder/internal/sensor"
)

type Config struct {
	DBPath      string
	RecordingID int64
	OutputFile  string
	Format      export.Format
	Kind        *sensor.Kind
	StartTime   *time.Time
	EndTime     *time.Time
	List        bool
}

func NewConfig() *Config {
	return &Config{
		Format: export.FormatCSV,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c := NewConfig()

	var format, kind, startTime, endTime string
	flag.StringVar(&c.DBPath, "db", "", "Path to the database file")
	flag.Int64Var(&c.RecordingID, "r", 1, "Recording ID")
	flag.StringVar(&c.OutputFile, "o", "", "Path to the output file. Defaults to stdout")
	flag.StringVar(&format, "f", string(export.FormatCSV), "Output format. [csv, json]")
	flag.StringVar(&kind, "kind", "", "Only export one reading kind. [acceleration, rotation_rate, gps_fix]")
	flag.StringVar(&startTime, "s", "", "Only export readings captured at or after this RFC 3339 time")
	flag.StringVar(&endTime, "e", "", "Only export readings captured at or before this RFC 3339 time")
	flag.BoolVar(&c.List, "list", false, "List recordings in the database and exit")
	flag.Parse()

	var err error
	if c.DBPath == "" {
		err = errors.New("db path is required")
	} else if !c.List && c.RecordingID <= 0 {
		err = errors.New("recording id is required")
	} else if c.Format, err = export.ParseFormat(strings.ToLower(format)); err == nil {
		if kind != "" {
			k := sensor.Kind(kind)
			switch k {
			case sensor.KindAcceleration, sensor.KindRotationRate, sensor.KindGpsFix:
				c.Kind = &k
			default:
				err = fmt.Errorf("unknown reading kind: %s", kind)
			}
		}
		if err == nil && startTime != "" {
			var t time.Time
			if t, err = time.Parse(time.RFC3339, startTime); err == nil {
				c.StartTime = &t
			}
		}
		if err == nil && endTime != "" {
			var t time.Time
			if t, err = time.Parse(time.RFC3339, endTime); err == nil {
				c.EndTime = &t
			}
		}
	}

	if err != nil {
		flag.Usage()
		return nil, err
	}
	return c, nil
}
