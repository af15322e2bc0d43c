package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
settings:
  logLevel: debug
capture:
  maxRateHz: 100
  batchSize: 20
  flushInterval: 250ms
source:
  type: serial
  serialPort: /dev/ttyUSB0
  baudRate: 57600
upload:
  enabled: true
  endpoint: https://example.com/ingest
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if got := config.Settings.Level(); got != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", got)
	}
	if config.Capture.MaxRateHz != 100 {
		t.Errorf("maxRateHz = %v, want 100", config.Capture.MaxRateHz)
	}
	if config.Capture.FlushInterval.Std() != 250*time.Millisecond {
		t.Errorf("flushInterval = %v, want 250ms", config.Capture.FlushInterval.Std())
	}
	if !config.Capture.AutoStart {
		t.Error("autoStart default = false, want true")
	}
	if config.Source.Type != SourceSerial || config.Source.SerialPort != "/dev/ttyUSB0" {
		t.Errorf("source = %+v", config.Source)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, "settings: {}\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if config.Source.Type != SourceSim {
		t.Errorf("default source = %q, want sim", config.Source.Type)
	}
	if got := config.Settings.Level(); got != slog.LevelInfo {
		t.Errorf("default log level = %v, want info", got)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"serial without port", "source:\n  type: serial\n"},
		{"unknown source", "source:\n  type: carrier-pigeon\n"},
		{"upload without endpoint", "upload:\n  enabled: true\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tc.content)); err == nil {
				t.Error("invalid configuration accepted")
			}
		})
	}
}
