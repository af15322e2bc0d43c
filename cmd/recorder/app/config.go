package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"motion-recorder/internal/export"
)

const (
	SourceSim    SourceType = "sim"
	SourceSerial SourceType = "serial"
)

type SourceType string

// Duration accepts Go duration strings ("250ms", "2h") in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to the standard library representation.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the main application configuration
type Config struct {
	Settings Settings       `yaml:"settings"`
	Capture  CaptureConfig  `yaml:"capture"`
	Source   SourceConfig   `yaml:"source"`
	Battery  BatteryConfig  `yaml:"battery"`
	Storage  StorageConfig  `yaml:"storage"`
	Identity IdentityConfig `yaml:"identity"`
	Upload   UploadConfig   `yaml:"upload"`
	Export   ExportConfig   `yaml:"export"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level converts the configured log level name, defaulting to info.
func (s Settings) Level() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// CaptureConfig represents sampling pipeline settings
type CaptureConfig struct {
	MaxRateHz       float64  `yaml:"maxRateHz"`
	BatchSize       int      `yaml:"batchSize"`
	FlushInterval   Duration `yaml:"flushInterval"`
	MaxDuration     Duration `yaml:"maxDuration"`
	WatchdogTimeout Duration `yaml:"watchdogTimeout"`
	AutoStart       bool     `yaml:"autoStart"`
}

// SourceConfig represents the raw sensor source settings
type SourceConfig struct {
	Type         SourceType `yaml:"type"`
	SerialPort   string     `yaml:"serialPort"`
	BaudRate     int        `yaml:"baudRate"`
	EmitInterval Duration   `yaml:"emitInterval"`
}

// BatteryConfig represents battery monitoring settings
type BatteryConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Supply       string   `yaml:"supply"`
	PollInterval Duration `yaml:"pollInterval"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
}

// IdentityConfig represents the identity file settings
type IdentityConfig struct {
	Path string `yaml:"path"`
}

// UploadConfig represents upload worker settings
type UploadConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Endpoint     string   `yaml:"endpoint"`
	SyncInterval Duration `yaml:"syncInterval"`
}

// ExportConfig controls the automatic export written after a
// recording stops
type ExportConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Format    string `yaml:"format"`
	Directory string `yaml:"directory"`
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	config := Config{
		Capture: CaptureConfig{AutoStart: true},
		Source:  SourceConfig{Type: SourceSim},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	switch c.Source.Type {
	case SourceSim:
	case SourceSerial:
		if c.Source.SerialPort == "" {
			return fmt.Errorf("source type %q requires a serial port", c.Source.Type)
		}
	default:
		return fmt.Errorf("unknown source type %q", c.Source.Type)
	}

	if c.Capture.MaxRateHz < 0 {
		return fmt.Errorf("maxRateHz must not be negative")
	}
	if c.Upload.Enabled && c.Upload.Endpoint == "" {
		return fmt.Errorf("upload requires an endpoint")
	}
	if c.Export.Enabled && c.Export.Format != "" {
		if _, err := export.ParseFormat(c.Export.Format); err != nil {
			return err
		}
	}
	return nil
}
