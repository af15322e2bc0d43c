// Package power watches the system battery level and feeds it to the
// sampling rate policy.
package power

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultPollInterval is how often the battery level is sampled.
	// Battery drain is slow; polling faster only burns the battery.
	DefaultPollInterval = 30 * time.Second

	sysfsRoot = "/sys/class/power_supply"
)

// LevelFunc reads the current battery level as a fraction in [0, 1].
type LevelFunc func() (float64, error)

// SysfsLevel reads the level of the named power supply from sysfs.
func SysfsLevel(name string) LevelFunc {
	path := filepath.Join(sysfsRoot, name, "capacity")
	return func() (float64, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return 0, fmt.Errorf("reading battery capacity: %w", err)
		}
		pct, err := strconv.Atoi(strings.TrimSpace(string(data)))
		if err != nil {
			return 0, fmt.Errorf("parsing battery capacity: %w", err)
		}
		return float64(pct) / 100, nil
	}
}

// DetectSysfs finds the first sysfs power supply that exposes a
// capacity file. Desktop machines typically have none; callers should
// treat the error as "no battery" and skip monitoring.
func DetectSysfs() (LevelFunc, error) {
	entries, err := os.ReadDir(sysfsRoot)
	if err != nil {
		return nil, fmt.Errorf("listing power supplies: %w", err)
	}
	for _, e := range entries {
		if _, err := os.Stat(filepath.Join(sysfsRoot, e.Name(), "capacity")); err == nil {
			return SysfsLevel(e.Name()), nil
		}
	}
	return nil, fmt.Errorf("no power supply with a capacity reading under %s", sysfsRoot)
}

// WithLogger sets the monitor's logger.
func WithLogger(logger *slog.Logger) func(*Monitor) {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithPollInterval overrides the polling interval.
func WithPollInterval(interval time.Duration) func(*Monitor) {
	return func(m *Monitor) {
		if interval > 0 {
			m.interval = interval
		}
	}
}

// Monitor periodically samples a battery level and pushes changed
// readings to a sink.
type Monitor struct {
	read LevelFunc
	sink func(float64)

	logger   *slog.Logger
	interval time.Duration

	last float64
	seen bool
}

// NewMonitor creates a monitor pushing readings from read into sink.
func NewMonitor(read LevelFunc, sink func(float64), options ...func(*Monitor)) *Monitor {
	m := Monitor{
		read:     read,
		sink:     sink,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		interval: DefaultPollInterval,
	}
	for _, option := range options {
		option(&m)
	}
	return &m
}

// Run polls until the context is cancelled. The first successful
// reading is always delivered; afterwards only changes are.
func (m *Monitor) Run(ctx context.Context) {
	m.poll()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

func (m *Monitor) poll() {
	level, err := m.read()
	if err != nil {
		m.logger.Warn(fmt.Sprintf("reading battery level: %s", err))
		return
	}

	if level < 0 {
		level = 0
	} else if level > 1 {
		level = 1
	}

	if m.seen && level == m.last {
		return
	}
	m.last = level
	m.seen = true
	m.sink(level)
}
