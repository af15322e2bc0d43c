package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"motion-recorder/internal/export"
	"motion-recorder/internal/identity"
	"motion-recorder/internal/power"
	"motion-recorder/internal/recording"
	"motion-recorder/internal/sensor"
	"motion-recorder/internal/source"
	"motion-recorder/internal/source/imu"
	"motion-recorder/internal/source/sim"
	"motion-recorder/internal/storage"
	"motion-recorder/internal/upload"
)

const (
	storageDir   = "data"
	identityFile = "identity"

	statusInterval = 30 * time.Second
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	store, dbPath, err := createStorage(&config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	defer store.Close()

	identityPath := config.Identity.Path
	if identityPath == "" {
		identityPath = filepath.Join(filepath.Dir(dbPath), identityFile)
	}
	ident := identity.NewFileProvider(identityPath)

	eng := recording.NewEngine(store, ident, engineOptions(config, logger)...)

	src, err := createSource(&config.Source, eng, logger)
	if err != nil {
		return fmt.Errorf("failed to create sensor source: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 2)
	fail := func(err error) {
		select {
		case errs <- err:
		default:
		}
		cancel()
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := eng.Run(runCtx); err != nil {
			fail(fmt.Errorf("recording engine: %w", err))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := src.Run(runCtx); err != nil {
			fail(fmt.Errorf("sensor source: %w", err))
		}
	}()

	if config.Battery.Enabled {
		startBatteryMonitor(runCtx, &wg, config, eng, logger)
	}

	if config.Upload.Enabled {
		uploader := upload.NewUploader(store, config.Upload.Endpoint,
			upload.WithLogger(logger),
			upload.WithSyncInterval(config.Upload.SyncInterval.Std()))

		wg.Add(1)
		go func() {
			defer wg.Done()
			uploader.Run(runCtx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		logStatus(runCtx, eng, store, logger)
	}()

	logger.Info("recorder started",
		slog.String("database", dbPath),
		slog.String("source", string(config.Source.Type)))

	var recordingID int64
	if config.Capture.AutoStart {
		if recordingID, err = eng.StartRecording(runCtx); err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("failed to start recording: %w", err)
		}
	}

	<-runCtx.Done()
	wg.Wait()

	select {
	case err := <-errs:
		return err
	default:
	}

	if config.Export.Enabled && recordingID != 0 {
		if err := exportRecording(context.Background(), store, config, recordingID, dbPath, logger); err != nil {
			return fmt.Errorf("exporting recording: %w", err)
		}
	}
	return nil
}

// exportRecording dumps the finished recording next to the database
// after shutdown, so a run always leaves a portable artifact behind.
func exportRecording(ctx context.Context, store *storage.SqliteStore, config *Config, recordingID int64, dbPath string, logger *slog.Logger) (err error) {
	format := export.FormatCSV
	if config.Export.Format != "" {
		if format, err = export.ParseFormat(config.Export.Format); err != nil {
			return err
		}
	}

	dir := config.Export.Directory
	if dir == "" {
		dir = filepath.Dir(dbPath)
	}
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	outPath := filepath.Join(dir, fmt.Sprintf("recording_%d.%s", recordingID, format))

	rec, err := store.Recording(ctx, recordingID)
	if err != nil {
		return fmt.Errorf("loading recording %d: %w", recordingID, err)
	}

	it, err := store.Readings(ctx, recordingID)
	if err != nil {
		return fmt.Errorf("reading recording %d: %w", recordingID, err)
	}
	defer func() {
		if cErr := it.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	n, err := export.Write(ctx, f, format, rec, it)
	if err != nil {
		return err
	}

	logger.Info("recording exported",
		slog.String("output", outPath),
		slog.String("readings", humanize.Comma(int64(n))))
	return nil
}

func engineOptions(config *Config, logger *slog.Logger) []func(*recording.Engine) {
	options := []func(*recording.Engine){
		recording.WithEngineLogger(logger),
		recording.WithDisplay(func(r sensor.Reading) {
			logger.Debug("live reading", slog.String("kind", string(r.ReadingKind())))
		}),
	}

	if config.Capture.MaxRateHz > 0 {
		options = append(options, recording.WithMaxRate(config.Capture.MaxRateHz))
	}
	if config.Capture.BatchSize > 0 {
		options = append(options, recording.WithBatchSize(config.Capture.BatchSize))
	}
	if config.Capture.FlushInterval > 0 {
		options = append(options, recording.WithFlushInterval(config.Capture.FlushInterval.Std()))
	}
	if config.Capture.MaxDuration > 0 {
		options = append(options, recording.WithMaxDuration(config.Capture.MaxDuration.Std()))
	}
	if config.Capture.WatchdogTimeout > 0 {
		options = append(options, recording.WithWatchdogTimeout(config.Capture.WatchdogTimeout.Std()))
	}

	return options
}

func createSource(config *SourceConfig, sink source.Sink, logger *slog.Logger) (source.Source, error) {
	switch config.Type {
	case SourceSim:
		options := []func(*sim.Generator){sim.WithLogger(logger)}
		if config.EmitInterval > 0 {
			options = append(options, sim.WithEmitInterval(config.EmitInterval.Std()))
		}
		return sim.NewGenerator(sink, options...), nil

	case SourceSerial:
		options := []func(*imu.Reader){imu.WithLogger(logger)}
		if config.BaudRate > 0 {
			options = append(options, imu.WithBaudRate(config.BaudRate))
		}
		return imu.NewReader(config.SerialPort, sink, options...), nil
	}

	return nil, fmt.Errorf("unknown source type %q", config.Type)
}

func startBatteryMonitor(ctx context.Context, wg *sync.WaitGroup, config *Config, eng *recording.Engine, logger *slog.Logger) {
	var read power.LevelFunc
	var err error
	if config.Battery.Supply != "" {
		read = power.SysfsLevel(config.Battery.Supply)
	} else if read, err = power.DetectSysfs(); err != nil {
		logger.Warn(fmt.Sprintf("battery monitoring disabled: %s", err))
		return
	}

	options := []func(*power.Monitor){power.WithLogger(logger)}
	if config.Battery.PollInterval > 0 {
		options = append(options, power.WithPollInterval(config.Battery.PollInterval.Std()))
	}
	monitor := power.NewMonitor(read, eng.OnBatteryLevel, options...)

	wg.Add(1)
	go func() {
		defer wg.Done()
		monitor.Run(ctx)
	}()
}

// logStatus periodically reports pipeline health: the sampling target,
// the rate actually achieved, and how much disk the recording takes.
func logStatus(ctx context.Context, eng *recording.Engine, store *storage.SqliteStore, logger *slog.Logger) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			attrs := []any{
				slog.Bool("recording", eng.Recording()),
				slog.String("targetHz", fmt.Sprintf("%.0f", eng.TargetRateHz())),
				slog.String("effectiveHz", fmt.Sprintf("%.1f", eng.EffectiveHz())),
			}
			if size, err := store.DatabaseSize(); err == nil {
				attrs = append(attrs, slog.String("databaseSize", humanize.Bytes(uint64(size))))
			}
			logger.Info("recorder status", attrs...)
		}
	}
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = storageDir
	}
	if !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(wd, dataDir)
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("creating storage directory '%s': %w", dataDir, err)
	}

	dbPath := filepath.Join(dataDir, fmt.Sprintf("motion_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.NewSqliteStore(dbPath), dbPath, nil
}
