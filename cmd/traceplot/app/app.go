package app

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"time"

	"motion-recorder/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	rec, err := store.Recording(ctx, config.RecordingID)
	if err != nil {
		return fmt.Errorf("loading recording %d: %w", config.RecordingID, err)
	}

	trace, err := readTrace(ctx, store, config.RecordingID, logger)
	if err != nil {
		return err
	}

	img, err := NewRenderer(config.Width, config.Height).Render(trace)
	if err != nil {
		return err
	}

	if !config.NoAnnotations {
		if config.FontPath == "" {
			logger.Warn("no font provided, skipping annotations")
		} else {
			annotator, err := NewAnnotator(config.FontPath)
			if err != nil {
				return err
			}
			if err = annotator.Annotate(img, trace, rec); err != nil {
				return fmt.Errorf("annotating image: %w", err)
			}
		}
	}

	if err = writeImage(img, config); err != nil {
		return err
	}

	logger.Info("trace plot written",
		slog.String("output", config.OutputFile),
		slog.Int("points", trace.Points()),
		slog.Duration("span", trace.Duration().Truncate(time.Millisecond)))
	return nil
}

func readTrace(ctx context.Context, store *storage.SqliteStore, recordingID int64, logger *slog.Logger) (trace *TraceData, err error) {
	it, err := store.Readings(ctx, recordingID)
	if err != nil {
		return nil, fmt.Errorf("reading recording %d: %w", recordingID, err)
	}
	defer func() {
		if cErr := it.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	logger.Info("reading data points")

	trace = NewTraceData()
	for it.Next(ctx) {
		trace.Update(it.Current())
	}
	if err = it.Error(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}
	return trace, nil
}

func writeImage(img *image.RGBA, config *Config) (err error) {
	f, err := os.Create(config.OutputFile)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	switch config.Format {
	case ImageJPEG:
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		return fmt.Errorf("encoding image: %w", err)
	}
	return nil
}
