package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"motion-recorder/internal/export"
	"motion-recorder/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	if config.List {
		return listRecordings(ctx, store)
	}
	return exportRecording(ctx, store, config, logger)
}

func listRecordings(ctx context.Context, store *storage.SqliteStore) error {
	recs, err := store.Recordings(ctx)
	if err != nil {
		return fmt.Errorf("listing recordings: %w", err)
	}

	for _, rec := range recs {
		status := "running"
		switch {
		case rec.UploadedAt != nil:
			status = "uploaded"
		case rec.Finished():
			status = "finished"
		}

		hz := "-"
		if rec.AverageHz != nil {
			hz = fmt.Sprintf("%.1f Hz", *rec.AverageHz)
		}

		fmt.Printf("%6d  %s (%s)  %8s points  %8s  %s\n",
			rec.ID,
			rec.StartedAt.Local().Format(time.DateTime),
			humanize.Time(rec.StartedAt),
			humanize.Comma(rec.TotalPoints),
			hz,
			status)
	}
	if len(recs) == 0 {
		fmt.Println("no recordings")
	}
	return nil
}

func exportRecording(ctx context.Context, store *storage.SqliteStore, config *Config, logger *slog.Logger) (err error) {
	rec, err := store.Recording(ctx, config.RecordingID)
	if err != nil {
		return fmt.Errorf("loading recording %d: %w", config.RecordingID, err)
	}

	var opts []storage.ReadingOption
	if config.Kind != nil {
		opts = append(opts, storage.WithKind(*config.Kind))
	}
	switch {
	case config.StartTime != nil && config.EndTime != nil:
		opts = append(opts, storage.WithTimeRange(*config.StartTime, *config.EndTime))
	case config.StartTime != nil:
		opts = append(opts, storage.WithStartTime(*config.StartTime))
	case config.EndTime != nil:
		opts = append(opts, storage.WithEndTime(*config.EndTime))
	}

	it, err := store.Readings(ctx, config.RecordingID, opts...)
	if err != nil {
		return fmt.Errorf("reading recording %d: %w", config.RecordingID, err)
	}
	defer func() {
		if cErr := it.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	var out io.Writer = os.Stdout
	if config.OutputFile != "" {
		f, err := os.Create(config.OutputFile)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer func() {
			if cErr := f.Close(); cErr != nil && err == nil {
				err = cErr
			}
		}()
		out = f
	}

	n, err := export.Write(ctx, out, config.Format, rec, it)
	if err != nil {
		return fmt.Errorf("exporting recording %d: %w", config.RecordingID, err)
	}

	logger.Info("export complete",
		slog.Int64("recordingID", config.RecordingID),
		slog.String("format", string(config.Format)),
		slog.Int("readings", n))
	return nil
}
