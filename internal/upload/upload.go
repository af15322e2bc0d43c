// Package upload ships finished recordings to a collection endpoint
// and marks them uploaded on success. Failed uploads are retried on
// the next sync, so recordings made offline drain once connectivity
// returns.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"motion-recorder/internal/export"
	"motion-recorder/internal/storage"
)

const (
	// DefaultSyncInterval is how often pending recordings are retried.
	DefaultSyncInterval = time.Minute

	requestTimeout = 30 * time.Second
)

// Store is the storage contract the uploader depends on.
// *storage.SqliteStore satisfies it.
type Store interface {
	PendingUploads(ctx context.Context) ([]*storage.Recording, error)
	Readings(ctx context.Context, recordingID int64, opts ...storage.ReadingOption) (*storage.ReadingIterator, error)
	MarkUploaded(ctx context.Context, id int64, uploadedAt time.Time) error
}

// WithLogger sets the uploader's logger.
func WithLogger(logger *slog.Logger) func(*Uploader) {
	return func(u *Uploader) {
		u.logger = logger
	}
}

// WithSyncInterval overrides the retry interval.
func WithSyncInterval(interval time.Duration) func(*Uploader) {
	return func(u *Uploader) {
		if interval > 0 {
			u.interval = interval
		}
	}
}

// WithHTTPClient overrides the HTTP client, e.g. for tests.
func WithHTTPClient(client *http.Client) func(*Uploader) {
	return func(u *Uploader) {
		u.client = client
	}
}

// Uploader periodically posts pending recordings as JSON documents.
type Uploader struct {
	store    Store
	endpoint string

	logger   *slog.Logger
	interval time.Duration
	client   *http.Client
}

// NewUploader creates an uploader posting to the given endpoint URL.
func NewUploader(store Store, endpoint string, options ...func(*Uploader)) *Uploader {
	u := Uploader{
		store:    store,
		endpoint: endpoint,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		interval: DefaultSyncInterval,
		client:   &http.Client{Timeout: requestTimeout},
	}
	for _, option := range options {
		option(&u)
	}
	return &u
}

// Run syncs immediately, then on every interval until the context is
// cancelled.
func (u *Uploader) Run(ctx context.Context) {
	u.Sync(ctx)

	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			u.Sync(ctx)
		}
	}
}

// Sync uploads all pending recordings once. Each recording is uploaded
// independently; one failure does not block the rest.
func (u *Uploader) Sync(ctx context.Context) {
	pending, err := u.store.PendingUploads(ctx)
	if err != nil {
		u.logger.Error(fmt.Sprintf("listing pending uploads: %s", err))
		return
	}

	for _, rec := range pending {
		if ctx.Err() != nil {
			return
		}
		if err := u.uploadOne(ctx, rec); err != nil {
			u.logger.Warn(fmt.Sprintf("uploading recording: %s", err),
				slog.Int64("recordingID", rec.ID))
			continue
		}
		u.logger.Info("recording uploaded",
			slog.Int64("recordingID", rec.ID),
			slog.Int64("totalPoints", rec.TotalPoints))
	}
}

func (u *Uploader) uploadOne(ctx context.Context, rec *storage.Recording) (err error) {
	it, err := u.store.Readings(ctx, rec.ID)
	if err != nil {
		return fmt.Errorf("reading recording %d: %w", rec.ID, err)
	}
	defer func() {
		if cErr := it.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	var body bytes.Buffer
	if _, err = export.WriteJSON(ctx, &body, rec, it); err != nil {
		return fmt.Errorf("encoding recording %d: %w", rec.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, &body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting recording %d: %w", rec.ID, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("posting recording %d: unexpected status %s", rec.ID, resp.Status)
	}

	if err = u.store.MarkUploaded(ctx, rec.ID, time.Now()); err != nil {
		return fmt.Errorf("marking recording %d uploaded: %w", rec.ID, err)
	}
	return nil
}
