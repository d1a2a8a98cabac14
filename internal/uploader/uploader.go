// Package uploader pushes finished trips (metadata, sensor log and any
// capture images) to the backend and drives the trip's upload status
// through pending -> uploading -> uploaded/failed.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pemalang/roadsense/internal/models"
	"github.com/pemalang/roadsense/internal/tripstore"
)

// Client uploads trips to a roadsense backend.
type Client struct {
	baseURL     string
	token       string
	store       *tripstore.Store
	httpc       *http.Client
	maxAttempts int
	backoff     time.Duration
}

// New creates an upload client against baseURL (no trailing slash needed).
func New(baseURL, token string, store *tripstore.Store) *Client {
	return &Client{
		baseURL:     baseURL,
		token:       token,
		store:       store,
		httpc:       &http.Client{Timeout: 60 * time.Second},
		maxAttempts: 3,
		backoff:     time.Second,
	}
}

// UploadTrip uploads one trip with bounded retries. A trip already marked
// uploaded is a no-op; a failed trip is retried (failed -> uploading is a
// legal transition).
func (c *Client) UploadTrip(ctx context.Context, tripID string) error {
	trip, err := c.store.GetByID(tripID)
	if err != nil {
		return fmt.Errorf("trip %s not found: %w", tripID, err)
	}
	if trip.UploadStatus == models.StatusUploaded {
		return nil
	}
	if err := c.store.UpdateStatus(tripID, models.StatusUploading); err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if lastErr = c.post(ctx, trip); lastErr == nil {
			return c.store.UpdateStatus(tripID, models.StatusUploaded)
		}
		log.Printf("upload of trip %s attempt %d/%d failed: %v",
			tripID, attempt, c.maxAttempts, lastErr)

		if attempt < c.maxAttempts {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = c.maxAttempts // stop retrying
			case <-time.After(c.backoff << (attempt - 1)):
			}
		}
	}

	if err := c.store.UpdateStatus(tripID, models.StatusFailed); err != nil {
		log.Printf("failed to mark trip %s as failed: %v", tripID, err)
	}
	return fmt.Errorf("upload of trip %s failed after %d attempts: %w",
		tripID, c.maxAttempts, lastErr)
}

func (c *Client) post(ctx context.Context, trip *models.Trip) error {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("userId", trip.UserID); err != nil {
		return fmt.Errorf("failed to build form: %w", err)
	}
	if err := mw.WriteField("tripId", trip.TripID); err != nil {
		return fmt.Errorf("failed to build form: %w", err)
	}
	meta, err := json.Marshal(trip)
	if err != nil {
		return fmt.Errorf("failed to marshal trip metadata: %w", err)
	}
	if err := mw.WriteField("metadata", string(meta)); err != nil {
		return fmt.Errorf("failed to build form: %w", err)
	}

	if err := c.attachFile(mw, "file", trip.DataFilePath); err != nil {
		return err
	}

	// Capture images are best effort: the collaborator may never have
	// produced some of them.
	events, err := c.store.EventsForTrip(trip.TripID)
	if err != nil {
		return err
	}
	for _, e := range events {
		if _, err := os.Stat(e.ImagePath); err != nil {
			continue
		}
		if err := c.attachFile(mw, "images", e.ImagePath); err != nil {
			return err
		}
	}

	if err := mw.Close(); err != nil {
		return fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/trips/upload", &body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("backend rejected upload: %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	return nil
}

func (c *Client) attachFile(mw *multipart.Writer, field, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	part, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to copy %s into form: %w", path, err)
	}
	return nil
}
