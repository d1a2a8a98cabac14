// Package receiver is the ingest side of the upload pipeline: a small HTTP
// backend that accepts trip uploads from devices and archives them.
package receiver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pemalang/roadsense/internal/models"
)

// maxUploadBytes bounds a single upload request body.
const maxUploadBytes = 50 * 1024 * 1024

// Config holds the receiver server configuration.
type Config struct {
	Host  string
	Port  int
	Token string
}

// Stats holds server counters.
type Stats struct {
	TotalReceived   int
	TotalDuplicates int
	TotalErrors     int
}

// TripUpload is one parsed upload request.
type TripUpload struct {
	TripID string
	UserID string
	Trip   models.Trip
	Data   []byte
	Images map[string][]byte
}

// Server accepts trip uploads over HTTP.
type Server struct {
	config     Config
	archive    Archive
	idempotent *idempotencyStore
	server     *http.Server

	mu    sync.RWMutex
	stats Stats
}

// NewServer creates a receiver over the given archive.
func NewServer(config Config, archive Archive) *Server {
	return &Server{
		config:     config,
		archive:    archive,
		idempotent: newIdempotencyStore(),
	}
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/trips/upload", s.handleUpload)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// GetAddress returns the server base URL.
func (s *Server) GetAddress() string {
	return fmt.Sprintf("http://%s:%d", s.config.Host, s.config.Port)
}

// GetStats returns current counters.
func (s *Server) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service":  "roadsense-receiver",
		"endpoint": "/api/trips/upload",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.validateAuth(r) {
		s.countError()
		s.writeError(w, http.StatusUnauthorized, "invalid or missing authorization token")
		return
	}

	upload, err := s.parseUpload(r)
	if err != nil {
		s.countError()
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Retried uploads of the same trip are acknowledged without
	// re-archiving.
	if s.idempotent.exists(upload.TripID) {
		s.mu.Lock()
		s.stats.TotalReceived++
		s.stats.TotalDuplicates++
		s.mu.Unlock()
		s.writeOK(w, upload.TripID, true)
		return
	}

	if err := s.archive.Save(upload); err != nil {
		s.countError()
		s.writeError(w, http.StatusInternalServerError, "failed to archive trip: "+err.Error())
		return
	}
	s.idempotent.mark(upload.TripID)

	s.mu.Lock()
	s.stats.TotalReceived++
	s.mu.Unlock()
	s.writeOK(w, upload.TripID, false)
}

func (s *Server) parseUpload(r *http.Request) (*TripUpload, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	upload := &TripUpload{
		TripID: r.FormValue("tripId"),
		UserID: r.FormValue("userId"),
		Images: make(map[string][]byte),
	}
	if upload.TripID == "" {
		return nil, fmt.Errorf("tripId field is required")
	}
	if upload.UserID == "" {
		return nil, fmt.Errorf("userId field is required")
	}

	meta := r.FormValue("metadata")
	if meta == "" {
		return nil, fmt.Errorf("metadata field is required")
	}
	if err := json.Unmarshal([]byte(meta), &upload.Trip); err != nil {
		return nil, fmt.Errorf("invalid trip metadata: %w", err)
	}
	if upload.Trip.TripID != upload.TripID {
		return nil, fmt.Errorf("metadata trip id %q does not match form trip id %q",
			upload.Trip.TripID, upload.TripID)
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("file part is required: %w", err)
	}
	defer file.Close()
	if upload.Data, err = io.ReadAll(file); err != nil {
		return nil, fmt.Errorf("failed to read sensor log: %w", err)
	}

	if r.MultipartForm != nil {
		for _, hdr := range r.MultipartForm.File["images"] {
			img, err := hdr.Open()
			if err != nil {
				return nil, fmt.Errorf("failed to open image %s: %w", hdr.Filename, err)
			}
			data, err := io.ReadAll(img)
			img.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to read image %s: %w", hdr.Filename, err)
			}
			upload.Images[hdr.Filename] = data
		}
	}
	return upload, nil
}

func (s *Server) validateAuth(r *http.Request) bool {
	if s.config.Token == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return false
	}
	return parts[1] == s.config.Token
}

func (s *Server) countError() {
	s.mu.Lock()
	s.stats.TotalErrors++
	s.mu.Unlock()
}

func (s *Server) writeOK(w http.ResponseWriter, tripID string, duplicate bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"success":   true,
		"tripId":    tripID,
		"duplicate": duplicate,
	})
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
	})
}

// idempotencyStore tracks trip ids that were already archived.
type idempotencyStore struct {
	mu   sync.RWMutex
	seen map[string]time.Time
}

func newIdempotencyStore() *idempotencyStore {
	return &idempotencyStore{seen: make(map[string]time.Time)}
}

func (s *idempotencyStore) exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[id]
	return ok
}

func (s *idempotencyStore) mark(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[id] = time.Now()
}
