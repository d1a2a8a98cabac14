// Package tripstore is the SQLite-backed trip index: trip metadata and
// shock events, plus change notifications for live-updating views.
package tripstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/pemalang/roadsense/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS trips (
	trip_id        TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	start_time     INTEGER NOT NULL,
	end_time       INTEGER NOT NULL DEFAULT 0,
	duration       INTEGER NOT NULL DEFAULT 0,
	distance       REAL NOT NULL DEFAULT 0,
	data_file_path TEXT NOT NULL,
	upload_status  TEXT NOT NULL,
	created_at     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS camera_events (
	event_id          TEXT PRIMARY KEY,
	trip_id           TEXT NOT NULL REFERENCES trips(trip_id) ON DELETE CASCADE,
	timestamp         INTEGER NOT NULL,
	latitude          REAL,
	longitude         REAL,
	image_path        TEXT NOT NULL,
	trigger_magnitude REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_camera_events_trip ON camera_events(trip_id);
CREATE INDEX IF NOT EXISTS idx_trips_created ON trips(created_at DESC);
`

// Store wraps the SQLite trip index.
type Store struct {
	db *sql.DB

	mu        sync.Mutex
	observers []chan struct{}
}

// Open opens (creating if necessary) the index at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trip database: %w", err)
	}

	// WAL for concurrent readers, foreign keys so camera events cascade.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database and all observer channels.
func (s *Store) Close() error {
	s.mu.Lock()
	for _, ch := range s.observers {
		close(ch)
	}
	s.observers = nil
	s.mu.Unlock()
	return s.db.Close()
}

// Observe returns a channel that receives a signal after every mutation.
// The channel has capacity 1 and coalesces bursts; observers re-query on
// signal, which is how the live trip list, count and distance sum update.
func (s *Store) Observe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.observers = append(s.observers, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.observers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Upsert creates or replaces a trip by identifier.
func (s *Store) Upsert(t *models.Trip) error {
	_, err := s.db.Exec(`
		INSERT INTO trips (trip_id, user_id, start_time, end_time, duration,
			distance, data_file_path, upload_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(trip_id) DO UPDATE SET
			user_id = excluded.user_id,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			duration = excluded.duration,
			distance = excluded.distance,
			data_file_path = excluded.data_file_path,
			upload_status = excluded.upload_status,
			created_at = excluded.created_at`,
		t.TripID, t.UserID, t.StartTime, t.EndTime, t.Duration,
		t.Distance, t.DataFilePath, string(t.UploadStatus), t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert trip %s: %w", t.TripID, err)
	}
	s.notify()
	return nil
}

// GetByID returns the trip or sql.ErrNoRows.
func (s *Store) GetByID(tripID string) (*models.Trip, error) {
	row := s.db.QueryRow(`
		SELECT trip_id, user_id, start_time, end_time, duration, distance,
			data_file_path, upload_status, created_at
		FROM trips WHERE trip_id = ?`, tripID)
	return scanTrip(row)
}

// GetAll returns all trips, newest first.
func (s *Store) GetAll() ([]models.Trip, error) {
	rows, err := s.db.Query(`
		SELECT trip_id, user_id, start_time, end_time, duration, distance,
			data_file_path, upload_status, created_at
		FROM trips ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	defer rows.Close()

	var trips []models.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, *t)
	}
	return trips, rows.Err()
}

// DeleteByID removes a trip; its camera events cascade. The caller is
// responsible for removing the backing log file (see DeleteWithFile).
func (s *Store) DeleteByID(tripID string) error {
	res, err := s.db.Exec(`DELETE FROM trips WHERE trip_id = ?`, tripID)
	if err != nil {
		return fmt.Errorf("failed to delete trip %s: %w", tripID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("trip %s not found", tripID)
	}
	s.notify()
	return nil
}

// DeleteWithFile removes the trip row and its log file in one call, the
// path explicit user deletion takes.
func (s *Store) DeleteWithFile(tripID string) error {
	trip, err := s.GetByID(tripID)
	if err != nil {
		return fmt.Errorf("trip %s not found: %w", tripID, err)
	}
	if err := s.DeleteByID(tripID); err != nil {
		return err
	}
	if err := os.Remove(trip.DataFilePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("trip %s deleted but log file remains: %w", tripID, err)
	}
	return nil
}

// Count returns the number of trips.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM trips`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count trips: %w", err)
	}
	return n, nil
}

// TotalDistance returns the sum of all trip distances in meters.
func (s *Store) TotalDistance() (float64, error) {
	var total sql.NullFloat64
	if err := s.db.QueryRow(`SELECT SUM(distance) FROM trips`).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum distances: %w", err)
	}
	return total.Float64, nil
}

// UpdateStatus moves a trip through the upload state machine, rejecting
// illegal transitions.
func (s *Store) UpdateStatus(tripID string, to models.UploadStatus) error {
	trip, err := s.GetByID(tripID)
	if err != nil {
		return fmt.Errorf("trip %s not found: %w", tripID, err)
	}
	if !trip.UploadStatus.CanTransition(to) {
		return fmt.Errorf("trip %s: illegal status transition %s -> %s",
			tripID, trip.UploadStatus, to)
	}
	if _, err := s.db.Exec(`UPDATE trips SET upload_status = ? WHERE trip_id = ?`,
		string(to), tripID); err != nil {
		return fmt.Errorf("failed to update status of trip %s: %w", tripID, err)
	}
	s.notify()
	return nil
}

// InsertCameraEvent records a shock event for its owning trip.
func (s *Store) InsertCameraEvent(e *models.CameraEvent) error {
	var lat, lon any
	if e.Lat != nil {
		lat = *e.Lat
	}
	if e.Lon != nil {
		lon = *e.Lon
	}
	_, err := s.db.Exec(`
		INSERT INTO camera_events (event_id, trip_id, timestamp, latitude,
			longitude, image_path, trigger_magnitude)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.TripID, e.Timestamp, lat, lon, e.ImagePath, e.TriggerMagnitude)
	if err != nil {
		return fmt.Errorf("failed to insert camera event %s: %w", e.EventID, err)
	}
	s.notify()
	return nil
}

// EventsForTrip returns a trip's shock events ordered by time.
func (s *Store) EventsForTrip(tripID string) ([]models.CameraEvent, error) {
	rows, err := s.db.Query(`
		SELECT event_id, trip_id, timestamp, latitude, longitude, image_path,
			trigger_magnitude
		FROM camera_events WHERE trip_id = ? ORDER BY timestamp`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to list camera events: %w", err)
	}
	defer rows.Close()

	var events []models.CameraEvent
	for rows.Next() {
		var e models.CameraEvent
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&e.EventID, &e.TripID, &e.Timestamp, &lat, &lon,
			&e.ImagePath, &e.TriggerMagnitude); err != nil {
			return nil, fmt.Errorf("failed to scan camera event: %w", err)
		}
		if lat.Valid {
			e.Lat = &lat.Float64
		}
		if lon.Valid {
			e.Lon = &lon.Float64
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*models.Trip, error) {
	var t models.Trip
	var status string
	if err := row.Scan(&t.TripID, &t.UserID, &t.StartTime, &t.EndTime,
		&t.Duration, &t.Distance, &t.DataFilePath, &status, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.UploadStatus = models.UploadStatus(status)
	return &t, nil
}
