// Package recorder fuses motion and location samples into a single ordered,
// file-durable time series and maintains the live state a display layer
// needs: cumulative distance, GPS freshness, shock event count.
package recorder

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pemalang/roadsense/internal/geo"
	"github.com/pemalang/roadsense/internal/models"
	"github.com/pemalang/roadsense/internal/stream"
	"github.com/pemalang/roadsense/internal/triplog"
)

// ErrAlreadyRecording is returned by StartTrip while a trip is open.
// Starting over an in-progress trip would silently lose its final flush, so
// the caller must finish first.
var ErrAlreadyRecording = errors.New("a trip is already being recorded")

// liveBufferCap sizes the live reading/point streams consumed by display
// layers. Best effort: a laggy consumer loses the oldest updates and
// recording is never blocked.
const liveBufferCap = 256

// TripStore is the narrow persistence surface the recorder needs. The full
// index lives in the tripstore package.
type TripStore interface {
	Upsert(*models.Trip) error
	InsertCameraEvent(*models.CameraEvent) error
}

// CaptureNotifier is signalled when a shock crosses the sensitivity
// threshold. Taking the actual photo is the collaborator's job; the
// recorder only supplies a destination path and the triggering magnitude.
type CaptureNotifier interface {
	CaptureRequested(imagePath string, magnitude float32)
}

// CaptureFunc adapts a plain function to CaptureNotifier.
type CaptureFunc func(imagePath string, magnitude float32)

// CaptureRequested implements CaptureNotifier.
func (f CaptureFunc) CaptureRequested(imagePath string, magnitude float32) {
	f(imagePath, magnitude)
}

// session is the per-trip mutable state, constructed at StartTrip and torn
// down at FinishTrip. Keeping it in one object (instead of loose fields on
// the recorder) makes the Idle<->Recording state machine explicit.
type session struct {
	trip    models.Trip
	log     *triplog.Writer
	lastLat *float64
	lastLon *float64
	total   float64 // cumulative meters
}

// Recorder owns the trip lifecycle. Exactly zero or one trip is in
// progress at any time.
//
// Concurrency contract: AppendReading is called from a single fusion
// goroutine; StartTrip and FinishTrip may be called from others. The mu
// guards the session pointer; the accumulators inside the session are only
// touched by AppendReading while the session is live, and by FinishTrip
// after the fusion loop has stopped.
type Recorder struct {
	store   TripStore
	capture CaptureNotifier // may be nil
	cfg     models.SessionConfig
	dataDir string

	mu   sync.Mutex
	sess *session

	readings *stream.Dispatcher[models.Reading]
	points   *stream.Dispatcher[models.Point]

	distance    *stream.Gauge[float64]
	recording   *stream.Gauge[bool]
	startTime   *stream.Gauge[int64]
	gpsLastTS   *stream.Gauge[int64]
	gpsAccuracy *stream.Gauge[*float64]
	eventCount  int64 // atomic
}

// New creates a recorder that writes trip logs under dataDir. capture may
// be nil when no camera collaborator is attached.
func New(store TripStore, capture CaptureNotifier, cfg models.SessionConfig, dataDir string) *Recorder {
	return &Recorder{
		store:       store,
		capture:     capture,
		cfg:         cfg,
		dataDir:     dataDir,
		readings:    stream.NewDispatcher[models.Reading](liveBufferCap),
		points:      stream.NewDispatcher[models.Point](liveBufferCap),
		distance:    stream.NewGauge(0.0),
		recording:   stream.NewGauge(false),
		startTime:   stream.NewGauge(int64(0)),
		gpsLastTS:   stream.NewGauge(int64(0)),
		gpsAccuracy: stream.NewGauge[*float64](nil),
	}
}

// Live state accessors consumed by display and upload layers.

// Readings returns the live per-reading stream dispatcher.
func (r *Recorder) Readings() *stream.Dispatcher[models.Reading] { return r.readings }

// Points returns the live (lat, lon) path stream dispatcher.
func (r *Recorder) Points() *stream.Dispatcher[models.Point] { return r.points }

// Distance returns the cumulative distance gauge in meters.
func (r *Recorder) Distance() *stream.Gauge[float64] { return r.distance }

// Recording returns the recording-in-progress gauge.
func (r *Recorder) Recording() *stream.Gauge[bool] { return r.recording }

// StartTime returns the current trip's start timestamp gauge (ms epoch).
func (r *Recorder) StartTime() *stream.Gauge[int64] { return r.startTime }

// GPSLastSeen returns the timestamp gauge of the last location-bearing
// reading (ms epoch, 0 when none yet).
func (r *Recorder) GPSLastSeen() *stream.Gauge[int64] { return r.gpsLastTS }

// GPSAccuracy returns the gauge of the most recent horizontal accuracy,
// nil when the last fix carried none.
func (r *Recorder) GPSAccuracy() *stream.Gauge[*float64] { return r.gpsAccuracy }

// EventCount returns the number of shock events detected this trip.
func (r *Recorder) EventCount() int64 {
	return atomic.LoadInt64(&r.eventCount)
}

// Config returns the session configuration the recorder was built with.
func (r *Recorder) Config() models.SessionConfig { return r.cfg }

// StartTrip opens a new trip: generates its identifier, creates the log
// file with its header, resets the accumulators, persists the trip with
// status pending and flips to Recording. Returns ErrAlreadyRecording if a
// trip is open.
func (r *Recorder) StartTrip(userID string) (*models.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sess != nil {
		return nil, ErrAlreadyRecording
	}

	tripID := uuid.New().String()
	if err := os.MkdirAll(r.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	path := filepath.Join(r.dataDir, tripID+".csv")

	logWriter, err := triplog.Create(path)
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	trip := models.Trip{
		TripID:       tripID,
		UserID:       userID,
		StartTime:    now,
		DataFilePath: path,
		UploadStatus: models.StatusPending,
		CreatedAt:    now,
	}
	if err := r.store.Upsert(&trip); err != nil {
		logWriter.Close()
		os.Remove(path)
		return nil, fmt.Errorf("failed to persist trip: %w", err)
	}

	r.sess = &session{trip: trip, log: logWriter}
	r.distance.Set(0)
	r.recording.Set(true)
	r.startTime.Set(now)
	r.gpsLastTS.Set(0)
	r.gpsAccuracy.Set(nil)
	atomic.StoreInt64(&r.eventCount, 0)

	out := trip
	return &out, nil
}

// AppendReading records one fused sample: serialize and batch-append it to
// the log, publish it on the live stream, fold any location into the
// distance accumulator and GPS freshness, and fire shock detection.
// A batch write failure is logged and swallowed; losing telemetry beats
// killing an in-progress recording. Calling from Idle is a no-op.
func (r *Recorder) AppendReading(reading models.Reading) {
	r.mu.Lock()
	sess := r.sess
	r.mu.Unlock()
	if sess == nil {
		return
	}

	if err := sess.log.Append(reading); err != nil {
		log.Printf("trip %s: dropping batch: %v", sess.trip.TripID, err)
	}

	r.readings.Publish(reading)

	if reading.HasLocation() {
		if sess.lastLat != nil && sess.lastLon != nil {
			sess.total += geo.Haversine(*sess.lastLat, *sess.lastLon, *reading.Lat, *reading.Lon)
		}
		sess.lastLat = reading.Lat
		sess.lastLon = reading.Lon
		r.points.Publish(models.Point{Lat: *reading.Lat, Lon: *reading.Lon})
		r.distance.Set(sess.total)
		r.gpsLastTS.Set(time.Now().UnixMilli())
		r.gpsAccuracy.Set(reading.Accuracy)
	}

	if float64(reading.Magnitude) > r.cfg.SensitivityG {
		atomic.AddInt64(&r.eventCount, 1)
		r.recordShock(sess, reading)
	}
}

func (r *Recorder) recordShock(sess *session, reading models.Reading) {
	imagePath := filepath.Join(r.dataDir, "captures",
		fmt.Sprintf("%s_%d.jpg", sess.trip.TripID, reading.TimestampMS))
	event := &models.CameraEvent{
		EventID:          uuid.New().String(),
		TripID:           sess.trip.TripID,
		Timestamp:        reading.TimestampMS,
		Lat:              reading.Lat,
		Lon:              reading.Lon,
		ImagePath:        imagePath,
		TriggerMagnitude: reading.Magnitude,
	}
	if err := r.store.InsertCameraEvent(event); err != nil {
		log.Printf("trip %s: failed to persist shock event: %v", sess.trip.TripID, err)
	}
	if r.capture != nil {
		r.capture.CaptureRequested(imagePath, reading.Magnitude)
	}
}

// FinishTrip flushes the remaining buffered rows, closes the log, freezes
// duration and distance into the trip, persists it and returns to Idle.
// Unlike mid-session batch writes, a failure of the terminal flush is
// surfaced: a silently truncated trip is worse than a visible error.
// Calling from Idle returns (nil, nil).
func (r *Recorder) FinishTrip() (*models.Trip, error) {
	r.mu.Lock()
	sess := r.sess
	r.sess = nil
	r.mu.Unlock()
	if sess == nil {
		return nil, nil
	}

	r.recording.Set(false)
	closeErr := sess.log.Close()

	now := time.Now().UnixMilli()
	trip := sess.trip
	trip.EndTime = now
	trip.Duration = (now - trip.StartTime) / 1000
	trip.Distance = sess.total

	if err := r.store.Upsert(&trip); err != nil {
		return nil, fmt.Errorf("failed to persist finished trip: %w", err)
	}
	if closeErr != nil {
		return &trip, fmt.Errorf("final flush of trip %s failed: %w", trip.TripID, closeErr)
	}
	return &trip, nil
}
