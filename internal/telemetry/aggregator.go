// Package telemetry downsamples the recorder's high-frequency reading
// stream into bounded rolling windows suitable for a human-facing display.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/pemalang/roadsense/internal/models"
	"github.com/pemalang/roadsense/internal/recorder"
	"github.com/pemalang/roadsense/internal/stream"
)

const (
	// windowSize caps the per-axis rolling windows.
	windowSize = 200
	// pathWindowSize caps the (lat, lon) path window.
	pathWindowSize = 300
	// publishInterval throttles republishing to ~45 Hz regardless of how
	// fast readings arrive. A time throttle, not a count throttle.
	publishInterval = 22 * time.Millisecond
	// gpsFreshFor is how recently a fix must have been seen for GPS to
	// count as active.
	gpsFreshFor = 5000 * time.Millisecond
	// gpsPollInterval is how often the GPS-active flag is recomputed.
	gpsPollInterval = time.Second
)

// Snapshot is one aggregated view of the live session, safe to hand to a
// renderer: all slices are copies.
type Snapshot struct {
	Magnitude []float32      `json:"magnitude"`
	AccelX    []float32      `json:"ax"`
	AccelY    []float32      `json:"ay"`
	AccelZ    []float32      `json:"az"`
	Points    []models.Point `json:"points"`

	Distance    float64  `json:"distance"`
	Recording   bool     `json:"recording"`
	StartTime   int64    `json:"start_time"`
	EventCount  int64    `json:"event_count"`
	GPSActive   bool     `json:"gps_active"`
	GPSAccuracy *float64 `json:"gps_accuracy,omitempty"`
}

// Aggregator maintains the rolling windows and republishes them at a
// capped rate.
type Aggregator struct {
	rec *recorder.Recorder

	mu        sync.RWMutex
	mags      []float32
	ax        []float32
	ay        []float32
	az        []float32
	points    []models.Point
	gpsActive bool

	out *stream.Dispatcher[Snapshot]
}

// New creates an aggregator over the recorder's live streams. Call Run to
// start it.
func New(rec *recorder.Recorder) *Aggregator {
	return &Aggregator{
		rec: rec,
		out: stream.NewDispatcher[Snapshot](8),
	}
}

// Snapshots subscribes to the throttled snapshot stream.
func (a *Aggregator) Snapshots() <-chan Snapshot {
	return a.out.Subscribe()
}

// Run consumes the recorder's streams until ctx is cancelled. Incoming
// readings are buffered and folded into the windows at most once per
// publishInterval, collapsing bursts into a capped update rate.
func (a *Aggregator) Run(ctx context.Context) {
	readings := a.rec.Readings().Subscribe()
	points := a.rec.Points().Subscribe()
	ticker := time.NewTicker(gpsPollInterval)
	defer ticker.Stop()

	var pending []models.Reading
	lastPublish := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case r, ok := <-readings:
			if !ok {
				return
			}
			pending = append(pending, r)
			if now := time.Now(); now.Sub(lastPublish) >= publishInterval {
				a.fold(pending)
				pending = pending[:0]
				lastPublish = now
				a.out.Publish(a.Current())
			}
		case p, ok := <-points:
			if !ok {
				return
			}
			a.mu.Lock()
			a.points = takeLast(append(a.points, p), pathWindowSize)
			a.mu.Unlock()
		case <-ticker.C:
			last := a.rec.GPSLastSeen().Get()
			active := last > 0 && time.Since(time.UnixMilli(last)) <= gpsFreshFor
			a.mu.Lock()
			changed := active != a.gpsActive
			a.gpsActive = active
			a.mu.Unlock()
			if changed {
				a.out.Publish(a.Current())
			}
		}
	}
}

// Current builds a snapshot of the windows plus the recorder's gauges.
func (a *Aggregator) Current() Snapshot {
	a.mu.RLock()
	snap := Snapshot{
		Magnitude: append([]float32(nil), a.mags...),
		AccelX:    append([]float32(nil), a.ax...),
		AccelY:    append([]float32(nil), a.ay...),
		AccelZ:    append([]float32(nil), a.az...),
		Points:    append([]models.Point(nil), a.points...),
		GPSActive: a.gpsActive,
	}
	a.mu.RUnlock()

	snap.Distance = a.rec.Distance().Get()
	snap.Recording = a.rec.Recording().Get()
	snap.StartTime = a.rec.StartTime().Get()
	snap.EventCount = a.rec.EventCount()
	snap.GPSAccuracy = a.rec.GPSAccuracy().Get()
	return snap
}

func (a *Aggregator) fold(rs []models.Reading) {
	if len(rs) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range rs {
		a.mags = append(a.mags, r.Magnitude)
		a.ax = append(a.ax, r.AccelX)
		a.ay = append(a.ay, r.AccelY)
		a.az = append(a.az, r.AccelZ)
	}
	a.mags = takeLast(a.mags, windowSize)
	a.ax = takeLast(a.ax, windowSize)
	a.ay = takeLast(a.ay, windowSize)
	a.az = takeLast(a.az, windowSize)
}

// takeLast keeps the newest n elements, evicting from the front.
func takeLast[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	keep := s[len(s)-n:]
	// Reallocate so the backing array does not grow without bound.
	out := make([]T, n, n+n/4)
	copy(out, keep)
	return out
}
