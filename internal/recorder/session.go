package recorder

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/pemalang/roadsense/internal/models"
	"github.com/pemalang/roadsense/internal/sensors"
)

// Session wires the motion and location samplers into the recorder for one
// recording run. The fusion loop is the single producer of readings: it
// caches the most recent fix and stamps every motion sample with it, so a
// reading's location fields are either all from the same fix or all absent.
type Session struct {
	rec      *Recorder
	motion   *sensors.MotionSampler
	location *sensors.LocationSampler
	trip     models.Trip

	cancel   context.CancelFunc
	stopping chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// StartSession begins a trip and launches the fusion loop. The location
// subscription is awaited on its own goroutine; a denied or absent provider
// degrades the session to motion-only readings instead of failing it.
func StartSession(ctx context.Context, rec *Recorder, motion *sensors.MotionSampler, location *sensors.LocationSampler, userID string) (*Session, error) {
	trip, err := rec.StartTrip(userID)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		rec:      rec,
		motion:   motion,
		location: location,
		trip:     *trip,
		cancel:   cancel,
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
	}

	cfg := rec.Config()
	motion.Start(cfg.SamplingRateHz)
	go func() {
		if err := location.Start(sctx, cfg.GPSIntervalSec); err != nil && sctx.Err() == nil {
			log.Printf("trip %s: location unavailable, recording continues without fixes: %v",
				trip.TripID, err)
		}
	}()

	go s.fuse(sctx)
	return s, nil
}

// Trip returns the trip this session opened.
func (s *Session) Trip() models.Trip {
	return s.trip
}

// Stop tears the session down in order: unregister both samplers so no new
// samples are produced, drain what was already buffered, then run the final
// flush-and-close. Safe to call once; returns the finalized trip.
func (s *Session) Stop() (*models.Trip, error) {
	s.stopOnce.Do(func() {
		s.motion.Stop()
		s.location.Stop()
		close(s.stopping)
		<-s.done
		s.cancel()
	})
	return s.rec.FinishTrip()
}

func (s *Session) fuse(ctx context.Context) {
	defer close(s.done)
	var latest *sensors.Fix

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopping:
			s.drain(latest)
			return
		case fix := <-s.location.Fixes():
			f := fix
			latest = &f
		case ms := <-s.motion.Samples():
			s.rec.AppendReading(fuseReading(ms, latest))
		}
	}
}

// drain consumes whatever both samplers had buffered before they were
// unregistered, so Stop loses nothing that already arrived.
func (s *Session) drain(latest *sensors.Fix) {
	for {
		select {
		case fix := <-s.location.Fixes():
			f := fix
			latest = &f
		case ms := <-s.motion.Samples():
			s.rec.AppendReading(fuseReading(ms, latest))
		default:
			return
		}
	}
}

func fuseReading(ms sensors.MotionSample, fix *sensors.Fix) models.Reading {
	r := models.Reading{
		TimestampMS: time.Now().UnixMilli(),
		AccelX:      ms.X,
		AccelY:      ms.Y,
		AccelZ:      ms.Z,
		Magnitude:   ms.Magnitude,
	}
	if fix != nil {
		lat, lon, alt := fix.Lat, fix.Lon, fix.Alt
		r.Lat, r.Lon, r.Alt = &lat, &lon, &alt
		r.Speed = fix.Speed
		r.Accuracy = fix.Accuracy
		r.Bearing = fix.Bearing
	}
	return r
}
