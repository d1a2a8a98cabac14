// Package sim provides deterministic, seeded stand-ins for the phone's
// accelerometer and location hardware so recording sessions can run end to
// end without a device.
package sim

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/pemalang/roadsense/internal/geo"
	"github.com/pemalang/roadsense/internal/sensors"
)

// gravityG is the resting vertical acceleration in g units.
const gravityG = 1.0

// Drive simulates a vehicle: it advances along a bearing at the profile's
// speed and shakes the accelerometer with road noise plus occasional bump
// spikes. It implements both sensors.MotionDriver and
// sensors.LocationProvider.
type Drive struct {
	profile *Profile
	seed    int64
	start   time.Time

	mu  sync.Mutex
	lat float64
	lon float64

	motionStop   chan struct{}
	motionDone   chan struct{}
	locationStop chan struct{}
	locationDone chan struct{}
}

// NewDrive creates a drive over the given profile. The same seed replays
// the same drive.
func NewDrive(profile *Profile, seed int64) *Drive {
	return &Drive{
		profile: profile,
		seed:    seed,
		start:   time.Now(),
		lat:     profile.StartLat,
		lon:     profile.StartLon,
	}
}

// Register implements sensors.MotionDriver. Always reports an available
// sensor.
func (d *Drive) Register(rateHz int, deliver func(x, y, z float32)) bool {
	if rateHz <= 0 {
		rateHz = 50
	}
	d.motionStop = make(chan struct{})
	d.motionDone = make(chan struct{})
	go d.runMotion(rateHz, deliver)
	return true
}

// Unregister implements sensors.MotionDriver. It blocks until the delivery
// goroutine has exited, so no sample is delivered after it returns.
func (d *Drive) Unregister() {
	if d.motionStop == nil {
		return
	}
	close(d.motionStop)
	<-d.motionDone
	d.motionStop = nil
}

// Subscribe implements sensors.LocationProvider. The subscription is
// acknowledged as soon as the fix goroutine is running.
func (d *Drive) Subscribe(ctx context.Context, interval time.Duration, deliver func(sensors.Fix)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if interval <= 0 {
		interval = time.Second
	}
	d.locationStop = make(chan struct{})
	d.locationDone = make(chan struct{})
	go d.runLocation(ctx, interval, deliver)
	return nil
}

// Unsubscribe implements sensors.LocationProvider.
func (d *Drive) Unsubscribe() {
	if d.locationStop == nil {
		return
	}
	close(d.locationStop)
	<-d.locationDone
	d.locationStop = nil
}

func (d *Drive) runMotion(rateHz int, deliver func(x, y, z float32)) {
	defer close(d.motionDone)
	rng := rand.New(rand.NewSource(d.seed))
	ticker := time.NewTicker(time.Second / time.Duration(rateHz))
	defer ticker.Stop()

	for {
		select {
		case <-d.motionStop:
			return
		case <-ticker.C:
			c := d.profile.at(time.Since(d.start))
			x := float32(rng.NormFloat64() * c.noiseG)
			y := float32(rng.NormFloat64() * c.noiseG)
			z := float32(gravityG + rng.NormFloat64()*c.noiseG)

			// Bump probability per tick from the per-minute rate.
			if rng.Float64() < c.bumpsPerMin/(60*float64(rateHz)) {
				z += float32(1.5 + rng.Float64()*2.0)
			}
			deliver(x, y, z)
		}
	}
}

func (d *Drive) runLocation(ctx context.Context, interval time.Duration, deliver func(sensors.Fix)) {
	defer close(d.locationDone)
	rng := rand.New(rand.NewSource(d.seed + 1))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.locationStop:
			return
		case <-ticker.C:
			c := d.profile.at(time.Since(d.start))
			step := c.speedKPH / 3.6 * interval.Seconds()

			d.mu.Lock()
			d.lat, d.lon = geo.DestinationPoint(d.lat, d.lon, d.profile.HeadingDeg, step)
			fix := sensors.Fix{
				TimestampMS: time.Now().UnixMilli(),
				Lat:         d.lat,
				Lon:         d.lon,
				Alt:         12 + rng.Float64()*3,
			}
			d.mu.Unlock()

			// Real providers omit derived measurements now and then; keep
			// that behavior so absent fields stay exercised downstream.
			if rng.Float64() < 0.9 {
				speed := c.speedKPH / 3.6
				fix.Speed = &speed
				accuracy := 4 + rng.Float64()*10
				fix.Accuracy = &accuracy
				bearing := d.profile.HeadingDeg
				fix.Bearing = &bearing
			}
			deliver(fix)
		}
	}
}

// Position returns the vehicle's current coordinate.
func (d *Drive) Position() (float64, float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lat, d.lon
}
