// Package sensors wraps the platform's inertial and location hardware
// behind drop-oldest sample streams. Hardware callbacks only ever publish
// into a bounded buffer and return; they never touch a lock that could be
// held during disk I/O.
package sensors

import (
	"context"
	"time"
)

// MotionSample is one smoothed accelerometer sample. Axes are in g;
// Magnitude is the exponentially smoothed vector magnitude.
type MotionSample struct {
	X, Y, Z   float32
	Magnitude float32
}

// Fix is a single location report. Lat/Lon/Alt are always present on a
// delivered fix; Speed, Accuracy and Bearing are nil when the platform did
// not supply them.
type Fix struct {
	TimestampMS int64
	Lat         float64
	Lon         float64
	Alt         float64
	Speed       *float64
	Accuracy    *float64
	Bearing     *float64
}

// MotionDriver abstracts the platform accelerometer. Implementations
// deliver raw samples on their own goroutine via the deliver callback.
type MotionDriver interface {
	// Register begins sample delivery at roughly rateHz. It returns false
	// when the device has no accelerometer, in which case nothing is ever
	// delivered.
	Register(rateHz int, deliver func(x, y, z float32)) bool

	// Unregister stops delivery. No deliver call is made after it returns.
	Unregister()
}

// LocationProvider abstracts the platform location service.
type LocationProvider interface {
	// Subscribe starts high-accuracy fix delivery at the given interval and
	// blocks until the platform acknowledges the subscription or ctx is
	// cancelled.
	Subscribe(ctx context.Context, interval time.Duration, deliver func(Fix)) error

	// Unsubscribe cancels delivery. No deliver call is made after it
	// returns. Safe without a prior Subscribe.
	Unsubscribe()
}
