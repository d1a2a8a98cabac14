package sensors

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/pemalang/roadsense/internal/stream"
)

const (
	// motionBufferCap bounds unconsumed samples; a stalled consumer loses
	// the oldest samples rather than blocking the sensor callback.
	motionBufferCap = 64

	// emaAlpha weights the previous smoothed magnitude. The emitted
	// magnitude is 0.2*prev + 0.8*raw; downstream shock thresholds were
	// tuned against exactly this weighting, so do not "fix" it.
	emaAlpha = 0.2
)

// MotionSampler turns raw accelerometer deliveries into a stream of
// smoothed motion samples.
type MotionSampler struct {
	driver  MotionDriver
	out     chan MotionSample
	lastMag float32 // touched only from the driver callback
	dropped int64   // atomic

	mu      sync.Mutex
	started bool
}

// NewMotionSampler creates a sampler over the given driver.
func NewMotionSampler(driver MotionDriver) *MotionSampler {
	return &MotionSampler{
		driver: driver,
		out:    make(chan MotionSample, motionBufferCap),
	}
}

// Samples returns the sample stream. The channel is never closed; consumers
// select on it together with their own cancellation.
func (s *MotionSampler) Samples() <-chan MotionSample {
	return s.out
}

// Start registers with the hardware at the requested rate. If the device
// has no accelerometer this is a no-op and the stream simply stays silent;
// callers treat "no samples within a timeout" as degraded, not fatal.
// Calling Start while running is a no-op.
func (s *MotionSampler) Start(rateHz int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.lastMag = 0
	s.started = s.driver.Register(rateHz, s.onSample)
}

// Stop unregisters from the hardware. Safe to call twice or without a
// prior Start; once it returns no further samples are emitted.
func (s *MotionSampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.driver.Unregister()
	s.started = false
}

// Dropped returns the number of samples evicted because the consumer fell
// behind.
func (s *MotionSampler) Dropped() int64 {
	return atomic.LoadInt64(&s.dropped)
}

func (s *MotionSampler) onSample(x, y, z float32) {
	raw := float32(math.Sqrt(float64(x*x + y*y + z*z)))
	m := emaAlpha*s.lastMag + (1-emaAlpha)*raw
	s.lastMag = m
	if stream.Offer(s.out, MotionSample{X: x, Y: y, Z: z, Magnitude: m}) {
		atomic.AddInt64(&s.dropped, 1)
	}
}
