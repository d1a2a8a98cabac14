package sensors

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pemalang/roadsense/internal/stream"
)

// locationBufferCap is deliberately small: fixes arrive at ~1 Hz, so any
// overflow means the consumer stalled. Abnormal but non-fatal.
const locationBufferCap = 16

// LocationSampler turns provider fix deliveries into a bounded drop-oldest
// stream.
type LocationSampler struct {
	provider LocationProvider
	out      chan Fix
	dropped  int64 // atomic

	mu      sync.Mutex
	started bool
}

// NewLocationSampler creates a sampler over the given provider.
func NewLocationSampler(provider LocationProvider) *LocationSampler {
	return &LocationSampler{
		provider: provider,
		out:      make(chan Fix, locationBufferCap),
	}
}

// Fixes returns the fix stream.
func (s *LocationSampler) Fixes() <-chan Fix {
	return s.out
}

// Start subscribes to location updates at the given interval. It blocks
// until the provider acknowledges the subscription, the one intentional
// suspension point in the sensing path. A denied or disabled provider
// surfaces here as an error; recording continues without location.
func (s *LocationSampler) Start(ctx context.Context, intervalSec int) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	err := s.provider.Subscribe(ctx, time.Duration(intervalSec)*time.Second, s.onFix)
	if err != nil {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
	}
	return err
}

// Stop cancels the subscription. Safe to call multiple times or without a
// prior Start.
func (s *LocationSampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.provider.Unsubscribe()
	s.started = false
}

// Dropped returns the number of fixes evicted because the consumer fell
// behind.
func (s *LocationSampler) Dropped() int64 {
	return atomic.LoadInt64(&s.dropped)
}

func (s *LocationSampler) onFix(f Fix) {
	if stream.Offer(s.out, f) {
		atomic.AddInt64(&s.dropped, 1)
	}
}
