package stream

import "sync"

// Gauge holds a single current value that one owner writes and any number
// of readers poll. It is the hot-value counterpart to Dispatcher: readers
// that only care about "latest" state poll a Gauge instead of consuming a
// stream.
type Gauge[T any] struct {
	mu sync.RWMutex
	v  T
}

// NewGauge creates a gauge holding the given initial value.
func NewGauge[T any](initial T) *Gauge[T] {
	return &Gauge[T]{v: initial}
}

// Set replaces the current value.
func (g *Gauge[T]) Set(v T) {
	g.mu.Lock()
	g.v = v
	g.mu.Unlock()
}

// Get returns the current value.
func (g *Gauge[T]) Get() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.v
}
