package stream

import (
	"sync"
	"sync/atomic"
)

// Dispatcher copies values from one producer to multiple subscribers. Each
// subscriber owns a bounded channel; when a subscriber's buffer is full the
// oldest buffered value is discarded so the producer never blocks. Dropped
// values are counted for monitoring.
type Dispatcher[T any] struct {
	mu       sync.Mutex
	subs     []chan T
	capacity int
	closed   bool
	dropped  int64 // atomic
}

// NewDispatcher creates a dispatcher whose subscribers each get a buffer of
// the given capacity.
func NewDispatcher[T any](capacity int) *Dispatcher[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Dispatcher[T]{capacity: capacity}
}

// Subscribe returns a channel that receives copies of all published values.
// Subscribers added after values were published only see later values.
func (d *Dispatcher[T]) Subscribe() <-chan T {
	ch := make(chan T, d.capacity)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		close(ch)
		return ch
	}
	d.subs = append(d.subs, ch)
	return ch
}

// Publish delivers v to every subscriber without blocking. A full
// subscriber loses its oldest buffered value.
func (d *Dispatcher[T]) Publish(v T) {
	d.mu.Lock()
	subs := d.subs
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return
	}

	for _, sub := range subs {
		if Offer(sub, v) {
			atomic.AddInt64(&d.dropped, 1)
		}
	}
}

// Dropped returns the total number of values evicted from full subscriber
// buffers.
func (d *Dispatcher[T]) Dropped() int64 {
	return atomic.LoadInt64(&d.dropped)
}

// SubscriberCount returns the current number of subscribers.
func (d *Dispatcher[T]) SubscriberCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

// Close closes all subscriber channels. Publish after Close is a no-op.
func (d *Dispatcher[T]) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for _, sub := range d.subs {
		close(sub)
	}
	d.subs = nil
}

// Offer places v on ch without ever blocking the caller. If the channel is
// full the oldest buffered value is received and discarded first. Reports
// whether an eviction happened.
//
// Offer assumes a single producer per channel; with concurrent producers
// the eviction and the send could interleave, which is harmless here but
// would skew drop accounting.
func Offer[T any](ch chan T, v T) bool {
	select {
	case ch <- v:
		return false
	default:
	}

	// Full: evict the oldest value, then retry once. The consumer may have
	// raced us and drained the channel, in which case the send succeeds.
	var evicted bool
	select {
	case <-ch:
		evicted = true
	default:
	}
	select {
	case ch <- v:
	default:
	}
	return evicted
}
