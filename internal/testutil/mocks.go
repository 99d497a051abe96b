package testutil

import (
	"sync"
	"sync/atomic"
	"time"
)

// Recorder collects values delivered by callbacks such as cycle observers.
// It is safe for concurrent use.
type Recorder[T any] struct {
	mu     sync.Mutex
	values []T
	times  []time.Time
}

// Record appends v with the current time.
func (r *Recorder[T]) Record(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
	r.times = append(r.times, time.Now())
}

// Values returns a copy of the recorded values in delivery order.
func (r *Recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.values))
	copy(out, r.values)
	return out
}

// Times returns when each value was recorded.
func (r *Recorder[T]) Times() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Time, len(r.times))
	copy(out, r.times)
	return out
}

// Len returns the number of recorded values.
func (r *Recorder[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

// Gauge tracks a current level and the highest level ever reached, e.g.
// the number of concurrently running task actions.
type Gauge struct {
	current int64
	peak    int64
}

// Inc raises the level by one and updates the peak.
func (g *Gauge) Inc() {
	n := atomic.AddInt64(&g.current, 1)
	for {
		p := atomic.LoadInt64(&g.peak)
		if n <= p || atomic.CompareAndSwapInt64(&g.peak, p, n) {
			return
		}
	}
}

// Dec lowers the level by one.
func (g *Gauge) Dec() {
	atomic.AddInt64(&g.current, -1)
}

// Current returns the current level.
func (g *Gauge) Current() int64 {
	return atomic.LoadInt64(&g.current)
}

// Peak returns the highest level observed.
func (g *Gauge) Peak() int64 {
	return atomic.LoadInt64(&g.peak)
}
