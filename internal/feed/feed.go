// v0
// internal/feed/feed.go
package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Next once the termination marker has been
// consumed, and by Publish after Close.
var ErrClosed = errors.New("feed closed")

type entry[T any] struct {
	value T
	end   bool
}

// Feed is a bounded single-consumer hand-off where only recent values
// matter. Publish never blocks: when the buffer is full the oldest value is
// discarded. Close enqueues a termination marker that always survives.
type Feed[T any] struct {
	mu      sync.Mutex
	ch      chan entry[T]
	closed  bool
	ended   atomic.Bool
	dropped atomic.Uint64
	onDrop  func()
}

// New returns a feed holding at most capacity values. Capacity below 1 is
// raised to 1, which gives pure latest-wins behaviour.
func New[T any](capacity int) *Feed[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Feed[T]{ch: make(chan entry[T], capacity)}
}

// OnDrop registers a callback invoked for every discarded value. It must be
// set before the first Publish.
func (f *Feed[T]) OnDrop(fn func()) {
	f.onDrop = fn
}

// Publish enqueues v, evicting the oldest value if the buffer is full.
func (f *Feed[T]) Publish(v T) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	f.push(entry[T]{value: v})
	return nil
}

// Close enqueues the termination marker. Subsequent calls are no-ops.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.push(entry[T]{end: true})
}

func (f *Feed[T]) push(e entry[T]) {
	for {
		select {
		case f.ch <- e:
			return
		default:
		}
		select {
		case <-f.ch:
			f.dropped.Add(1)
			if f.onDrop != nil {
				f.onDrop()
			}
		default:
		}
	}
}

// Next blocks until a value is available, the marker is reached, or ctx is
// done.
func (f *Feed[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if f.ended.Load() {
		return zero, ErrClosed
	}
	select {
	case e := <-f.ch:
		if e.end {
			f.ended.Store(true)
			return zero, ErrClosed
		}
		return e.value, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Dropped reports how many values were evicted before being consumed.
func (f *Feed[T]) Dropped() uint64 { return f.dropped.Load() }

// Len reports the number of buffered entries, the marker included.
func (f *Feed[T]) Len() int { return len(f.ch) }
