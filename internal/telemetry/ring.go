// Package telemetry provides bounded-memory observability for the planner
// factory: fixed-capacity ring buffers of selection and instantiation samples
// behind a single Manager entry point.
package telemetry

import "sync"

// RingBuffer is a fixed-capacity FIFO. Once full, Push overwrites the oldest
// entry. Safe for concurrent use.
type RingBuffer[T any] struct {
	mu    sync.Mutex
	items []T
	head  int // index of the next write
	count int
}

// NewRingBuffer creates a ring buffer holding at most maxSize items.
// A non-positive maxSize is treated as 1.
func NewRingBuffer[T any](maxSize int) *RingBuffer[T] {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &RingBuffer[T]{
		items: make([]T, maxSize),
	}
}

// Push appends an item, overwriting the oldest entry when full. O(1).
func (rb *RingBuffer[T]) Push(item T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.items[rb.head] = item
	rb.head = (rb.head + 1) % len(rb.items)
	if rb.count < len(rb.items) {
		rb.count++
	}
}

// Len returns the number of stored items. Never exceeds capacity.
func (rb *RingBuffer[T]) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Cap returns the fixed capacity.
func (rb *RingBuffer[T]) Cap() int {
	return len(rb.items)
}

// Last returns the k most recently pushed items in insertion order.
// If k exceeds the stored count, all stored items are returned.
func (rb *RingBuffer[T]) Last(k int) []T {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if k > rb.count {
		k = rb.count
	}
	if k <= 0 {
		return nil
	}

	out := make([]T, k)
	// Oldest of the k requested items sits k slots behind the write head.
	start := (rb.head - k + len(rb.items)*2) % len(rb.items)
	for i := 0; i < k; i++ {
		out[i] = rb.items[(start+i)%len(rb.items)]
	}
	return out
}
