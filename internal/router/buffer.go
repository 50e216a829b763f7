package router

import (
	"errors"
	"sync"
)

var (
	ErrBufferClosed = errors.New("buffer closed")
	ErrBufferFull   = errors.New("buffer full")
)

// GrowableBuffer is a thread-safe FIFO ring that doubles its capacity when
// it reaches 70% full, up to a ceiling. Consumers wait on Ready and drain
// in batches.
type GrowableBuffer[T any] struct {
	mu          sync.Mutex
	buf         []T
	head        int // read position
	count       int
	maxCapacity int // 0 = unlimited
	closed      bool

	ready chan struct{} // Signalled on Send and Close

	stats BufferStats
}

// BufferStats contains buffer statistics.
type BufferStats struct {
	Count         int
	Capacity      int
	MaxCapacity   int
	TotalReceived int64
	TotalSent     int64
	Dropped       int64
	ResizeCount   int
}

// NewGrowableBuffer creates a buffer with the given initial capacity. It
// never grows past maxCapacity unless maxCapacity is 0.
func NewGrowableBuffer[T any](initialCapacity, maxCapacity int) *GrowableBuffer[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	if maxCapacity > 0 && maxCapacity < initialCapacity {
		maxCapacity = initialCapacity
	}
	return &GrowableBuffer[T]{
		buf:         make([]T, initialCapacity),
		maxCapacity: maxCapacity,
		ready:       make(chan struct{}, 1),
	}
}

// Send appends an item, growing at 70% fill. It returns ErrBufferClosed
// after Close and ErrBufferFull when the ceiling is reached.
func (b *GrowableBuffer[T]) Send(item T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBufferClosed
	}

	threshold := (len(b.buf) * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if b.count+1 >= threshold {
		b.grow()
	}
	if b.count == len(b.buf) {
		b.stats.Dropped++
		return ErrBufferFull
	}

	b.buf[(b.head+b.count)%len(b.buf)] = item
	b.count++
	b.stats.TotalReceived++

	b.signal()
	return nil
}

// Ready is signalled whenever items arrive or the buffer closes. A single
// signal may stand for many sends.
func (b *GrowableBuffer[T]) Ready() <-chan struct{} {
	return b.ready
}

// DrainTo removes up to max items (all when max <= 0) in FIFO order.
func (b *GrowableBuffer[T]) DrainTo(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}

	n := b.count
	if max > 0 && max < n {
		n = max
	}

	var zero T
	result := make([]T, n)
	for i := 0; i < n; i++ {
		result[i] = b.buf[b.head]
		b.buf[b.head] = zero // Clear reference for GC
		b.head = (b.head + 1) % len(b.buf)
	}
	b.count -= n
	b.stats.TotalSent += int64(n)

	return result
}

// Close stops accepting items. Remaining items can still be drained.
func (b *GrowableBuffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		b.signal()
	}
}

// Closed reports whether Close has been called.
func (b *GrowableBuffer[T]) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Len returns the current number of items in the buffer.
func (b *GrowableBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Stats returns buffer statistics.
func (b *GrowableBuffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.stats
	s.Count = b.count
	s.Capacity = len(b.buf)
	s.MaxCapacity = b.maxCapacity
	return s
}

// signal must be called with lock held.
func (b *GrowableBuffer[T]) signal() {
	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// grow doubles the capacity within the ceiling. Must be called with lock held.
func (b *GrowableBuffer[T]) grow() {
	newCapacity := len(b.buf) * 2
	if b.maxCapacity > 0 && newCapacity > b.maxCapacity {
		newCapacity = b.maxCapacity
	}
	if newCapacity <= len(b.buf) {
		return
	}

	newBuf := make([]T, newCapacity)
	for i := 0; i < b.count; i++ {
		newBuf[i] = b.buf[(b.head+i)%len(b.buf)]
	}

	b.buf = newBuf
	b.head = 0
	b.stats.ResizeCount++
}
