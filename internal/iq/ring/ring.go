// Package ring implements the fixed-capacity circular byte store that bridges
// the capture goroutine (producer) and the host pipeline's pull-based
// consumer. One mutex owns the cursors, the occupancy count and the backing
// storage; neither side ever blocks on the other. A full buffer drops the
// incoming payload and counts the overflow, an empty buffer simply yields
// zero bytes to the consumer.
package ring

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultCapacity is sized for 1000 maximal 1472-byte UDP payloads, matching
// the burst tolerance of the reference sender.
const DefaultCapacity = 1472000

// ErrOverflow is returned by Write when the payload does not fit in the free
// space. The write is rejected whole; no partial data enters the buffer.
var ErrOverflow = errors.New("ring: payload exceeds free space")

// ErrShortBuffer is returned by Consume when fewer bytes are buffered than
// requested.
var ErrShortBuffer = errors.New("ring: fewer bytes buffered than requested")

// Buffer is a circular byte store for exactly one producer and one logical
// consumer. Emptiness and fullness are disambiguated by the occupancy count,
// not by cursor equality. All methods are safe for concurrent use; the
// zero value is not usable, construct with New.
type Buffer struct {
	mu        sync.Mutex
	buf       []byte
	writePos  int
	readPos   int
	count     int
	overflows uint64
}

// New creates a Buffer with the given capacity in bytes.
func New(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("ring: capacity must be positive, got %d", capacity)
	}
	return &Buffer{buf: make([]byte, capacity)}, nil
}

// Write copies p into the buffer at the write cursor, wrapping across the end
// of the backing array when needed. If p does not fit in the free space the
// whole write is rejected, the overflow counter is incremented and
// ErrOverflow is returned; the caller drops the payload and capture
// continues.
func (b *Buffer) Write(p []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(p) > len(b.buf)-b.count {
		b.overflows++
		return ErrOverflow
	}
	if len(p) == 0 {
		return nil
	}

	tail := len(b.buf) - b.writePos
	if tail >= len(p) {
		// Single contiguous copy.
		copy(b.buf[b.writePos:], p)
		b.writePos += len(p)
		if b.writePos == len(b.buf) {
			b.writePos = 0
		}
	} else {
		// Two-part wrap copy: tail segment then head segment.
		copy(b.buf[b.writePos:], p[:tail])
		copy(b.buf, p[tail:])
		b.writePos = len(p) - tail
	}
	b.count += len(p)
	return nil
}

// Available returns the number of buffered bytes not yet consumed.
func (b *Buffer) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Capacity returns the fixed capacity of the buffer in bytes.
func (b *Buffer) Capacity() int {
	return len(b.buf)
}

// Overflows returns the number of writes rejected for lack of space.
func (b *Buffer) Overflows() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overflows
}

// Consume hands the oldest n buffered bytes to fn and then removes them.
// When the region wraps the end of the backing array fn receives two slices,
// tail segment first; otherwise second is nil. fn reads the backing storage
// directly and runs entirely under the buffer lock, so decoding and cursor
// advance form one critical section: fn must not call back into the buffer
// and must not retain the slices after returning.
func (b *Buffer) Consume(n int, fn func(first, second []byte)) error {
	if n < 0 {
		return fmt.Errorf("ring: negative consume length %d", n)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.count {
		return fmt.Errorf("%w: have %d, want %d", ErrShortBuffer, b.count, n)
	}
	if n == 0 {
		return nil
	}

	tail := len(b.buf) - b.readPos
	if tail >= n {
		fn(b.buf[b.readPos:b.readPos+n], nil)
		b.readPos += n
		if b.readPos == len(b.buf) {
			b.readPos = 0
		}
	} else {
		fn(b.buf[b.readPos:], b.buf[:n-tail])
		b.readPos = n - tail
	}
	b.count -= n
	return nil
}
