// Package waveform holds the stereo sample ring shared between the audio
// callback and the renderers.
package waveform

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

// ErrInvalidCapacity is returned for capacities that are not positive and even.
var ErrInvalidCapacity = errors.New("waveform: capacity must be a positive even number")

// Buffer is a fixed-size ring of interleaved (left, right) float32 pairs.
//
// Exactly one goroutine may call Push. Any number of readers may call
// Snapshot concurrently without coordination; a reader can observe a mix of
// old and new pairs while the writer is active. Slots are stored as atomic
// float bits so readers never block the writer and never race with it.
type Buffer struct {
	slots  []atomic.Uint32
	cursor atomic.Int64
}

// New allocates a buffer holding capacity floats (capacity/2 stereo pairs).
func New(capacity int) (*Buffer, error) {
	if capacity <= 0 || capacity%2 != 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidCapacity, capacity)
	}
	return &Buffer{slots: make([]atomic.Uint32, capacity)}, nil
}

// NewPoints allocates a buffer for the given number of stereo points.
func NewPoints(points int) (*Buffer, error) {
	if points <= 0 {
		return nil, fmt.Errorf("%w (points=%d)", ErrInvalidCapacity, points)
	}
	return New(points * 2)
}

// Push stores one stereo pair at the cursor and advances it by two slots,
// overwriting the oldest pair once the ring is full.
func (b *Buffer) Push(left, right float32) {
	w := int(b.cursor.Load())
	b.slots[w].Store(math.Float32bits(left))
	b.slots[w+1].Store(math.Float32bits(right))
	w += 2
	if w == len(b.slots) {
		w = 0
	}
	b.cursor.Store(int64(w))
}

// Snapshot returns a copy of the backing store in physical slot order.
func (b *Buffer) Snapshot() []float32 {
	return b.SnapshotInto(nil)
}

// SnapshotInto copies the backing store into dst, growing it only when its
// capacity is too small, and returns the filled slice of length Cap.
func (b *Buffer) SnapshotInto(dst []float32) []float32 {
	if cap(dst) < len(b.slots) {
		dst = make([]float32, len(b.slots))
	}
	dst = dst[:len(b.slots)]
	for i := range b.slots {
		dst[i] = math.Float32frombits(b.slots[i].Load())
	}
	return dst
}

// Cap returns the number of float slots.
func (b *Buffer) Cap() int { return len(b.slots) }

// Points returns the number of stereo pairs the buffer holds.
func (b *Buffer) Points() int { return len(b.slots) / 2 }

// Cursor returns the slot the next Push will write.
func (b *Buffer) Cursor() int { return int(b.cursor.Load()) }
