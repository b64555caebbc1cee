// Package metrics accumulates received training metrics for charting.
package metrics

import (
	"sync"

	"github.com/rileyhilliard/trainwatch/internal/training"
)

// History stores loss points in arrival order.
// A size of 0 keeps every point; a positive size keeps only the newest
// size points in a ring buffer. Safe for concurrent use.
type History struct {
	mu     sync.RWMutex
	size   int
	points []training.LossPoint // unbounded storage when size == 0
	ring   *ringBuffer          // bounded storage when size > 0
	total  int
}

// ringBuffer is a fixed-size circular buffer of loss points.
type ringBuffer struct {
	data  []training.LossPoint
	head  int
	count int
	size  int
}

// NewHistory creates a history. Negative sizes are treated as unbounded.
func NewHistory(size int) *History {
	if size < 0 {
		size = 0
	}
	h := &History{size: size}
	if size > 0 {
		h.ring = newRingBuffer(size)
	}
	return h
}

// Size returns the capacity, or 0 for unbounded.
func (h *History) Size() int {
	return h.size
}

// Append adds a point after all previously appended points.
func (h *History) Append(p training.LossPoint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.total++
	if h.ring != nil {
		h.ring.push(p)
		return
	}
	h.points = append(h.points, p)
}

// Points returns a copy of all retained points, oldest first.
func (h *History) Points() []training.LossPoint {
	return h.Last(h.Len())
}

// Last returns up to n of the newest points, oldest first.
func (h *History) Last(n int) []training.LossPoint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.ring != nil {
		return h.ring.getLast(n)
	}
	if n <= 0 || len(h.points) == 0 {
		return nil
	}
	if n > len(h.points) {
		n = len(h.points)
	}
	out := make([]training.LossPoint, n)
	copy(out, h.points[len(h.points)-n:])
	return out
}

// Losses returns up to n of the newest loss values, oldest first, for sparklines.
func (h *History) Losses(n int) []float64 {
	pts := h.Last(n)
	if len(pts) == 0 {
		return nil
	}
	out := make([]float64, len(pts))
	for i, p := range pts {
		out[i] = p.Loss
	}
	return out
}

// Latest returns the newest point.
func (h *History) Latest() (training.LossPoint, bool) {
	pts := h.Last(1)
	if len(pts) == 0 {
		return training.LossPoint{}, false
	}
	return pts[0], true
}

// Len returns the number of retained points.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.ring != nil {
		return h.ring.count
	}
	return len(h.points)
}

// Total returns the number of points ever appended since the last Reset.
func (h *History) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// Reset removes all points.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.total = 0
	h.points = nil
	if h.ring != nil {
		h.ring = newRingBuffer(h.size)
	}
}

// newRingBuffer creates a new ring buffer with the specified capacity.
func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{
		data: make([]training.LossPoint, size),
		size: size,
	}
}

// push adds a value, overwriting the oldest once full.
func (r *ringBuffer) push(p training.LossPoint) {
	r.data[r.head] = p
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

// getLast returns the last count values in chronological order (oldest first).
func (r *ringBuffer) getLast(count int) []training.LossPoint {
	if count <= 0 || r.count == 0 {
		return nil
	}
	if count > r.count {
		count = r.count
	}

	result := make([]training.LossPoint, count)

	// head is the next write position, so the newest value is at head-1
	start := (r.head - count + r.size) % r.size
	for i := 0; i < count; i++ {
		result[i] = r.data[(start+i)%r.size]
	}
	return result
}
