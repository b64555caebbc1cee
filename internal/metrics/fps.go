package metrics

import (
	"math"
	"sync"
	"time"
)

// DefaultFPSSamples is how many frame-rate samples are retained.
const DefaultFPSSamples = 20

// FPSSample is one frame-rate measurement.
type FPSSample struct {
	Index int
	FPS   int
}

// FrameRate measures how many frames are rendered per second.
// Call Frame once per rendered frame; a sample is produced once at least a
// second has elapsed since the previous sample.
type FrameRate struct {
	mu      sync.Mutex
	max     int
	last    time.Time
	frames  int
	current int
	index   int
	samples []FPSSample
}

// NewFrameRate creates a meter keeping up to max samples.
func NewFrameRate(max int, start time.Time) *FrameRate {
	if max <= 0 {
		max = DefaultFPSSamples
	}
	return &FrameRate{max: max, last: start}
}

// Frame records a frame at now and returns the new sample when one was taken.
func (f *FrameRate) Frame(now time.Time) (FPSSample, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.frames++
	elapsed := now.Sub(f.last)
	if elapsed < time.Second {
		return FPSSample{}, false
	}

	fps := int(math.Round(float64(f.frames) * float64(time.Second) / float64(elapsed)))
	sample := FPSSample{Index: f.index, FPS: fps}
	f.index++
	f.current = fps
	f.samples = append(f.samples, sample)
	if len(f.samples) > f.max {
		f.samples = f.samples[len(f.samples)-f.max:]
	}
	f.frames = 0
	f.last = now
	return sample, true
}

// Current returns the latest measured frame rate (0 before the first sample).
func (f *FrameRate) Current() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Change is the difference between the last two samples, or 0.
func (f *FrameRate) Change() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.samples)
	if n < 2 {
		return 0
	}
	return f.samples[n-1].FPS - f.samples[n-2].FPS
}

// Samples returns a copy of retained samples, oldest first.
func (f *FrameRate) Samples() []FPSSample {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FPSSample, len(f.samples))
	copy(out, f.samples)
	return out
}

// Values returns the retained FPS values, oldest first.
func (f *FrameRate) Values() []float64 {
	samples := f.Samples()
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s.FPS)
	}
	return out
}
