// Package simulate produces synthetic training metrics on a timer. It stands
// in for a real training service when none is running.
package simulate

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rileyhilliard/trainwatch/internal/training"
)

// Defaults for Options.
const (
	DefaultInterval   = time.Second
	DefaultMaxBatches = 50
	DefaultBatchSize  = 32
	DefaultSamples    = 16
	batchesPerEpoch   = 10
	minLoss           = 0.1
)

// Options configures a Generator.
type Options struct {
	Interval   time.Duration
	MaxBatches int
	BatchSize  int
	Samples    int
	// Seed makes output reproducible. 0 seeds from the clock.
	Seed int64
}

// Generator builds decaying-loss metrics with random predictions.
type Generator struct {
	opts Options

	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a generator, filling unset options with defaults.
func New(opts Options) *Generator {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxBatches <= 0 {
		opts.MaxBatches = DefaultMaxBatches
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Samples <= 0 {
		opts.Samples = DefaultSamples
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{opts: opts, rng: rand.New(rand.NewSource(seed))} //nolint:gosec // not security sensitive
}

// Options returns the effective options.
func (g *Generator) Options() Options {
	return g.opts
}

// Batch returns the metric for batch n.
func (g *Generator) Batch(n int) training.Metric {
	g.mu.Lock()
	defer g.mu.Unlock()

	loss := math.Max(minLoss, 2.5*math.Exp(-0.05*float64(n))+g.rng.Float64()*0.2)

	samples := g.opts.Samples
	m := training.Metric{
		Epoch:     n/batchesPerEpoch + 1,
		Batch:     n,
		BatchSize: g.opts.BatchSize,
		BatchLoss: loss,
		Preds:     make([]int, samples),
		Truths:    make([]int, samples),
		Scores:    make([]float64, samples),
		ImageIDs:  make([]int, samples),
	}
	for i := 0; i < samples; i++ {
		m.Preds[i] = g.rng.Intn(10)
		m.Truths[i] = g.rng.Intn(10)
		m.Scores[i] = 0.6 + g.rng.Float64()*0.4
		m.ImageIDs[i] = n*samples + i
	}
	return m
}

// Run emits one metric per interval, starting with batch 1. It returns nil
// after MaxBatches metrics, or ctx.Err() if cancelled first.
func (g *Generator) Run(ctx context.Context, emit func(training.Metric)) error {
	ticker := time.NewTicker(g.opts.Interval)
	defer ticker.Stop()

	for n := 1; n <= g.opts.MaxBatches; n++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		emit(g.Batch(n))
	}
	return nil
}
