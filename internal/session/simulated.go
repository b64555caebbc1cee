package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rileyhilliard/trainwatch/internal/logger"
	"github.com/rileyhilliard/trainwatch/internal/metrics"
	"github.com/rileyhilliard/trainwatch/internal/simulate"
	"github.com/rileyhilliard/trainwatch/internal/stream"
	"github.com/rileyhilliard/trainwatch/internal/training"
)

// Simulated plays generated metrics. It reports Live while running and
// Idle once the generator finishes or is stopped.
type Simulated struct {
	gen     *simulate.Generator
	history *metrics.History
	sink    Sink
	log     logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// NewSimulated creates an idle simulated source. history may be nil.
func NewSimulated(gen *simulate.Generator, history *metrics.History, sink Sink, log logger.Logger) *Simulated {
	if log == nil {
		log = logger.Noop()
	}
	return &Simulated{gen: gen, history: history, sink: sink, log: log}
}

// Name returns NameSimulated.
func (s *Simulated) Name() string {
	return NameSimulated
}

// Running reports whether the generator is active.
func (s *Simulated) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done != nil
}

// Start launches the generator in the background.
func (s *Simulated) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return stream.ErrClosed
	}
	if s.done != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	s.sink.Status(change(stream.StateIdle, stream.StateLive, "simulation started"))
	go s.run(ctx, done)
	return nil
}

func (s *Simulated) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	err := s.gen.Run(ctx, func(m training.Metric) {
		s.sink.Metric(m)
		if s.history != nil {
			s.history.Append(m.LossPoint())
		}
	})

	reason := "simulation finished"
	if errors.Is(err, context.Canceled) {
		reason = "stopped"
	}
	s.log.Debug("simulation ended: %s", reason)
	s.sink.Status(change(stream.StateLive, stream.StateIdle, reason))

	s.mu.Lock()
	if s.done == done {
		s.done = nil
		s.cancel = nil
	}
	s.mu.Unlock()
}

// Stop cancels the generator and waits for it to exit.
func (s *Simulated) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Close stops the generator and prevents restarts.
func (s *Simulated) Close() error {
	s.Stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
