// Package server is a stand-in training service. It exposes the start,
// status and subscribe endpoints the dashboard consumes, driven by the
// simulate generator.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	twerrors "github.com/rileyhilliard/trainwatch/internal/errors"
	"github.com/rileyhilliard/trainwatch/internal/logger"
	"github.com/rileyhilliard/trainwatch/internal/simulate"
	"github.com/rileyhilliard/trainwatch/internal/telemetry"
	"github.com/rileyhilliard/trainwatch/internal/training"
)

// Defaults for Options.
const (
	DefaultAddr            = ":8080"
	DefaultInterval        = 250 * time.Millisecond
	DefaultBatchesPerEpoch = 20
	ShutdownTimeout        = 10 * time.Second
	AbortMessage           = "Training aborted"
	subscriberBuffer       = 64
)

// Options configures a Server.
type Options struct {
	Addr            string
	Interval        time.Duration
	BatchesPerEpoch int
	// DropAfter closes each subscriber connection after that many frames.
	// 0 never drops.
	DropAfter int
	// AbortAfter ends each run with an error frame after that many
	// batches. 0 never aborts.
	AbortAfter int
	Seed       int64
	Logger    logger.Logger
}

// Server simulates a training process and streams its metrics.
type Server struct {
	opts Options
	gen  *simulate.Generator
	log  logger.Logger

	mu        sync.Mutex
	status    string
	message   string
	epoch     int
	numEpochs int
	runID     string
	cancel    context.CancelFunc
	done      chan struct{}
	subs      map[*subscriber]struct{}

	stopping chan struct{}
	stopOnce sync.Once
}

type subscriber struct {
	frames chan []byte
}

// New returns a server in the ready state.
func New(opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.BatchesPerEpoch <= 0 {
		opts.BatchesPerEpoch = DefaultBatchesPerEpoch
	}
	if opts.Logger == nil {
		opts.Logger = logger.Noop()
	}
	return &Server{
		opts:     opts,
		gen:      simulate.New(simulate.Options{Seed: opts.Seed}),
		log:      opts.Logger,
		status:   training.StatusReady,
		message:  "Ready to start training",
		subs:     make(map[*subscriber]struct{}),
		stopping: make(chan struct{}),
	}
}

// Options returns the effective options.
func (s *Server) Options() Options {
	return s.opts
}

// StartTraining begins a run of numEpochs epochs. It reports false if a
// run is already in progress.
func (s *Server) StartTraining(numEpochs int) (training.StartResponse, bool) {
	if numEpochs <= 0 {
		numEpochs = training.DefaultEpochs
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == training.StatusTraining {
		return training.StartResponse{
			Status:  training.StatusAlreadyRunning,
			Message: "Training already in progress",
		}, false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.status = training.StatusTraining
	s.epoch = 1
	s.numEpochs = numEpochs
	s.runID = uuid.NewString()
	s.message = fmt.Sprintf("Training epoch 1 of %d", numEpochs)
	telemetry.ServerTrainings.Inc()
	s.log.Info("training run %s started (%d epochs)", s.runID, numEpochs)

	go s.run(ctx, s.done, numEpochs)

	return training.StartResponse{
		Status:  training.StatusStarted,
		Message: fmt.Sprintf("Training started for %d epochs", numEpochs),
	}, true
}

// Status returns the current training status.
func (s *Server) Status() training.StatusResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return training.StatusResponse{Status: s.status, Message: s.message, Epoch: s.epoch}
}

// Subscribers returns the number of connected stream clients.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Abort ends the current run and pushes an error frame to every subscriber.
func (s *Server) Abort(message string) {
	frame, err := training.EncodeError(message)
	if err != nil {
		s.log.Error("encode abort frame: %v", err)
		return
	}

	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	s.reportAbort(message, frame)
}

// reportAbort resets the run state and pushes frame to every subscriber.
func (s *Server) reportAbort(message string, frame []byte) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.status = training.StatusReady
	s.message = message
	s.mu.Unlock()

	s.log.Warn("training aborted: %s", message)
	s.broadcast(frame)
}

// Wait blocks until the current run, if any, finishes.
func (s *Server) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *Server) run(ctx context.Context, done chan struct{}, numEpochs int) {
	defer close(done)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	total := numEpochs * s.opts.BatchesPerEpoch
	for n := 1; n <= total; n++ {
		select {
		case <-ctx.Done():
			return
		case <-s.stopping:
			return
		case <-ticker.C:
		}

		m := s.gen.Batch(n)
		m.Epoch = (n-1)/s.opts.BatchesPerEpoch + 1

		s.mu.Lock()
		s.epoch = m.Epoch
		s.message = fmt.Sprintf("Training epoch %d of %d", m.Epoch, numEpochs)
		s.mu.Unlock()

		frame, err := training.EncodeMetric(m)
		if err != nil {
			s.log.Error("encode metric %d: %v", n, err)
			continue
		}
		s.broadcast(frame)

		if s.opts.AbortAfter > 0 && n >= s.opts.AbortAfter {
			abort, err := training.EncodeError(AbortMessage)
			if err != nil {
				s.log.Error("encode abort frame: %v", err)
				return
			}
			s.reportAbort(AbortMessage, abort)
			return
		}
	}

	s.mu.Lock()
	s.status = training.StatusFinished
	s.message = "Training complete"
	s.cancel = nil
	s.mu.Unlock()
	s.log.Info("training run finished after %d batches", total)
}

// broadcast queues frame for every subscriber. Slow subscribers miss frames
// rather than stalling the run.
func (s *Server) broadcast(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		select {
		case sub.frames <- frame:
		default:
			s.log.Warn("subscriber buffer full, dropping frame")
		}
	}
}

func (s *Server) subscribe() *subscriber {
	sub := &subscriber{frames: make(chan []byte, subscriberBuffer)}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	telemetry.ServerSubscribers.Inc()
	return sub
}

func (s *Server) unsubscribe(sub *subscriber) {
	s.mu.Lock()
	delete(s.subs, sub)
	s.mu.Unlock()
	telemetry.ServerSubscribers.Dec()
}

// ListenAndServe serves on opts.Addr until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return twerrors.WrapWithCode(err, twerrors.ErrServer,
			fmt.Sprintf("Couldn't listen on %s", s.opts.Addr),
			"Pick another address with --addr or stop whatever is using the port")
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("serving training API on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.shutdown()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return twerrors.WrapWithCode(err, twerrors.ErrServer, "Server stopped unexpectedly", "")
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	s.shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("graceful shutdown failed: %v", err)
		if closeErr := srv.Close(); closeErr != nil {
			s.log.Error("forced close failed: %v", closeErr)
		}
		return twerrors.WrapWithCode(err, twerrors.ErrServer, "Server did not shut down cleanly", "")
	}
	return nil
}

// shutdown ends the run and releases streaming handlers.
func (s *Server) shutdown() {
	s.stopOnce.Do(func() { close(s.stopping) })
	s.Wait()
}
