// Package session connects a metric source to whatever displays it.
package session

import (
	"context"
	"time"

	"github.com/rileyhilliard/trainwatch/internal/stream"
	"github.com/rileyhilliard/trainwatch/internal/training"
)

// Sink receives everything a session produces. Methods may be called from
// background goroutines and must not block for long.
type Sink interface {
	Metric(m training.Metric)
	Status(c stream.StatusChange)
	Notify(n stream.Notification)
}

// Source is a startable stream of metrics.
type Source interface {
	// Name is "live" or "simulated".
	Name() string
	// Start begins producing metrics. Starting an active source is a no-op.
	Start(ctx context.Context) error
	// Stop halts production. Safe to call at any time.
	Stop()
	// Close releases the source. It cannot be restarted afterwards.
	Close() error
}

// Source names.
const (
	NameLive      = "live"
	NameSimulated = "simulated"
)

// SinkFuncs adapts plain functions to Sink. Nil fields are ignored.
type SinkFuncs struct {
	OnMetric func(training.Metric)
	OnStatus func(stream.StatusChange)
	OnNotify func(stream.Notification)
}

// Metric calls OnMetric.
func (s SinkFuncs) Metric(m training.Metric) {
	if s.OnMetric != nil {
		s.OnMetric(m)
	}
}

// Status calls OnStatus.
func (s SinkFuncs) Status(c stream.StatusChange) {
	if s.OnStatus != nil {
		s.OnStatus(c)
	}
}

// Notify calls OnNotify.
func (s SinkFuncs) Notify(n stream.Notification) {
	if s.OnNotify != nil {
		s.OnNotify(n)
	}
}

func change(from, to stream.ConnectionState, reason string) stream.StatusChange {
	return stream.StatusChange{From: from, To: to, Reason: reason, At: time.Now()}
}
