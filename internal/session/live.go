package session

import (
	"context"

	"github.com/rileyhilliard/trainwatch/internal/logger"
	"github.com/rileyhilliard/trainwatch/internal/stream"
	"github.com/rileyhilliard/trainwatch/internal/training"
)

// MsgServerDown is shown when the start call cannot reach the service.
const MsgServerDown = "Server not connected. Please start the backend server."

// Starter is the part of the training client a live session needs.
type Starter interface {
	Start(ctx context.Context, numEpochs int) (*training.StartResponse, error)
}

// Live asks the training service to start and then follows its metric
// stream through a stream.Manager.
type Live struct {
	starter Starter
	manager *stream.Manager
	epochs  int
	sink    Sink
	log     logger.Logger
}

// NewLive wires the manager's callbacks to sink.
func NewLive(starter Starter, manager *stream.Manager, epochs int, sink Sink, log logger.Logger) *Live {
	if log == nil {
		log = logger.Noop()
	}
	manager.OnMetric(sink.Metric)
	manager.OnStatusChange(sink.Status)
	manager.OnNotify(sink.Notify)
	return &Live{starter: starter, manager: manager, epochs: epochs, sink: sink, log: log}
}

// Name returns NameLive.
func (l *Live) Name() string {
	return NameLive
}

// Manager returns the underlying stream manager.
func (l *Live) Manager() *stream.Manager {
	return l.manager
}

// Start calls the start endpoint and, on success, opens the stream.
// A failed start call is reported once to the sink and the stream is not
// opened.
func (l *Live) Start(ctx context.Context) error {
	if l.manager.State().Active() {
		return nil
	}

	resp, err := l.starter.Start(ctx, l.epochs)
	if err != nil {
		msg := training.UserMessage(err)
		if training.IsTransport(err) {
			msg = MsgServerDown
		}
		l.log.Error("start training: %v", err)
		l.sink.Status(change(l.manager.State(), stream.StateFailed, "start failed"))
		l.sink.Notify(stream.Notification{
			Key:      stream.KeyFailed,
			Level:    stream.LevelError,
			Message:  msg,
			Duration: stream.FailureToastDuration,
		})
		return err
	}

	l.log.Info("training %s: %s", resp.Status, resp.Message)
	if resp.Message != "" {
		l.sink.Notify(stream.Notification{Key: "started", Level: stream.LevelInfo, Message: resp.Message})
	}
	return l.manager.Start()
}

// Stop closes the stream.
func (l *Live) Stop() {
	l.manager.Stop()
}

// Close stops the manager's loop.
func (l *Live) Close() error {
	return l.manager.Close()
}
