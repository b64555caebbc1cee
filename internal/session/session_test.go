package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/trainwatch/internal/metrics"
	"github.com/rileyhilliard/trainwatch/internal/simulate"
	"github.com/rileyhilliard/trainwatch/internal/stream"
	streamtest "github.com/rileyhilliard/trainwatch/internal/stream/testing"
	"github.com/rileyhilliard/trainwatch/internal/training"
)

type captureSink struct {
	mu       sync.Mutex
	metrics  []training.Metric
	statuses []stream.StatusChange
	notes    []stream.Notification
}

func (c *captureSink) Metric(m training.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = append(c.metrics, m)
}

func (c *captureSink) Status(s stream.StatusChange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = append(c.statuses, s)
}

func (c *captureSink) Notify(n stream.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, n)
}

func (c *captureSink) snapshot() ([]training.Metric, []stream.StatusChange, []stream.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]training.Metric(nil), c.metrics...),
		append([]stream.StatusChange(nil), c.statuses...),
		append([]stream.Notification(nil), c.notes...)
}

type fakeStarter struct {
	calls  int
	epochs int
	resp   *training.StartResponse
	err    error
}

func (f *fakeStarter) Start(_ context.Context, n int) (*training.StartResponse, error) {
	f.calls++
	f.epochs = n
	return f.resp, f.err
}

func newLive(t *testing.T, starter *fakeStarter) (*Live, *streamtest.FakeDialer, *captureSink) {
	t.Helper()
	dialer := streamtest.NewFakeDialer()
	mgr := stream.NewManager(dialer, stream.WithClock(streamtest.NewFakeClock(time.Unix(0, 0))))
	sink := &captureSink{}
	live := NewLive(starter, mgr, 3, sink, nil)
	t.Cleanup(func() { _ = live.Close() })
	return live, dialer, sink
}

func TestLiveStartOpensStream(t *testing.T) {
	starter := &fakeStarter{resp: &training.StartResponse{Status: training.StatusStarted, Message: "Training started"}}
	live, dialer, sink := newLive(t, starter)

	require.NoError(t, live.Start(context.Background()))
	assert.Equal(t, 1, starter.calls)
	assert.Equal(t, 3, starter.epochs)
	assert.Equal(t, 1, dialer.Dials())

	dialer.Last().Open()
	dialer.Last().Message(`{"epoch":1,"batch":1,"batch_size":32,"batch_loss":1.5}`)
	live.Manager().Sync()

	metrics, statuses, notes := sink.snapshot()
	require.Len(t, metrics, 1)
	assert.Equal(t, 1.5, metrics[0].BatchLoss)
	require.NotEmpty(t, statuses)
	assert.Equal(t, stream.StateLive, statuses[len(statuses)-1].To)
	require.Len(t, notes, 1)
	assert.Equal(t, stream.LevelInfo, notes[0].Level)
	assert.Equal(t, "Training started", notes[0].Message)
}

func TestLiveStartIsNoopWhenActive(t *testing.T) {
	starter := &fakeStarter{resp: &training.StartResponse{Status: training.StatusStarted}}
	live, dialer, _ := newLive(t, starter)

	require.NoError(t, live.Start(context.Background()))
	require.NoError(t, live.Start(context.Background()))

	assert.Equal(t, 1, starter.calls)
	assert.Equal(t, 1, dialer.Dials())
}

func TestLiveStartFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		message string
	}{
		{
			name:    "transport failure",
			err:     &training.TransportError{Op: "start training", Err: errors.New("connection refused")},
			message: MsgServerDown,
		},
		{
			name:    "business failure",
			err:     &training.BusinessError{StatusCode: 500, Message: "GPU unavailable"},
			message: "GPU unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			live, dialer, sink := newLive(t, &fakeStarter{err: tt.err})

			err := live.Start(context.Background())
			require.Error(t, err)
			assert.Zero(t, dialer.Dials(), "stream must not open")

			_, statuses, notes := sink.snapshot()
			require.Len(t, statuses, 1)
			assert.Equal(t, stream.StateFailed, statuses[0].To)
			require.Len(t, notes, 1)
			assert.Equal(t, stream.LevelError, notes[0].Level)
			assert.Equal(t, tt.message, notes[0].Message)
		})
	}
}

func TestLiveStop(t *testing.T) {
	starter := &fakeStarter{resp: &training.StartResponse{Status: training.StatusStarted}}
	live, dialer, _ := newLive(t, starter)

	require.NoError(t, live.Start(context.Background()))
	live.Stop()

	assert.True(t, dialer.Last().Closed())
	assert.Equal(t, stream.StateIdle, live.Manager().State())
	assert.Equal(t, NameLive, live.Name())
}

func TestSimulatedRunsToCompletion(t *testing.T) {
	gen := simulate.New(simulate.Options{Interval: time.Millisecond, MaxBatches: 5, Seed: 3})
	history := metrics.NewHistory(0)
	sink := &captureSink{}
	sim := NewSimulated(gen, history, sink, nil)

	require.NoError(t, sim.Start(context.Background()))
	require.Eventually(t, func() bool { return !sim.Running() }, 2*time.Second, 5*time.Millisecond)

	got, statuses, notes := sink.snapshot()
	require.Len(t, got, 5)
	assert.Equal(t, 5, history.Len())
	assert.Empty(t, notes)
	require.Len(t, statuses, 2)
	assert.Equal(t, stream.StateLive, statuses[0].To)
	assert.Equal(t, stream.StateIdle, statuses[1].To)
	assert.Equal(t, "simulation finished", statuses[1].Reason)
}

func TestSimulatedStop(t *testing.T) {
	gen := simulate.New(simulate.Options{Interval: time.Hour, Seed: 3})
	sink := &captureSink{}
	sim := NewSimulated(gen, nil, sink, nil)

	require.NoError(t, sim.Start(context.Background()))
	require.NoError(t, sim.Start(context.Background()))
	assert.True(t, sim.Running())

	sim.Stop()
	assert.False(t, sim.Running())
	sim.Stop()

	_, statuses, _ := sink.snapshot()
	require.Len(t, statuses, 2)
	assert.Equal(t, "stopped", statuses[1].Reason)

	require.NoError(t, sim.Close())
	assert.ErrorIs(t, sim.Start(context.Background()), stream.ErrClosed)
	assert.Equal(t, NameSimulated, sim.Name())
}

func TestSinkFuncsIgnoresNil(t *testing.T) {
	var got int
	s := SinkFuncs{OnMetric: func(training.Metric) { got++ }}
	s.Metric(training.Metric{})
	s.Status(stream.StatusChange{})
	s.Notify(stream.Notification{})
	assert.Equal(t, 1, got)
}
