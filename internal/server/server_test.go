package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/trainwatch/internal/metrics"
	"github.com/rileyhilliard/trainwatch/internal/stream"
	"github.com/rileyhilliard/trainwatch/internal/training"
)

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	if opts.Interval == 0 {
		opts.Interval = time.Millisecond
	}
	opts.Seed = 1
	s := New(opts)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.shutdown()
		ts.Close()
	})
	return s, ts
}

func newClient(t *testing.T, url string) *training.Client {
	t.Helper()
	c, err := training.NewClient(training.ClientOptions{BaseURL: url})
	require.NoError(t, err)
	return c
}

func TestNewDefaults(t *testing.T) {
	s := New(Options{})
	assert.Equal(t, DefaultAddr, s.Options().Addr)
	assert.Equal(t, DefaultInterval, s.Options().Interval)
	assert.Equal(t, DefaultBatchesPerEpoch, s.Options().BatchesPerEpoch)
	assert.Equal(t, training.StatusReady, s.Status().Status)
}

func TestStartAndStatus(t *testing.T) {
	s, ts := newTestServer(t, Options{Interval: time.Hour})
	c := newClient(t, ts.URL)
	ctx := context.Background()

	resp, err := c.Start(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, training.StatusStarted, resp.Status)
	assert.Equal(t, "Training started for 2 epochs", resp.Message)

	again, err := c.Start(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, training.StatusAlreadyRunning, again.Status)

	status, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, training.StatusTraining, status.Status)
	assert.Equal(t, 1, status.Epoch)
	assert.Equal(t, s.Status(), *status)
}

func TestRunFinishes(t *testing.T) {
	s, _ := newTestServer(t, Options{BatchesPerEpoch: 3})

	_, started := s.StartTraining(2)
	require.True(t, started)
	s.Wait()

	status := s.Status()
	assert.Equal(t, training.StatusFinished, status.Status)
	assert.Equal(t, 2, status.Epoch)

	_, started = s.StartTraining(1)
	assert.True(t, started, "a finished run can be restarted")
}

func TestStartRejectsBadJSON(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, err := http.Post(ts.URL+training.DefaultStartPath, "application/json", strings.NewReader("{nope"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body training.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "invalid request body", body.Error)
}

func TestStartWithEmptyBodyUsesDefaultEpochs(t *testing.T) {
	_, ts := newTestServer(t, Options{Interval: time.Hour})

	resp, err := http.Post(ts.URL+training.DefaultStartPath, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body training.StartResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Training started for 3 epochs", body.Message)
}

func TestHealthAndMetrics(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + training.DefaultStartPath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

type streamWatcher struct {
	mu      sync.Mutex
	batches []int
	states  []stream.ConnectionState
	notes   []stream.Notification
}

func (w *streamWatcher) attach(m *stream.Manager) {
	m.OnMetric(func(mt training.Metric) {
		w.mu.Lock()
		w.batches = append(w.batches, mt.Batch)
		w.mu.Unlock()
	})
	m.OnStatusChange(func(c stream.StatusChange) {
		w.mu.Lock()
		w.states = append(w.states, c.To)
		w.mu.Unlock()
	})
	m.OnNotify(func(n stream.Notification) {
		w.mu.Lock()
		w.notes = append(w.notes, n)
		w.mu.Unlock()
	})
}

func (w *streamWatcher) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.batches)
}

func fastPolicy() stream.Policy {
	return stream.Policy{
		InitialDelay: 5 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     50 * time.Millisecond,
		MaxRetries:   5,
	}
}

func TestStreamEndToEnd(t *testing.T) {
	s, ts := newTestServer(t, Options{BatchesPerEpoch: 5})
	c := newClient(t, ts.URL)

	history := metrics.NewHistory(0)
	m := stream.NewManager(
		stream.NewSSEDialer(stream.SSEOptions{URL: c.SubscribeURL()}),
		stream.WithHistory(history),
		stream.WithPolicy(fastPolicy()),
	)
	defer m.Close()
	w := &streamWatcher{}
	w.attach(m)

	require.NoError(t, m.Start())
	require.Eventually(t, func() bool { return s.Subscribers() == 1 }, 2*time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return m.State() == stream.StateLive }, 2*time.Second, time.Millisecond)

	_, err := c.Start(context.Background(), 2)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return w.count() == 10 }, 5*time.Second, 5*time.Millisecond)

	points := history.Points()
	require.Len(t, points, 10)
	for i, p := range points {
		assert.Equal(t, i+1, p.Batch)
	}
}

func TestStreamReconnectsAfterDrop(t *testing.T) {
	s, ts := newTestServer(t, Options{BatchesPerEpoch: 10, DropAfter: 2, Interval: 20 * time.Millisecond})
	c := newClient(t, ts.URL)

	m := stream.NewManager(
		stream.NewSSEDialer(stream.SSEOptions{URL: c.SubscribeURL()}),
		stream.WithPolicy(fastPolicy()),
	)
	defer m.Close()
	w := &streamWatcher{}
	w.attach(m)

	require.NoError(t, m.Start())
	require.Eventually(t, func() bool { return s.Subscribers() == 1 }, 2*time.Second, time.Millisecond)
	_, err := c.Start(context.Background(), 1)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return w.count() >= 4 }, 5*time.Second, 5*time.Millisecond)

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Contains(t, w.states, stream.StateReconnecting)
	for i := 1; i < len(w.batches); i++ {
		assert.Greater(t, w.batches[i], w.batches[i-1], "history stays ordered")
	}
}

func TestAbortFailsSubscribers(t *testing.T) {
	s, ts := newTestServer(t, Options{Interval: time.Hour})
	c := newClient(t, ts.URL)

	m := stream.NewManager(
		stream.NewSSEDialer(stream.SSEOptions{URL: c.SubscribeURL()}),
		stream.WithPolicy(fastPolicy()),
	)
	defer m.Close()
	w := &streamWatcher{}
	w.attach(m)

	require.NoError(t, m.Start())
	require.Eventually(t, func() bool { return s.Subscribers() == 1 }, 2*time.Second, time.Millisecond)
	_, err := c.Start(context.Background(), 1)
	require.NoError(t, err)

	s.Abort("GPU fell off the bus")
	require.Eventually(t, func() bool { return m.State() == stream.StateFailed }, 2*time.Second, time.Millisecond)

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.notes, 1)
	assert.Equal(t, "GPU fell off the bus", w.notes[0].Message)
	assert.Equal(t, training.StatusReady, s.Status().Status)
}

func TestAbortAfterEndsRunWithErrorFrame(t *testing.T) {
	s, ts := newTestServer(t, Options{AbortAfter: 3, Interval: 10 * time.Millisecond})
	c := newClient(t, ts.URL)

	m := stream.NewManager(
		stream.NewSSEDialer(stream.SSEOptions{URL: c.SubscribeURL()}),
		stream.WithPolicy(fastPolicy()),
	)
	defer m.Close()
	w := &streamWatcher{}
	w.attach(m)

	require.NoError(t, m.Start())
	require.Eventually(t, func() bool { return s.Subscribers() == 1 }, 2*time.Second, time.Millisecond)
	_, err := c.Start(context.Background(), 1)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return m.State() == stream.StateFailed }, 2*time.Second, time.Millisecond)
	s.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, w.batches)
	assert.NotContains(t, w.states, stream.StateReconnecting)
	require.Len(t, w.notes, 1)
	assert.Equal(t, AbortMessage, w.notes[0].Message)
	assert.Equal(t, training.StatusReady, s.Status().Status)
	assert.Equal(t, AbortMessage, s.Status().Message)
}

func TestAbortRoute(t *testing.T) {
	s, ts := newTestServer(t, Options{Interval: time.Hour})
	_, started := s.StartTraining(2)
	require.True(t, started)

	resp, err := http.Post(ts.URL+AbortPath, "application/json", strings.NewReader(`{"message":"operator stop"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var status training.StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, training.StatusReady, status.Status)
	assert.Equal(t, "operator stop", status.Message)

	resp2, err := http.Post(ts.URL+AbortPath, "application/json", strings.NewReader(`{`))
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := New(Options{Interval: time.Millisecond})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 5*time.Millisecond)

	// an open stream must not block shutdown
	req, err := http.NewRequest(http.MethodGet, url+training.DefaultSubscribePath, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestListenAndServeReportsBadAddr(t *testing.T) {
	s := New(Options{Addr: "256.0.0.1:bad"})
	err := s.ListenAndServe(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Couldn't listen")
}
