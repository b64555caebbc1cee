package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/trainwatch/internal/metrics"
	"github.com/rileyhilliard/trainwatch/internal/session"
	"github.com/rileyhilliard/trainwatch/internal/stream"
	"github.com/rileyhilliard/trainwatch/internal/training"
)

type fakeSource struct {
	mu       sync.Mutex
	starts   int
	stops    int
	startErr error
}

func (f *fakeSource) Name() string { return session.NameSimulated }

func (f *fakeSource) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return f.startErr
}

func (f *fakeSource) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeSource) Close() error { return nil }

func (f *fakeSource) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(src session.Source) Model {
	return NewModel(context.Background(), src, metrics.NewHistory(100), Options{MaxRetries: 5})
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

func sampleMetric(batch int, loss float64) training.Metric {
	return training.Metric{
		Epoch:     1,
		Batch:     batch,
		BatchLoss: loss,
		BatchSize: 32,
		Preds:     []int{1, 2, 3},
		Truths:    []int{1, 2, 4},
		Scores:    []float64{0.9, 0.8, 0.7},
	}
}

func TestNewModel_Defaults(t *testing.T) {
	m := NewModel(context.Background(), &fakeSource{}, nil, Options{})

	assert.Equal(t, DefaultToastDuration, m.opts.ToastDuration)
	assert.NotNil(t, m.history)
	assert.Equal(t, stream.StateIdle, m.State())
	assert.Zero(t, m.Received())
	assert.Empty(t, m.Toasts())
}

func TestModel_Init(t *testing.T) {
	m := newTestModel(&fakeSource{})
	assert.NotNil(t, m.Init())

	m.opts.AutoStart = true
	assert.NotNil(t, m.Init())
}

func TestModel_StartKeyRunsSource(t *testing.T) {
	src := &fakeSource{}
	m := newTestModel(src)

	m, cmd := update(t, m, runes("s"))
	require.NotNil(t, cmd)

	msg := cmd()
	started, ok := msg.(startedMsg)
	require.True(t, ok)
	assert.NoError(t, started.err)

	starts, _ := src.counts()
	assert.Equal(t, 1, starts)

	m, _ = update(t, m, msg)
	assert.NoError(t, m.Err())
}

func TestModel_StartIgnoredWhileActive(t *testing.T) {
	src := &fakeSource{}
	m := newTestModel(src)
	m, _ = update(t, m, StatusMsg{Change: stream.StatusChange{To: stream.StateLive}})

	_, cmd := update(t, m, runes("s"))
	assert.Nil(t, cmd)

	starts, _ := src.counts()
	assert.Zero(t, starts)
}

func TestModel_StartErrorIsRecorded(t *testing.T) {
	src := &fakeSource{startErr: errors.New("boom")}
	m := newTestModel(src)

	m, cmd := update(t, m, runes("s"))
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())

	assert.EqualError(t, m.Err(), "boom")
}

func TestModel_StopKey(t *testing.T) {
	src := &fakeSource{}
	m := newTestModel(src)

	_, cmd := update(t, m, runes("x"))
	require.NotNil(t, cmd)
	assert.IsType(t, stoppedMsg{}, cmd())

	_, stops := src.counts()
	assert.Equal(t, 1, stops)
}

func TestModel_QuitKeys(t *testing.T) {
	for _, key := range []tea.KeyMsg{runes("q"), {Type: tea.KeyCtrlC}} {
		t.Run(key.String(), func(t *testing.T) {
			m, cmd := update(t, newTestModel(&fakeSource{}), key)
			require.NotNil(t, cmd)
			assert.IsType(t, tea.QuitMsg{}, cmd())
			assert.Empty(t, m.View())
		})
	}
}

func TestModel_HelpToggle(t *testing.T) {
	m := newTestModel(&fakeSource{})

	m, _ = update(t, m, runes("?"))
	assert.True(t, m.showHelp)
	assert.Contains(t, m.View(), "Keyboard Shortcuts")

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.showHelp)

	m, _ = update(t, m, runes("?"))
	m, _ = update(t, m, runes("?"))
	assert.False(t, m.showHelp)
}

func TestModel_MetricUpdatesView(t *testing.T) {
	h := metrics.NewHistory(100)
	m := NewModel(context.Background(), &fakeSource{}, h, Options{})

	metric := sampleMetric(7, 0.4321)
	h.Append(training.LossPoint{Batch: 7, Loss: 0.4321})
	m, _ = update(t, m, MetricMsg{Metric: metric, At: time.Now()})

	assert.Equal(t, 1, m.Received())
	view := m.View()
	assert.Contains(t, view, "epoch 1")
	assert.Contains(t, view, "0.4321")
	assert.Contains(t, view, "1→1")
	assert.Contains(t, view, "3→4")
	assert.Contains(t, view, "67% correct")
}

func TestModel_ResetClearsHistory(t *testing.T) {
	h := metrics.NewHistory(100)
	m := NewModel(context.Background(), &fakeSource{}, h, Options{})
	h.Append(training.LossPoint{Batch: 1, Loss: 1})
	m, _ = update(t, m, MetricMsg{Metric: sampleMetric(1, 1)})

	m, cmd := update(t, m, runes("r"))
	assert.Nil(t, cmd)
	assert.Zero(t, m.Received())
	assert.Zero(t, h.Len())
	assert.Contains(t, m.View(), "No data yet")
}

func TestModel_StatusChanges(t *testing.T) {
	m := newTestModel(&fakeSource{})
	assert.Contains(t, m.View(), "idle")
	assert.Contains(t, m.View(), "Press s to start training")

	m, _ = update(t, m, StatusMsg{Change: stream.StatusChange{
		To:         stream.StateReconnecting,
		Retry:      stream.RetryState{Attempt: 2, IsReconnecting: true},
		MaxRetries: 5,
	}})
	assert.Equal(t, stream.StateReconnecting, m.State())
	assert.Contains(t, m.View(), "reconnecting (2/5)")
	assert.Contains(t, m.View(), "Waiting for metrics...")

	m, _ = update(t, m, StatusMsg{Change: stream.StatusChange{To: stream.StateFailed, Reason: "lost"}})
	assert.Contains(t, m.View(), "failed: lost")
}

func TestModel_ToastLifecycle(t *testing.T) {
	m := newTestModel(&fakeSource{})

	m, cmd := update(t, m, NotifyMsg{Notification: stream.Notification{
		Key:     stream.KeyReconnecting,
		Level:   stream.LevelWarning,
		Message: "Connection lost",
	}})
	require.NotNil(t, cmd)
	require.Len(t, m.Toasts(), 1)
	assert.Contains(t, m.View(), "Connection lost")

	id := m.toasts[0].id
	m, _ = update(t, m, toastExpiredMsg{id: id})
	assert.Empty(t, m.Toasts())
}

func TestModel_ToastReplacesSameKey(t *testing.T) {
	m := newTestModel(&fakeSource{})

	m, _ = update(t, m, NotifyMsg{Notification: stream.Notification{Key: "a", Message: "first"}})
	m, _ = update(t, m, NotifyMsg{Notification: stream.Notification{Key: "b", Message: "other"}})
	m, _ = update(t, m, NotifyMsg{Notification: stream.Notification{Key: "a", Message: "second"}})

	toasts := m.Toasts()
	require.Len(t, toasts, 2)
	assert.Equal(t, "other", toasts[0].Message)
	assert.Equal(t, "second", toasts[1].Message)
}

func TestModel_ToastsAreCapped(t *testing.T) {
	m := newTestModel(&fakeSource{})
	for i := 0; i < maxToasts+3; i++ {
		m, _ = update(t, m, NotifyMsg{Notification: stream.Notification{Message: "n"}})
	}
	assert.Len(t, m.Toasts(), maxToasts)
}

func TestModel_ToastUpdatesDoNotAliasPreviousModel(t *testing.T) {
	m := newTestModel(&fakeSource{})
	m, _ = update(t, m, NotifyMsg{Notification: stream.Notification{Key: "a", Message: "a"}})
	m, _ = update(t, m, NotifyMsg{Notification: stream.Notification{Key: "b", Message: "b"}})
	before := m

	_, _ = update(t, m, toastExpiredMsg{id: m.toasts[0].id})

	require.Len(t, before.Toasts(), 2)
	assert.Equal(t, "a", before.Toasts()[0].Message)
}

func TestModel_WindowSize(t *testing.T) {
	m := newTestModel(&fakeSource{})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 118, m.sectionWidth())

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 10, Height: 5})
	assert.Equal(t, minWidth, m.sectionWidth())
}

func TestModel_FrameRate(t *testing.T) {
	m := newTestModel(&fakeSource{})
	start := time.Now()
	for i := 0; i < 5; i++ {
		m, _ = update(t, m, MetricMsg{Metric: sampleMetric(i, 1), At: start.Add(time.Duration(i) * 300 * time.Millisecond)})
	}
	assert.Positive(t, m.fps.Current())
	assert.Contains(t, m.View(), "frames/s")
}
