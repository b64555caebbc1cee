package stream

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	twerrors "github.com/rileyhilliard/trainwatch/internal/errors"
	"github.com/rileyhilliard/trainwatch/internal/logger"
	"github.com/rileyhilliard/trainwatch/internal/metrics"
	"github.com/rileyhilliard/trainwatch/internal/telemetry"
	"github.com/rileyhilliard/trainwatch/internal/training"
)

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("stream manager closed")

// User-facing notification texts.
const (
	MsgReconnected   = "Reconnected to training stream"
	MsgRetryExceeded = "Connection to server lost. Max retries exceeded."
)

// FailureToastDuration is how long the terminal error stays visible.
const FailureToastDuration = 5 * time.Second

// ReconnectingMessage formats the warning shown when a retry is scheduled.
func ReconnectingMessage(delay time.Duration, attempt, max int) string {
	secs := int(math.Ceil(delay.Seconds()))
	return fmt.Sprintf("Connection lost. Reconnecting in %ds... (%d/%d)", secs, attempt, max)
}

// Option configures a Manager.
type Option func(*Manager)

// WithPolicy sets the reconnection policy.
func WithPolicy(p Policy) Option {
	return func(m *Manager) { m.policy = p }
}

// WithClock replaces the wall clock, for tests.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithHistory makes the Manager append a LossPoint for every metric received.
func WithHistory(h *metrics.History) Option {
	return func(m *Manager) { m.history = h }
}

type eventKind int

const (
	evOpen eventKind = iota
	evMessage
	evError
	evRetry
	evCall
)

type event struct {
	kind eventKind
	gen  uint64
	data []byte
	err  error
	fn   func()
	done chan struct{}
}

// Manager maintains one logical subscription to the metric stream and
// recovers from transport failures with bounded exponential backoff.
//
// All state is owned by a single loop goroutine. Transport callbacks and
// retry timers are tagged with the generation of the connection that
// created them; anything from an older generation is discarded.
//
// Callbacks registered with OnMetric, OnStatusChange and OnNotify run on
// the loop goroutine, in order. They must not call Start, Stop, Sync or
// Close.
type Manager struct {
	dialer  Dialer
	policy  Policy
	clock   Clock
	log     logger.Logger
	history *metrics.History
	limiter *rate.Limiter

	events    chan event
	quit      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc

	// owned by the loop goroutine
	state      ConnectionState
	retry      RetryState
	gate       *Gate
	gen        uint64
	transport  Transport
	connCancel context.CancelFunc
	timer      Timer
	onMetric   []func(training.Metric)
	onStatus   []func(StatusChange)
	onNotify   []Notifier

	snapMu    sync.RWMutex
	snapState ConnectionState
	snapRetry RetryState
}

// NewManager creates an idle Manager and starts its loop goroutine.
// Call Close to release it.
func NewManager(d Dialer, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		dialer:   d,
		policy:   DefaultPolicy(),
		clock:    RealClock(),
		log:      logger.Noop(),
		limiter:  rate.NewLimiter(rate.Every(time.Second), 5),
		events:   make(chan event, 64),
		quit:     make(chan struct{}),
		loopDone: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
		gate:     NewGate(),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.loop()
	return m
}

// Start begins monitoring. It is a no-op while connecting, live or
// reconnecting. From Idle or Failed it starts a fresh episode.
func (m *Manager) Start() error {
	if !m.do(m.start) {
		return ErrClosed
	}
	return nil
}

// Stop cancels any pending retry, closes the transport and returns to Idle.
// Safe to call in any state.
func (m *Manager) Stop() {
	m.do(func() { m.stop("stopped") })
}

// OnMetric registers a consumer of decoded metrics.
func (m *Manager) OnMetric(fn func(training.Metric)) {
	m.do(func() { m.onMetric = append(m.onMetric, fn) })
}

// OnStatusChange registers a consumer of state transitions.
func (m *Manager) OnStatusChange(fn func(StatusChange)) {
	m.do(func() { m.onStatus = append(m.onStatus, fn) })
}

// OnNotify registers a renderer for user-facing notifications.
func (m *Manager) OnNotify(fn Notifier) {
	m.do(func() { m.onNotify = append(m.onNotify, fn) })
}

// Sync blocks until every event posted before the call has been handled.
func (m *Manager) Sync() {
	m.do(func() {})
}

// State returns the most recently published connection state.
func (m *Manager) State() ConnectionState {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	return m.snapState
}

// Retry returns the most recently published retry bookkeeping.
func (m *Manager) Retry() RetryState {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	return m.snapRetry
}

// Policy returns the reconnection policy in use.
func (m *Manager) Policy() Policy {
	return m.policy
}

// Close stops the Manager and its loop goroutine.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		close(m.quit)
		<-m.loopDone
		m.cancel()
	})
	return nil
}

// do runs fn on the loop goroutine and waits for it. It reports false if
// the Manager is closed.
func (m *Manager) do(fn func()) bool {
	done := make(chan struct{})
	select {
	case m.events <- event{kind: evCall, fn: fn, done: done}:
	case <-m.loopDone:
		return false
	}
	select {
	case <-done:
		return true
	case <-m.loopDone:
		return false
	}
}

func (m *Manager) loop() {
	defer close(m.loopDone)
	for {
		select {
		case ev := <-m.events:
			m.handle(ev)
		case <-m.quit:
			m.stop("closed")
			return
		}
	}
}

func (m *Manager) handle(ev event) {
	if ev.kind == evCall {
		ev.fn()
		close(ev.done)
		return
	}
	if ev.gen != m.gen {
		m.log.Debug("discarding stale event (generation %d, current %d)", ev.gen, m.gen)
		return
	}

	switch ev.kind {
	case evOpen:
		m.handleOpen()
	case evMessage:
		m.handleMessage(ev.data)
	case evError:
		m.handleError(ev.err)
	case evRetry:
		m.handleRetry()
	}
}

func (m *Manager) start() {
	if m.state.Active() {
		m.log.Debug("start ignored in state %s", m.state)
		return
	}
	m.gate.Reset()
	m.retry = RetryState{}
	m.setState(StateConnecting, "start")
	m.open()
}

func (m *Manager) stop(reason string) {
	m.cancelTimer()
	m.closeTransport()
	m.retry = RetryState{}
	m.gate.Reset()
	if m.state != StateIdle {
		m.setState(StateIdle, reason)
	}
}

// fail ends the session in StateFailed with a single error notification.
// cause is carried on the StatusChange for sinks that report it.
func (m *Manager) fail(message string, duration time.Duration, reason string, cause *twerrors.Error) {
	m.cancelTimer()
	m.closeTransport()
	m.retry = RetryState{}
	m.transition(StateFailed, reason, cause)
	m.gate.Fail(Notification{Message: message, Duration: duration}, m.notify)
}

// open closes any previous transport and dials a new one.
func (m *Manager) open() {
	m.closeTransport()
	m.gen++
	ctx, cancel := context.WithCancel(m.ctx)
	m.connCancel = cancel
	h := &connHandler{m: m, gen: m.gen, ctx: ctx}
	m.transport = m.dialer.Dial(ctx, h)
	telemetry.StreamConnections.Inc()
	m.log.Debug("dialing stream (generation %d)", m.gen)
}

func (m *Manager) closeTransport() {
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
	if m.transport != nil {
		if err := m.transport.Close(); err != nil {
			m.log.Debug("closing transport: %v", err)
		}
		m.transport = nil
	}
	m.gen++
}

func (m *Manager) cancelTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) handleOpen() {
	if m.retry.IsReconnecting {
		m.gate.Recover(Notification{Message: MsgReconnected}, m.notify)
		m.log.Info("reconnected after %d attempt(s)", m.retry.Attempt)
	}
	m.retry = RetryState{}
	m.setState(StateLive, "connected")
}

func (m *Manager) handleMessage(data []byte) {
	msg, err := training.DecodeMessage(data)
	if err != nil {
		telemetry.StreamMalformed.Inc()
		if m.limiter.Allow() {
			m.log.Warn("dropping frame: %v", err)
		}
		return
	}

	if msg.Kind == training.KindError {
		telemetry.StreamBusinessErrors.Inc()
		m.log.Error("server reported error: %s", msg.Error)
		m.fail(msg.Error, FailureToastDuration, "server error",
			twerrors.Wrap(&training.BusinessError{Message: msg.Error}, "Training server reported an error: "+msg.Error))
		return
	}

	for _, fn := range m.onMetric {
		fn(msg.Metric)
	}
	if m.history != nil {
		m.history.Append(msg.Metric.LossPoint())
	}
	telemetry.StreamMessages.Inc()
}

func (m *Manager) handleError(err error) {
	if m.transport == nil {
		return
	}
	m.closeTransport()

	if m.policy.Exhausted(m.retry.Attempt) {
		m.log.Error("giving up after %d attempt(s): %v", m.retry.Attempt, err)
		cause := twerrors.Wrap(err, MsgRetryExceeded)
		cause.Suggestion = "Check the training server, then run 'trainwatch watch' again"
		m.fail(MsgRetryExceeded, FailureToastDuration, "max retries exceeded", cause)
		return
	}

	delay := m.policy.Delay(m.retry.Attempt)
	m.retry.Attempt++
	m.retry.LastDelay = delay
	m.retry.IsReconnecting = true
	telemetry.StreamRetries.Inc()
	m.log.Warn("stream error: %v (retry %d/%d in %s)", err, m.retry.Attempt, m.policy.MaxRetries, delay)

	m.setState(StateReconnecting, errReason(err))
	m.gate.Warn(Notification{
		Message:  ReconnectingMessage(delay, m.retry.Attempt, m.policy.MaxRetries),
		Duration: delay,
	}, m.notify)

	gen := m.gen
	m.cancelTimer()
	m.timer = m.clock.AfterFunc(delay, func() {
		select {
		case m.events <- event{kind: evRetry, gen: gen}:
		case <-m.quit:
		}
	})
}

func (m *Manager) handleRetry() {
	m.timer = nil
	if m.state != StateReconnecting {
		return
	}
	m.open()
}

// setState publishes a transition. Entering StateReconnecting again is
// published so observers see each scheduled retry.
func (m *Manager) setState(to ConnectionState, reason string) {
	m.transition(to, reason, nil)
}

func (m *Manager) transition(to ConnectionState, reason string, cause *twerrors.Error) {
	from := m.state
	if from == to && to != StateReconnecting {
		m.publish()
		return
	}
	m.state = to
	m.publish()
	telemetry.StreamState.Set(float64(to))

	change := StatusChange{
		From:       from,
		To:         to,
		Retry:      m.retry,
		MaxRetries: m.policy.MaxRetries,
		Reason:     reason,
		At:         m.clock.Now(),
	}
	if cause != nil {
		change.Err = cause
	}
	m.log.Debug("state %s -> %s (%s)", from, to, reason)
	for _, fn := range m.onStatus {
		fn(change)
	}
}

func (m *Manager) publish() {
	m.snapMu.Lock()
	m.snapState = m.state
	m.snapRetry = m.retry
	m.snapMu.Unlock()
}

func (m *Manager) notify(n Notification) {
	telemetry.Notifications.WithLabelValues(n.Level.String()).Inc()
	for _, fn := range m.onNotify {
		fn(n)
	}
}

func errReason(err error) string {
	if err == nil {
		return "transport closed"
	}
	return err.Error()
}

// connHandler forwards one transport's callbacks into the loop.
type connHandler struct {
	m   *Manager
	gen uint64
	ctx context.Context
}

func (h *connHandler) post(ev event) {
	ev.gen = h.gen
	select {
	case h.m.events <- ev:
	case <-h.ctx.Done():
	case <-h.m.quit:
	}
}

func (h *connHandler) OnOpen() {
	h.post(event{kind: evOpen})
}

func (h *connHandler) OnMessage(data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)
	h.post(event{kind: evMessage, data: buf})
}

func (h *connHandler) OnError(err error) {
	h.post(event{kind: evError, err: err})
}
