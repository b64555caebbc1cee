// Package testing provides test doubles for the stream package.
package testing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rileyhilliard/trainwatch/internal/stream"
)

// FakeTransport is a transport whose events are driven by the test.
type FakeTransport struct {
	mu      sync.Mutex
	handler stream.Handler
	ctx     context.Context
	closed  bool
	Index   int
}

// Open reports the connection as established.
func (t *FakeTransport) Open() {
	t.handler.OnOpen()
}

// Message delivers one raw frame.
func (t *FakeTransport) Message(data string) {
	t.handler.OnMessage([]byte(data))
}

// Fail reports a transport error.
func (t *FakeTransport) Fail(err error) {
	t.handler.OnError(err)
}

// Close marks the transport closed.
func (t *FakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Closed reports whether Close was called.
func (t *FakeTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Context returns the context the transport was dialed with.
func (t *FakeTransport) Context() context.Context {
	return t.ctx
}

// FakeDialer records every Dial and hands out FakeTransports.
// If OnDial is set it is called with every new transport; the test may use
// it to script behavior. OnDial runs on the Manager's loop goroutine, so it
// must drive the transport from another goroutine.
type FakeDialer struct {
	mu         sync.Mutex
	transports []*FakeTransport
	OnDial     func(*FakeTransport)
}

// NewFakeDialer returns an empty dialer.
func NewFakeDialer() *FakeDialer {
	return &FakeDialer{}
}

// Dial implements stream.Dialer.
func (d *FakeDialer) Dial(ctx context.Context, h stream.Handler) stream.Transport {
	d.mu.Lock()
	t := &FakeTransport{handler: h, ctx: ctx, Index: len(d.transports)}
	d.transports = append(d.transports, t)
	hook := d.OnDial
	d.mu.Unlock()

	if hook != nil {
		hook(t)
	}
	return t
}

// Dials returns how many transports were opened.
func (d *FakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.transports)
}

// Last returns the most recent transport, or nil.
func (d *FakeDialer) Last() *FakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.transports) == 0 {
		return nil
	}
	return d.transports[len(d.transports)-1]
}

// Transport returns the i-th transport.
func (d *FakeDialer) Transport(i int) *FakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transports[i]
}

// OpenCount returns how many transports are not closed.
func (d *FakeDialer) OpenCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, t := range d.transports {
		if !t.Closed() {
			n++
		}
	}
	return n
}

// FakeTimer is a timer registered with a FakeClock.
type FakeTimer struct {
	clock   *FakeClock
	when    time.Time
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

// Stop cancels the timer unless the clock ignores stops.
func (t *FakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.clock.stops++
	if t.clock.IgnoreStop {
		return true
	}
	t.stopped = true
	return true
}

// FakeClock is a manually advanced clock.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*FakeTimer
	stops  int

	// IgnoreStop makes stopped timers fire anyway, simulating a timer that
	// raced with its cancellation.
	IgnoreStop bool
}

// NewFakeClock returns a clock set to start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc registers fn to run once the clock has advanced by d.
func (c *FakeClock) AfterFunc(d time.Duration, fn func()) stream.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &FakeTimer{clock: c, when: c.now.Add(d), delay: d, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and runs due timers in deadline order on the
// calling goroutine.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*FakeTimer
	for _, t := range c.timers {
		if !t.fired && !t.stopped && !t.when.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].when.Before(due[j].when) })
	for _, t := range due {
		t.fn()
	}
}

// Delays returns the delay of every timer ever scheduled, in order.
func (c *FakeClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.timers))
	for i, t := range c.timers {
		out[i] = t.delay
	}
	return out
}

// Pending returns how many timers have neither fired nor been stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

// Stops returns how many times Stop was called on a live timer.
func (c *FakeClock) Stops() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}
