package dashboard

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rileyhilliard/trainwatch/internal/stream"
	"github.com/rileyhilliard/trainwatch/internal/training"
)

// Sender is the part of *tea.Program the bridge needs.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge implements session.Sink and forwards events to the Bubble Tea
// program via Send. This is goroutine-safe. Events arriving before a
// program is attached are dropped.
type Bridge struct {
	mu      sync.RWMutex
	program Sender
}

// NewBridge creates a bridge. program may be nil and attached later.
func NewBridge(program Sender) *Bridge {
	return &Bridge{program: program}
}

// Attach sets the program events are forwarded to.
func (b *Bridge) Attach(program Sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.program = program
}

func (b *Bridge) send(msg tea.Msg) {
	b.mu.RLock()
	p := b.program
	b.mu.RUnlock()
	if p != nil {
		p.Send(msg)
	}
}

// Metric forwards a metric to the TUI.
func (b *Bridge) Metric(m training.Metric) {
	b.send(MetricMsg{Metric: m, At: time.Now()})
}

// Status forwards a state transition to the TUI.
func (b *Bridge) Status(c stream.StatusChange) {
	b.send(StatusMsg{Change: c})
}

// Notify forwards a notification to the TUI.
func (b *Bridge) Notify(n stream.Notification) {
	b.send(NotifyMsg{Notification: n})
}
