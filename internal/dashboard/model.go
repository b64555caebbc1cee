package dashboard

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/trainwatch/internal/metrics"
	"github.com/rileyhilliard/trainwatch/internal/session"
	"github.com/rileyhilliard/trainwatch/internal/stream"
	"github.com/rileyhilliard/trainwatch/internal/training"
)

// Defaults for Options.
const (
	DefaultToastDuration = 4 * time.Second
	maxToasts            = 4
)

// Options configures a Model.
type Options struct {
	// AutoStart starts the source as soon as the program runs.
	AutoStart     bool
	ToastDuration time.Duration
	FPSSamples    int
	MaxRetries    int
}

// toast is one visible notification.
type toast struct {
	id int
	n  stream.Notification
}

// Model is the Bubble Tea model for the training dashboard.
type Model struct {
	ctx     context.Context
	source  session.Source
	history *metrics.History
	fps     *metrics.FrameRate
	opts    Options

	state      stream.ConnectionState
	retry      stream.RetryState
	maxRetries int
	reason     string
	latest     *training.Metric
	received   int
	lastErr    error

	toasts    []toast
	nextToast int

	spinner  spinner.Model
	width    int
	height   int
	showHelp bool
	quitting bool
	now      func() time.Time
}

// NewModel creates a dashboard over source. history is shared with the
// source and drawn as the loss graph.
func NewModel(ctx context.Context, source session.Source, history *metrics.History, opts Options) Model {
	if opts.ToastDuration <= 0 {
		opts.ToastDuration = DefaultToastDuration
	}
	if history == nil {
		history = metrics.NewHistory(0)
	}
	sp := spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(ColorWarning)),
	)
	return Model{
		ctx:        ctx,
		source:     source,
		history:    history,
		fps:        metrics.NewFrameRate(opts.FPSSamples, time.Now()),
		opts:       opts,
		maxRetries: opts.MaxRetries,
		spinner:    sp,
		now:        time.Now,
	}
}

// Init starts the spinner and, with AutoStart, the source.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	if m.opts.AutoStart {
		cmds = append(cmds, m.startCmd())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if handled, cmd := m.HandleKeyMsg(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case MetricMsg:
		metric := msg.Metric
		m.latest = &metric
		m.received++
		at := msg.At
		if at.IsZero() {
			at = m.now()
		}
		m.fps.Frame(at)

	case StatusMsg:
		m.applyStatus(msg.Change)

	case NotifyMsg:
		return m, m.pushToast(msg.Notification)

	case toastExpiredMsg:
		m.dropToast(msg.id)

	case startedMsg:
		m.lastErr = msg.err

	case stoppedMsg:
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}
	return m.renderDashboard()
}

func (m *Model) applyStatus(c stream.StatusChange) {
	m.state = c.To
	m.retry = c.Retry
	m.reason = c.Reason
	if c.MaxRetries > 0 {
		m.maxRetries = c.MaxRetries
	}
}

// pushToast shows n, replacing any visible toast with the same key.
func (m *Model) pushToast(n stream.Notification) tea.Cmd {
	m.nextToast++
	id := m.nextToast

	next := make([]toast, 0, len(m.toasts)+1)
	for _, t := range m.toasts {
		if n.Key != "" && t.n.Key == n.Key {
			continue
		}
		next = append(next, t)
	}
	next = append(next, toast{id: id, n: n})
	if len(next) > maxToasts {
		next = next[len(next)-maxToasts:]
	}
	m.toasts = next

	d := n.Duration
	if d <= 0 {
		d = m.opts.ToastDuration
	}
	return tea.Tick(d, func(time.Time) tea.Msg { return toastExpiredMsg{id: id} })
}

func (m *Model) dropToast(id int) {
	next := make([]toast, 0, len(m.toasts))
	for _, t := range m.toasts {
		if t.id != id {
			next = append(next, t)
		}
	}
	m.toasts = next
}

// startCmd runs Start off the program loop. Start and Stop must never be
// called from Update directly.
func (m Model) startCmd() tea.Cmd {
	src, ctx := m.source, m.ctx
	return func() tea.Msg {
		return startedMsg{err: src.Start(ctx)}
	}
}

func (m Model) stopCmd() tea.Cmd {
	src := m.source
	return func() tea.Msg {
		src.Stop()
		return stoppedMsg{}
	}
}

// State returns the last connection state received.
func (m Model) State() stream.ConnectionState {
	return m.state
}

// Received returns how many metrics were received since the last reset.
func (m Model) Received() int {
	return m.received
}

// Toasts returns the visible notification messages, oldest first.
func (m Model) Toasts() []stream.Notification {
	out := make([]stream.Notification, len(m.toasts))
	for i, t := range m.toasts {
		out[i] = t.n
	}
	return out
}

// Err returns the error of the last start command, if any.
func (m Model) Err() error {
	return m.lastErr
}
