package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/trainwatch/internal/session"
	"github.com/rileyhilliard/trainwatch/internal/stream"
	"github.com/rileyhilliard/trainwatch/internal/training"
)

const plainSparkWidth = 24

// PlainOutput prints session events as one line each. It is the display
// used when stdout is not a terminal or --plain is set.
type PlainOutput struct {
	mu         sync.Mutex
	w          io.Writer
	every      int
	count      int
	losses     []float64
	maxRetries int
}

var _ session.Sink = (*PlainOutput)(nil)

// NewPlainOutput writes to w, printing every nth metric (n <= 1 prints all).
func NewPlainOutput(w io.Writer, every, maxRetries int) *PlainOutput {
	if every < 1 {
		every = 1
	}
	return &PlainOutput{w: w, every: every, maxRetries: maxRetries}
}

// Metric prints a metric line with a trailing loss sparkline.
func (p *PlainOutput) Metric(m training.Metric) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.losses = append(p.losses, m.BatchLoss)
	if len(p.losses) > plainSparkWidth {
		p.losses = p.losses[len(p.losses)-plainSparkWidth:]
	}
	p.count++
	if (p.count-1)%p.every != 0 {
		return
	}

	fmt.Fprintln(p.w, FormatMetric(m)+"  "+RenderLossSparkline(p.losses, plainSparkWidth))
}

// Status prints a connection state transition.
func (p *PlainOutput) Status(c stream.StatusChange) {
	p.mu.Lock()
	defer p.mu.Unlock()

	max := c.MaxRetries
	if max == 0 {
		max = p.maxRetries
	}
	fmt.Fprintln(p.w, FormatStatus(c, max))
}

// Notify prints a notification.
func (p *PlainOutput) Notify(n stream.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()

	symbol, color := levelStyle(n.Level)
	fmt.Fprintln(p.w, lipgloss.NewStyle().Foreground(color).Bold(true).Render(symbol)+" "+n.Message)
}

// Count returns how many metrics were received.
func (p *PlainOutput) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// FormatMetric renders a metric as "epoch 1  batch 12  loss 0.7312  acc 62.5%".
func FormatMetric(m training.Metric) string {
	label := lipgloss.NewStyle().Foreground(ColorSecondary)
	value := lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	loss := lipgloss.NewStyle().Foreground(lossColor(m.BatchLoss)).Bold(true)

	return strings.Join([]string{
		label.Render("epoch ") + value.Render(fmt.Sprintf("%d", m.Epoch)),
		label.Render("batch ") + value.Render(fmt.Sprintf("%d", m.Batch)),
		label.Render("loss ") + loss.Render(fmt.Sprintf("%.4f", m.BatchLoss)),
		label.Render("acc ") + value.Render(fmt.Sprintf("%.1f%%", m.Accuracy()*100)),
	}, "  ")
}

// FormatStatus renders a state transition with its retry progress.
func FormatStatus(c stream.StatusChange, maxRetries int) string {
	switch c.To {
	case stream.StateLive:
		return lipgloss.NewStyle().Foreground(ColorSuccess).Render(SymbolLive) + " live"
	case stream.StateConnecting:
		return lipgloss.NewStyle().Foreground(ColorWarning).Render(SymbolProgress) + " connecting"
	case stream.StateReconnecting:
		line := lipgloss.NewStyle().Foreground(ColorWarning).Render(SymbolProgress) +
			fmt.Sprintf(" reconnecting (%d/%d)", c.Retry.Attempt, maxRetries)
		if c.Retry.LastDelay > 0 {
			line += " in " + c.Retry.LastDelay.String()
		}
		return line
	case stream.StateFailed:
		line := lipgloss.NewStyle().Foreground(ColorError).Render(SymbolFail) + " failed"
		if c.Reason != "" {
			line += ": " + c.Reason
		}
		return line
	default:
		line := lipgloss.NewStyle().Foreground(ColorMuted).Render(SymbolPending) + " idle"
		if c.Reason != "" {
			line += " (" + c.Reason + ")"
		}
		return line
	}
}

func levelStyle(l stream.Level) (string, lipgloss.Color) {
	switch l {
	case stream.LevelSuccess:
		return SymbolSuccess, ColorSuccess
	case stream.LevelWarning:
		return SymbolWarning, ColorWarning
	case stream.LevelError:
		return SymbolFail, ColorError
	default:
		return SymbolInfo, ColorInfo
	}
}
