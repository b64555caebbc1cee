package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/trainwatch/internal/stream"
	"github.com/rileyhilliard/trainwatch/internal/training"
)

const (
	defaultWidth  = 80
	minWidth      = 40
	graphHeight   = 6
	predsPerRow   = 4
	fpsSparkWidth = 20
)

// renderDashboard renders the complete dashboard view.
func (m Model) renderDashboard() string {
	width := m.sectionWidth()

	parts := []string{
		m.renderHeader(),
		"",
		m.renderTraining(width),
		m.renderLoss(width),
		m.renderPredictions(width),
		m.renderFrameRate(width),
	}
	if toasts := m.renderToasts(width); toasts != "" {
		parts = append(parts, toasts)
	}
	parts = append(parts, m.renderFooter())
	return strings.Join(parts, "\n")
}

func (m Model) sectionWidth() int {
	w := m.width
	if w == 0 {
		w = defaultWidth
	}
	w -= 2
	if w < minWidth {
		w = minWidth
	}
	return w
}

// renderHeader renders the title, source and connection state.
func (m Model) renderHeader() string {
	title := lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true).
		Render("trainwatch")

	source := ""
	if m.source != nil {
		source = m.source.Name()
	}
	stats := lipgloss.NewStyle().
		Foreground(ColorTextSecondary).
		Render(fmt.Sprintf(" | %s | %d metrics | ", source, m.received))

	return HeaderStyle.Render(title + stats + m.renderState())
}

// renderState renders the connection indicator.
func (m Model) renderState() string {
	style := lipgloss.NewStyle().Foreground(StateColor(m.state))
	switch m.state {
	case stream.StateLive:
		return style.Render(GlyphLive + " live")
	case stream.StateConnecting:
		return m.spinner.View() + style.Render(" connecting")
	case stream.StateReconnecting:
		return m.spinner.View() + style.Render(fmt.Sprintf(" reconnecting (%d/%d)", m.retry.Attempt, m.maxRetries))
	case stream.StateFailed:
		if m.reason != "" {
			return style.Render(GlyphFailed + " failed: " + m.reason)
		}
		return style.Render(GlyphFailed + " failed")
	default:
		return style.Render(GlyphIdle + " idle")
	}
}

func (m Model) renderTraining(width int) string {
	if m.latest == nil {
		hint := "Waiting for metrics..."
		if !m.state.Active() {
			hint = "Press s to start training"
		}
		return Section("Training", "", []string{MutedStyle.Render(hint)}, width)
	}

	mt := m.latest
	line := strings.Join([]string{
		LabelStyle.Render("Batch ") + ValueStyle.Render(fmt.Sprintf("%d", mt.Batch)),
		LabelStyle.Render("Batch size ") + ValueStyle.Render(fmt.Sprintf("%d", mt.BatchSize)),
		LabelStyle.Render("Loss ") + lipgloss.NewStyle().Foreground(LossColor(mt.BatchLoss)).Bold(true).
			Render(fmt.Sprintf("%.4f", mt.BatchLoss)),
		LabelStyle.Render("Accuracy ") + ValueStyle.Render(fmt.Sprintf("%.1f%%", mt.Accuracy()*100)),
	}, "   ")
	return Section("Training", fmt.Sprintf("epoch %d", mt.Epoch), []string{line}, width)
}

func (m Model) renderLoss(width int) string {
	inner := width - 4
	losses := m.history.Losses(inner * 2)
	if len(losses) == 0 {
		return Section("Loss", "", []string{MutedStyle.Render("No data yet")}, width)
	}

	latest, _ := m.history.Latest()
	lo, hi := dataRange(losses)
	graph := RenderBrailleGraph(losses, inner, graphHeight, ColorGraph)
	caption := MutedStyle.Render(fmt.Sprintf("min %.3f  max %.3f  over %d batches", lo, hi, m.history.Len()))

	return Section("Loss", fmt.Sprintf("%.4f", latest.Loss), []string{graph, caption}, width)
}

func (m Model) renderPredictions(width int) string {
	if m.latest == nil || len(m.latest.Preds) == 0 {
		return Section("Predictions", "", []string{MutedStyle.Render("No predictions yet")}, width)
	}
	mt := m.latest
	var lines []string
	var row []string
	for i := range mt.Preds {
		row = append(row, renderPrediction(*mt, i))
		if len(row) == predsPerRow {
			lines = append(lines, strings.Join(row, "  "))
			row = nil
		}
	}
	if len(row) > 0 {
		lines = append(lines, strings.Join(row, "  "))
	}
	return Section("Predictions", fmt.Sprintf("%.0f%% correct", mt.Accuracy()*100), lines, width)
}

// renderPrediction renders "pred→truth score ✓" for sample i.
func renderPrediction(mt training.Metric, i int) string {
	truth := -1
	if i < len(mt.Truths) {
		truth = mt.Truths[i]
	}
	score := 0.0
	if i < len(mt.Scores) {
		score = mt.Scores[i]
	}

	mark := lipgloss.NewStyle().Foreground(ColorCritical).Render("✗")
	if mt.Preds[i] == truth {
		mark = lipgloss.NewStyle().Foreground(ColorHealthy).Render("✓")
	}
	return fmt.Sprintf("%s %s %s",
		ValueStyle.Render(fmt.Sprintf("%d→%d", mt.Preds[i], truth)),
		LabelStyle.Render(fmt.Sprintf("%.2f", score)),
		mark)
}

func (m Model) renderFrameRate(width int) string {
	current := m.fps.Current()
	change := m.fps.Change()

	delta := MutedStyle.Render("±0")
	switch {
	case change > 0:
		delta = lipgloss.NewStyle().Foreground(ColorHealthy).Render(fmt.Sprintf("+%d", change))
	case change < 0:
		delta = lipgloss.NewStyle().Foreground(ColorCritical).Render(fmt.Sprintf("%d", change))
	}

	line := ValueStyle.Render(fmt.Sprintf("%d frames/s", current)) + " " + delta
	if spark := RenderMiniSparkline(m.fps.Values(), fpsSparkWidth, ColorGraph); spark != "" {
		line += "  " + spark
	}
	return Section("Frame rate", "", []string{line}, width)
}

func (m Model) renderToasts(width int) string {
	if len(m.toasts) == 0 {
		return ""
	}
	lines := make([]string, 0, len(m.toasts))
	for _, t := range m.toasts {
		color := LevelColor(t.n.Level)
		body := lipgloss.NewStyle().Foreground(color).Bold(true).Render(LevelGlyph(t.n.Level)) + " " +
			ValueStyle.Render(t.n.Message)
		lines = append(lines, toastStyle.BorderForeground(color).MaxWidth(width).Render(body))
	}
	return strings.Join(lines, "\n")
}

// renderFooter renders the keyboard help footer.
func (m Model) renderFooter() string {
	hints := []string{"s start", "x stop", "r reset", "? help", "q quit"}
	return FooterStyle.Render(strings.Join(hints, " | "))
}
