package dashboard

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/trainwatch/internal/stream"
)

// Dashboard color palette
const (
	ColorDarkBg    = lipgloss.Color("#0A0A0F")
	ColorSurfaceBg = lipgloss.Color("#12121A")
	ColorBorder    = lipgloss.Color("#2A2A4A")

	ColorHealthy  = lipgloss.Color("#39FF14")
	ColorWarning  = lipgloss.Color("#FFAA00")
	ColorCritical = lipgloss.Color("#FF0055")
	ColorInfo     = lipgloss.Color("#00BFFF")

	ColorTextPrimary   = lipgloss.Color("#FFFFFF")
	ColorTextSecondary = lipgloss.Color("#B4B4D0")
	ColorTextMuted     = lipgloss.Color("#6B6B8D")

	ColorAccent = lipgloss.Color("#FF2E97")
	ColorGraph  = lipgloss.Color("#00FFFF")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Background(ColorSurfaceBg).
			Bold(true).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Padding(0, 1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorTextSecondary)

	ValueStyle = lipgloss.NewStyle().
			Foreground(ColorTextPrimary).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	toastStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

// Connection state glyphs
const (
	GlyphIdle   = "○"
	GlyphLive   = "◉"
	GlyphFailed = "✗"
)

// StateColor returns the indicator color for a connection state.
func StateColor(s stream.ConnectionState) lipgloss.Color {
	switch s {
	case stream.StateLive:
		return ColorHealthy
	case stream.StateConnecting, stream.StateReconnecting:
		return ColorWarning
	case stream.StateFailed:
		return ColorCritical
	default:
		return ColorTextMuted
	}
}

// LevelColor returns the toast accent for a notification level.
func LevelColor(l stream.Level) lipgloss.Color {
	switch l {
	case stream.LevelSuccess:
		return ColorHealthy
	case stream.LevelWarning:
		return ColorWarning
	case stream.LevelError:
		return ColorCritical
	default:
		return ColorInfo
	}
}

// LevelGlyph is the leading symbol of a toast.
func LevelGlyph(l stream.Level) string {
	switch l {
	case stream.LevelSuccess:
		return "✓"
	case stream.LevelWarning:
		return "!"
	case stream.LevelError:
		return "✗"
	default:
		return "i"
	}
}

// LossColor colors a loss value: high loss is red, low loss is green.
func LossColor(loss float64) lipgloss.Color {
	switch {
	case loss >= 1.5:
		return ColorCritical
	case loss >= 0.5:
		return ColorWarning
	default:
		return ColorHealthy
	}
}

// SectionHeader renders the top border of a section with the title on the
// left and value on the right.
// Format: ╭─ Title ────────────────────────── Value ╮
func SectionHeader(title, value string, width int) string {
	if width < 10 {
		width = 10
	}

	leftWidth := 3 + lipgloss.Width(title) + 1
	rightWidth := 1 + lipgloss.Width(value) + 2
	fillWidth := width - leftWidth - rightWidth
	if fillWidth < 1 {
		fillWidth = 1
	}

	borderStyle := lipgloss.NewStyle().Foreground(ColorBorder)
	titleStyle := lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	valueStyle := lipgloss.NewStyle().Foreground(ColorGraph).Bold(true)

	return borderStyle.Render("╭─ ") +
		titleStyle.Render(title) +
		borderStyle.Render(" "+strings.Repeat("─", fillWidth)+" ") +
		valueStyle.Render(value) +
		borderStyle.Render(" ╮")
}

// SectionFooter renders the bottom border of a section.
func SectionFooter(width int) string {
	if width < 2 {
		width = 2
	}
	return lipgloss.NewStyle().Foreground(ColorBorder).Render("╰" + strings.Repeat("─", width-2) + "╯")
}

// SectionContentLine pads content between the side borders.
// Format: │ content                              │
func SectionContentLine(content string, width int) string {
	if width < 4 {
		width = 4
	}
	borderStyle := lipgloss.NewStyle().Foreground(ColorBorder)

	padding := width - 4 - lipgloss.Width(content)
	if padding < 0 {
		padding = 0
	}
	return borderStyle.Render("│") + " " + content + strings.Repeat(" ", padding) + " " + borderStyle.Render("│")
}

// Section renders a bordered block of lines.
func Section(title, value string, lines []string, width int) string {
	out := make([]string, 0, len(lines)+2)
	out = append(out, SectionHeader(title, value, width))
	for _, l := range lines {
		for _, sub := range strings.Split(l, "\n") {
			out = append(out, SectionContentLine(sub, width))
		}
	}
	out = append(out, SectionFooter(width))
	return strings.Join(out, "\n")
}
