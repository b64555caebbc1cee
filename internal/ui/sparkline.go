package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Sparkline block characters representing 8 vertical levels (lowest to highest).
var sparklineBlocks = []rune("▁▂▃▄▅▆▇█")

// RenderLossSparkline renders the most recent width losses as block
// characters scaled to their own range. The color follows the last value:
// red at 1.5 and above, amber from 0.5, green below.
func RenderLossSparkline(losses []float64, width int) string {
	if len(losses) == 0 || width <= 0 {
		return ""
	}
	if len(losses) > width {
		losses = losses[len(losses)-width:]
	}

	minVal, maxVal := losses[0], losses[0]
	for _, v := range losses {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}

	var sb strings.Builder
	sb.Grow(len(losses) * 3)

	levels := len(sparklineBlocks)
	span := maxVal - minVal
	for _, v := range losses {
		level := levels / 2
		if span > 0 {
			level = int((v - minVal) / span * float64(levels-1))
			if level < 0 {
				level = 0
			} else if level >= levels {
				level = levels - 1
			}
		}
		sb.WriteRune(sparklineBlocks[level])
	}

	return lipgloss.NewStyle().Foreground(lossColor(losses[len(losses)-1])).Render(sb.String())
}

func lossColor(loss float64) lipgloss.Color {
	switch {
	case loss >= 1.5:
		return ColorError
	case loss >= 0.5:
		return ColorWarning
	default:
		return ColorSuccess
	}
}
