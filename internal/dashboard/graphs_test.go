package dashboard

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderBrailleGraph_Empty(t *testing.T) {
	assert.Empty(t, RenderBrailleGraph(nil, 10, 4, ColorGraph))
	assert.Empty(t, RenderBrailleGraph([]float64{1}, 0, 4, ColorGraph))
	assert.Empty(t, RenderBrailleGraph([]float64{1}, 10, 0, ColorGraph))
}

func TestRenderBrailleGraph_Dimensions(t *testing.T) {
	data := []float64{2.5, 2.1, 1.8, 1.2, 0.9, 0.5, 0.3}
	out := RenderBrailleGraph(data, 12, 3, ColorGraph)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	for _, l := range lines {
		assert.Equal(t, 12, lipgloss.Width(l))
	}
}

func TestRenderBrailleGraph_PeakReachesTopRow(t *testing.T) {
	out := RenderBrailleGraph([]float64{0, 10}, 1, 2, ColorGraph)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)

	top := []rune(lines[0])
	require.Len(t, top, 1)
	assert.NotEqual(t, brailleBase, top[0])
}

func TestRenderBrailleGraph_ShortSeriesRightAligned(t *testing.T) {
	out := RenderBrailleGraph([]float64{1, 1}, 4, 1, ColorGraph)
	row := []rune(out)
	require.Len(t, row, 4)
	assert.Equal(t, brailleBase, row[0])
	assert.NotEqual(t, brailleBase, row[3])
}

func TestRenderMiniSparkline(t *testing.T) {
	assert.Empty(t, RenderMiniSparkline(nil, 10, ColorGraph))

	out := RenderMiniSparkline([]float64{0, 7}, 10, ColorGraph)
	assert.Equal(t, "▁█", out)

	long := make([]float64, 40)
	for i := range long {
		long[i] = float64(i)
	}
	assert.Equal(t, 10, lipgloss.Width(RenderMiniSparkline(long, 10, ColorGraph)))
}

func TestResampleData(t *testing.T) {
	tests := []struct {
		name   string
		data   []float64
		target int
		want   []float64
	}{
		{"empty", nil, 4, nil},
		{"zero target", []float64{1, 2}, 0, nil},
		{"already small", []float64{1, 2}, 4, []float64{1, 2}},
		{"halve", []float64{1, 3, 5, 7}, 2, []float64{2, 6}},
		{"uneven", []float64{1, 2, 3}, 2, []float64{1, 2.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resampleData(tt.data, tt.target))
		})
	}
}

func TestDataRange(t *testing.T) {
	lo, hi := dataRange(nil)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)

	lo, hi = dataRange([]float64{3, -1, 2})
	assert.Equal(t, -1.0, lo)
	assert.Equal(t, 3.0, hi)
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, 0.5, normalizeValue(4, 4, 4))
	assert.Equal(t, 0.0, normalizeValue(1, 1, 3))
	assert.Equal(t, 1.0, normalizeValue(3, 1, 3))
}
