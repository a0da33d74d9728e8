package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/types"
)

var (
	styleBarPositive = lipgloss.NewStyle().Foreground(colorGreen)
	styleBarNegative = lipgloss.NewStyle().Foreground(colorRed)
)

// renderChart draws the expression values as horizontal bars around a
// zero axis. width is the total width available for bars.
func renderChart(c *types.ChartDataset, width int) string {
	if c == nil || len(c.Values) == 0 {
		return ""
	}

	maxAbs, hasNeg := 0.0, false
	labelWidth := 0
	for _, v := range c.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		maxAbs = math.Max(maxAbs, math.Abs(v))
		hasNeg = hasNeg || v < 0
	}
	for _, l := range c.Labels {
		labelWidth = max(labelWidth, lipgloss.Width(l))
	}

	// room for the label, the axis and the printed value
	barSpace := max(width-labelWidth-12, 4)
	left, right := 0, barSpace
	if hasNeg {
		left = barSpace / 2
		right = barSpace - left
	}

	var sb strings.Builder
	sb.WriteString(styleLabel.Render(c.Label))
	sb.WriteString("\n")

	for i, v := range c.Values {
		label := lipgloss.NewStyle().Width(labelWidth).Render(c.Labels[i])
		if math.IsNaN(v) || math.IsInf(v, 0) {
			fmt.Fprintf(&sb, "%s %s│ %s\n", label, strings.Repeat(" ", left), styleSubtle.Render("n/a"))
			continue
		}

		scale := right
		if v < 0 {
			scale = left
		}
		n := 0
		if maxAbs > 0 {
			n = int(math.Round(math.Abs(v) / maxAbs * float64(scale)))
		}
		n = min(max(n, 0), scale)

		bar := strings.Repeat("█", n)
		if v < 0 {
			fmt.Fprintf(&sb, "%s %s%s│ %g\n", label,
				strings.Repeat(" ", left-n), styleBarNegative.Render(bar), v)
		} else {
			fmt.Fprintf(&sb, "%s %s│%s %g\n", label,
				strings.Repeat(" ", left), styleBarPositive.Render(bar), v)
		}
	}
	return sb.String()
}
