package tui

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/input"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/types"
)

func TestRenderChart(t *testing.T) {
	tests := []struct {
		name     string
		chart    *types.ChartDataset
		contains []string
		lines    int
	}{
		{
			name:  "nil",
			chart: nil,
		},
		{
			name: "positive only",
			chart: &types.ChartDataset{
				Label:  "Expression Value",
				Labels: []string{"Gene 1", "Gene 2"},
				Values: types.Values{1, 2},
			},
			contains: []string{"Expression Value", "Gene 1", "Gene 2", "█"},
			lines:    3,
		},
		{
			name: "negative and missing",
			chart: &types.ChartDataset{
				Label:  "Expression Value",
				Labels: []string{"Gene 1", "Gene 2", "Gene 3"},
				Values: types.Values{1.5, -0.5, math.NaN()},
			},
			contains: []string{"-0.5", "n/a", "│"},
			lines:    4,
		},
		{
			name: "infinite",
			chart: &types.ChartDataset{
				Label:  "Expression Value",
				Labels: []string{"Gene 1", "Gene 2", "Gene 3"},
				Values: types.Values{1, math.Inf(-1), math.Inf(1)},
			},
			contains: []string{"Gene 1", "n/a", "█"},
			lines:    4,
		},
		{
			name: "only infinite",
			chart: &types.ChartDataset{
				Label:  "Expression Value",
				Labels: []string{"Gene 1"},
				Values: types.Values{math.Inf(-1)},
			},
			contains: []string{"n/a"},
			lines:    2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := renderChart(tt.chart, 40)
			if tt.chart == nil {
				assert.Empty(t, out)
				return
			}
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			assert.Len(t, strings.Split(strings.TrimRight(out, "\n"), "\n"), tt.lines)
		})
	}
}

func TestRenderChartScalesToLargest(t *testing.T) {
	out := renderChart(&types.ChartDataset{
		Labels: []string{"a", "b"},
		Values: types.Values{1, 4},
	}, 40)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Less(t, strings.Count(lines[1], "█"), strings.Count(lines[2], "█"))
}

func TestRenderChartFromPassthroughInput(t *testing.T) {
	for _, in := range []string{"1, inf", "-Infinity", "1.2, Infinity, -0.8"} {
		t.Run(in, func(t *testing.T) {
			values, err := input.Parse(in, input.PolicyPassthrough)
			assert.NoError(t, err)
			assert.NotPanics(t, func() {
				assert.Contains(t, renderChart(input.Chart(values), 60), "n/a")
			})
		})
	}
}
