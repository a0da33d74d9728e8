package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"gopkg.in/yaml.v3"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/executor"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/filter"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/types"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatBody = "body"
)

// ANSI color codes
const (
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorGreen  = "\x1b[32m"
	colorYellow = "\x1b[33m"
	colorDim    = "\x1b[2m"
	colorBold   = "\x1b[1m"
)

// OutputOptions controls how results are printed
type OutputOptions struct {
	Format   string // text, json, yaml, body
	Filter   string // JMESPath filter
	Query    string // JMESPath query
	SavePath string
	Full     bool // text: also print request id and chart
}

// resolveFormat picks body when stdout is piped and no format was given
func resolveFormat(format string) string {
	if format != "" {
		return format
	}
	if !isTerminal(os.Stdout) {
		return FormatBody
	}
	return FormatText
}

func isTerminal(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// generic converts v to maps and slices so yaml and JMESPath see the
// same field names as JSON
func generic(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// encode renders v as json or yaml, applying filter/query first
func encode(v any, opts OutputOptions) (string, error) {
	g, err := generic(v)
	if err != nil {
		return "", err
	}

	if opts.Filter != "" || opts.Query != "" {
		filtered, err := filter.ApplyValue(g, opts.Filter, opts.Query)
		if err != nil {
			return "", fmt.Errorf("filter/query error: %w", err)
		}
		if opts.Format != FormatYAML {
			return filtered + "\n", nil
		}
		if err := json.Unmarshal([]byte(filtered), &g); err != nil {
			return "", err
		}
	}

	if opts.Format == FormatYAML {
		data, err := yaml.Marshal(numbersToFloat(g))
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

// numbersToFloat swaps json.Number for float64, which yaml prints as a number
func numbersToFloat(v any) any {
	switch t := v.(type) {
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, e := range t {
			t[k] = numbersToFloat(e)
		}
	case []any:
		for i, e := range t {
			t[i] = numbersToFloat(e)
		}
	}
	return v
}

// FormatState renders a committed prediction state
func FormatState(st types.RequestState, opts OutputOptions) (string, error) {
	switch opts.Format {
	case FormatJSON, FormatYAML:
		return encode(st, opts)

	case FormatBody:
		if st.Status == types.StatusFailed {
			return st.Reason + "\n", nil
		}
		if opts.Filter != "" || opts.Query != "" {
			return encode(st.Result, opts)
		}
		data, err := json.Marshal(st.Result)
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil

	default:
		return formatStateText(st, opts.Full), nil
	}
}

func formatStateText(st types.RequestState, full bool) string {
	var sb strings.Builder

	switch st.Status {
	case types.StatusSuccess:
		sb.WriteString(colorGreen + "Prediction" + colorReset + "\n")
		for _, k := range st.Result.Keys() {
			fmt.Fprintf(&sb, "  %s: %s\n", k, displayValue(st.Result[k]))
		}
	case types.StatusFailed:
		fmt.Fprintf(&sb, "%sError: %s%s\n", colorRed, st.Reason, colorReset)
	default:
		fmt.Fprintf(&sb, "%s%s%s\n", colorYellow, st.Status, colorReset)
	}

	if full {
		if st.RequestID != "" {
			fmt.Fprintf(&sb, "%sRequest ID: %s%s\n", colorDim, st.RequestID, colorReset)
		}
		if st.Chart != nil {
			sb.WriteString("\n")
			sb.WriteString(RenderChart(st.Chart, 40))
		}
	}
	return sb.String()
}

func displayValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case nil:
		return "null"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

// RenderChart draws one horizontal bar per value, scaled to width.
// Negative values grow left of the axis.
func RenderChart(c *types.ChartDataset, width int) string {
	if c == nil || len(c.Values) == 0 {
		return ""
	}

	maxAbs := 0.0
	labelWidth := 0
	for i, v := range c.Values {
		if finite(v) && math.Abs(v) > maxAbs {
			maxAbs = math.Abs(v)
		}
		if len(c.Labels[i]) > labelWidth {
			labelWidth = len(c.Labels[i])
		}
	}

	half := width / 2
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", c.Label)
	for i, v := range c.Values {
		label := fmt.Sprintf("%-*s ", labelWidth, c.Labels[i])
		if !finite(v) {
			fmt.Fprintf(&sb, "%s%*s│ n/a\n", label, half, "")
			continue
		}

		n := 0
		if maxAbs > 0 {
			n = int(math.Round(math.Abs(v) / maxAbs * float64(half)))
		}
		n = min(max(n, 0), half)
		if v < 0 {
			fmt.Fprintf(&sb, "%s%*s%s│ %g\n", label, half-n, "", strings.Repeat("█", n), v)
		} else {
			fmt.Fprintf(&sb, "%s%*s│%s %g\n", label, half, "", strings.Repeat("█", n), v)
		}
	}
	return sb.String()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// highlight colors JSON for terminals and leaves everything else alone
func highlight(w io.Writer, s string) {
	if f, ok := w.(*os.File); ok && isTerminal(f) && json.Valid([]byte(strings.TrimSpace(s))) {
		if err := quick.Highlight(w, s, "json", "terminal256", "monokai"); err == nil {
			return
		}
	}
	fmt.Fprint(w, s)
}

// write prints out or saves it to opts.SavePath
func write(w io.Writer, out string, opts OutputOptions) error {
	if opts.SavePath != "" {
		if err := os.WriteFile(opts.SavePath, []byte(out), 0644); err != nil {
			return fmt.Errorf("failed to save output: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Output saved to %s\n", opts.SavePath)
		return nil
	}
	if opts.Format == FormatJSON || opts.Format == FormatBody {
		highlight(w, out)
		return nil
	}
	fmt.Fprint(w, out)
	return nil
}

// formatDuration is shared with the executor so timings read the same everywhere
func formatDuration(ms int64) string {
	return executor.FormatDuration(ms)
}
