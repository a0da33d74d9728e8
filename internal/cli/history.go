package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/app"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/session"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/types"
)

// History prints the server-side history for the logged-in user
func History(ctx context.Context, a *app.App, opts OutputOptions, out io.Writer) error {
	if !a.Session.Authenticated() {
		return fmt.Errorf("%w: run 'genepredict login' first", session.ErrNotAuthenticated)
	}

	entries, err := a.Client.History(ctx)
	if err != nil {
		return err
	}

	opts.Format = resolveFormat(opts.Format)
	if opts.Format != FormatText {
		s, err := encode(entries, opts)
		if err != nil {
			return err
		}
		return write(out, s, opts)
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No predictions yet")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s  RF: %-10s SVM: %-10s %s%s%s\n",
			formatCreatedAt(e.CreatedAt), e.RandomForestPrediction, e.SVMPrediction,
			colorDim, summarizeValues(e.ExpressionValues, 6), colorReset)
	}
	return nil
}

// LocalHistory prints the newest limit entries of the local submission log
func LocalHistory(a *app.App, limit int, opts OutputOptions, out io.Writer) error {
	if a.Local == nil {
		return fmt.Errorf("local submission log is not available")
	}

	subs, err := a.Local.List(limit)
	if err != nil {
		return err
	}

	opts.Format = resolveFormat(opts.Format)
	if opts.Format != FormatText {
		s, err := encode(subs, opts)
		if err != nil {
			return err
		}
		return write(out, s, opts)
	}

	if len(subs) == 0 {
		fmt.Fprintln(out, "No local submissions")
		return nil
	}
	for _, s := range subs {
		fmt.Fprintf(out, "#%-4d %s  %s  %7s  %s\n",
			s.ID, s.Timestamp.Local().Format("2006-01-02 15:04:05"),
			statusLabel(s.Status), formatDuration(s.Duration), submissionSummary(s))
	}
	return nil
}

// ClearLocalHistory empties the local submission log
func ClearLocalHistory(a *app.App, out io.Writer) error {
	if a.Local == nil {
		return fmt.Errorf("local submission log is not available")
	}
	n, err := a.Local.Count()
	if err != nil {
		return err
	}
	if err := a.Local.Clear(); err != nil {
		return err
	}
	if a.Stats != nil {
		a.Stats.Invalidate()
	}
	fmt.Fprintf(out, "Removed %d local submissions\n", n)
	return nil
}

// HistoryStats prints aggregates over the local submission log. An empty
// baseURL covers every origin.
func HistoryStats(a *app.App, baseURL string, opts OutputOptions, out io.Writer) error {
	if a.Stats == nil {
		return fmt.Errorf("local submission log is not available")
	}

	stats, err := a.Stats.Stats(baseURL)
	if err != nil {
		return err
	}

	opts.Format = resolveFormat(opts.Format)
	if opts.Format != FormatText {
		s, err := encode(stats, opts)
		if err != nil {
			return err
		}
		return write(out, s, opts)
	}

	if len(stats) == 0 {
		fmt.Fprintln(out, "No local submissions")
		return nil
	}
	for i, st := range stats {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "%s%s%s (%s input)\n", colorBold, st.BaseURL, colorReset, st.Kind)
		fmt.Fprintf(out, "  Submissions: %d (%d ok, %d failed, %.0f%% success)\n",
			st.Total, st.Succeeded, st.Failed, st.SuccessRate()*100)
		fmt.Fprintf(out, "  Duration:    avg %s, min %s, max %s\n",
			formatDuration(int64(st.AvgDurationMs)), formatDuration(st.MinDurationMs), formatDuration(st.MaxDurationMs))
		if !st.LastSubmitted.IsZero() {
			fmt.Fprintf(out, "  Last:        %s\n", st.LastSubmitted.Local().Format("2006-01-02 15:04:05"))
		}
		for _, label := range st.SortedLabels() {
			fmt.Fprintf(out, "  %-12s %d\n", label+":", st.Labels[label])
		}
	}
	return nil
}

func statusLabel(s types.RequestStatus) string {
	if s == types.StatusSuccess {
		return colorGreen + "ok    " + colorReset
	}
	return colorRed + "failed" + colorReset
}

func submissionSummary(s types.Submission) string {
	if s.Status == types.StatusFailed {
		return s.Error
	}
	var parts []string
	for _, k := range s.Result.Keys() {
		parts = append(parts, fmt.Sprintf("%s=%s", k, displayValue(s.Result[k])))
	}
	input := summarizeValues(s.Values, 4)
	if s.Kind == types.InputFile {
		input = s.FileName
	}
	return strings.Join(parts, " ") + "  " + colorDim + input + colorReset
}

func summarizeValues(v types.Values, max int) string {
	parts := make([]string, 0, max+1)
	for i, f := range v {
		if i == max {
			parts = append(parts, fmt.Sprintf("… (%d values)", len(v)))
			break
		}
		parts = append(parts, fmt.Sprintf("%g", f))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// formatCreatedAt shows server timestamps in local time when they parse
func formatCreatedAt(s string) string {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Local().Format("2006-01-02 15:04:05")
		}
	}
	return s
}
