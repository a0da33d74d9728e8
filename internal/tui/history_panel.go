package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/sahilm/fuzzy"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/types"
)

// historySource selects which list the panel shows
type historySource int

const (
	sourceServer historySource = iota
	sourceLocal
)

func (s historySource) String() string {
	if s == sourceLocal {
		return "local"
	}
	return "server"
}

// historyRow is one display line. Values is what loading the row puts
// back into the form; FileName is set for file submissions.
type historyRow struct {
	When     string
	Summary  string
	Values   types.Values
	FileName string
	Failed   bool
}

func (r historyRow) searchText() string {
	return r.When + " " + r.Summary + " " + r.FileName
}

// historyRows adapts a row slice to fuzzy.Source
type historyRows []historyRow

func (r historyRows) String(i int) string { return r[i].searchText() }
func (r historyRows) Len() int            { return len(r) }

// HistoryPanel holds both history lists and the filtered view over one
type HistoryPanel struct {
	source  historySource
	server  historyRows
	local   historyRows
	visible historyRows
	index   int
	filter  textinput.Model
}

// NewHistoryPanel creates an empty panel showing server history
func NewHistoryPanel() *HistoryPanel {
	ti := textinput.New()
	ti.Placeholder = "type to filter"
	ti.Prompt = "/ "
	ti.CharLimit = 100
	return &HistoryPanel{filter: ti}
}

// SetServer replaces the server rows from GET /history
func (p *HistoryPanel) SetServer(entries []types.HistoryEntry) {
	rows := make(historyRows, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, historyRow{
			When:    e.CreatedAt,
			Summary: fmt.Sprintf("RF: %s  SVM: %s  %s", e.RandomForestPrediction, e.SVMPrediction, formatValues(e.ExpressionValues, 5)),
			Values:  e.ExpressionValues,
		})
	}
	p.server = rows
	p.apply()
}

// SetLocal replaces the local rows from the submission log
func (p *HistoryPanel) SetLocal(subs []types.Submission) {
	rows := make(historyRows, 0, len(subs))
	for _, s := range subs {
		row := historyRow{
			When:     s.Timestamp.Local().Format("2006-01-02 15:04:05"),
			Values:   s.Values,
			FileName: s.FileName,
			Failed:   s.Status == types.StatusFailed,
		}
		var parts []string
		if row.Failed {
			parts = append(parts, "failed: "+s.Error)
		} else {
			for _, k := range s.Result.Keys() {
				parts = append(parts, fmt.Sprintf("%s: %v", shortField(k), s.Result[k]))
			}
		}
		if s.Kind == types.InputFile {
			parts = append(parts, s.FileName)
		} else {
			parts = append(parts, formatValues(s.Values, 5))
		}
		row.Summary = strings.Join(parts, "  ")
		rows = append(rows, row)
	}
	p.local = rows
	p.apply()
}

// Source returns the list being shown
func (p *HistoryPanel) Source() historySource { return p.source }

// SwitchSource toggles server and local
func (p *HistoryPanel) SwitchSource() {
	if p.source == sourceServer {
		p.source = sourceLocal
	} else {
		p.source = sourceServer
	}
	p.apply()
}

// SetFilter sets the fuzzy query
func (p *HistoryPanel) SetFilter(q string) {
	p.filter.SetValue(q)
	p.apply()
}

// Navigate moves the selection by delta, clamped to the list
func (p *HistoryPanel) Navigate(delta int) {
	p.index = max(0, min(p.index+delta, len(p.visible)-1))
}

// Selected returns the highlighted row
func (p *HistoryPanel) Selected() (historyRow, bool) {
	if p.index < 0 || p.index >= len(p.visible) {
		return historyRow{}, false
	}
	return p.visible[p.index], true
}

// Rows returns the filtered rows
func (p *HistoryPanel) Rows() []historyRow { return p.visible }

func (p *HistoryPanel) apply() {
	all := p.server
	if p.source == sourceLocal {
		all = p.local
	}

	q := strings.TrimSpace(p.filter.Value())
	if q == "" {
		p.visible = all
	} else {
		matches := fuzzy.FindFrom(q, all)
		p.visible = make(historyRows, 0, len(matches))
		for _, m := range matches {
			p.visible = append(p.visible, all[m.Index])
		}
	}
	p.Navigate(0)
}

func shortField(k string) string {
	switch k {
	case types.FieldRandomForest:
		return "RF"
	case types.FieldSVM:
		return "SVM"
	case types.FieldDeepLearning:
		return "DL"
	}
	return k
}

func formatValues(v types.Values, limit int) string {
	parts := make([]string, 0, limit+1)
	for i, f := range v {
		if i == limit {
			parts = append(parts, fmt.Sprintf("+%d", len(v)-limit))
			break
		}
		parts = append(parts, fmt.Sprintf("%g", f))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// valuesText is the form text that reproduces v
func valuesText(v types.Values) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%g", f)
	}
	return strings.Join(parts, ", ")
}
