package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/keybinds"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/types"
)

// View renders the model
func (m *Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	switch m.mode {
	case ModeAuth:
		return m.place(m.renderAuth())
	case ModeHistory:
		return m.place(m.renderHistory())
	case ModeHelp:
		return m.place(m.renderHelp())
	case ModeAlert:
		return m.place(styleAlert.Render(
			styleError.Bold(true).Render("Error") + "\n\n" + m.alert + "\n\n" +
				styleSubtle.Render(m.keys.KeyString(keybinds.ContextAlert, keybinds.ActionCloseModal)+" to dismiss")))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.renderForm(),
		styleBox.Width(m.width-2).Render(m.resultView.View()),
		m.renderFooter(),
	)
}

func (m *Model) place(s string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, s)
}

func (m *Model) modalWidth() int {
	return max(minModalWidth, min(m.width-8, 80))
}

func (m *Model) renderHeader() string {
	user := styleSubtle.Render("anonymous")
	if m.app.Session.Authenticated() {
		user = styleSuccess.Render("logged in")
		if c, err := m.app.Session.Claims(); err == nil && c.Subject != "" {
			user = styleSuccess.Render("logged in as " + c.Subject)
		}
	}
	left := styleTitle.Render("genepredict") + " " + styleSubtle.Render(m.app.Settings.BaseURL)
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(user), 1)
	return left + strings.Repeat(" ", gap) + user
}

func (m *Model) renderForm() string {
	valuesLabel := styleLabel.Render("Expression values")
	valuesView := m.values.View()
	if m.fileSelected() {
		valuesLabel += styleSubtle.Render("  (disabled while a file is selected)")
		valuesView = styleSubtle.Render(m.values.Prompt + m.values.Value())
	}

	var button string
	if m.loading() {
		button = styleWarning.Render(m.spinner.View() + " Predicting...")
	} else {
		button = styleSelected.Render(" Predict ") + styleSubtle.Render("  "+m.keys.KeyString(keybinds.ContextForm, keybinds.ActionSubmit))
	}

	body := strings.Join([]string{
		valuesLabel,
		valuesView,
		styleLabel.Render("CSV file"),
		m.file.View(),
		button,
	}, "\n")
	return styleBox.Width(m.width - 2).Render(body)
}

func (m *Model) renderFooter() string {
	if m.status != "" {
		if m.statusErr {
			return styleError.Render(m.status)
		}
		return styleSuccess.Render(m.status)
	}
	hints := []string{
		m.keys.KeyString(keybinds.ContextForm, keybinds.ActionSubmit) + " predict",
		m.keys.KeyString(keybinds.ContextForm, keybinds.ActionNextField) + " field",
		m.keys.KeyString(keybinds.ContextGlobal, keybinds.ActionOpenAuth) + " login",
		m.keys.KeyString(keybinds.ContextGlobal, keybinds.ActionToggleHistory) + " history",
		m.keys.KeyString(keybinds.ContextGlobal, keybinds.ActionHelp) + " help",
		m.keys.KeyString(keybinds.ContextForm, keybinds.ActionQuit) + " quit",
	}
	return styleSubtle.Render(strings.Join(hints, " • "))
}

// renderResult is the viewport content for the current state
func (m *Model) renderResult(width int) string {
	switch m.state.Status {
	case types.StatusLoading:
		return styleWarning.Render(m.spinner.View() + " Waiting for the server...")
	case types.StatusFailed:
		return styleError.Render(m.state.Reason)
	case types.StatusSuccess:
		return m.renderPrediction(width)
	}
	if m.pending {
		return styleWarning.Render(m.spinner.View() + " Waiting for the server...")
	}
	return styleSubtle.Render("Enter comma-separated expression values or a CSV file path, then predict.")
}

func (m *Model) renderPrediction(width int) string {
	var sb strings.Builder
	sb.WriteString(styleTitle.Render("Prediction"))
	sb.WriteString("\n")

	keys := m.state.Result.Keys()
	labelWidth := 0
	for _, k := range keys {
		labelWidth = max(labelWidth, len(k))
	}
	for _, k := range keys {
		label := styleLabel.Width(labelWidth + 2).Render(k + ":")
		fmt.Fprintf(&sb, "%s%s\n", label, styleSuccess.Render(displayValue(m.state.Result[k])))
	}

	if m.state.Chart != nil {
		sb.WriteString("\n")
		sb.WriteString(renderChart(m.state.Chart, min(width, chartMaxWidth)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func displayValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case float64:
		return fmt.Sprintf("%g", x)
	}
	return fmt.Sprint(v)
}

func (m *Model) renderAuth() string {
	title := styleTitle.Render(m.auth.mode.String())
	other := authRegister
	if m.auth.mode == authRegister {
		other = authLogin
	}

	var status string
	if m.auth.busy {
		status = styleWarning.Render("Contacting server...")
	} else {
		status = styleSubtle.Render(fmt.Sprintf("%s confirm • %s %s • %s cancel",
			m.keys.KeyString(keybinds.ContextAuth, keybinds.ActionConfirm),
			m.keys.KeyString(keybinds.ContextAuth, keybinds.ActionSwitchAuthMode),
			strings.ToLower(other.String()),
			m.keys.KeyString(keybinds.ContextAuth, keybinds.ActionCloseModal)))
	}

	body := strings.Join([]string{
		title,
		"",
		styleLabel.Render("Username"),
		m.auth.username.View(),
		styleLabel.Render("Password"),
		m.auth.password.View(),
		"",
		status,
	}, "\n")
	return styleModal.Width(m.modalWidth()).Render(body)
}

func (m *Model) renderHistory() string {
	width := m.modalWidth()
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", styleTitle.Render("History"),
		styleSubtle.Render(fmt.Sprintf("(%s, %s to switch)", m.history.Source(),
			m.keys.KeyString(keybinds.ContextHistory, keybinds.ActionSwitchSource))))
	sb.WriteString(m.history.filter.View())
	sb.WriteString("\n\n")

	rows := m.history.Rows()
	switch {
	case len(rows) == 0 && m.history.Source() == sourceServer && !m.app.Session.Authenticated():
		sb.WriteString(styleSubtle.Render("Log in to see server history"))
	case len(rows) == 0:
		sb.WriteString(styleSubtle.Render("No entries"))
	}

	// keep the selection on screen
	visible := max(m.height-12, 3)
	start := max(0, m.history.index-visible+1)
	end := min(len(rows), start+visible)
	for i := start; i < end; i++ {
		r := rows[i]
		line := truncate(r.When+"  "+r.Summary, width-6)
		switch {
		case i == m.history.index:
			line = styleSelected.Render(line)
		case r.Failed:
			line = styleError.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(styleSubtle.Render(fmt.Sprintf("%s load • %s refresh • %s close",
		m.keys.KeyString(keybinds.ContextHistory, keybinds.ActionLoadEntry),
		m.keys.KeyString(keybinds.ContextHistory, keybinds.ActionRefreshHistory),
		m.keys.KeyString(keybinds.ContextHistory, keybinds.ActionCloseModal))))
	return styleModal.Width(width).Render(sb.String())
}

func (m *Model) renderHelp() string {
	var sb strings.Builder
	sb.WriteString(styleTitle.Render("Key bindings"))
	sb.WriteString("\n")
	for _, ctx := range keybinds.Contexts {
		bindings := m.keys.List(ctx)
		if len(bindings) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n%s\n", styleLabel.Render(string(ctx)))
		for _, b := range bindings {
			fmt.Fprintf(&sb, "  %-12s %s\n", b.Key, styleSubtle.Render(string(b.Action)))
		}
	}
	return styleModal.Width(m.modalWidth()).Render(strings.TrimRight(sb.String(), "\n"))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
