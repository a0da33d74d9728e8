package tui

import (
	"context"
	"encoding/json"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/keybinds"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/orchestrator"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/types"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/version"
)

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()

	switch m.mode {
	case ModeAlert:
		action, _ := m.keys.Match(keybinds.ContextAlert, key)
		switch action {
		case keybinds.ActionQuitForce:
			return m.quit()
		case keybinds.ActionCloseModal, keybinds.ActionConfirm:
			m.mode = m.alertReturn
			m.alert = ""
		}
		return nil

	case ModeHelp:
		action, _ := m.keys.Match(keybinds.ContextAlert, key)
		switch action {
		case keybinds.ActionQuitForce:
			return m.quit()
		case keybinds.ActionCloseModal, keybinds.ActionConfirm, keybinds.ActionHelp:
			m.mode = ModeForm
		}
		return nil

	case ModeAuth:
		return m.handleAuthKey(msg)

	case ModeHistory:
		return m.handleHistoryKey(msg)
	}

	return m.handleFormKey(msg)
}

func (m *Model) handleFormKey(msg tea.KeyMsg) tea.Cmd {
	action, ok := m.keys.Match(keybinds.ContextForm, msg.String())
	if !ok {
		return m.updateFocusedInput(msg)
	}

	switch action {
	case keybinds.ActionQuit, keybinds.ActionQuitForce:
		return m.quit()
	case keybinds.ActionSubmit:
		return m.submit()
	case keybinds.ActionCancelRequest:
		if m.app.Orchestrator.Cancel() {
			m.setStatus("Request cancelled", false)
		}
	case keybinds.ActionNextField, keybinds.ActionPrevField:
		return m.toggleFocus()
	case keybinds.ActionClearFile:
		if m.fileSelected() {
			m.file.SetValue("")
			m.setStatus("File cleared", false)
		}
	case keybinds.ActionScrollUp:
		m.resultView.HalfViewUp()
	case keybinds.ActionScrollDown:
		m.resultView.HalfViewDown()
	case keybinds.ActionHelp:
		m.mode = ModeHelp
	case keybinds.ActionOpenAuth:
		m.mode = ModeAuth
		return m.auth.Open()
	case keybinds.ActionLogout:
		m.logout()
	case keybinds.ActionToggleHistory:
		return m.openHistory()
	case keybinds.ActionCopyResult:
		m.copyResult()
	default:
		return m.updateFocusedInput(msg)
	}
	return nil
}

func (m *Model) handleAuthKey(msg tea.KeyMsg) tea.Cmd {
	action, _ := m.keys.Match(keybinds.ContextAuth, msg.String())
	switch action {
	case keybinds.ActionQuitForce:
		return m.quit()
	case keybinds.ActionCloseModal:
		m.mode = ModeForm
		return nil
	case keybinds.ActionSwitchAuthMode:
		m.auth.SwitchMode()
		return nil
	case keybinds.ActionNextField, keybinds.ActionPrevField:
		return m.auth.NextField()
	case keybinds.ActionConfirm:
		return m.confirmAuth()
	}
	if m.auth.busy {
		return nil
	}
	return m.auth.Update(msg)
}

func (m *Model) handleHistoryKey(msg tea.KeyMsg) tea.Cmd {
	action, _ := m.keys.Match(keybinds.ContextHistory, msg.String())
	switch action {
	case keybinds.ActionQuitForce:
		return m.quit()
	case keybinds.ActionCloseModal, keybinds.ActionToggleHistory:
		m.closeHistory()
		return nil
	case keybinds.ActionNavigateUp:
		m.history.Navigate(-1)
		return nil
	case keybinds.ActionNavigateDown:
		m.history.Navigate(1)
		return nil
	case keybinds.ActionSwitchSource:
		m.history.SwitchSource()
		return nil
	case keybinds.ActionFocusFilter:
		return m.history.filter.Focus()
	case keybinds.ActionRefreshHistory:
		return m.refreshHistory()
	case keybinds.ActionLoadEntry:
		m.loadEntry()
		return nil
	}

	var cmd tea.Cmd
	m.history.filter, cmd = m.history.filter.Update(msg)
	m.history.apply()
	return cmd
}

// updateFocusedInput types into the focused field. The values field takes
// no input while a file is selected.
func (m *Model) updateFocusedInput(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	if m.focus == fieldFile {
		m.file, cmd = m.file.Update(msg)
		return cmd
	}
	if m.fileSelected() {
		m.setStatus("Clear the file to type values", false)
		return nil
	}
	m.values, cmd = m.values.Update(msg)
	return cmd
}

func (m *Model) toggleFocus() tea.Cmd {
	if m.focus == fieldValues {
		m.focus = fieldFile
		m.values.Blur()
		return m.file.Focus()
	}
	m.focus = fieldValues
	m.file.Blur()
	return m.values.Focus()
}

func (m *Model) quit() tea.Cmd {
	m.app.Orchestrator.Cancel()
	return tea.Quit
}

// submit starts one prediction unless one is already running
func (m *Model) submit() tea.Cmd {
	if m.loading() {
		m.setStatus("A prediction is already running", false)
		return nil
	}
	in := orchestrator.Input{Text: m.values.Value(), FilePath: m.file.Value()}
	m.pending = true
	m.setStatus("", false)
	m.refreshResult()

	ctx, o := m.ctx, m.app.Orchestrator
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		_, err := o.Submit(ctx, in)
		return submitDoneMsg{err: err}
	})
}

func (m *Model) confirmAuth() tea.Cmd {
	if m.auth.busy {
		return nil
	}
	username, password, ok := m.auth.Credentials()
	if !ok {
		m.showAlert("Username and password are required")
		return nil
	}
	m.auth.busy = true

	ctx, a, mode := m.ctx, m.app, m.auth.mode
	return func() tea.Msg {
		var msg string
		var err error
		if mode == authRegister {
			msg, err = a.Register(ctx, username, password)
		} else {
			msg, err = a.Login(ctx, username, password)
		}
		return authDoneMsg{mode: mode, message: msg, err: err}
	}
}

func (m *Model) handleAuthDone(msg authDoneMsg) tea.Cmd {
	m.auth.busy = false
	if msg.err != nil {
		m.showAlert(msg.err.Error())
		return nil
	}

	if msg.mode == authRegister {
		m.auth.mode = authLogin
		m.setStatus(orDefault(msg.message, "Registered")+"; log in to continue", false)
		return m.auth.Open()
	}

	m.mode = ModeForm
	m.setStatus(orDefault(msg.message, "Logged in"), false)
	return nil
}

func (m *Model) logout() {
	if !m.app.Session.Authenticated() {
		m.setStatus("Not logged in", false)
		return
	}
	if err := m.app.Logout(); err != nil {
		m.setStatus("Logged out, but the session file was not updated: "+err.Error(), true)
		return
	}
	m.history.SetServer(nil)
	m.setStatus("Logged out", false)
}

func (m *Model) openHistory() tea.Cmd {
	m.mode = ModeHistory
	m.history.SetServer(m.app.Remote.Entries())
	cmds := []tea.Cmd{m.history.filter.Focus(), m.loadLocalCmd()}
	if m.app.Session.Authenticated() {
		cmds = append(cmds, m.refreshRemoteCmd())
	}
	return tea.Batch(cmds...)
}

func (m *Model) closeHistory() {
	m.history.filter.Blur()
	m.mode = ModeForm
}

func (m *Model) refreshHistory() tea.Cmd {
	if m.history.Source() == sourceLocal {
		return m.loadLocalCmd()
	}
	if !m.app.Session.Authenticated() {
		m.setStatus("Log in to see server history", false)
		return nil
	}
	return m.refreshRemoteCmd()
}

// loadEntry copies the selected row's values into the form
func (m *Model) loadEntry() {
	row, ok := m.history.Selected()
	if !ok {
		return
	}
	if len(row.Values) == 0 {
		m.setStatus("Entry has no values to load", false)
		return
	}

	m.file.SetValue("")
	m.values.SetValue(valuesText(row.Values))
	m.values.CursorEnd()
	if m.focus != fieldValues {
		m.toggleFocus()
	}
	m.closeHistory()
	m.setStatus("Loaded entry from "+row.When, false)
}

func (m *Model) copyResult() {
	if m.state.Status != types.StatusSuccess {
		m.setStatus("No result to copy", false)
		return
	}
	b, err := json.MarshalIndent(m.state.Result, "", "  ")
	if err == nil {
		err = m.copyToClipboard(string(b))
	}
	if err != nil {
		m.setStatus("Copy failed: "+err.Error(), true)
		return
	}
	m.setStatus("Result copied to clipboard", false)
}

// refreshRemoteCmd fetches server history. The list arrives through the
// fetcher's change notification.
func (m *Model) refreshRemoteCmd() tea.Cmd {
	ctx, f := m.ctx, m.app.Remote
	return func() tea.Msg {
		f.Refresh(ctx)
		return nil
	}
}

func (m *Model) loadLocalCmd() tea.Cmd {
	local := m.app.Local
	if local == nil {
		return nil
	}
	return func() tea.Msg {
		subs, err := local.List(100)
		return localHistoryMsg{subs: subs, err: err}
	}
}

func checkUpdateCmd(ctx context.Context, current string) tea.Cmd {
	return func() tea.Msg {
		update, err := version.NewChecker().CheckForUpdate(ctx, current)
		if err != nil {
			return nil
		}
		return updateCheckMsg{update: update}
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
