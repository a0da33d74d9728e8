package tui

import (
	"context"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/app"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/keybinds"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/types"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/version"
)

// Mode is the view that receives keys
type Mode int

const (
	ModeForm Mode = iota
	ModeAuth
	ModeHistory
	ModeHelp
	ModeAlert
)

type field int

const (
	fieldValues field = iota
	fieldFile
)

// Messages
type (
	stateChangedMsg   struct{}
	historyChangedMsg struct{}
	submitDoneMsg     struct{ err error }
	authDoneMsg       struct {
		mode    authMode
		message string
		err     error
	}
	localHistoryMsg struct {
		subs []types.Submission
		err  error
	}
	updateCheckMsg struct{ update *version.Update }
)

// Options configures the model
type Options struct {
	Version      string
	CheckUpdates bool
}

// Model is the TUI state
type Model struct {
	app  *app.App
	keys *keybinds.Registry
	opts Options
	ctx  context.Context

	mode        Mode
	alertReturn Mode
	focus       field

	values     textinput.Model
	file       textinput.Model
	spinner    spinner.Model
	resultView viewport.Model

	state   types.RequestState
	pending bool // a Submit command is running

	auth    *AuthState
	history *HistoryPanel

	alert     string
	status    string
	statusErr bool

	// coalescing wakeups from the orchestrator and history fetcher
	stateCh   chan struct{}
	historyCh chan struct{}
	detach    []func()

	copyToClipboard func(string) error

	width  int
	height int
}

// New creates the model and subscribes it to the app's components. Call
// Close when the program exits.
func New(ctx context.Context, a *app.App, keys *keybinds.Registry, opts Options) *Model {
	if keys == nil {
		keys = keybinds.NewDefaultRegistry()
	}

	values := textinput.New()
	values.Placeholder = "e.g. 1.2, 0.5, -0.8"
	values.Prompt = "› "
	values.Focus()

	file := textinput.New()
	file.Placeholder = "path/to/expression.csv"
	file.Prompt = "› "

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styleWarning

	m := &Model{
		app:             a,
		keys:            keys,
		opts:            opts,
		ctx:             ctx,
		values:          values,
		file:            file,
		spinner:         sp,
		resultView:      viewport.New(80, 10),
		state:           a.Orchestrator.State(),
		auth:            NewAuthState(),
		history:         NewHistoryPanel(),
		stateCh:         make(chan struct{}, 1),
		historyCh:       make(chan struct{}, 1),
		copyToClipboard: clipboard.WriteAll,
	}

	m.detach = append(m.detach, a.Orchestrator.Subscribe(func(types.RequestState) {
		wake(m.stateCh)
	}))
	a.Remote.OnChange(func() { wake(m.historyCh) })
	m.detach = append(m.detach, func() { a.Remote.OnChange(nil) })

	m.history.SetServer(a.Remote.Entries())
	m.refreshResult()
	return m
}

// Close unsubscribes from the app
func (m *Model) Close() {
	for _, fn := range m.detach {
		fn()
	}
	m.detach = nil
}

func wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func listen(ch <-chan struct{}, msg tea.Msg) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return msg
	}
}

// Init starts the listeners, refreshes history for a stored session and
// optionally checks for a newer release
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		listen(m.stateCh, stateChangedMsg{}),
		listen(m.historyCh, historyChangedMsg{}),
	}
	if m.app.Session.Authenticated() {
		cmds = append(cmds, m.refreshRemoteCmd())
	}
	if m.opts.CheckUpdates && m.opts.Version != "" {
		cmds = append(cmds, checkUpdateCmd(m.ctx, m.opts.Version))
	}
	return tea.Batch(cmds...)
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case stateChangedMsg:
		wasLoading := m.state.Loading()
		m.state = m.app.Orchestrator.State()
		m.refreshResult()
		cmds := []tea.Cmd{listen(m.stateCh, stateChangedMsg{})}
		if m.state.Loading() && !wasLoading {
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case submitDoneMsg:
		m.pending = false
		m.state = m.app.Orchestrator.State()
		m.refreshResult()
		if m.state.Status == types.StatusFailed {
			m.setStatus("Prediction failed", true)
		} else if m.state.Status == types.StatusSuccess {
			m.setStatus("Prediction complete", false)
		}
		return m, nil

	case historyChangedMsg:
		m.history.SetServer(m.app.Remote.Entries())
		return m, listen(m.historyCh, historyChangedMsg{})

	case localHistoryMsg:
		if msg.err != nil {
			m.setStatus("Failed to read local history: "+msg.err.Error(), true)
			return m, nil
		}
		m.history.SetLocal(msg.subs)
		return m, nil

	case authDoneMsg:
		return m, m.handleAuthDone(msg)

	case updateCheckMsg:
		if msg.update != nil && msg.update.Available {
			m.setStatus("Update available: v"+msg.update.Latest+" ("+msg.update.URL+")", false)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.loading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refreshResult()
		return m, cmd
	}

	// cursor blink and other input messages; each input ignores foreign ids
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.values, cmd = m.values.Update(msg)
	cmds = append(cmds, cmd)
	m.file, cmd = m.file.Update(msg)
	cmds = append(cmds, cmd)
	cmds = append(cmds, m.auth.Update(msg))
	m.history.filter, cmd = m.history.filter.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// loading is true from the keypress until the orchestrator commits
func (m *Model) loading() bool {
	return m.pending || m.state.Loading()
}

// fileSelected disables the values input
func (m *Model) fileSelected() bool {
	return strings.TrimSpace(m.file.Value()) != ""
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

func (m *Model) showAlert(text string) {
	if m.mode != ModeAlert {
		m.alertReturn = m.mode
	}
	m.alert = text
	m.mode = ModeAlert
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	inner := max(width-boxFrameWidth, 10)
	m.values.Width = inner - 3
	m.file.Width = inner - 3
	m.resultView.Width = inner
	m.resultView.Height = max(height-headerHeight-footerHeight-formHeight-boxFrameHeight, 3)
	m.refreshResult()
}

func (m *Model) refreshResult() {
	m.resultView.SetContent(m.renderResult(m.resultView.Width))
}
