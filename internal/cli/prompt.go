package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	promptStyle = lipgloss.NewStyle().Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

var errPromptCancelled = errors.New("input cancelled")

// readLine reads up to a newline one byte at a time, so consecutive calls
// on the same reader never lose buffered input
func readLine(in io.Reader) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				break
			}
			sb.WriteByte(buf[0])
		}
		if err == io.EOF {
			if sb.Len() == 0 {
				return "", io.ErrUnexpectedEOF
			}
			break
		}
		if err != nil {
			return "", err
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func promptLine(in io.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	return readLine(in)
}

// promptSecret reads a password without echo on a terminal, and a plain
// line otherwise
func promptSecret(in io.Reader, out io.Writer, label string) (string, error) {
	f, ok := in.(*os.File)
	if !ok || !isTerminal(f) {
		return promptLine(in, out, label)
	}

	ti := textinput.New()
	ti.Prompt = promptStyle.Render(label)
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.Focus()

	p := tea.NewProgram(secretModel{input: ti}, tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("error running prompt: %w", err)
	}

	m := final.(secretModel)
	if m.cancelled {
		return "", errPromptCancelled
	}
	return m.input.Value(), nil
}

type secretModel struct {
	input     textinput.Model
	done      bool
	cancelled bool
}

func (m secretModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m secretModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			m.done = true
			return m, tea.Quit
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m secretModel) View() string {
	if m.done {
		return ""
	}
	return m.input.View() + "\n" + helpStyle.Render("enter: submit • esc: cancel") + "\n"
}
