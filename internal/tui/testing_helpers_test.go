package tui

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/app"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/config"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/keybinds"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/mock"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/session"
)

// newTestModel wires a model to an in-process mock API with one user
func newTestModel(t *testing.T, mutate func(*mock.Config)) (*Model, *app.App) {
	t.Helper()

	cfg := mock.DefaultConfig()
	cfg.Logging = false
	cfg.Users = []mock.User{{Username: "ada", Password: "secret"}}
	if mutate != nil {
		mutate(cfg)
	}
	srv, err := mock.NewServer(cfg, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())

	s := config.DefaultSettings()
	s.BaseURL = ts.URL
	a, err := app.New(app.Options{
		Settings: s,
		Store:    &session.MemoryStore{},
		LocalDB:  ":memory:",
	})
	require.NoError(t, err)

	m := New(context.Background(), a, keybinds.NewDefaultRegistry(), Options{Version: "test"})
	t.Cleanup(func() {
		m.Close()
		assert.NoError(t, a.Close())
		ts.Close()
	})

	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, a
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "f1":
		return tea.KeyMsg{Type: tea.KeyF1}
	case "ctrl+h":
		return tea.KeyMsg{Type: tea.KeyCtrlH}
	case "ctrl+l":
		return tea.KeyMsg{Type: tea.KeyCtrlL}
	case "ctrl+o":
		return tea.KeyMsg{Type: tea.KeyCtrlO}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	case "ctrl+x":
		return tea.KeyMsg{Type: tea.KeyCtrlX}
	case "ctrl+y":
		return tea.KeyMsg{Type: tea.KeyCtrlY}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// press sends one key and returns the command it produced
func press(m *Model, k string) tea.Cmd {
	_, cmd := m.Update(keyMsg(k))
	return cmd
}

// typeText sends each rune as its own key press
func typeText(m *Model, s string) {
	for _, r := range s {
		m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

// waitFor runs cmd (expanding batches concurrently) and returns the first
// message of type T. Commands that block, such as the state listeners,
// are left running.
func waitFor[T tea.Msg](t *testing.T, cmd tea.Cmd) T {
	t.Helper()
	require.NotNil(t, cmd)

	out := make(chan tea.Msg, 64)
	var run func(tea.Cmd)
	run = func(c tea.Cmd) {
		if c == nil {
			return
		}
		go func() {
			msg := c()
			if batch, ok := msg.(tea.BatchMsg); ok {
				for _, sub := range batch {
					run(sub)
				}
				return
			}
			if msg != nil {
				select {
				case out <- msg:
				default:
				}
			}
		}()
	}
	run(cmd)

	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg := <-out:
			if v, ok := msg.(T); ok {
				return v
			}
		case <-timeout:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}
