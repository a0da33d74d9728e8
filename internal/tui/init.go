package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/app"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/keybinds"
)

// Run starts the TUI and blocks until the user quits
func Run(ctx context.Context, a *app.App, keys *keybinds.Registry, opts Options) error {
	m := New(ctx, a, keys, opts)
	defer m.Close()

	// Update uses pointer receivers
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
