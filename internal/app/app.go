// Package app wires the client components together for the CLI and TUI.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/analytics"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/api"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/cache"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/chatbot"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/config"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/executor"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/history"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/input"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/orchestrator"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/session"
)

// Options configures New
type Options struct {
	Settings config.Settings
	Logger   *zap.Logger
	// Store defaults to the session file under the config dir
	Store session.Store
	// LocalDB is the sqlite path for the submission log; empty disables it
	LocalDB string
}

// App holds one wired client. Close releases it.
type App struct {
	Settings     config.Settings
	Logger       *zap.Logger
	Client       *api.Client
	Session      *session.Manager
	Remote       *history.Fetcher
	Local        *history.LocalStore
	Stats        *analytics.Manager
	Orchestrator *orchestrator.Orchestrator
	Chat         *chatbot.Conversation

	cache  *cache.Transport
	ctx    context.Context
	cancel context.CancelFunc
	detach []func()
}

// New loads the session and builds every component
func New(opts Options) (*App, error) {
	s := opts.Settings
	if err := s.Validate(); err != nil {
		return nil, err
	}
	policy, err := input.ParsePolicy(s.NaNPolicy)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{Settings: s, Logger: logger}

	var cacheErr error
	exec, err := executor.New(executor.Options{
		TLS:     s.TLS,
		Timeout: s.Timeout,
		Logger:  logger.Named("http"),
		Wrap: func(next http.RoundTripper) http.RoundTripper {
			if s.CacheTTL <= 0 {
				return next
			}
			t, err := cache.New(next, s.BaseURL, s.CacheTTL, cache.WithLogger(logger.Named("cache")))
			if err != nil {
				cacheErr = err
				return next
			}
			a.cache = t
			return t
		},
	})
	if err != nil {
		return nil, err
	}
	if cacheErr != nil {
		return nil, fmt.Errorf("failed to set up response cache: %w", cacheErr)
	}

	store := opts.Store
	if store == nil {
		store = session.NewFileStore()
	}
	a.Session = session.NewManager(store, logger.Named("session"))
	if err := a.Session.Load(); err != nil {
		return nil, err
	}

	a.Client = api.NewClient(s.BaseURL, exec,
		api.WithTokenSource(a.Session),
		api.WithLogger(logger.Named("api")))

	if opts.LocalDB != "" {
		local, err := history.OpenLocal(opts.LocalDB)
		if err != nil {
			// the log is optional; predictions still work without it
			logger.Warn("local submission log unavailable", zap.String("path", opts.LocalDB), zap.Error(err))
		} else {
			a.Local = local
			a.Stats = analytics.NewManager(local.DB(), analytics.DefaultTTL)
		}
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithPolicy(policy),
		orchestrator.WithLogger(logger.Named("orchestrator")),
	}
	if a.Local != nil {
		orchOpts = append(orchOpts, orchestrator.WithRecorder(a.Local, a.HistoryEnabled))
	}
	a.Orchestrator = orchestrator.New(a.Client, orchOpts...)

	a.Remote = history.NewFetcher(a.Client, logger.Named("history"))
	a.Chat = chatbot.New(a.Client, logger.Named("chatbot"))

	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.detach = append(a.detach,
		a.Remote.Attach(a.ctx, a.Session),
		a.Session.Subscribe(func(e session.Event) {
			if e == session.EventLogout && a.cache != nil {
				a.cache.Purge()
			}
		}),
	)

	return a, nil
}

// HistoryEnabled reports whether submissions go to the local log. Both
// the settings file and the session flag must allow it.
func (a *App) HistoryEnabled() bool {
	return a.Settings.HistoryEnabled && a.Session.IsHistoryEnabled()
}

// Login authenticates and, through the session event, refreshes the
// remote history in the background
func (a *App) Login(ctx context.Context, username, password string) (string, error) {
	return a.Session.Login(ctx, a.Client, username, password)
}

// Register creates an account without logging in
func (a *App) Register(ctx context.Context, username, password string) (string, error) {
	return a.Session.Register(ctx, a.Client, username, password)
}

// Logout drops the token, the remote history and cached responses
func (a *App) Logout() error {
	return a.Session.Logout()
}

// RefreshHistory fetches GET /history when a token is held
func (a *App) RefreshHistory(ctx context.Context) error {
	if !a.Session.Authenticated() {
		return session.ErrNotAuthenticated
	}
	if !a.Remote.Refresh(ctx) {
		return errors.New("failed to fetch history")
	}
	return nil
}

// CacheStats returns response cache counters; ok is false when caching is off
func (a *App) CacheStats() (cache.Stats, bool) {
	if a.cache == nil {
		return cache.Stats{}, false
	}
	return a.cache.Stats(), true
}

// Close cancels pending work and releases resources
func (a *App) Close() error {
	a.Orchestrator.Cancel()
	for _, fn := range a.detach {
		fn()
	}
	a.cancel()
	a.Remote.Wait()

	if a.cache != nil {
		a.cache.Close()
	}

	var errs []error
	if a.Local != nil {
		errs = append(errs, a.Local.Close())
	}
	_ = a.Logger.Sync()
	return errors.Join(errs...)
}
