package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/api"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/types"
)

// ErrNotAuthenticated is returned when an operation needs a token
var ErrNotAuthenticated = errors.New("not logged in")

// Event is a session transition
type Event int

const (
	EventLogin Event = iota + 1
	EventLogout
)

func (e Event) String() string {
	switch e {
	case EventLogin:
		return "login"
	case EventLogout:
		return "logout"
	}
	return "unknown"
}

// Authenticator is the server side of login and register
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*api.LoginResponse, error)
	Register(ctx context.Context, username, password string) (string, error)
}

// Manager owns the bearer token. It is read once by Load and written only
// on login and logout.
type Manager struct {
	mu      sync.RWMutex
	store   Store
	session types.Session
	logger  *zap.Logger

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

// NewManager creates a manager backed by store
func NewManager(store Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:  store,
		logger: logger,
		subs:   make(map[int]func(Event)),
	}
}

// Load reads the persisted session
func (m *Manager) Load() error {
	sess, err := m.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if sess.HistoryEnabled == nil {
		enabled := true
		sess.HistoryEnabled = &enabled
	}

	m.mu.Lock()
	m.session = *sess
	m.mu.Unlock()
	return nil
}

// Token returns the bearer token, or "" when anonymous
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session.Token
}

// Authenticated reports whether a token is held
func (m *Manager) Authenticated() bool {
	return m.Token() != ""
}

// Login authenticates against the server and persists the returned token.
// The server message is returned as-is. Failures are *api.AuthError.
func (m *Manager) Login(ctx context.Context, auth Authenticator, username, password string) (string, error) {
	resp, err := auth.Login(ctx, username, password)
	if err != nil {
		m.logger.Info("login failed", zap.String("username", username), zap.Error(err))
		return "", err
	}

	m.mu.Lock()
	m.session.Token = resp.Token
	err = m.saveLocked()
	m.mu.Unlock()
	if err != nil {
		return resp.Message, err
	}

	m.logger.Info("logged in", zap.String("username", username))
	m.emit(EventLogin)
	return resp.Message, nil
}

// Register creates an account without logging in
func (m *Manager) Register(ctx context.Context, auth Authenticator, username, password string) (string, error) {
	msg, err := auth.Register(ctx, username, password)
	if err != nil {
		m.logger.Info("register failed", zap.String("username", username), zap.Error(err))
		return "", err
	}
	return msg, nil
}

// Logout forgets the token. It never touches the network; the in-memory
// token is cleared even if persisting fails.
func (m *Manager) Logout() error {
	m.mu.Lock()
	had := m.session.Token != ""
	m.session.Token = ""
	err := m.saveLocked()
	m.mu.Unlock()

	if had {
		m.logger.Info("logged out")
	}
	m.emit(EventLogout)
	return err
}

// Subscribe registers fn for login/logout events and returns a function
// that removes it. fn runs on the caller's goroutine.
func (m *Manager) Subscribe(fn func(Event)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.subMu.Lock()
		delete(m.subs, id)
		m.subMu.Unlock()
	}
}

func (m *Manager) emit(e Event) {
	m.subMu.Lock()
	fns := make([]func(Event), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}

// IsHistoryEnabled returns whether the local submission log is written
func (m *Manager) IsHistoryEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session.HistoryEnabled == nil {
		return true
	}
	return *m.session.HistoryEnabled
}

// SetHistoryEnabled toggles the local submission log
func (m *Manager) SetHistoryEnabled(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.HistoryEnabled = &enabled
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	sess := m.session
	return m.store.Save(&sess)
}

// Claims is what the client can read from a JWT without the signing key
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Claims decodes the token's payload for display. The signature is not
// verified and the result must not be used for authorization.
func (m *Manager) Claims() (*Claims, error) {
	token := m.Token()
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, &jwt.RegisteredClaims{})
	if err != nil {
		return nil, fmt.Errorf("token is not a readable JWT: %w", err)
	}

	rc, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", parsed.Claims)
	}

	c := &Claims{Subject: rc.Subject}
	if rc.IssuedAt != nil {
		c.IssuedAt = rc.IssuedAt.Time
	}
	if rc.ExpiresAt != nil {
		c.ExpiresAt = rc.ExpiresAt.Time
	}
	return c, nil
}
