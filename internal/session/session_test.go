package session

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/api"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/types"
)

type fakeAuth struct {
	token    string
	message  string
	err      error
	regCalls int
}

func (f *fakeAuth) Login(ctx context.Context, username, password string) (*api.LoginResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &api.LoginResponse{Token: f.token, Message: f.message}, nil
}

func (f *fakeAuth) Register(ctx context.Context, username, password string) (string, error) {
	f.regCalls++
	if f.err != nil {
		return "", f.err
	}
	return f.message, nil
}

func TestLoginPersistsToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".session.json")
	m := NewManager(&FileStore{Path: path}, nil)
	if err := m.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if m.Authenticated() {
		t.Fatal("fresh session should be anonymous")
	}

	var events []Event
	m.Subscribe(func(e Event) { events = append(events, e) })

	msg, err := m.Login(context.Background(), &fakeAuth{token: "tok", message: "Login successful"}, "ada", "pw")
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if msg != "Login successful" {
		t.Errorf("message = %q", msg)
	}
	if m.Token() != "tok" {
		t.Errorf("Token() = %q", m.Token())
	}
	if len(events) != 1 || events[0] != EventLogin {
		t.Errorf("events = %v", events)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("session file not written: %v", err)
	}
	var onDisk types.Session
	if err := json.Unmarshal(data, &onDisk); err != nil || onDisk.Token != "tok" {
		t.Errorf("on disk = %s (%v)", data, err)
	}

	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0600 {
		t.Errorf("session file mode = %v, want 0600", info.Mode().Perm())
	}

	// A second manager sees the persisted token
	m2 := NewManager(&FileStore{Path: path}, nil)
	if err := m2.Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if m2.Token() != "tok" {
		t.Errorf("reloaded Token() = %q", m2.Token())
	}
}

func TestLoginFailureKeepsAnonymous(t *testing.T) {
	m := NewManager(&MemoryStore{}, nil)
	m.Load()

	fired := false
	m.Subscribe(func(Event) { fired = true })

	authErr := &api.AuthError{Op: "login", Status: 401, Message: "Invalid credentials"}
	_, err := m.Login(context.Background(), &fakeAuth{err: authErr}, "ada", "bad")

	var ae *api.AuthError
	if !errors.As(err, &ae) || ae.Message != "Invalid credentials" {
		t.Errorf("error = %v", err)
	}
	if m.Authenticated() {
		t.Error("failed login must not authenticate")
	}
	if fired {
		t.Error("failed login must not emit an event")
	}
}

func TestRegisterDoesNotAuthenticate(t *testing.T) {
	m := NewManager(&MemoryStore{}, nil)
	m.Load()

	auth := &fakeAuth{token: "tok", message: "User registered successfully"}
	msg, err := m.Register(context.Background(), auth, "ada", "pw")
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if msg != "User registered successfully" || auth.regCalls != 1 {
		t.Errorf("msg = %q calls = %d", msg, auth.regCalls)
	}
	if m.Authenticated() {
		t.Error("register must not authenticate")
	}
}

func TestLogoutClearsWithoutNetwork(t *testing.T) {
	store := &MemoryStore{}
	store.Save(&types.Session{Token: "tok"})

	m := NewManager(store, nil)
	if err := m.Load(); err != nil {
		t.Fatal(err)
	}
	if !m.Authenticated() {
		t.Fatal("expected token from store")
	}

	var events []Event
	m.Subscribe(func(e Event) { events = append(events, e) })

	if err := m.Logout(); err != nil {
		t.Fatalf("Logout() error: %v", err)
	}
	if m.Authenticated() {
		t.Error("still authenticated after logout")
	}
	persisted, _ := store.Load()
	if persisted.Token != "" {
		t.Errorf("persisted token = %q", persisted.Token)
	}
	if len(events) != 1 || events[0] != EventLogout {
		t.Errorf("events = %v", events)
	}
}

func TestLogoutClearsMemoryEvenIfSaveFails(t *testing.T) {
	store := &MemoryStore{}
	store.Save(&types.Session{Token: "tok"})
	m := NewManager(store, nil)
	m.Load()

	store.SaveErr = errors.New("disk full")
	if err := m.Logout(); err == nil {
		t.Error("expected save error")
	}
	if m.Authenticated() {
		t.Error("token must be cleared in memory regardless")
	}
}

func TestUnsubscribe(t *testing.T) {
	m := NewManager(&MemoryStore{}, nil)
	m.Load()

	count := 0
	unsub := m.Subscribe(func(Event) { count++ })
	m.Logout()
	unsub()
	m.Logout()

	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestHistoryEnabledDefault(t *testing.T) {
	m := NewManager(&MemoryStore{}, nil)
	m.Load()
	if !m.IsHistoryEnabled() {
		t.Error("history should default to enabled")
	}
	if err := m.SetHistoryEnabled(false); err != nil {
		t.Fatal(err)
	}
	if m.IsHistoryEnabled() {
		t.Error("SetHistoryEnabled(false) not applied")
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".session.json")
	os.WriteFile(path, []byte("{not json"), 0600)

	m := NewManager(&FileStore{Path: path}, nil)
	if err := m.Load(); err == nil {
		t.Error("expected parse error")
	}
}

func TestClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ada",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("any-key"))
	if err != nil {
		t.Fatal(err)
	}

	store := &MemoryStore{}
	store.Save(&types.Session{Token: signed})
	m := NewManager(store, nil)
	m.Load()

	c, err := m.Claims()
	if err != nil {
		t.Fatalf("Claims() error: %v", err)
	}
	if c.Subject != "ada" || !c.ExpiresAt.Equal(exp) {
		t.Errorf("claims = %+v", c)
	}
}

func TestClaimsErrors(t *testing.T) {
	m := NewManager(&MemoryStore{}, nil)
	m.Load()
	if _, err := m.Claims(); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("anonymous Claims() error = %v", err)
	}

	store := &MemoryStore{}
	store.Save(&types.Session{Token: "opaque"})
	m = NewManager(store, nil)
	m.Load()
	if _, err := m.Claims(); err == nil {
		t.Error("expected error for opaque token")
	}
}
