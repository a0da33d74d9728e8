package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/app"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/config"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/mock"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/session"
)

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	cfg := mock.DefaultConfig()
	cfg.Users = []mock.User{{Username: "ada", Password: "secret"}}
	srv, err := mock.NewServer(cfg, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())

	s := config.DefaultSettings()
	s.BaseURL = ts.URL
	s.CacheTTL = 0
	a, err := app.New(app.Options{Settings: s, Store: &session.MemoryStore{}, LocalDB: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Close()
		ts.Close()
	})
	return a
}

func TestPredictCommand(t *testing.T) {
	a := newTestApp(t)
	var out bytes.Buffer

	err := Predict(context.Background(), a, PredictOptions{
		Values:        "2, 3, 4",
		OutputOptions: OutputOptions{Format: FormatJSON, Query: "result.RandomForestPrediction"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, `"Disease A"`, strings.TrimSpace(out.String()))
}

func TestPredictCommandFailure(t *testing.T) {
	a := newTestApp(t)
	var out bytes.Buffer

	err := Predict(context.Background(), a, PredictOptions{
		Values:        "1, abc",
		OutputOptions: OutputOptions{Format: FormatText},
	}, &out)
	assert.True(t, errors.Is(err, ErrRequestFailed))
	assert.Contains(t, out.String(), `"abc"`)
}

func TestLoginStatusLogout(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	var out bytes.Buffer

	require.NoError(t, Login(ctx, a, AuthOptions{PasswordStdin: true}, strings.NewReader("ada\nsecret\n"), &out))
	assert.Contains(t, out.String(), "Login successful")

	out.Reset()
	require.NoError(t, Status(a, OutputOptions{Format: FormatText}, &out))
	assert.Contains(t, out.String(), "logged in as ada")

	out.Reset()
	require.NoError(t, Logout(a, &out))
	assert.Contains(t, out.String(), "Logged out")
	assert.False(t, a.Session.Authenticated())
}

func TestLoginRejected(t *testing.T) {
	a := newTestApp(t)
	err := Login(context.Background(), a, AuthOptions{Username: "ada", Password: "nope"}, strings.NewReader(""), &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", err.Error())
}

func TestRegisterCommand(t *testing.T) {
	a := newTestApp(t)
	var out bytes.Buffer
	require.NoError(t, Register(context.Background(), a, AuthOptions{Username: "bob", Password: "pw"}, strings.NewReader(""), &out))
	assert.Contains(t, out.String(), "User registered successfully")
	assert.False(t, a.Session.Authenticated())
}

func TestHistoryCommands(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	var out bytes.Buffer

	err := History(ctx, a, OutputOptions{Format: FormatText}, &out)
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)

	require.NoError(t, Login(ctx, a, AuthOptions{Username: "ada", Password: "secret"}, nil, &bytes.Buffer{}))
	require.NoError(t, Predict(ctx, a, PredictOptions{Values: "0.5", OutputOptions: OutputOptions{Format: FormatBody}}, &bytes.Buffer{}))

	out.Reset()
	require.NoError(t, History(ctx, a, OutputOptions{Format: FormatText}, &out))
	assert.Contains(t, out.String(), "Disease B")

	out.Reset()
	require.NoError(t, LocalHistory(a, 10, OutputOptions{Format: FormatText}, &out))
	assert.Contains(t, out.String(), "#1")

	out.Reset()
	require.NoError(t, HistoryStats(a, a.Settings.BaseURL, OutputOptions{Format: FormatText}, &out))
	assert.Contains(t, out.String(), "Submissions: 1 (1 ok, 0 failed, 100% success)")
	assert.Contains(t, out.String(), "Disease B:")

	out.Reset()
	require.NoError(t, HistoryStats(a, "", OutputOptions{Format: FormatJSON, Query: "[0].total"}, &out))
	assert.Equal(t, "1", strings.TrimSpace(out.String()))

	out.Reset()
	require.NoError(t, ClearLocalHistory(a, &out))
	assert.Contains(t, out.String(), "Removed 1")

	out.Reset()
	require.NoError(t, HistoryStats(a, "", OutputOptions{Format: FormatText}, &out))
	assert.Contains(t, out.String(), "No local submissions")
}

func TestChatOneShot(t *testing.T) {
	a := newTestApp(t)
	var out bytes.Buffer
	require.NoError(t, Chat(context.Background(), a, "hello", nil, &out))
	assert.NotEmpty(t, strings.TrimSpace(out.String()))
}
