package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/app"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/session"
)

// AuthOptions carries credentials; missing ones are prompted for
type AuthOptions struct {
	Username      string
	Password      string
	PasswordStdin bool
}

func (o *AuthOptions) complete(in io.Reader, out io.Writer) error {
	var err error
	if o.Username == "" {
		if o.Username, err = promptLine(in, out, "Username: "); err != nil {
			return err
		}
	}
	if o.Password == "" {
		if o.PasswordStdin {
			o.Password, err = readLine(in)
		} else {
			o.Password, err = promptSecret(in, out, "Password: ")
		}
		if err != nil {
			return err
		}
	}
	if o.Username == "" || o.Password == "" {
		return errors.New("username and password are required")
	}
	return nil
}

// Login authenticates and stores the session token
func Login(ctx context.Context, a *app.App, opts AuthOptions, in io.Reader, out io.Writer) error {
	if err := opts.complete(in, out); err != nil {
		return err
	}
	msg, err := a.Login(ctx, opts.Username, opts.Password)
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "Login successful"
	}
	fmt.Fprintf(out, "%s%s%s\n", colorGreen, msg, colorReset)
	return nil
}

// Register creates an account. It does not log in.
func Register(ctx context.Context, a *app.App, opts AuthOptions, in io.Reader, out io.Writer) error {
	if err := opts.complete(in, out); err != nil {
		return err
	}
	msg, err := a.Register(ctx, opts.Username, opts.Password)
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "Registration successful"
	}
	fmt.Fprintf(out, "%s%s%s\n", colorGreen, msg, colorReset)
	return nil
}

// Logout forgets the stored token
func Logout(a *app.App, out io.Writer) error {
	if !a.Session.Authenticated() {
		fmt.Fprintln(out, "Not logged in")
		return nil
	}
	if err := a.Logout(); err != nil {
		return fmt.Errorf("logged out, but failed to update the session file: %w", err)
	}
	fmt.Fprintln(out, "Logged out")
	return nil
}

// statusReport is what `status` prints in json/yaml
type statusReport struct {
	BaseURL        string     `json:"baseUrl"`
	Variant        string     `json:"variant"`
	Authenticated  bool       `json:"authenticated"`
	User           string     `json:"user,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	HistoryEnabled bool       `json:"historyEnabled"`
	LocalEntries   int        `json:"localEntries"`
}

// Status prints the configured endpoint and session
func Status(a *app.App, opts OutputOptions, out io.Writer) error {
	r := statusReport{
		BaseURL:        a.Settings.BaseURL,
		Variant:        string(a.Settings.Variant),
		Authenticated:  a.Session.Authenticated(),
		HistoryEnabled: a.HistoryEnabled(),
	}

	claims, err := a.Session.Claims()
	switch {
	case err == nil:
		r.User = claims.Subject
		if !claims.ExpiresAt.IsZero() {
			r.ExpiresAt = &claims.ExpiresAt
		}
	case !errors.Is(err, session.ErrNotAuthenticated):
		a.Logger.Debug("token claims unreadable")
	}

	if a.Local != nil {
		if n, err := a.Local.Count(); err == nil {
			r.LocalEntries = n
		}
	}

	if opts.Format == FormatJSON || opts.Format == FormatYAML {
		s, err := encode(r, opts)
		if err != nil {
			return err
		}
		return write(out, s, opts)
	}

	fmt.Fprintf(out, "API:      %s (%s)\n", r.BaseURL, r.Variant)
	switch {
	case !r.Authenticated:
		fmt.Fprintln(out, "Session:  anonymous")
	case r.User == "":
		fmt.Fprintln(out, "Session:  logged in")
	default:
		fmt.Fprintf(out, "Session:  logged in as %s\n", r.User)
	}
	if r.ExpiresAt != nil {
		state := "expires"
		if r.ExpiresAt.Before(time.Now()) {
			state = colorRed + "expired" + colorReset
		}
		fmt.Fprintf(out, "Token:    %s %s\n", state, r.ExpiresAt.Local().Format(time.RFC1123))
	}
	fmt.Fprintf(out, "History:  %v (%d local entries)\n", r.HistoryEnabled, r.LocalEntries)
	return nil
}
