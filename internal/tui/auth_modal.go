package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// authMode is what confirming the modal does
type authMode int

const (
	authLogin authMode = iota
	authRegister
)

func (m authMode) String() string {
	if m == authRegister {
		return "Register"
	}
	return "Login"
}

// AuthState is the login/register modal
type AuthState struct {
	mode     authMode
	focus    int // 0 username, 1 password
	username textinput.Model
	password textinput.Model
	busy     bool
}

// NewAuthState creates the modal in login mode
func NewAuthState() *AuthState {
	u := textinput.New()
	u.Placeholder = "username"
	u.CharLimit = 64

	p := textinput.New()
	p.Placeholder = "password"
	p.EchoMode = textinput.EchoPassword
	p.EchoCharacter = '•'
	p.CharLimit = 128

	return &AuthState{username: u, password: p}
}

// Open resets the password and focuses the first empty field
func (a *AuthState) Open() tea.Cmd {
	a.password.SetValue("")
	a.busy = false
	if a.username.Value() == "" {
		return a.setFocus(0)
	}
	return a.setFocus(1)
}

// SwitchMode toggles login and register
func (a *AuthState) SwitchMode() {
	if a.mode == authLogin {
		a.mode = authRegister
	} else {
		a.mode = authLogin
	}
}

// NextField moves focus between the two inputs
func (a *AuthState) NextField() tea.Cmd {
	return a.setFocus((a.focus + 1) % 2)
}

func (a *AuthState) setFocus(i int) tea.Cmd {
	a.focus = i
	if i == 0 {
		a.password.Blur()
		return a.username.Focus()
	}
	a.username.Blur()
	return a.password.Focus()
}

// Credentials returns the entered values and whether both are present
func (a *AuthState) Credentials() (string, string, bool) {
	u, p := a.username.Value(), a.password.Value()
	return u, p, u != "" && p != ""
}

// Update forwards a key to the focused input
func (a *AuthState) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if a.focus == 0 {
		a.username, cmd = a.username.Update(msg)
	} else {
		a.password, cmd = a.password.Update(msg)
	}
	return cmd
}
