package keybinds

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      ValidationError
		expected string
	}{
		{
			name:     "conflict error",
			err:      ValidationError{Type: "conflict", Context: ContextForm, Key: "enter", Message: "bound to both submit and quit"},
			expected: "[conflict] enter in context 'form': bound to both submit and quit",
		},
		{
			name:     "invalid error",
			err:      ValidationError{Type: "invalid", Context: ContextGlobal, Message: "empty key"},
			expected: "[invalid]  in context 'global': empty key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestValidationResult_String(t *testing.T) {
	empty := &ValidationResult{}
	if empty.String() != "No issues found" {
		t.Errorf("String() = %q", empty.String())
	}

	r := &ValidationResult{
		Errors:   []ValidationError{{Type: "invalid", Context: ContextForm, Key: "x", Message: "bad"}},
		Warnings: []ValidationError{{Type: "warning", Context: ContextAuth, Key: "y", Message: "meh"}},
	}
	s := r.String()
	if !strings.Contains(s, "Errors (1)") || !strings.Contains(s, "Warnings (1)") {
		t.Errorf("String() = %q", s)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		wantErrors   int
		wantWarnings int
	}{
		{
			name: "valid override",
			cfg:  Config{ContextForm: {ActionSubmit: "enter,ctrl+s"}},
		},
		{
			name:       "unknown context",
			cfg:        Config{"sidebar": {ActionSubmit: "enter"}},
			wantErrors: 1,
		},
		{
			name:       "unknown action",
			cfg:        Config{ContextForm: {"open_profiles": "p"}},
			wantErrors: 1,
		},
		{
			name:       "conflict",
			cfg:        Config{ContextForm: {ActionSubmit: "ctrl+s", ActionQuit: "ctrl+s"}},
			wantErrors: 1,
		},
		{
			name:       "bare modifier",
			cfg:        Config{ContextForm: {ActionSubmit: "ctrl+"}},
			wantErrors: 1,
		},
		{
			name:         "reserved key",
			cfg:          Config{ContextGlobal: {ActionQuit: "ctrl+c"}},
			wantWarnings: 1,
		},
		{
			name:         "shadows global",
			cfg:          Config{ContextForm: {ActionSubmit: "ctrl+l"}},
			wantWarnings: 1,
		},
		{
			name:         "unbound action",
			cfg:          Config{ContextForm: {ActionCopyResult: ""}},
			wantWarnings: 1,
		},
	}

	v := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := v.ValidateConfig(tt.cfg)
			if (len(r.Errors) > 0) != (tt.wantErrors > 0) {
				t.Errorf("errors = %v, want %d", r.Errors, tt.wantErrors)
			}
			if len(r.Warnings) != tt.wantWarnings {
				t.Errorf("warnings = %v, want %d", r.Warnings, tt.wantWarnings)
			}
		})
	}
}

func TestValidateKey(t *testing.T) {
	for _, key := range []string{"a", "ctrl+a", "enter", "shift+tab"} {
		if err := ValidateKey(key); err != nil {
			t.Errorf("ValidateKey(%q) = %v", key, err)
		}
	}
	for _, key := range []string{"", "ctrl+", "alt+"} {
		if err := ValidateKey(key); err == nil {
			t.Errorf("ValidateKey(%q) succeeded", key)
		}
	}
}

func TestRegistryMatchFallsBackToGlobal(t *testing.T) {
	r := NewDefaultRegistry()

	if a, ok := r.Match(ContextForm, "enter"); !ok || a != ActionSubmit {
		t.Errorf("form enter = %v, %v", a, ok)
	}
	if a, ok := r.Match(ContextAuth, "enter"); !ok || a != ActionConfirm {
		t.Errorf("auth enter = %v, %v", a, ok)
	}
	if a, ok := r.Match(ContextHistory, "ctrl+y"); !ok || a != ActionCopyResult {
		t.Errorf("history ctrl+y = %v, %v", a, ok)
	}
	if _, ok := r.Match(ContextForm, "z"); ok {
		t.Error("z should be unbound")
	}
	if got := r.KeyString(ContextForm, ActionScrollUp); got != "ctrl+u/pgup" {
		t.Errorf("KeyString = %q", got)
	}
}

func TestLoadOrDefault(t *testing.T) {
	dir := t.TempDir()

	r, _, err := LoadOrDefault(filepath.Join(dir, "missing.json"))
	if err != nil || r == nil {
		t.Fatalf("missing file: %v", err)
	}

	path := filepath.Join(dir, "keybinds.json")
	os.WriteFile(path, []byte(`{
  // submit with ctrl+s only
  "form": {"submit": "ctrl+s"}
}`), 0644)

	r, _, err = LoadOrDefault(path)
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}
	if _, ok := r.Match(ContextForm, "enter"); ok {
		t.Error("enter should no longer submit")
	}
	if a, _ := r.Match(ContextForm, "ctrl+s"); a != ActionSubmit {
		t.Errorf("ctrl+s = %v", a)
	}

	os.WriteFile(path, []byte(`{"form": {"teleport": "t"}}`), 0644)
	if _, res, err := LoadOrDefault(path); err == nil || !res.HasErrors() {
		t.Error("expected an unknown action to be rejected")
	}
}
