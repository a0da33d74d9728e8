package keybinds

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError describes one problem with a binding
type ValidationError struct {
	Type    string // "conflict", "invalid", "warning"
	Context Context
	Key     string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s in context '%s': %s", e.Type, e.Key, e.Context, e.Message)
}

// ValidationResult collects errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

func (r *ValidationResult) HasErrors() bool   { return len(r.Errors) > 0 }
func (r *ValidationResult) HasWarnings() bool { return len(r.Warnings) > 0 }

func (r *ValidationResult) String() string {
	if !r.HasErrors() && !r.HasWarnings() {
		return "No issues found"
	}

	var sb strings.Builder
	if r.HasErrors() {
		fmt.Fprintf(&sb, "Errors (%d):\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(&sb, "  - %s\n", e.Error())
		}
	}
	if r.HasWarnings() {
		fmt.Fprintf(&sb, "Warnings (%d):\n", len(r.Warnings))
		for _, w := range r.Warnings {
			fmt.Fprintf(&sb, "  - %s\n", w.Error())
		}
	}
	return sb.String()
}

// Validator checks configs before they are applied
type Validator struct {
	reservedKeys map[string]Action
}

// NewValidator creates a validator. ctrl+c always force-quits.
func NewValidator() *Validator {
	return &Validator{
		reservedKeys: map[string]Action{"ctrl+c": ActionQuitForce},
	}
}

// ValidateConfig checks contexts, actions and keys, and finds keys that
// the config binds to two actions in one context
func (v *Validator) ValidateConfig(cfg Config) *ValidationResult {
	result := &ValidationResult{}

	for context, actions := range cfg {
		if !slices.Contains(Contexts, context) {
			result.Errors = append(result.Errors, ValidationError{
				Type: "invalid", Context: context, Message: "unknown context",
			})
			continue
		}

		owner := make(map[string]Action)
		for action, keys := range actions {
			if err := ValidateAction(action); err != nil {
				result.Errors = append(result.Errors, ValidationError{
					Type: "invalid", Context: context, Key: keys, Message: err.Error(),
				})
				continue
			}
			parsed := splitKeys(keys)
			if len(parsed) == 0 {
				result.Warnings = append(result.Warnings, ValidationError{
					Type: "warning", Context: context, Message: fmt.Sprintf("action %s left unbound", action),
				})
			}
			for _, key := range parsed {
				if err := ValidateKey(key); err != nil {
					result.Errors = append(result.Errors, ValidationError{
						Type: "invalid", Context: context, Key: key, Message: err.Error(),
					})
					continue
				}
				if prev, ok := owner[key]; ok && prev != action {
					result.Errors = append(result.Errors, ValidationError{
						Type: "conflict", Context: context, Key: key,
						Message: fmt.Sprintf("bound to both %s and %s", prev, action),
					})
				}
				owner[key] = action
				if reserved, ok := v.reservedKeys[key]; ok && reserved != action {
					result.Warnings = append(result.Warnings, ValidationError{
						Type: "warning", Context: context, Key: key,
						Message: "reserved key rebound (may cause issues)",
					})
				}
			}
		}
	}

	v.checkShadowing(cfg, result)
	return result
}

// checkShadowing warns when a context binds a key the global context uses
func (v *Validator) checkShadowing(cfg Config, result *ValidationResult) {
	global := NewDefaultRegistry()
	Config{ContextGlobal: cfg[ContextGlobal]}.Apply(global)

	for context, actions := range cfg {
		if context == ContextGlobal {
			continue
		}
		for action, keys := range actions {
			for _, key := range splitKeys(keys) {
				if g, ok := global.bindings[ContextGlobal][key]; ok && g != action {
					result.Warnings = append(result.Warnings, ValidationError{
						Type: "warning", Context: context, Key: key,
						Message: fmt.Sprintf("shadows global binding (%s -> %s)", g, action),
					})
				}
			}
		}
	}
}

// ValidateKey rejects empty keys and bare modifiers
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	for _, mod := range []string{"ctrl+", "alt+", "shift+"} {
		if key == mod {
			return fmt.Errorf("modifier without key: %s", key)
		}
	}
	return nil
}

// ValidateAction rejects actions the TUI does not handle
func ValidateAction(action Action) error {
	if action == "" {
		return fmt.Errorf("action cannot be empty")
	}
	if !knownActions[action] {
		return fmt.Errorf("unknown action %q", action)
	}
	return nil
}
