package keybinds

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/jsonc"
)

// Config is keybinds.json: context → action → comma-separated keys.
// Listing an action replaces all of its default keys in that context.
type Config map[Context]map[Action]string

// LoadConfig reads a keybinds file; comments are allowed
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
		return nil, fmt.Errorf("invalid keybinds.json format: %w", err)
	}
	return cfg, nil
}

// Apply overrides registry bindings with cfg
func (cfg Config) Apply(r *Registry) {
	for context, actions := range cfg {
		for action, keys := range actions {
			r.Unbind(context, action)
			for _, key := range splitKeys(keys) {
				r.Register(context, key, action)
			}
		}
	}
}

func splitKeys(s string) []string {
	var out []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// LoadOrDefault returns the defaults with path applied when it exists.
// The config is validated first; errors reject it, warnings are returned.
func LoadOrDefault(path string) (*Registry, *ValidationResult, error) {
	r := NewDefaultRegistry()
	if path == "" {
		return r, &ValidationResult{}, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return r, &ValidationResult{}, nil
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load keybinds.json: %w", err)
	}

	result := NewValidator().ValidateConfig(cfg)
	if result.HasErrors() {
		return nil, result, fmt.Errorf("invalid keybinds.json:\n%s", result.String())
	}
	cfg.Apply(r)
	return r, result, nil
}
