package mock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Prediction variants served by the mock
const (
	VariantClassic = "classic"
	VariantDeep    = "deep"
)

const defaultSecret = "genepredict-mock-secret"

// DefaultConfig is a classic-variant server on 127.0.0.1:8080
func DefaultConfig() *Config {
	return &Config{
		Port:     8080,
		Host:     "127.0.0.1",
		Variant:  VariantClassic,
		Secret:   defaultSecret,
		TokenTTL: 60,
		Logging:  true,
	}
}

// LoadConfig loads a mock configuration from a file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", ext)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// validateConfig validates the mock configuration
func validateConfig(config *Config) error {
	switch config.Variant {
	case "", VariantClassic, VariantDeep:
	default:
		return fmt.Errorf("variant must be '%s' or '%s'", VariantClassic, VariantDeep)
	}
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d out of range", config.Port)
	}
	if config.Delay < 0 {
		return fmt.Errorf("delay must not be negative")
	}

	seen := make(map[string]bool, len(config.Users))
	for i, u := range config.Users {
		if u.Username == "" || u.Password == "" {
			return fmt.Errorf("user %d: username and password are required", i)
		}
		if seen[u.Username] {
			return fmt.Errorf("user %d: duplicate username %q", i, u.Username)
		}
		seen[u.Username] = true
	}

	return nil
}

// SaveConfig saves a mock configuration to a file
func SaveConfig(config *Config, path string) error {
	var data []byte
	var err error

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
		if err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
	case ".json":
		data, err = json.MarshalIndent(config, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", ext)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
