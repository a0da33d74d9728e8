package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/types"
)

// Variant selects which prediction model family the API serves
type Variant string

const (
	VariantClassic Variant = "classic"
	VariantDeep    Variant = "deep"
)

// Defaults
const (
	DefaultBaseURL  = "http://127.0.0.1:8080"
	DefaultTimeout  = 30 * time.Second
	DefaultCacheTTL = 5 * time.Minute
)

// Environment variables that override the settings file
const (
	EnvBaseURL   = "GENEPREDICT_BASE_URL"
	EnvVariant   = "GENEPREDICT_VARIANT"
	EnvNaNPolicy = "GENEPREDICT_NAN_POLICY"
	EnvTimeout   = "GENEPREDICT_TIMEOUT"
	EnvCacheTTL  = "GENEPREDICT_CACHE_TTL"
	EnvHistory   = "GENEPREDICT_HISTORY"
	EnvLogLevel  = "GENEPREDICT_LOG_LEVEL"
)

// Settings is the resolved client configuration
type Settings struct {
	BaseURL        string
	Variant        Variant
	NaNPolicy      string
	Timeout        time.Duration
	CacheTTL       time.Duration
	HistoryEnabled bool
	LogLevel       string
	TLS            *types.TLSConfig
}

// fileSettings mirrors config.jsonc; durations are strings like "30s"
type fileSettings struct {
	BaseURL        string           `json:"baseUrl"`
	Variant        string           `json:"variant"`
	NaNPolicy      string           `json:"nanPolicy"`
	Timeout        string           `json:"timeout"`
	CacheTTL       string           `json:"cacheTtl"`
	HistoryEnabled *bool            `json:"historyEnabled"`
	LogLevel       string           `json:"logLevel"`
	TLS            *types.TLSConfig `json:"tls"`
}

// DefaultSettings returns the built-in configuration
func DefaultSettings() Settings {
	return Settings{
		BaseURL:        DefaultBaseURL,
		Variant:        VariantClassic,
		NaNPolicy:      "strict",
		Timeout:        DefaultTimeout,
		CacheTTL:       DefaultCacheTTL,
		HistoryEnabled: true,
		LogLevel:       "info",
	}
}

// LoadSettings reads the settings file (missing file means defaults),
// then applies a .env file if present and GENEPREDICT_* variables.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := s.applyFile(data); err != nil {
				return s, fmt.Errorf("failed to parse settings file %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return s, fmt.Errorf("failed to read settings file: %w", err)
		}
	}

	// .env is optional
	_ = godotenv.Load()

	if err := s.applyEnv(os.Getenv); err != nil {
		return s, err
	}

	return s, s.Validate()
}

func (s *Settings) applyFile(data []byte) error {
	var fs fileSettings
	if err := json.Unmarshal(jsonc.ToJSON(data), &fs); err != nil {
		return err
	}

	if fs.BaseURL != "" {
		s.BaseURL = fs.BaseURL
	}
	if fs.Variant != "" {
		s.Variant = Variant(fs.Variant)
	}
	if fs.NaNPolicy != "" {
		s.NaNPolicy = fs.NaNPolicy
	}
	if fs.Timeout != "" {
		d, err := time.ParseDuration(fs.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
		s.Timeout = d
	}
	if fs.CacheTTL != "" {
		d, err := time.ParseDuration(fs.CacheTTL)
		if err != nil {
			return fmt.Errorf("invalid cacheTtl: %w", err)
		}
		s.CacheTTL = d
	}
	if fs.HistoryEnabled != nil {
		s.HistoryEnabled = *fs.HistoryEnabled
	}
	if fs.LogLevel != "" {
		s.LogLevel = fs.LogLevel
	}
	if fs.TLS != nil {
		s.TLS = fs.TLS
	}
	return nil
}

func (s *Settings) applyEnv(getenv func(string) string) error {
	if v := getenv(EnvBaseURL); v != "" {
		s.BaseURL = v
	}
	if v := getenv(EnvVariant); v != "" {
		s.Variant = Variant(v)
	}
	if v := getenv(EnvNaNPolicy); v != "" {
		s.NaNPolicy = v
	}
	if v := getenv(EnvTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		s.Timeout = d
	}
	if v := getenv(EnvCacheTTL); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvCacheTTL, err)
		}
		s.CacheTTL = d
	}
	if v := getenv(EnvHistory); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvHistory, err)
		}
		s.HistoryEnabled = b
	}
	if v := getenv(EnvLogLevel); v != "" {
		s.LogLevel = v
	}
	return nil
}

// Validate checks the resolved settings
func (s Settings) Validate() error {
	if !strings.HasPrefix(s.BaseURL, "http://") && !strings.HasPrefix(s.BaseURL, "https://") {
		return fmt.Errorf("baseUrl must start with http:// or https://, got %q", s.BaseURL)
	}
	switch s.Variant {
	case VariantClassic, VariantDeep:
	default:
		return fmt.Errorf("unknown variant %q (use classic or deep)", s.Variant)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if s.CacheTTL < 0 {
		return fmt.Errorf("cacheTtl must not be negative")
	}
	return nil
}

// Endpoint joins the base URL and an API path
func (s Settings) Endpoint(path string) string {
	return strings.TrimRight(s.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
