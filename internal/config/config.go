package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// FilePermissions is the default permission mode for regular files
	FilePermissions = 0644
	// SecretFilePermissions is used for the session file, which holds the bearer token
	SecretFilePermissions = 0600
	// DirPermissions is the default permission mode for directories (rwxr-xr-x)
	DirPermissions = 0755
)

var (
	// ConfigDir is the global configuration directory (~/.genepredict)
	ConfigDir string

	// DatabasePath is the SQLite database holding the local submission log
	DatabasePath string

	// SessionFile holds the persisted bearer token
	SessionFile string

	// SettingsFile is the JSONC settings file
	SettingsFile string

	// LogFile receives structured logs while the TUI owns the terminal
	LogFile string
)

// Initialize sets up the configuration directory and default files.
// It creates ~/.genepredict/ if it doesn't exist.
func Initialize() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	return InitializeAt(filepath.Join(homeDir, ".genepredict"))
}

// InitializeAt is Initialize rooted at an explicit directory
func InitializeAt(dir string) error {
	ConfigDir = dir
	DatabasePath = filepath.Join(ConfigDir, "genepredict.db")
	SessionFile = filepath.Join(ConfigDir, ".session.json")
	SettingsFile = filepath.Join(ConfigDir, "config.jsonc")
	LogFile = filepath.Join(ConfigDir, "genepredict.log")

	if err := os.MkdirAll(ConfigDir, DirPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", ConfigDir, err)
	}

	if _, err := os.Stat(SessionFile); os.IsNotExist(err) {
		defaultSession := []byte(`{"historyEnabled":true}`)
		if err := os.WriteFile(SessionFile, defaultSession, SecretFilePermissions); err != nil {
			return fmt.Errorf("failed to create session file: %w", err)
		}
	}

	if _, err := os.Stat(SettingsFile); os.IsNotExist(err) {
		if err := os.WriteFile(SettingsFile, []byte(defaultSettingsFile), FilePermissions); err != nil {
			return fmt.Errorf("failed to create settings file: %w", err)
		}
	}

	return nil
}

// LocalConfigExists checks if there's a local .session.json in the working directory
func LocalConfigExists() bool {
	_, err := os.Stat(".session.json")
	return err == nil
}

// GetSessionFilePath returns the session file path (local or global)
func GetSessionFilePath() string {
	if LocalConfigExists() {
		return ".session.json"
	}
	return SessionFile
}

const defaultSettingsFile = `{
  // Prediction API origin. Fixed for the lifetime of the process.
  "baseUrl": "http://127.0.0.1:8080",

  // classic: RandomForest + SVM labels; deep: DeepLearning label + confidence
  "variant": "classic",

  // strict rejects non-numeric values; passthrough sends them as null
  "nanPolicy": "strict",

  "timeout": "30s",

  // Stale-while-revalidate cache for GET /history. 0 disables it.
  "cacheTtl": "5m",

  "historyEnabled": true,
  "logLevel": "info"
}
`
