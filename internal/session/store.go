package session

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/config"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/types"
)

// Store persists the session between runs
type Store interface {
	Load() (*types.Session, error)
	Save(*types.Session) error
}

// FileStore keeps the session as JSON on disk
type FileStore struct {
	Path string
}

// NewFileStore uses the local .session.json if present, otherwise the global one
func NewFileStore() *FileStore {
	return &FileStore{Path: config.GetSessionFilePath()}
}

// Load reads the session file. A missing file is an empty session.
func (s *FileStore) Load() (*types.Session, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return &types.Session{}, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var sess types.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	return &sess, nil
}

// Save writes the session file with owner-only permissions
func (s *FileStore) Save(sess *types.Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.WriteFile(s.Path, data, config.SecretFilePermissions); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// MemoryStore is a Store for tests and one-shot commands
type MemoryStore struct {
	mu   sync.Mutex
	sess types.Session
	// SaveErr, when set, is returned by Save
	SaveErr error
}

func (s *MemoryStore) Load() (*types.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := s.sess
	return &cp, nil
}

func (s *MemoryStore) Save(sess *types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.sess = *sess
	return nil
}
