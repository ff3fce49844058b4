// Package sessionstore keeps the operator session between CLI invocations.
package sessionstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"smartcheck/internal/core/domain/models"
	"smartcheck/internal/core/domain/ports"
)

// Ensure FileStore implements SessionStore
var _ ports.SessionStore = (*FileStore)(nil)

// FileStore persists the session as a JSON file readable only by its owner.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

// Load returns the stored session, or the zero session when none was saved.
func (s *FileStore) Load() (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return models.Session{}, nil
	}
	if err != nil {
		return models.Session{}, err
	}
	defer f.Close()

	var sess models.Session
	if err := json.NewDecoder(f).Decode(&sess); err != nil {
		if err == io.EOF {
			return models.Session{}, nil // Empty file is fine
		}
		return models.Session{}, fmt.Errorf("failed to decode session file: %w", err)
	}
	return sess, nil
}

// Save writes the session atomically: temp file then rename.
func (s *FileStore) Save(sess models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}

	tmpFile := s.path + ".tmp"
	f, err := os.OpenFile(tmpFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(sess); err != nil {
		f.Close()
		os.Remove(tmpFile)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, s.path)
}

// Clear removes the stored session. Clearing an absent session is not an error.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
