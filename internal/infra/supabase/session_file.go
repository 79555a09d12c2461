package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/boddenberg/seal-console/internal/domain"
)

// SessionFile persists the current session as JSON so it survives restarts.
type SessionFile struct {
	path string
}

// NewSessionFile returns a store at path, or nil when path is empty.
func NewSessionFile(path string) *SessionFile {
	if path == "" {
		return nil
	}
	return &SessionFile{path: path}
}

// Load returns the stored session, or nil when none was saved.
func (f *SessionFile) Load() (*domain.Session, error) {
	if f == nil {
		return nil, nil
	}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var s domain.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	if s.AccessToken == "" {
		return nil, nil
	}
	return &s, nil
}

// Save writes s atomically with owner-only permissions.
func (f *SessionFile) Save(s *domain.Session) error {
	if f == nil {
		return nil
	}
	if s == nil {
		return f.Remove()
	}

	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return os.Rename(tmp, f.path)
}

// Remove deletes the stored session. A missing file is not an error.
func (f *SessionFile) Remove() error {
	if f == nil {
		return nil
	}
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
