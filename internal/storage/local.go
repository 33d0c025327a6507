// Package storage handles the upload directory: storing originals and
// sweeping orphaned job artifacts.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore writes uploaded audio to the local filesystem.
type LocalStore struct {
	dir string
}

// NewLocalStore creates a store rooted at dir, creating it if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &LocalStore{dir: dir}, nil
}

// Save stores data under key. Atomic write: temp file + rename, so a
// concurrent reader never observes a partial upload.
func (s *LocalStore) Save(key string, data []byte) error {
	path := filepath.Join(s.dir, key)

	tmp, err := os.CreateTemp(s.dir, ".upload-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Path returns the filesystem path for a key.
func (s *LocalStore) Path(key string) string {
	return filepath.Join(s.dir, key)
}

// Exists reports whether a key is present on disk.
func (s *LocalStore) Exists(key string) bool {
	_, err := os.Stat(filepath.Join(s.dir, key))
	return err == nil
}

// Dir returns the upload directory path.
func (s *LocalStore) Dir() string { return s.dir }
