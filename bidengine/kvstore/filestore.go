package kvstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidKey is returned when a key would escape the store directory.
var ErrInvalidKey = errors.New("key must not contain path separators")

// FileStore is a Store that keeps one file per key inside a directory.
// Writes go through a temp file and an atomic rename, so a crashed write
// never corrupts the previous value.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	return &FileStore{dir: dir}, nil
}

// Get reads the value for the key. A missing file is found=false, not an error.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return nil, false, err
	}

	value, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("reading %s: %w", path, err)
	}

	return value, true, nil
}

// Set writes the value for the key atomically.
func (s *FileStore) Set(_ context.Context, key string, value []byte) error {
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	if _, err = tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("writing temp file: %w", err)
	}

	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("closing temp file: %w", err)
	}

	if err = os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}

func (s *FileStore) pathFor(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) {
		return "", ErrInvalidKey
	}

	return filepath.Join(s.dir, key), nil
}
