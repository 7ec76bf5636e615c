package kvstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const tempPrefix = ".tmp-"

// FSStore is a filesystem-based Store. Every key is one file in a directory:
//
//	<dir>/
//	  clientState
//	  clientInitId
//
// Writes go through a temp file and a rename, so readers in other processes
// never observe a partially written value.
type FSStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFSStore creates the directory if needed and returns a store rooted at it.
func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, ErrOpenFailed.WithCause(fmt.Errorf("create directory %s: %w", dir, err))
	}
	return &FSStore{dir: dir}, nil
}

// Dir returns the store directory.
func (fs *FSStore) Dir() string { return fs.dir }

// Get returns the value stored under key.
func (fs *FSStore) Get(_ context.Context, key string) (string, bool, error) {
	path, err := fs.path(key)
	if err != nil {
		return "", false, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	// #nosec G304 -- path is confined to the store directory by fs.path
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, wrap(ErrReadFailed, key, err)
	}
	return string(data), true, nil
}

// Set stores value under key.
func (fs *FSStore) Set(_ context.Context, key, value string) error {
	path, err := fs.path(key)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	tmp, err := os.CreateTemp(fs.dir, tempPrefix+key+"-*")
	if err != nil {
		return wrap(ErrWriteFailed, key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return wrap(ErrWriteFailed, key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return wrap(ErrWriteFailed, key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return wrap(ErrWriteFailed, key, err)
	}
	return nil
}

// Remove deletes key.
func (fs *FSStore) Remove(_ context.Context, key string) error {
	path, err := fs.path(key)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return wrap(ErrRemoveFailed, key, err)
	}
	return nil
}

// Close is a no-op; the directory is left in place for other processes.
func (fs *FSStore) Close() error { return nil }

func (fs *FSStore) path(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, tempPrefix) || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", ErrInvalidKey.WithContext("key", key)
	}
	return filepath.Join(fs.dir, key), nil
}
