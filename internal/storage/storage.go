// Package storage persists Warden's named JSON blobs: the cached
// controller session and the group store contents.
//
// Writes are atomic (temp file + rename) so a crashed process never
// leaves a half-written blob behind.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	apperrors "nc-warden.io/warden/internal/pkg/errors"
)

// Blob names used by the core.
const (
	SessionBlob = "session.json"
	GroupsBlob  = "groups.json"
)

// BlobStore reads and writes named JSON blobs under a base directory.
// Safe for concurrent use; one mutex serializes all file access.
type BlobStore struct {
	mu  sync.Mutex
	dir string
}

// New creates a BlobStore rooted at dir. The directory is created on
// first write, not here, so read-only callers work against a missing dir.
func New(dir string) *BlobStore {
	return &BlobStore{dir: dir}
}

// Dir returns the base directory.
func (s *BlobStore) Dir() string {
	return s.dir
}

// Get reads the named blob into v. Returns an error wrapping
// apperrors.ErrNotFound when the blob does not exist.
func (s *BlobStore) Get(name string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("blob %s: %w", name, apperrors.ErrNotFound)
		}
		return fmt.Errorf("read blob %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode blob %s: %w", name, err)
	}
	return nil
}

// Set writes v as the named blob. Session material may be inside, so
// blobs are written 0600 under a 0700 directory.
func (s *BlobStore) Set(name string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode blob %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for blob %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if err := writeAndClose(tmp, data); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write blob %s: %w", name, err)
	}
	if err := os.Rename(tmpName, s.path(name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace blob %s: %w", name, err)
	}
	return nil
}

// Delete removes the named blob. Deleting an absent blob is not an error.
func (s *BlobStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob %s: %w", name, err)
	}
	return nil
}

func (s *BlobStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

func writeAndClose(f *os.File, data []byte) error {
	if err := f.Chmod(0o600); err != nil {
		f.Close()
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
