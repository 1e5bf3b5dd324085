package photostore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FSStore keeps photos under <dir>/<id>/.
type FSStore struct {
	dir string
}

// NewFSStore creates a photo store rooted at dir.
func NewFSStore(dir string) *FSStore {
	return &FSStore{dir: dir}
}

// Dir returns the root directory.
func (s *FSStore) Dir() string {
	return s.dir
}

// Save writes the photo and returns its key relative to the root.
func (s *FSStore) Save(ctx context.Context, id, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := photoKey(id, filename)
	full := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create photo directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write photo: %w", err)
	}
	return key, nil
}

// Delete removes the photo and, when it was the last one, its directory.
func (s *FSStore) Delete(ctx context.Context, key string) error {
	full := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove photo: %w", err)
	}
	// Fails harmlessly while other photos remain.
	_ = os.Remove(filepath.Dir(full))
	return nil
}

// RemoveAll removes the identity's photo directory.
func (s *FSStore) RemoveAll(ctx context.Context, id string) error {
	if err := os.RemoveAll(filepath.Join(s.dir, id)); err != nil {
		return fmt.Errorf("remove photos of %s: %w", id, err)
	}
	return nil
}
