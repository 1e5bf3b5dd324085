// Package photostore keeps the reference photos submitted at enrollment.
package photostore

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/config"
)

// Store saves reference photos grouped by identity id.
type Store interface {
	// Save stores data under the identity and returns the key of the new photo.
	Save(ctx context.Context, id, filename string, data []byte) (string, error)
	// Delete removes a single photo by key. Missing photos are not an error.
	Delete(ctx context.Context, key string) error
	// RemoveAll removes every photo of the identity.
	RemoveAll(ctx context.Context, id string) error
}

// New returns the photo store selected in cfg.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Photos.Backend {
	case config.PhotoStoreFS, "":
		return NewFSStore(cfg.Storage.StudentsDir), nil
	case config.PhotoStoreMinIO:
		return NewMinIOStore(ctx, cfg.MinIO)
	default:
		return nil, fmt.Errorf("unknown photo store %q", cfg.Photos.Backend)
	}
}

// objectName builds a collision-free object name that keeps the original
// file name readable.
func objectName(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "photo.jpg"
	}
	return uuid.NewString()[:8] + "_" + base
}

func photoKey(id, filename string) string {
	return path.Join(id, objectName(filename))
}
