// Package file provides the file-backed identity store (a JSON document) and
// attendance ledger (one workbook per group and day).
//
// Every mutation runs under an in-process mutex plus an advisory file lock so
// that several processes sharing the same data directory stay consistent.
// Files are replaced atomically, which lets readers skip the locks.
package file

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Initialize registers the file backend rooted at the configured paths.
// The same store and ledger instances are shared by every caller so the
// in-process locks cover all of them.
func Initialize(cfg *config.Config) error {
	if cfg == nil || cfg.Storage.EncodingsFile == "" || cfg.Storage.AttendanceDir == "" {
		return fmt.Errorf("encodings file and attendance directory are required")
	}
	if err := os.MkdirAll(cfg.Storage.AttendanceDir, 0o755); err != nil {
		return fmt.Errorf("creating attendance directory: %w", err)
	}
	store := NewIdentityStore(cfg.Storage.EncodingsFile)
	ledger := NewLedger(cfg.Storage.AttendanceDir, cfg.Layout)
	database.RegisterBackend(config.BackendFile,
		func() database.IdentityStore { return store },
		func() database.Ledger { return ledger },
		nil,
	)
	return nil
}

// writeAtomic writes path through a temporary file in the same directory
// followed by a rename.
func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// lockFile takes the advisory lock guarding path and returns its release func.
func lockFile(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	fl := flock.New(path + ".lock")
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", fl.Path(), err)
	}
	return func() { _ = fl.Unlock() }, nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}
