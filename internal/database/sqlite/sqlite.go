// Package sqlite is a single-file storage backend for identities and ledgers.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/migrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store owns the SQLite connection shared by the identity and ledger repositories.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path and applies pending migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection serializes every transaction.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("embedded migrations: %w", err)
	}
	if _, err := migrate.New(db, sub, migrate.SQLite).Up(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Initialize opens the database and registers it as the active storage backend.
func Initialize(cfg *config.SQLiteConfig) error {
	if cfg == nil || cfg.Path == "" {
		return fmt.Errorf("sqlite path is required")
	}
	store, err := Open(cfg.Path)
	if err != nil {
		return err
	}
	database.RegisterBackend(config.BackendSQLite,
		func() database.IdentityStore { return NewIdentityRepository(store) },
		func() database.Ledger { return NewLedgerRepository(store) },
		store.Close,
	)
	return nil
}
