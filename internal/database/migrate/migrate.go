// Package migrate applies embedded, versioned SQL migrations.
//
// Each *.sql file in the migration filesystem is one version, applied in
// lexical order inside its own transaction and recorded in schema_migrations.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// Dialect holds the SQL that differs between database engines.
type Dialect struct {
	Name        string
	CreateTable string
	Insert      string
}

var (
	Postgres = Dialect{
		Name: "postgres",
		CreateTable: `CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		Insert: "INSERT INTO schema_migrations (version) VALUES ($1)",
	}
	SQLite = Dialect{
		Name: "sqlite",
		CreateTable: `CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT DEFAULT CURRENT_TIMESTAMP
		)`,
		Insert: "INSERT INTO schema_migrations (version) VALUES (?)",
	}
)

// Migrator applies the migrations found at the root of fsys.
type Migrator struct {
	db      *sql.DB
	fsys    fs.FS
	dialect Dialect
}

// New creates a migrator for db.
func New(db *sql.DB, fsys fs.FS, dialect Dialect) *Migrator {
	return &Migrator{db: db, fsys: fsys, dialect: dialect}
}

// Applied returns the recorded versions in order.
func (m *Migrator) Applied(ctx context.Context) ([]string, error) {
	if _, err := m.db.ExecContext(ctx, m.dialect.CreateTable); err != nil {
		return nil, fmt.Errorf("create migrations table: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return versions, nil
}

// Pending returns the migration files not applied yet, sorted.
func (m *Migrator) Pending(ctx context.Context) ([]string, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	entries, err := fs.ReadDir(m.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") && !done[e.Name()] {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// Up applies every pending migration and returns the versions it applied.
// A failing migration is rolled back and stops the run.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	files, err := m.Pending(ctx)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, file := range files {
		if err := m.apply(ctx, file); err != nil {
			return applied, err
		}
		applied = append(applied, file)
	}
	return applied, nil
}

func (m *Migrator) apply(ctx context.Context, file string) error {
	content, err := fs.ReadFile(m.fsys, file)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", file, err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for %s: %w", file, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("execute %s migration %s: %w", m.dialect.Name, file, err)
	}
	if _, err := tx.ExecContext(ctx, m.dialect.Insert, file); err != nil {
		return fmt.Errorf("record migration %s: %w", file, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", file, err)
	}
	return nil
}
