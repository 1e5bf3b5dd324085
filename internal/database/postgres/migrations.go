package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/kozaktomas/face-attendance/internal/database/migrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func (p *Pool) migrator() *migrate.Migrator {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic("embedded migrations: " + err.Error())
	}
	return migrate.New(p.db, sub, migrate.Postgres)
}

// Migrate applies all pending migrations automatically on startup
func (p *Pool) Migrate(ctx context.Context) error {
	applied, err := p.migrator().Up(ctx)
	for _, v := range applied {
		fmt.Printf("Applied migration: %s\n", v)
	}
	return err
}

// MigrationsApplied returns the list of applied migrations
func (p *Pool) MigrationsApplied(ctx context.Context) ([]string, error) {
	return p.migrator().Applied(ctx)
}
