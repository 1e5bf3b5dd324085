package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/file"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/database/sqlite"
	"github.com/kozaktomas/face-attendance/internal/embedder"
	"github.com/kozaktomas/face-attendance/internal/metrics"
	"github.com/kozaktomas/face-attendance/internal/photostore"
)

// services are the core components shared by the commands.
type services struct {
	store      database.IdentityStore
	enrollment *attendance.EnrollmentService
	pipeline   *attendance.Pipeline
	metrics    *metrics.Metrics
}

// initBackend opens and registers the configured storage backend.
func initBackend(cfg *config.Config) error {
	switch cfg.Storage.Backend {
	case config.BackendFile:
		fmt.Printf("Using file backend (%s)\n", cfg.Storage.DataDir)
		return file.Initialize(cfg)
	case config.BackendPostgres:
		fmt.Printf("Connecting to PostgreSQL database...\n")
		if err := postgres.Initialize(&cfg.Database); err != nil {
			return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		return nil
	case config.BackendSQLite:
		fmt.Printf("Using SQLite backend (%s)\n", cfg.SQLite.Path)
		if err := sqlite.Initialize(&cfg.SQLite); err != nil {
			return fmt.Errorf("failed to initialize SQLite: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// openServices initializes the backend and builds the enrollment service and
// recognition pipeline on top of it. withMetrics attaches a Prometheus registry.
func openServices(ctx context.Context, cfg *config.Config, withMetrics bool) (*services, error) {
	switch cfg.Recognition.MatcherIndex {
	case config.MatcherExact, config.MatcherHNSW, config.MatcherPGVector:
	default:
		return nil, fmt.Errorf("unknown matcher index %q", cfg.Recognition.MatcherIndex)
	}

	if err := initBackend(cfg); err != nil {
		return nil, err
	}
	store, err := database.GetIdentityStore(ctx)
	if err != nil {
		database.CloseBackend()
		return nil, err
	}
	ledger, err := database.GetLedger(ctx)
	if err != nil {
		database.CloseBackend()
		return nil, err
	}
	photos, err := photostore.New(ctx, cfg)
	if err != nil {
		database.CloseBackend()
		return nil, fmt.Errorf("failed to open photo store: %w", err)
	}

	var m *metrics.Metrics
	if withMetrics {
		m = metrics.New()
	}
	detector := embedder.NewClient(cfg.Embedder.URL, cfg.Embedder.MaxImageSize)

	return &services{
		store:      store,
		enrollment: attendance.NewEnrollmentService(store, photos, detector).WithMetrics(m),
		pipeline: attendance.NewPipeline(store, ledger, detector,
			attendance.WithMetrics(m),
			attendance.WithMatcherIndex(cfg.Recognition.MatcherIndex),
		),
		metrics: m,
	}, nil
}

// closeServices releases the storage backend.
func closeServices() {
	if err := database.CloseBackend(); err != nil {
		fmt.Printf("Warning: %v\n", err)
	}
}
