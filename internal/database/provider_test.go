package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
)

func TestProvider_Lifecycle(t *testing.T) {
	ctx := context.Background()
	database.CloseBackend()

	if _, err := database.GetIdentityStore(ctx); err == nil {
		t.Error("expected error before registration")
	}

	store := mock.NewMockIdentityStore()
	ledger := mock.NewMockLedger()
	closed := 0
	database.RegisterBackend("test",
		func() database.IdentityStore { return store },
		func() database.Ledger { return ledger },
		func() error { closed++; return errors.New("close failed") },
	)

	if !database.IsInitialized() || database.BackendName() != "test" {
		t.Fatalf("expected test backend, got %q", database.BackendName())
	}
	got, err := database.GetIdentityStore(ctx)
	if err != nil || got != store {
		t.Errorf("GetIdentityStore = %v, %v", got, err)
	}
	if l, err := database.GetLedger(ctx); err != nil || l != ledger {
		t.Errorf("GetLedger = %v, %v", l, err)
	}

	if err := database.CloseBackend(); err == nil {
		t.Error("expected close error to be reported")
	}
	if closed != 1 || database.IsInitialized() {
		t.Errorf("expected one close and no backend, got %d closes, initialized %v", closed, database.IsInitialized())
	}
	if err := database.CloseBackend(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
}

func TestProvider_NilCloser(t *testing.T) {
	database.RegisterBackend("nocloser",
		func() database.IdentityStore { return mock.NewMockIdentityStore() },
		nil,
		nil,
	)
	if _, err := database.GetLedger(context.Background()); err == nil {
		t.Error("expected error for missing ledger constructor")
	}
	if err := database.CloseBackend(); err != nil {
		t.Errorf("CloseBackend: %v", err)
	}
	if database.IsInitialized() {
		t.Error("expected backend to be cleared")
	}
}
