package file

import (
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
)

func TestInitialize_RegistersSharedInstances(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Storage: config.StorageConfig{
			EncodingsFile: filepath.Join(dir, "encodings.json"),
			AttendanceDir: filepath.Join(dir, "attendance"),
		},
		Layout: config.DefaultLayout(),
	}
	if err := Initialize(cfg); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { database.CloseBackend() })

	if name := database.BackendName(); name != config.BackendFile {
		t.Errorf("expected backend %q, got %q", config.BackendFile, name)
	}
	a, err := database.GetIdentityStore(t.Context())
	if err != nil {
		t.Fatalf("GetIdentityStore: %v", err)
	}
	b, _ := database.GetIdentityStore(t.Context())
	if a != b {
		t.Error("expected the same identity store instance")
	}
	if _, err := database.GetLedger(t.Context()); err != nil {
		t.Errorf("GetLedger: %v", err)
	}
}

func TestInitialize_RequiresPaths(t *testing.T) {
	if err := Initialize(&config.Config{}); err == nil {
		t.Error("expected error for empty paths")
	}
}
