package photostore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/config"
)

func TestFSStore_SaveAndDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFSStore(dir)

	key, err := store.Save(ctx, "S1", "ana.jpg", []byte("jpeg"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(key, "S1/") || !strings.HasSuffix(key, "_ana.jpg") {
		t.Errorf("unexpected key %q", key)
	}

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	if err != nil {
		t.Fatalf("read saved photo: %v", err)
	}
	if string(data) != "jpeg" {
		t.Errorf("unexpected content %q", data)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "S1")); !os.IsNotExist(err) {
		t.Errorf("expected empty identity directory to be removed, got %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Errorf("expected deleting a missing photo to succeed, got %v", err)
	}
}

func TestFSStore_SaveDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	store := NewFSStore(t.TempDir())

	first, err := store.Save(ctx, "S1", "same.jpg", []byte("a"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, err := store.Save(ctx, "S1", "same.jpg", []byte("b"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if first == second {
		t.Errorf("expected distinct keys, got %q twice", first)
	}
}

func TestFSStore_FilenameIsFlattened(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFSStore(dir)

	key, err := store.Save(ctx, "S1", "../../evil.jpg", []byte("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if strings.Contains(key, "..") {
		t.Errorf("expected path components to be stripped, got %q", key)
	}

	key, err = store.Save(ctx, "S1", "", []byte("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasSuffix(key, "_photo.jpg") {
		t.Errorf("expected default file name, got %q", key)
	}
}

func TestFSStore_RemoveAll(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFSStore(dir)

	for range 3 {
		if _, err := store.Save(ctx, "S1", "p.jpg", []byte("x")); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if _, err := store.Save(ctx, "S2", "p.jpg", []byte("x")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.RemoveAll(ctx, "S1"); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "S1")); !os.IsNotExist(err) {
		t.Errorf("expected S1 photos removed")
	}
	if _, err := os.Stat(filepath.Join(dir, "S2")); err != nil {
		t.Errorf("expected S2 photos kept: %v", err)
	}
}

func TestNew(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.StudentsDir = t.TempDir()

	store, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := store.(*FSStore); !ok {
		t.Errorf("expected FSStore by default, got %T", store)
	}

	cfg.Photos.Backend = "ftp"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("expected error for unknown photo store")
	}

	cfg.Photos.Backend = config.PhotoStoreMinIO
	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("expected error for minio without endpoint")
	}
}
