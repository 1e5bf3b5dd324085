package file

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
)

func newTestStore(t *testing.T) *IdentityStore {
	t.Helper()
	return NewIdentityStore(filepath.Join(t.TempDir(), "encodings.json"))
}

func TestIdentityStore_LoadMissingFile(t *testing.T) {
	store := newTestStore(t)

	ids, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty mapping, got %d identities", len(ids))
	}
}

func TestIdentityStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	emb := make([]float64, 128)
	for i := range emb {
		emb[i] = math.Sin(float64(i)) / 3.0
	}
	in := map[string]*database.Identity{
		"S1": {ID: "S1", Name: "Ana", Group: "1A", Embeddings: [][]float64{emb}},
		"S2": {ID: "S2", Name: "Luis", Group: "General", Embeddings: [][]float64{{0.1, -0.2}, {1e-12, 123.456789012345}}},
	}

	if err := store.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(out) != len(in) {
		t.Fatalf("expected %d identities, got %d", len(in), len(out))
	}
	for id, want := range in {
		got := out[id]
		if got == nil {
			t.Fatalf("missing identity %s", id)
		}
		if got.Name != want.Name || got.Group != want.Group {
			t.Errorf("%s metadata = %q/%q, want %q/%q", id, got.Name, got.Group, want.Name, want.Group)
		}
		if len(got.Embeddings) != len(want.Embeddings) {
			t.Fatalf("%s: expected %d samples, got %d", id, len(want.Embeddings), len(got.Embeddings))
		}
		for s := range want.Embeddings {
			for i := range want.Embeddings[s] {
				if math.Abs(got.Embeddings[s][i]-want.Embeddings[s][i]) > 1e-9 {
					t.Fatalf("%s sample %d component %d = %v, want %v",
						id, s, i, got.Embeddings[s][i], want.Embeddings[s][i])
				}
			}
		}
	}
}

func TestIdentityStore_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.Save(ctx, map[string]*database.Identity{"S1": {ID: "S1", Name: "Ana", Embeddings: [][]float64{{1}}}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, map[string]*database.Identity{"S2": {ID: "S2", Name: "Luis", Embeddings: [][]float64{{2}}}}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := out["S1"]; ok {
		t.Error("expected S1 to be gone after overwrite")
	}
	if _, ok := out["S2"]; !ok {
		t.Error("expected S2 after overwrite")
	}
}

func TestIdentityStore_UpsertAppends(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Upsert(ctx, "S1", "Ana", "1A", []float64{0.1, 0.2}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	ident, err := store.Upsert(ctx, "S1", "Ana López", "1B", []float64{0.3, 0.4})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if len(ident.Embeddings) != 2 {
		t.Errorf("expected 2 samples, got %d", len(ident.Embeddings))
	}

	out, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := out["S1"]
	if got.Name != "Ana López" || got.Group != "1B" {
		t.Errorf("expected latest metadata, got %q/%q", got.Name, got.Group)
	}
	if len(got.Embeddings) != 2 || got.Embeddings[0][0] != 0.1 || got.Embeddings[1][0] != 0.3 {
		t.Errorf("unexpected samples %v", got.Embeddings)
	}
}

func TestIdentityStore_ConcurrentUpsertsKeepEverySample(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("S%02d", i%5)
			if _, err := store.Upsert(ctx, id, "name", "G", []float64{float64(i)}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Upsert: %v", err)
	}

	out, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	total := 0
	for _, ident := range out {
		total += len(ident.Embeddings)
	}
	if len(out) != 5 {
		t.Errorf("expected 5 identities, got %d", len(out))
	}
	if total != n {
		t.Errorf("expected %d samples, got %d (lost update)", n, total)
	}
}

func TestIdentityStore_Remove(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Upsert(ctx, "S1", "Ana", "", []float64{1}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	removed, err := store.Remove(ctx, "S1")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if removed.Name != "Ana" {
		t.Errorf("expected removed identity Ana, got %q", removed.Name)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty store, got %d", count)
	}

	if _, err := store.Remove(ctx, "S1"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIdentityStore_LoadLegacyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "encodings.json")
	legacy := `{
  "A01": {"name": "Ana", "group": "", "encodings": [[0.5, 0.25]]},
  "B02": {"name": "Luis", "group": "2B", "encodings": [[1, 2], [3, 4]]}
}`
	if err := os.WriteFile(path, []byte(legacy), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	out, err := NewIdentityStore(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out["A01"].Group != database.DefaultGroup {
		t.Errorf("expected default group, got %q", out["A01"].Group)
	}
	if len(out["B02"].Embeddings) != 2 || out["B02"].Embeddings[1][1] != 4 {
		t.Errorf("unexpected B02 samples %v", out["B02"].Embeddings)
	}
}

func TestIdentityStore_RejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "encodings.json")
	if err := os.WriteFile(path, []byte(`{"version": 99, "identities": {}}`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := NewIdentityStore(path).Load(context.Background())
	var se *database.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}
