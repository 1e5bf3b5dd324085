package sqlite

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "attendance.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestIdentityRepository_LoadEmpty(t *testing.T) {
	repo := NewIdentityRepository(openTestStore(t))
	ids, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty store, got %d identities", len(ids))
	}
}

func TestIdentityRepository_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewIdentityRepository(openTestStore(t))

	emb := make([]float64, 128)
	for i := range emb {
		emb[i] = math.Cos(float64(i)) * 0.123456789012345
	}
	in := map[string]*database.Identity{
		"A1": {ID: "A1", Name: "Ana", Group: "3A", Embeddings: [][]float64{emb, {1, 2}}},
		"B2": {ID: "B2", Name: "Beto", Group: "", Embeddings: [][]float64{{0.5}}},
	}
	if err := repo.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 identities, got %d", len(out))
	}
	for i, v := range out["A1"].Embeddings[0] {
		if math.Abs(v-emb[i]) > 1e-9 {
			t.Fatalf("value %d changed: %v != %v", i, v, emb[i])
		}
	}
	if len(out["A1"].Embeddings) != 2 {
		t.Errorf("expected 2 samples, got %d", len(out["A1"].Embeddings))
	}
	if out["B2"].Group != database.DefaultGroup {
		t.Errorf("expected default group, got %q", out["B2"].Group)
	}

	// Save replaces the full mapping.
	if err := repo.Save(ctx, map[string]*database.Identity{"C3": {ID: "C3", Name: "Caro"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 identity after overwrite, got %d", count)
	}
}

func TestIdentityRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := NewIdentityRepository(openTestStore(t))

	if _, err := repo.Upsert(ctx, "S1", "Ana", "3A", []float64{0.1}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := repo.Upsert(ctx, "S1", "Ana B", "3B", []float64{0.2})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if got.Name != "Ana B" || got.Group != "3B" {
		t.Errorf("expected name/group update, got %+v", got)
	}
	if len(got.Embeddings) != 2 || got.Embeddings[0][0] != 0.1 || got.Embeddings[1][0] != 0.2 {
		t.Errorf("expected samples appended in order, got %v", got.Embeddings)
	}
}

func TestIdentityRepository_ConcurrentUpserts(t *testing.T) {
	ctx := context.Background()
	repo := NewIdentityRepository(openTestStore(t))

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := "S" + string(rune('A'+i%4))
			if _, err := repo.Upsert(ctx, id, id, "G", []float64{float64(i)}); err != nil {
				t.Errorf("Upsert: %v", err)
			}
		}()
	}
	wg.Wait()

	ids, err := repo.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	total := 0
	for _, ident := range ids {
		total += len(ident.Embeddings)
	}
	if total != 20 {
		t.Errorf("expected 20 samples, got %d", total)
	}
}

func TestIdentityRepository_Remove(t *testing.T) {
	ctx := context.Background()
	repo := NewIdentityRepository(openTestStore(t))

	if _, err := repo.Upsert(ctx, "S1", "Ana", "3A", []float64{0.1}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	removed, err := repo.Remove(ctx, "S1")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if removed.Name != "Ana" || len(removed.Embeddings) != 1 {
		t.Errorf("unexpected removed identity %+v", removed)
	}
	if _, err := repo.Remove(ctx, "S1"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLedgerRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(openTestStore(t))
	day := time.Date(2026, 3, 9, 10, 0, 0, 0, time.Local)

	exists, err := repo.Exists(ctx, "3er Grado", day)
	if err != nil || exists {
		t.Fatalf("expected no ledger, got %v (%v)", exists, err)
	}
	recs, err := repo.ReadAll(ctx, "3er Grado", day)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", recs)
	}

	info, err := repo.GetOrCreate(ctx, "3er Grado", day)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if info.FileName != "Asistencia_3er_Grado_2026-03-09.xlsx" {
		t.Errorf("unexpected file name %q", info.FileName)
	}

	for i, id := range []string{"S1", "S2", "S1", "S3"} {
		rec := database.AttendanceRecord{IdentityID: id, Name: id, Group: "3er Grado", Time: "10:00:0" + string(rune('0'+i))}
		if _, err := repo.InsertIfAbsent(ctx, "3er Grado", day, rec); err != nil {
			t.Fatalf("InsertIfAbsent: %v", err)
		}
	}

	recs, err = repo.ReadAll(ctx, "3er Grado", day)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	want := []string{"S1", "S2", "S3"}
	if len(recs) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(recs))
	}
	for i, rec := range recs {
		if rec.Seq != i+1 || rec.IdentityID != want[i] {
			t.Errorf("record %d = %+v, want seq %d id %s", i, rec, i+1, want[i])
		}
	}
	if recs[0].Time != "10:00:00" {
		t.Errorf("expected first registration time kept, got %s", recs[0].Time)
	}

	// Same group on another day is an independent ledger.
	other, err := repo.GetOrCreate(ctx, "3er Grado", day.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if other.Count != 0 {
		t.Errorf("expected empty ledger for next day, got %d records", other.Count)
	}
}

func TestLedgerRepository_ConcurrentInserts(t *testing.T) {
	ctx := context.Background()
	repo := NewLedgerRepository(openTestStore(t))
	day := time.Date(2026, 3, 9, 0, 0, 0, 0, time.Local)

	var wg sync.WaitGroup
	var mu sync.Mutex
	inserted := 0
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.InsertIfAbsent(ctx, "4B", day, database.AttendanceRecord{IdentityID: "X", Name: "X", Group: "4B", Time: "08:00:00"})
			if err != nil {
				t.Errorf("InsertIfAbsent: %v", err)
				return
			}
			if ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if inserted != 1 {
		t.Errorf("expected exactly one insert, got %d", inserted)
	}
}
