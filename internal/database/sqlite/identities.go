package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// IdentityRepository stores identities in SQLite.
// Embeddings are kept as JSON arrays, which round-trip float64 values exactly.
type IdentityRepository struct {
	store *Store
}

// NewIdentityRepository creates a new SQLite identity repository.
func NewIdentityRepository(store *Store) *IdentityRepository {
	return &IdentityRepository{store: store}
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Load returns every identity with its samples in insertion order.
func (r *IdentityRepository) Load(ctx context.Context) (map[string]*database.Identity, error) {
	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, database.WrapStorage("load identities", err)
	}
	defer tx.Rollback()

	out, err := loadAll(ctx, tx)
	if err != nil {
		return nil, database.WrapStorage("load identities", err)
	}
	return out, nil
}

func loadAll(ctx context.Context, tx *sql.Tx) (map[string]*database.Identity, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id, name, group_name FROM identities")
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	out := make(map[string]*database.Identity)
	for rows.Next() {
		ident := &database.Identity{}
		if err := rows.Scan(&ident.ID, &ident.Name, &ident.Group); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out[ident.ID] = ident
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	rows.Close()

	embRows, err := tx.QueryContext(ctx,
		"SELECT identity_id, embedding FROM identity_embeddings ORDER BY identity_id, position")
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer embRows.Close()

	for embRows.Next() {
		var id, raw string
		if err := embRows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		var emb []float64
		if err := json.Unmarshal([]byte(raw), &emb); err != nil {
			return nil, fmt.Errorf("decode embedding of %s: %w", id, err)
		}
		if ident, ok := out[id]; ok {
			ident.Embeddings = append(ident.Embeddings, emb)
		}
	}
	if err := embRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return out, nil
}

func insertEmbedding(ctx context.Context, tx *sql.Tx, id string, pos int, emb []float64) error {
	raw, err := json.Marshal(emb)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO identity_embeddings (identity_id, position, embedding) VALUES (?, ?, ?)",
		id, pos, string(raw),
	); err != nil {
		return fmt.Errorf("insert embedding %s/%d: %w", id, pos, err)
	}
	return nil
}

// Save replaces every stored identity with the given mapping.
func (r *IdentityRepository) Save(ctx context.Context, identities map[string]*database.Identity) error {
	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return database.WrapStorage("save identities", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM identities"); err != nil {
		return database.WrapStorage("save identities", fmt.Errorf("clear identities: %w", err))
	}
	stamp := nowStamp()
	for _, id := range database.SortedIDs(identities) {
		ident := identities[id]
		group := ident.Group
		if group == "" {
			group = database.DefaultGroup
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO identities (id, name, group_name, updated_at) VALUES (?, ?, ?, ?)",
			id, ident.Name, group, stamp,
		); err != nil {
			return database.WrapStorage("save identities", fmt.Errorf("insert identity %s: %w", id, err))
		}
		for pos, emb := range ident.Embeddings {
			if err := insertEmbedding(ctx, tx, id, pos, emb); err != nil {
				return database.WrapStorage("save identities", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return database.WrapStorage("save identities", fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Upsert creates the identity or appends a sample to it.
func (r *IdentityRepository) Upsert(ctx context.Context, id, name, group string, embedding []float64) (*database.Identity, error) {
	if group == "" {
		group = database.DefaultGroup
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, database.WrapStorage("upsert identity", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO identities (id, name, group_name, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			group_name = excluded.group_name,
			updated_at = excluded.updated_at
	`, id, name, group, nowStamp()); err != nil {
		return nil, database.WrapStorage("upsert identity", fmt.Errorf("upsert identity row: %w", err))
	}

	var next int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position) + 1, 0) FROM identity_embeddings WHERE identity_id = ?", id,
	).Scan(&next); err != nil {
		return nil, database.WrapStorage("upsert identity", fmt.Errorf("next position: %w", err))
	}
	if err := insertEmbedding(ctx, tx, id, next, embedding); err != nil {
		return nil, database.WrapStorage("upsert identity", err)
	}

	ident, err := getIdentity(ctx, tx, id)
	if err != nil {
		return nil, database.WrapStorage("upsert identity", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, database.WrapStorage("upsert identity", fmt.Errorf("commit: %w", err))
	}
	return ident, nil
}

func getIdentity(ctx context.Context, tx *sql.Tx, id string) (*database.Identity, error) {
	ident := &database.Identity{ID: id}
	err := tx.QueryRowContext(ctx,
		"SELECT name, group_name FROM identities WHERE id = ?", id,
	).Scan(&ident.Name, &ident.Group)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("identity %q: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT embedding FROM identity_embeddings WHERE identity_id = ? ORDER BY position", id)
	if err != nil {
		return nil, fmt.Errorf("query identity embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		var emb []float64
		if err := json.Unmarshal([]byte(raw), &emb); err != nil {
			return nil, fmt.Errorf("decode embedding of %s: %w", id, err)
		}
		ident.Embeddings = append(ident.Embeddings, emb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identity embeddings: %w", err)
	}
	return ident, nil
}

// Remove deletes the identity and its samples.
func (r *IdentityRepository) Remove(ctx context.Context, id string) (*database.Identity, error) {
	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, database.WrapStorage("remove identity", err)
	}
	defer tx.Rollback()

	ident, err := getIdentity(ctx, tx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, database.WrapStorage("remove identity", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM identities WHERE id = ?", id); err != nil {
		return nil, database.WrapStorage("remove identity", fmt.Errorf("delete identity: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return nil, database.WrapStorage("remove identity", fmt.Errorf("commit: %w", err))
	}
	return ident, nil
}

// Count returns the number of identities.
func (r *IdentityRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM identities").Scan(&count); err != nil {
		return 0, database.WrapStorage("count identities", err)
	}
	return count, nil
}
