package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// IdentityRepository stores identities and their embedding history in PostgreSQL.
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a new PostgreSQL identity repository.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// Load returns every identity with its samples in insertion order.
func (r *IdentityRepository) Load(ctx context.Context) (map[string]*database.Identity, error) {
	ids, err := r.load(ctx)
	if err != nil {
		return nil, database.WrapStorage("load identities", err)
	}
	return ids, nil
}

func (r *IdentityRepository) load(ctx context.Context) (map[string]*database.Identity, error) {
	rows, err := r.pool.Query(ctx, "SELECT id, name, group_name FROM identities")
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*database.Identity)
	for rows.Next() {
		ident := &database.Identity{}
		if err := rows.Scan(&ident.ID, &ident.Name, &ident.Group); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out[ident.ID] = ident
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}

	embRows, err := r.pool.Query(ctx, `
		SELECT identity_id, embedding
		FROM identity_embeddings
		ORDER BY identity_id, position
	`)
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer embRows.Close()

	for embRows.Next() {
		var id string
		var emb pq.Float64Array
		if err := embRows.Scan(&id, &emb); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		if ident, ok := out[id]; ok {
			ident.Embeddings = append(ident.Embeddings, []float64(emb))
		}
	}
	if err := embRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return out, nil
}

// Save replaces every stored identity with the given mapping.
func (r *IdentityRepository) Save(ctx context.Context, identities map[string]*database.Identity) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return database.WrapStorage("save identities", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM identities"); err != nil {
		return database.WrapStorage("save identities", fmt.Errorf("clear identities: %w", err))
	}
	for _, id := range database.SortedIDs(identities) {
		ident := identities[id]
		group := ident.Group
		if group == "" {
			group = database.DefaultGroup
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO identities (id, name, group_name) VALUES ($1, $2, $3)",
			id, ident.Name, group,
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

func insertEmbedding(ctx context.Context, tx *sql.Tx, id string, pos int, emb []float64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO identity_embeddings (identity_id, position, embedding, vec)
		VALUES ($1, $2, $3, $4)
	`, id, pos, pq.Float64Array(emb), pgvector.NewVector(toFloat32(emb)))
	if err != nil {
		return fmt.Errorf("insert embedding %s/%d: %w", id, pos, err)
	}
	return nil
}

// Upsert creates the identity or appends a sample to it.
// The identity row stays locked until commit, so concurrent upserts of the
// same id are applied one after another.
func (r *IdentityRepository) Upsert(ctx context.Context, id, name, group string, embedding []float64) (*database.Identity, error) {
	if group == "" {
		group = database.DefaultGroup
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, database.WrapStorage("upsert identity", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO identities (id, name, group_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			group_name = EXCLUDED.group_name,
			updated_at = NOW()
	`, id, name, group); err != nil {
		return nil, database.WrapStorage("upsert identity", fmt.Errorf("upsert identity row: %w", err))
	}

	var next int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position) + 1, 0) FROM identity_embeddings WHERE identity_id = $1", id,
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

// getIdentity reads one identity inside tx, returning ErrNotFound if absent.
func getIdentity(ctx context.Context, tx *sql.Tx, id string) (*database.Identity, error) {
	ident := &database.Identity{ID: id}
	err := tx.QueryRowContext(ctx,
		"SELECT name, group_name FROM identities WHERE id = $1 FOR UPDATE", id,
	).Scan(&ident.Name, &ident.Group)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("identity %q: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT embedding FROM identity_embeddings WHERE identity_id = $1 ORDER BY position", id,
	)
	if err != nil {
		return nil, fmt.Errorf("query identity embeddings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var emb pq.Float64Array
		if err := rows.Scan(&emb); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		ident.Embeddings = append(ident.Embeddings, []float64(emb))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identity embeddings: %w", err)
	}
	return ident, nil
}

// Remove deletes the identity and its samples.
func (r *IdentityRepository) Remove(ctx context.Context, id string) (*database.Identity, error) {
	tx, err := r.pool.BeginTx(ctx, nil)
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

	if _, err := tx.ExecContext(ctx, "DELETE FROM identities WHERE id = $1", id); err != nil {
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
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM identities").Scan(&count); err != nil {
		return 0, database.WrapStorage("count identities", err)
	}
	return count, nil
}

// NearestSamples ranks stored samples by L2 distance with pgvector.
// Samples whose dimension differs from the query are skipped.
func (r *IdentityRepository) NearestSamples(ctx context.Context, query []float64, limit int) ([]database.SampleRef, error) {
	if len(query) == 0 || limit <= 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT identity_id, position
		FROM identity_embeddings
		WHERE vector_dims(vec) = $2
		ORDER BY vec <-> $1
		LIMIT $3
	`, pgvector.NewVector(toFloat32(query)), len(query), limit)
	if err != nil {
		return nil, database.WrapStorage("nearest samples", err)
	}
	defer rows.Close()

	var refs []database.SampleRef
	for rows.Next() {
		var ref database.SampleRef
		if err := rows.Scan(&ref.IdentityID, &ref.Position); err != nil {
			return nil, database.WrapStorage("nearest samples", fmt.Errorf("scan sample: %w", err))
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, database.WrapStorage("nearest samples", err)
	}
	return refs, nil
}
