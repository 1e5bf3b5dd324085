package database

import (
	"context"
	"time"
)

// IdentityStore is the durable mapping of identity id to name, group and embeddings.
// Implementations serialize every mutation behind a single exclusive scope.
type IdentityStore interface {
	// Load returns every identity. Missing backing data yields an empty map.
	Load(ctx context.Context) (map[string]*Identity, error)
	// Save persists the full mapping, replacing whatever was stored before.
	Save(ctx context.Context, identities map[string]*Identity) error
	// Upsert creates the identity if absent, otherwise appends the embedding
	// to its history and updates name and group.
	Upsert(ctx context.Context, id, name, group string, embedding []float64) (*Identity, error)
	// Remove deletes the identity and all its embeddings.
	// Returns ErrNotFound if the id is unknown.
	Remove(ctx context.Context, id string) (*Identity, error)
	// Count returns the number of enrolled identities.
	Count(ctx context.Context) (int, error)
}

// Ledger is the per (group, date) append-only attendance record set.
// Mutations against the same key are serialized; different keys never block each other.
type Ledger interface {
	// GetOrCreate returns the ledger for the key, creating and persisting an
	// empty one if it does not exist yet.
	GetOrCreate(ctx context.Context, group string, day time.Time) (LedgerInfo, error)
	// InsertIfAbsent appends rec unless its identity is already present.
	// The record's Seq is assigned by the ledger (count + 1).
	InsertIfAbsent(ctx context.Context, group string, day time.Time, rec AttendanceRecord) (bool, error)
	// ReadAll returns the records in insertion order, empty if the ledger was never created.
	ReadAll(ctx context.Context, group string, day time.Time) ([]AttendanceRecord, error)
	// Exists reports whether the ledger has been created.
	Exists(ctx context.Context, group string, day time.Time) (bool, error)
}

// NearestSearcher is implemented by stores that can rank stored samples
// against a query on the database side.
type NearestSearcher interface {
	// NearestSamples returns up to limit (identity id, sample position) pairs ordered by distance.
	NearestSamples(ctx context.Context, query []float64, limit int) ([]SampleRef, error)
}

// SampleRef points at one stored embedding sample.
type SampleRef struct {
	IdentityID string
	Position   int
}
