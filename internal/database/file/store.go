package file

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// IdentityStore keeps all identities in a single JSON document.
type IdentityStore struct {
	path string
	mu   sync.Mutex
}

// NewIdentityStore creates a store backed by the JSON file at path.
// The file is created on the first write.
func NewIdentityStore(path string) *IdentityStore {
	return &IdentityStore{path: path}
}

// lock serializes mutations in this process and across processes.
func (s *IdentityStore) lock() (func(), error) {
	s.mu.Lock()
	release, err := lockFile(s.path)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	return func() {
		release()
		s.mu.Unlock()
	}, nil
}

// Load returns every identity. A missing document yields an empty map.
func (s *IdentityStore) Load(ctx context.Context) (map[string]*database.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, err := s.read()
	if err != nil {
		return nil, database.WrapStorage("load identities", err)
	}
	return ids, nil
}

func (s *IdentityStore) read() (map[string]*database.Identity, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]*database.Identity{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]*database.Identity{}, nil
	}
	return decodeDocument(data)
}

// decodeDocument accepts both the versioned document and the legacy
// unversioned {id: {name, group, embeddings}} mapping.
func decodeDocument(data []byte) (map[string]*database.Identity, error) {
	var probe struct {
		Version    *int            `json:"version"`
		Identities json.RawMessage `json:"identities"`
	}
	if err := json.Unmarshal(data, &probe); err == nil && probe.Version != nil && probe.Identities != nil {
		var doc database.StoreDocument
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decoding store document: %w", err)
		}
		if doc.Version > database.CurrentStoreVersion() {
			return nil, fmt.Errorf("store document version %d is newer than supported version %d",
				doc.Version, database.CurrentStoreVersion())
		}
		return doc.IdentityMap(), nil
	}

	var legacy map[string]legacyRecord
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, fmt.Errorf("decoding legacy store document: %w", err)
	}
	doc := database.StoreDocument{Identities: make(map[string]database.IdentityRecord, len(legacy))}
	for id, rec := range legacy {
		embeddings := rec.Embeddings
		if len(embeddings) == 0 {
			embeddings = rec.Encodings
		}
		doc.Identities[id] = database.IdentityRecord{Name: rec.Name, Group: rec.Group, Embeddings: embeddings}
	}
	return doc.IdentityMap(), nil
}

// legacyRecord is an identity as written before the store was versioned.
// Older files call the samples "encodings".
type legacyRecord struct {
	Name       string      `json:"name"`
	Group      string      `json:"group"`
	Encodings  [][]float64 `json:"encodings"`
	Embeddings [][]float64 `json:"embeddings"`
}

func (s *IdentityStore) write(ids map[string]*database.Identity) error {
	doc := database.NewStoreDocument(ids)
	return writeAtomic(s.path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encoding store document: %w", err)
		}
		return nil
	})
}

// Save replaces the whole document.
func (s *IdentityStore) Save(ctx context.Context, identities map[string]*database.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock, err := s.lock()
	if err != nil {
		return database.WrapStorage("save identities", err)
	}
	defer unlock()

	return database.WrapStorage("save identities", s.write(identities))
}

// Upsert appends a sample to the identity, creating it if needed.
func (s *IdentityStore) Upsert(ctx context.Context, id, name, group string, embedding []float64) (*database.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unlock, err := s.lock()
	if err != nil {
		return nil, database.WrapStorage("upsert identity", err)
	}
	defer unlock()

	ids, err := s.read()
	if err != nil {
		return nil, database.WrapStorage("upsert identity", err)
	}
	ident := database.ApplyUpsert(ids, id, name, group, embedding)
	if err := s.write(ids); err != nil {
		return nil, database.WrapStorage("upsert identity", err)
	}
	return ident, nil
}

// Remove deletes the identity with all its samples.
func (s *IdentityStore) Remove(ctx context.Context, id string) (*database.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unlock, err := s.lock()
	if err != nil {
		return nil, database.WrapStorage("remove identity", err)
	}
	defer unlock()

	ids, err := s.read()
	if err != nil {
		return nil, database.WrapStorage("remove identity", err)
	}
	ident, ok := ids[id]
	if !ok {
		return nil, fmt.Errorf("identity %q: %w", id, database.ErrNotFound)
	}
	delete(ids, id)
	if err := s.write(ids); err != nil {
		return nil, database.WrapStorage("remove identity", err)
	}
	return ident, nil
}

// Count returns the number of identities.
func (s *IdentityStore) Count(ctx context.Context) (int, error) {
	ids, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}
