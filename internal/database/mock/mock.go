// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// MockIdentityStore is an in-memory implementation of database.IdentityStore
type MockIdentityStore struct {
	mu         sync.RWMutex
	identities map[string]*database.Identity

	// Error injection
	LoadError   error
	SaveError   error
	UpsertError error
	RemoveError error
	CountError  error

	// Call counters
	UpsertCalls int
	RemoveCalls int

	// NearestFunc, when set, makes the store act as a database.NearestSearcher.
	NearestFunc func(query []float64, limit int) ([]database.SampleRef, error)
}

// NewMockIdentityStore creates a new mock identity store
func NewMockIdentityStore() *MockIdentityStore {
	return &MockIdentityStore{
		identities: make(map[string]*database.Identity),
	}
}

// AddIdentity adds an identity to the mock store
func (m *MockIdentityStore) AddIdentity(id, name, group string, embeddings ...[]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, emb := range embeddings {
		database.ApplyUpsert(m.identities, id, name, group, emb)
	}
	if len(embeddings) == 0 {
		if group == "" {
			group = database.DefaultGroup
		}
		m.identities[id] = &database.Identity{ID: id, Name: name, Group: group}
	}
}

func cloneIdentity(ident *database.Identity) *database.Identity {
	out := &database.Identity{ID: ident.ID, Name: ident.Name, Group: ident.Group}
	for _, emb := range ident.Embeddings {
		out.Embeddings = append(out.Embeddings, append([]float64(nil), emb...))
	}
	return out
}

// Load returns a copy of every identity
func (m *MockIdentityStore) Load(ctx context.Context) (map[string]*database.Identity, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*database.Identity, len(m.identities))
	for id, ident := range m.identities {
		out[id] = cloneIdentity(ident)
	}
	return out, nil
}

// Save replaces the stored identities
func (m *MockIdentityStore) Save(ctx context.Context, identities map[string]*database.Identity) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities = make(map[string]*database.Identity, len(identities))
	for id, ident := range identities {
		m.identities[id] = cloneIdentity(ident)
	}
	return nil
}

// Upsert creates or extends an identity
func (m *MockIdentityStore) Upsert(ctx context.Context, id, name, group string, embedding []float64) (*database.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertCalls++
	if m.UpsertError != nil {
		return nil, m.UpsertError
	}
	return cloneIdentity(database.ApplyUpsert(m.identities, id, name, group, embedding)), nil
}

// Remove deletes an identity
func (m *MockIdentityStore) Remove(ctx context.Context, id string) (*database.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RemoveCalls++
	if m.RemoveError != nil {
		return nil, m.RemoveError
	}
	ident, ok := m.identities[id]
	if !ok {
		return nil, fmt.Errorf("identity %q: %w", id, database.ErrNotFound)
	}
	delete(m.identities, id)
	return ident, nil
}

// Count returns the number of identities
func (m *MockIdentityStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.identities), nil
}

// NearestSamples delegates to NearestFunc
func (m *MockIdentityStore) NearestSamples(ctx context.Context, query []float64, limit int) ([]database.SampleRef, error) {
	if m.NearestFunc == nil {
		return nil, fmt.Errorf("nearest search not configured")
	}
	return m.NearestFunc(query, limit)
}

type mockLedger struct {
	records []database.AttendanceRecord
}

// MockLedger is an in-memory implementation of database.Ledger
type MockLedger struct {
	mu      sync.Mutex
	ledgers map[string]*mockLedger

	// Error injection
	GetOrCreateError error
	InsertError      error
	ReadError        error
	ExistsError      error

	// Call counters
	GetOrCreateCalls int
	InsertCalls      int
}

// NewMockLedger creates a new mock ledger
func NewMockLedger() *MockLedger {
	return &MockLedger{ledgers: make(map[string]*mockLedger)}
}

func ledgerKey(group string, day time.Time) string {
	key, date := database.LedgerKey(group, day)
	return key + "_" + date
}

func (m *MockLedger) get(group string, day time.Time, create bool) *mockLedger {
	k := ledgerKey(group, day)
	l, ok := m.ledgers[k]
	if !ok && create {
		l = &mockLedger{}
		m.ledgers[k] = l
	}
	return l
}

// GetOrCreate returns ledger info, creating the ledger if needed
func (m *MockLedger) GetOrCreate(ctx context.Context, group string, day time.Time) (database.LedgerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetOrCreateCalls++
	key, date := database.LedgerKey(group, day)
	info := database.LedgerInfo{Group: group, Key: key, Date: date, FileName: database.LedgerFileName(group, day)}
	if m.GetOrCreateError != nil {
		return info, m.GetOrCreateError
	}
	info.Count = len(m.get(group, day, true).records)
	return info, nil
}

// InsertIfAbsent appends rec unless its identity is present
func (m *MockLedger) InsertIfAbsent(ctx context.Context, group string, day time.Time, rec database.AttendanceRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls++
	if m.InsertError != nil {
		return false, m.InsertError
	}
	l := m.get(group, day, true)
	for _, r := range l.records {
		if r.IdentityID == rec.IdentityID {
			return false, nil
		}
	}
	rec.Seq = len(l.records) + 1
	l.records = append(l.records, rec)
	return true, nil
}

// ReadAll returns a copy of the ledger records
func (m *MockLedger) ReadAll(ctx context.Context, group string, day time.Time) ([]database.AttendanceRecord, error) {
	if m.ReadError != nil {
		return nil, m.ReadError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.get(group, day, false)
	if l == nil {
		return []database.AttendanceRecord{}, nil
	}
	return append([]database.AttendanceRecord{}, l.records...), nil
}

// Exists reports whether the ledger was created
func (m *MockLedger) Exists(ctx context.Context, group string, day time.Time) (bool, error) {
	if m.ExistsError != nil {
		return false, m.ExistsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(group, day, false) != nil, nil
}

// Keys returns the keys of every created ledger, sorted
func (m *MockLedger) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.ledgers))
	for k := range m.ledgers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
