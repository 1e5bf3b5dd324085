package database

import (
	"sort"
	"time"
)

// DefaultGroup is assigned to identities enrolled without a group.
const DefaultGroup = "General"

// Identity is an enrolled person with one or more reference embeddings.
type Identity struct {
	ID         string
	Name       string
	Group      string
	Embeddings [][]float64 // append-only sample history
}

// AttendanceRecord is one row of a ledger.
// Name and Group are snapshots taken at registration time.
type AttendanceRecord struct {
	Seq        int    `json:"num"`
	IdentityID string `json:"id"`
	Name       string `json:"name"`
	Group      string `json:"group"`
	Time       string `json:"time"` // HH:MM:SS
}

// LedgerInfo describes a (group, date) ledger.
type LedgerInfo struct {
	Group    string // group as requested
	Key      string // sanitized group used for storage
	Date     string // YYYY-MM-DD
	FileName string
	Count    int
}

// StoreDocument is the versioned on-disk form of the identity store.
type StoreDocument struct {
	Version    int                       `json:"version"`
	Identities map[string]IdentityRecord `json:"identities"`
}

// IdentityRecord is a single identity inside a StoreDocument.
type IdentityRecord struct {
	Name       string      `json:"name"`
	Group      string      `json:"group"`
	Embeddings [][]float64 `json:"embeddings"`
}

const currentStoreVersion = 2

// CurrentStoreVersion returns the schema version written by this build.
func CurrentStoreVersion() int {
	return currentStoreVersion
}

// NewStoreDocument converts an in-memory identity mapping into its document form.
func NewStoreDocument(identities map[string]*Identity) StoreDocument {
	doc := StoreDocument{
		Version:    currentStoreVersion,
		Identities: make(map[string]IdentityRecord, len(identities)),
	}
	for id, ident := range identities {
		embeddings := ident.Embeddings
		if embeddings == nil {
			embeddings = [][]float64{}
		}
		doc.Identities[id] = IdentityRecord{
			Name:       ident.Name,
			Group:      ident.Group,
			Embeddings: embeddings,
		}
	}
	return doc
}

// IdentityMap converts the document back into an identity mapping.
func (d StoreDocument) IdentityMap() map[string]*Identity {
	out := make(map[string]*Identity, len(d.Identities))
	for id, rec := range d.Identities {
		group := rec.Group
		if group == "" {
			group = DefaultGroup
		}
		out[id] = &Identity{
			ID:         id,
			Name:       rec.Name,
			Group:      group,
			Embeddings: rec.Embeddings,
		}
	}
	return out
}

// SortedIDs returns the identity ids in ascending order.
// This is the enumeration order every backend exposes to the matcher.
func SortedIDs(identities map[string]*Identity) []string {
	ids := make([]string, 0, len(identities))
	for id := range identities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Groups returns the sorted distinct groups of the given identities.
func Groups(identities map[string]*Identity) []string {
	seen := make(map[string]struct{})
	for _, ident := range identities {
		group := ident.Group
		if group == "" {
			group = DefaultGroup
		}
		seen[group] = struct{}{}
	}
	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// ApplyUpsert creates or updates an identity in place.
// The embedding is appended to the history, never replacing prior samples.
func ApplyUpsert(identities map[string]*Identity, id, name, group string, embedding []float64) *Identity {
	if group == "" {
		group = DefaultGroup
	}
	ident, ok := identities[id]
	if !ok {
		ident = &Identity{ID: id}
		identities[id] = ident
	}
	ident.Name = name
	ident.Group = group
	sample := make([]float64, len(embedding))
	copy(sample, embedding)
	ident.Embeddings = append(ident.Embeddings, sample)
	return ident
}

// FormatDate formats a calendar date as used in ledger keys.
func FormatDate(day time.Time) string {
	return day.Format("2006-01-02")
}

// FormatClock formats a time of day as stored in attendance records.
func FormatClock(t time.Time) string {
	return t.Format("15:04:05")
}
