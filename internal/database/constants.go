package database

// HNSW index parameters for face embeddings
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	// Higher values improve recall but slow down search.
	HNSWEfSearch = 100

	// HNSWCandidates is the number of candidates requested from an index
	// before exact re-ranking.
	HNSWCandidates = 32
)

// Ledger file naming
const (
	// LedgerFilePrefix is the prefix of exported ledger workbooks.
	LedgerFilePrefix = "Asistencia"

	// LedgerFileExt is the extension of exported ledger workbooks.
	LedgerFileExt = ".xlsx"
)
