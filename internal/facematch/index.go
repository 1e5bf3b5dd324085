package facematch

import (
	"encoding/binary"
	"errors"
	"hash/fnv"
	"math"
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Index wraps an HNSW graph over the flattened samples.
// Node keys are sample indices. The graph holds a single dimension, taken
// from the first non-empty sample; samples of other dimensions are skipped
// since they can never match a query of that dimension anyway.
type Index struct {
	graph       *hnsw.Graph[int]
	dim         int
	fingerprint uint64
	mu          sync.RWMutex
}

// BuildIndex builds an HNSW graph with Euclidean distance over samples.
func BuildIndex(samples []Sample) *Index {
	dim := 0
	for _, s := range samples {
		if len(s.Embedding) > 0 {
			dim = len(s.Embedding)
			break
		}
	}

	g := hnsw.NewGraph[int]()
	g.M = database.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(database.HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = database.HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance

	for i, s := range samples {
		if len(s.Embedding) != dim || dim == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(i, toFloat32(s.Embedding)))
	}

	return &Index{graph: g, dim: dim, fingerprint: Fingerprint(samples)}
}

// Candidates returns the indices of the k approximate nearest samples.
func (ix *Index) Candidates(query []float64, k int) ([]int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.graph == nil {
		return nil, errors.New("index not initialized")
	}
	if ix.graph.Len() == 0 || k <= 0 || len(query) != ix.dim {
		return nil, nil
	}

	neighbors := ix.graph.Search(toFloat32(query), k)
	ids := make([]int, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.Key
	}
	return ids, nil
}

// Len returns the number of indexed samples.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.graph == nil {
		return 0
	}
	return ix.graph.Len()
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// Fingerprint hashes the owners, positions and values of samples so a cached
// index can be detected as stale.
func Fingerprint(samples []Sample) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, s := range samples {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(s.OwnerID)))
		h.Write(buf[:])
		h.Write([]byte(s.OwnerID))
		binary.LittleEndian.PutUint64(buf[:], uint64(s.Position))
		h.Write(buf[:])
		for _, x := range s.Embedding {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
			h.Write(buf[:])
		}
	}
	return h.Sum64()
}

// IndexCache keeps the last built index and rebuilds it when the samples change.
type IndexCache struct {
	mu    sync.Mutex
	index *Index
}

// Get returns an index matching samples, building a new one if needed.
func (c *IndexCache) Get(samples []Sample) *Index {
	fp := Fingerprint(samples)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.index != nil && c.index.fingerprint == fp {
		return c.index
	}
	c.index = BuildIndex(samples)
	return c.index
}
