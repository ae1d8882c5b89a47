package store

import (
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/face-attend/internal/attendance"
)

// hnswMaxNeighbors is the M parameter of the HNSW graph.
const hnswMaxNeighbors = 16

// ProfileIndex is an in-memory HNSW index over enrolled profile embeddings.
// Enrollment uses it to flag a new profile that sits suspiciously close to a
// different identity's embedding, which usually means someone enrolled under
// the wrong account.
type ProfileIndex struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[string]
	count int
}

// NewProfileIndex creates an empty index.
func NewProfileIndex() *ProfileIndex {
	return &ProfileIndex{}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.EuclideanDistance
	return g
}

// Build replaces the index contents with the given profiles.
func (x *ProfileIndex) Build(profiles []attendance.EnrolledProfile) {
	x.mu.Lock()
	defer x.mu.Unlock()

	g := newGraph()
	count := 0
	for _, p := range profiles {
		if len(p.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(p.OwnerID, p.Embedding))
		count++
	}
	x.graph = g
	x.count = count
}

// Add inserts or replaces one profile in the index.
func (x *ProfileIndex) Add(p *attendance.EnrolledProfile) {
	if len(p.Embedding) == 0 {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.graph == nil {
		x.graph = newGraph()
	}
	x.graph.Add(hnsw.MakeNode(p.OwnerID, p.Embedding))
	x.count++
}

// Count returns the number of indexed profiles.
func (x *ProfileIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.count
}

// Nearest returns the owner whose enrolled embedding is closest to the
// query, excluding the given owner ID. ok is false when the index holds no
// other profiles.
func (x *ProfileIndex) Nearest(query []float32, excludeOwner string) (owner string, distance float64, ok bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil {
		return "", 0, false
	}

	// Ask for two so the excluded owner's own node can be skipped.
	neighbors := x.graph.Search(query, 2)
	for _, n := range neighbors {
		if n.Key == excludeOwner {
			continue
		}
		return n.Key, float64(hnsw.EuclideanDistance(query, n.Value)), true
	}
	return "", 0, false
}
