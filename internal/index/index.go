// Package index implements an exact nearest-neighbor vector index over
// document chunks, with durable save/load. Search is brute-force L2 at
// the corpus scales this tool targets.
package index

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"docchat/internal/domain"
)

// Index holds (vector, chunk) pairs and answers top-k similarity queries
// under Euclidean distance. Append-only: entries are never mutated or
// removed. Safe for concurrent readers; a batch insert is atomic with
// respect to concurrent searches.
type Index struct {
	mu        sync.RWMutex
	dimension int
	modelID   string
	vectors   [][]float64
	chunks    []domain.Chunk
}

// Entry pairs an embedding vector with its backing chunk.
type Entry struct {
	Vector []float64
	Chunk  domain.Chunk
}

// New creates an empty index accepting vectors of exactly dimension
// length, fingerprinted with the embedding model that produced them.
func New(dimension int, modelID string) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid index dimension %d", dimension)
	}
	return &Index{dimension: dimension, modelID: modelID}, nil
}

// Dimension returns the configured vector length.
func (x *Index) Dimension() int { return x.dimension }

// ModelID returns the embedding model fingerprint recorded at creation.
func (x *Index) ModelID() string { return x.modelID }

// Len returns the number of stored entries.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.chunks)
}

// CheckModel fails with ErrModelMismatch when the index was built with a
// different embedding model than id. Querying across models would produce
// silently meaningless distances, so callers verify before searching.
func (x *Index) CheckModel(id string) error {
	if x.modelID != id {
		return fmt.Errorf("%w: index built with %q, configured %q",
			domain.ErrModelMismatch, x.modelID, id)
	}
	return nil
}

// Insert appends all entries as one batch. Every vector is validated
// before anything is appended, so a dimension error leaves the index
// unchanged and readers never observe a partial batch.
func (x *Index) Insert(entries []Entry) error {
	for _, e := range entries {
		if len(e.Vector) != x.dimension {
			return fmt.Errorf("%w: got %d, index dimension %d",
				domain.ErrDimensionMismatch, len(e.Vector), x.dimension)
		}
		if e.Chunk.Text == "" {
			return errors.New("chunk with empty text")
		}
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, e := range entries {
		x.vectors = append(x.vectors, e.Vector)
		x.chunks = append(x.chunks, e.Chunk)
	}
	return nil
}

// Search returns up to topK entries ranked by ascending L2 distance to
// vector. An empty index yields an empty result, not an error.
func (x *Index) Search(vector []float64, topK int) ([]domain.SearchResult, error) {
	if len(vector) != x.dimension {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, index %d",
			domain.ErrDimensionMismatch, len(vector), x.dimension)
	}
	if topK <= 0 {
		topK = 3
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	results := make([]domain.SearchResult, len(x.vectors))
	for i, v := range x.vectors {
		results[i] = domain.SearchResult{Chunk: x.chunks[i], Distance: l2(v, vector)}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

// l2 is the squared Euclidean distance. The ordering is identical to
// true L2 and the square root is never needed for ranking.
func l2(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
