// Package retriever answers "which chunks are most similar to this
// query" over a loaded vector index.
package retriever

import (
	"context"
	"fmt"

	"docchat/internal/domain"
	"docchat/internal/index"
)

// Retriever embeds queries and runs top-k similarity search. It never
// mutates the index.
type Retriever struct {
	embedder domain.Embedder
	idx      *index.Index
}

// New creates a retriever over an already-loaded index. idx may be nil
// when no index has ever been built; every Retrieve then fails with
// ErrIndexNotFound, which is distinct from an empty index returning no
// chunks.
func New(embedder domain.Embedder, idx *index.Index) *Retriever {
	return &Retriever{embedder: embedder, idx: idx}
}

// Open loads the index at dir, verifies it was built with the configured
// embedding model, and returns a retriever over it.
func Open(embedder domain.Embedder, dir string) (*Retriever, error) {
	idx, err := index.Load(dir)
	if err != nil {
		return nil, err
	}
	if err := idx.CheckModel(embedder.ModelID()); err != nil {
		return nil, err
	}
	return New(embedder, idx), nil
}

// Retrieve returns up to topK chunks nearest to query, best match first.
// topK <= 0 means the default of 3.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.Chunk, error) {
	if r.idx == nil {
		return nil, fmt.Errorf("%w: no documents have been ingested", domain.ErrIndexNotFound)
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	results, err := r.idx.Search(vec, topK)
	if err != nil {
		return nil, err
	}
	chunks := make([]domain.Chunk, len(results))
	for i, res := range results {
		chunks[i] = res.Chunk
	}
	return chunks, nil
}
