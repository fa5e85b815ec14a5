// Package ingest turns source documents into indexed, searchable chunks:
// extract pages, chunk, embed, insert into the vector index, persist.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"docchat/internal/domain"
	"docchat/internal/index"
	"docchat/internal/summarizer"
)

// Pipeline ingests documents into a vector index. The embedder must be
// the same model used later at query time; the index manifest records it.
type Pipeline struct {
	extractor domain.Extractor
	chunker   domain.Chunker
	embedder  domain.Embedder
	digester  *summarizer.FrequencySummarizer
	indexDir  string
	idx       *index.Index
}

// FileFailure records one document that could not be ingested.
type FileFailure struct {
	Path string
	Err  error
}

// Report summarizes a batch ingestion: per-run counts, every collected
// failure, and a short digest of the newly indexed text.
type Report struct {
	Files    int
	Chunks   int
	Failures []FileFailure
	Digest   string
}

// NewPipeline creates an ingestion pipeline writing to indexDir. idx may
// be nil; it is then loaded from indexDir (or created fresh by IngestAll)
// on first use.
func NewPipeline(extractor domain.Extractor, chunker domain.Chunker, embedder domain.Embedder, indexDir string, idx *index.Index) *Pipeline {
	return &Pipeline{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		digester:  summarizer.NewFrequencySummarizer(),
		indexDir:  indexDir,
		idx:       idx,
	}
}

// Ingest processes a single document into an existing index and persists
// the result. It fails with ErrIndexNotFound when no index has ever been
// built: single-file ingestion extends a knowledge base, it does not
// start one. If persisting fails the new chunks are still searchable in
// memory; Save can be retried without re-embedding.
func (p *Pipeline) Ingest(ctx context.Context, path string) error {
	if p.idx == nil {
		loaded, err := index.Load(p.indexDir)
		if err != nil {
			return err
		}
		if err := loaded.CheckModel(p.embedder.ModelID()); err != nil {
			return err
		}
		p.idx = loaded
	}
	if _, err := p.ingestFile(ctx, path); err != nil {
		return err
	}
	if err := p.Save(); err != nil {
		return fmt.Errorf("document indexed but not persisted (retry save): %w", err)
	}
	return nil
}

// IngestAll processes every file in folder, loading the existing index
// once (or starting a fresh one) and saving once at the end. A file that
// fails extraction does not stop the batch; all failures are collected
// in the report. Embedding-backend failures abort the batch, since every
// remaining file would fail the same way.
func (p *Pipeline) IngestAll(ctx context.Context, folder string) (*Report, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("reading documents folder: %w", err)
	}

	if p.idx == nil && index.Exists(p.indexDir) {
		loaded, err := index.Load(p.indexDir)
		if err != nil {
			return nil, err
		}
		if err := loaded.CheckModel(p.embedder.ModelID()); err != nil {
			return nil, err
		}
		p.idx = loaded
	}

	report := &Report{}
	var ingested strings.Builder
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(folder, entry.Name())
		chunks, err := p.ingestFile(ctx, path)
		if err != nil {
			if errors.Is(err, domain.ErrExtractionFailed) {
				report.Failures = append(report.Failures, FileFailure{Path: path, Err: err})
				continue
			}
			return report, err
		}
		report.Files++
		report.Chunks += len(chunks)
		for _, c := range chunks {
			ingested.WriteString(c.Text)
			ingested.WriteString("\n")
		}
	}

	if report.Chunks > 0 {
		report.Digest = p.digester.Summarize(ingested.String(), 3)
	}
	if p.idx != nil {
		if err := p.Save(); err != nil {
			return report, fmt.Errorf("batch indexed but not persisted (retry save): %w", err)
		}
	}
	return report, nil
}

// Save persists the current in-memory index. Safe to retry after a
// failed persist; nothing is recomputed.
func (p *Pipeline) Save() error {
	if p.idx == nil {
		return fmt.Errorf("%w: nothing ingested yet", domain.ErrIndexNotFound)
	}
	return p.idx.Save(p.indexDir)
}

// ingestFile extracts, chunks, embeds and inserts one document as a
// single atomic batch. The index is untouched when any step fails.
func (p *Pipeline) ingestFile(ctx context.Context, path string) ([]domain.Chunk, error) {
	pages, err := p.extractor.Extract(path)
	if err != nil {
		return nil, err
	}
	sourceID := filepath.Base(path)
	chunks, err := p.chunker.Chunk(sourceID, pages)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	entries := make([]index.Entry, len(chunks))
	for i, c := range chunks {
		vec, err := p.embedder.Embed(ctx, c.Text)
		if err != nil {
			return nil, fmt.Errorf("embedding %s page %d: %w", sourceID, c.PageNumber, err)
		}
		entries[i] = index.Entry{Vector: vec, Chunk: c}
	}

	if p.idx == nil {
		// The provider's dimension is known by now: at least one Embed
		// call has succeeded. Insert still validates every vector
		// against it.
		created, err := index.New(p.embedder.Dimension(), p.embedder.ModelID())
		if err != nil {
			return nil, err
		}
		p.idx = created
	}
	if err := p.idx.Insert(entries); err != nil {
		return nil, err
	}
	return chunks, nil
}
