// Package chunker turns extracted document pages into retrievable chunks.
package chunker

import (
	"strings"

	"docchat/internal/domain"
)

// PageChunker emits one chunk per non-empty page. This keeps citations
// exact: a chunk's page number is the page the text came from.
type PageChunker struct{}

// NewPageChunker creates the default page-per-chunk splitter.
func NewPageChunker() *PageChunker { return &PageChunker{} }

func (c *PageChunker) Chunk(sourceID string, pages []domain.Page) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, p := range pages {
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			Text:       text,
			SourceID:   sourceID,
			PageNumber: p.Number,
		})
	}
	return chunks, nil
}
