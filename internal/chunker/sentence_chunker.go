package chunker

import (
	"regexp"
	"strings"

	"docchat/internal/domain"
)

// SentenceChunker splits each page into sentence groups with overlap,
// for finer-grained retrieval than one chunk per page. Chunks never span
// pages, so every chunk still cites a single page number.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
	splitter          *regexp.Regexp
}

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	if overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
		splitter:          regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
	}
}

func (c *SentenceChunker) Chunk(sourceID string, pages []domain.Page) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, p := range pages {
		sentences := c.splitter.FindAllString(p.Text, -1)
		if len(sentences) == 0 {
			trimmed := strings.TrimSpace(p.Text)
			if trimmed == "" {
				continue
			}
			sentences = []string{trimmed}
		}
		for i := range sentences {
			sentences[i] = strings.TrimSpace(sentences[i])
		}
		i := 0
		for i < len(sentences) {
			end := i + c.sentencesPerChunk
			if end > len(sentences) {
				end = len(sentences)
			}
			chunks = append(chunks, domain.Chunk{
				Text:       strings.Join(sentences[i:end], " "),
				SourceID:   sourceID,
				PageNumber: p.Number,
			})
			if end == len(sentences) {
				break
			}
			i = end - c.overlapSentences
		}
	}
	return chunks, nil
}
