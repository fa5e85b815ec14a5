package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/domain"
)

func TestPageChunkerOneChunkPerPage(t *testing.T) {
	c := NewPageChunker()
	chunks, err := c.Chunk("policy.pdf", []domain.Page{
		{Number: 1, Text: "Employees get 20 vacation days per year."},
		{Number: 2, Text: "  "},
		{Number: 3, Text: "Unused days expire in March."},
	})
	require.NoError(t, err)
	require.Len(t, chunks, 2, "empty pages are skipped")
	assert.Equal(t, "policy.pdf", chunks[0].SourceID)
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Equal(t, "Employees get 20 vacation days per year.", chunks[0].Text)
	assert.Equal(t, 3, chunks[1].PageNumber)
}

func TestSentenceChunkerGroupsWithOverlap(t *testing.T) {
	c := NewSentenceChunker(2, 1)
	chunks, err := c.Chunk("doc.pdf", []domain.Page{
		{Number: 5, Text: "One. Two. Three. Four."},
	})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "One. Two.", chunks[0].Text)
	assert.Equal(t, "Two. Three.", chunks[1].Text)
	assert.Equal(t, "Three. Four.", chunks[2].Text)
	for _, ch := range chunks {
		assert.Equal(t, 5, ch.PageNumber, "chunks never span pages")
		assert.Equal(t, "doc.pdf", ch.SourceID)
	}
}

func TestSentenceChunkerFallsBackOnUnpunctuatedText(t *testing.T) {
	c := NewSentenceChunker(3, 0)
	chunks, err := c.Chunk("doc.pdf", []domain.Page{{Number: 1, Text: "no terminal punctuation here"}})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "no terminal punctuation here", chunks[0].Text)
}
