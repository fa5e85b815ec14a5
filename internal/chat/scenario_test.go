package chat

import (
	"context"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/chunker"
	"docchat/internal/domain"
	"docchat/internal/ingest"
	"docchat/internal/retriever"
)

// End-to-end flow over the real pipeline, index and retriever, with the
// extraction and model boundaries faked: ingest a one-page policy
// document, ask about it, and check retrieval provenance and the cited
// answer.

type onePageExtractor struct {
	text string
}

func (e onePageExtractor) Extract(string) ([]domain.Page, error) {
	return []domain.Page{{Number: 1, Text: e.text}}, nil
}

type bowEmbedder struct{}

var bowTokenRe = regexp.MustCompile(`[a-z0-9]+`)

func (bowEmbedder) ModelID() string { return "fake:bow" }
func (bowEmbedder) Dimension() int  { return 16 }

func (bowEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, 16)
	for _, tok := range bowTokenRe.FindAllString(strings.ToLower(text), -1) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[int(h.Sum32()%16)]++
	}
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

func TestVacationPolicyScenario(t *testing.T) {
	folder := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(folder, "policy.pdf"), []byte("pdf bytes"), 0o644))
	indexDir := filepath.Join(t.TempDir(), "context_index")

	extractor := onePageExtractor{text: "Employees get 20 vacation days per year."}
	pipeline := ingest.NewPipeline(extractor, chunker.NewPageChunker(), bowEmbedder{}, indexDir, nil)
	report, err := pipeline.IngestAll(context.Background(), folder)
	require.NoError(t, err)
	require.Equal(t, 1, report.Chunks)

	// Query in a separate "process": open the persisted index fresh.
	ret, err := retriever.Open(bowEmbedder{}, indexDir)
	require.NoError(t, err)

	chunks, err := ret.Retrieve(context.Background(), "How many vacation days do employees get?", 1)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "policy.pdf", chunks[0].SourceID)
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Contains(t, chunks[0].Text, "20 vacation days")

	model := &fakeModel{answer: []string{"Employees get 20 vacation days per year. ", "(policy.pdf, page 1)"}}
	engine := NewEngine(ret, model, 1)

	turn, err := engine.Run(context.Background(), "How many vacation days do employees get?", "", "scenario")
	require.NoError(t, err)
	_, err = collect(t, turn)
	require.NoError(t, err)

	state, ok := engine.State("scenario")
	require.True(t, ok)
	assert.Contains(t, state.Answer, "20")
	assert.Contains(t, state.Answer, "policy.pdf")
	assert.Contains(t, state.Answer, "page 1")

	// The model was grounded in exactly the ingested chunk.
	prompt := model.lastPrompt(t)
	assert.Contains(t, prompt[0].Content, "Employees get 20 vacation days per year.")
	assert.Contains(t, prompt[0].Content, "[source: policy.pdf, page 1]")
}
