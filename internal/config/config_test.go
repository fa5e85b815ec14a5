package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Embedder.Type)
	assert.Equal(t, "ollama", cfg.LLM.Type)
	assert.Equal(t, "page", cfg.Chunker.Type)
	assert.Equal(t, "context_index", cfg.Index.Dir)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, "documents", cfg.DocumentsDir)
	require.NotNil(t, cfg.Embedder.Ollama)
	assert.Equal(t, "nomic-embed-text", cfg.Embedder.Ollama.Model)
	require.NotNil(t, cfg.LLM.Ollama)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.Ollama.BaseURL)
}

func TestLoadAppliesDefaultsToPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
embedder:
  type: openai
  openai:
    model: text-embedding-3-small
llm:
  type: openai
  openai:
    model: gpt-4o-mini
chunker:
  type: sentence
retrieval:
  top_k: 5
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 5, cfg.Chunker.SentencesPerChunk)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Embedder.OpenAI.BaseURL)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	require.NotNil(t, cfg.LLM.OpenAI)
	assert.Equal(t, 60, cfg.LLM.OpenAI.TimeoutSecs)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Index.Dir = "elsewhere"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "elsewhere", loaded.Index.Dir)
	assert.Equal(t, cfg.Embedder.Type, loaded.Embedder.Type)
}
