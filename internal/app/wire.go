// Package app assembles configured components for the command binaries.
package app

import (
	"fmt"
	"time"

	"docchat/internal/chunker"
	"docchat/internal/config"
	"docchat/internal/domain"
	embollama "docchat/internal/embedding/ollama"
	embopenai "docchat/internal/embedding/openai"
	llmollama "docchat/internal/llm/ollama"
	llmopenai "docchat/internal/llm/openai"
)

// BuildEmbedder constructs the configured embedding provider.
func BuildEmbedder(cfg *config.AppConfig) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "ollama", "":
		oc := cfg.Embedder.Ollama
		if oc == nil {
			oc = &config.OllamaConfig{}
		}
		return embollama.NewClient(embollama.Config{
			BaseURL: oc.BaseURL,
			Model:   oc.Model,
			Timeout: time.Duration(oc.TimeoutSecs) * time.Second,
		}), nil
	case "openai":
		oc := cfg.Embedder.OpenAI
		if oc == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		return embopenai.NewClient(embopenai.Config{
			BaseURL:   oc.BaseURL,
			APIKeyEnv: oc.APIKeyEnv,
			Model:     oc.Model,
			Timeout:   time.Duration(oc.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}

// BuildChatModel constructs the configured chat backend.
func BuildChatModel(cfg *config.AppConfig) (domain.ChatModel, error) {
	switch cfg.LLM.Type {
	case "ollama", "":
		oc := cfg.LLM.Ollama
		if oc == nil {
			oc = &config.OllamaConfig{}
		}
		return llmollama.NewClient(llmollama.Config{
			BaseURL: oc.BaseURL,
			Model:   oc.Model,
			Timeout: time.Duration(oc.TimeoutSecs) * time.Second,
		}), nil
	case "openai":
		oc := cfg.LLM.OpenAI
		if oc == nil {
			return nil, fmt.Errorf("openai llm config missing")
		}
		return llmopenai.NewClient(llmopenai.Config{
			BaseURL:   oc.BaseURL,
			APIKeyEnv: oc.APIKeyEnv,
			Model:     oc.Model,
			Timeout:   time.Duration(oc.TimeoutSecs) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown llm: %s", cfg.LLM.Type)
	}
}

// BuildChunker constructs the configured chunking strategy.
func BuildChunker(cfg *config.AppConfig) (domain.Chunker, error) {
	switch cfg.Chunker.Type {
	case "page", "":
		return chunker.NewPageChunker(), nil
	case "sentence":
		return chunker.NewSentenceChunker(cfg.Chunker.SentencesPerChunk, cfg.Chunker.OverlapSentences), nil
	default:
		return nil, fmt.Errorf("unknown chunker: %s", cfg.Chunker.Type)
	}
}
