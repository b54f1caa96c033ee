// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package embeddings

import (
	"context"

	"github.com/northbound/ragcore/internal/config"
	"github.com/northbound/ragcore/internal/domain"
)

// Embedder generates vector embeddings from text (C4). Implementations must
// be deterministic per model version, and EmbedBatch's output order must
// match its input order.
type Embedder interface {
	// EmbedText generates an embedding vector for the given text.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts (more efficient).
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimension of the embedding vectors.
	Dimension() int
}

// New creates an Embedder from the resolved configuration. Supported
// backends: "openai", "ollama", "mock" (for tests and offline development).
func New(cfg *config.Config) (Embedder, error) {
	switch cfg.EmbeddingBackend {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, domain.New(domain.KindValidation, "openai embedding backend requires OPENAI_API_KEY")
		}
		return NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModelID)
	case "ollama":
		baseURL := cfg.OllamaBaseURL
		if baseURL == "" {
			baseURL = "http://127.0.0.1:11434"
		}
		model := cfg.EmbeddingModelID
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOllamaEmbedder(baseURL, model)
	case "mock", "":
		dim := cfg.EmbeddingDim
		if dim <= 0 {
			dim = 384
		}
		return NewMockEmbedder(dim), nil
	default:
		return nil, domain.New(domain.KindValidation, "unknown embedding backend: "+cfg.EmbeddingBackend)
	}
}
