// Package embedding generates chunk embeddings. Two providers exist: "ollama"
// talks to a local Ollama server, "local" is a deterministic hashing embedder
// that needs no model at all and keeps indexing functional offline.
package embedding

import (
	"context"
	"fmt"
)

// Embedder is the embedding capability the pipeline depends on.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimension() int
}

// ProviderType identifies an embedding backend.
type ProviderType string

const (
	ProviderLocal  ProviderType = "local"
	ProviderOllama ProviderType = "ollama"
)

// Config selects and parameterizes a provider.
type Config struct {
	Provider  ProviderType
	Model     string
	Dimension int
	// OllamaHost overrides the server URL; empty falls back to
	// OLLAMA_HOST or the Ollama default.
	OllamaHost string
}

// New builds an Embedder from configuration.
func New(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case ProviderLocal, "":
		return NewLocal(cfg.Dimension), nil
	case ProviderOllama:
		return NewOllama(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}
