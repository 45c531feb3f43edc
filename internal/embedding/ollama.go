package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// DefaultOllamaModel produces 768-dimensional vectors.
const (
	DefaultOllamaModel     = "nomic-embed-text"
	DefaultOllamaDimension = 768
)

// Ollama embeds through a local Ollama server.
type Ollama struct {
	embedder  embeddings.Embedder
	model     string
	dimension int
}

var _ Embedder = (*Ollama)(nil)

// NewOllama connects to the configured Ollama server. The dimension must
// match what the model actually emits; every response is validated against
// it so a model swap cannot silently corrupt the vector store.
func NewOllama(cfg Config) (*Ollama, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultOllamaModel
	}
	dimension := cfg.Dimension
	if dimension == 0 {
		dimension = DefaultOllamaDimension
	}

	opts := []ollama.Option{ollama.WithModel(model)}
	if cfg.OllamaHost != "" {
		opts = append(opts, ollama.WithServerURL(cfg.OllamaHost))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create ollama embedder: %w", err)
	}

	return &Ollama{embedder: embedder, model: model, dimension: dimension}, nil
}

// Model returns the embedding model name.
func (o *Ollama) Model() string { return o.model }

// Dimension returns the expected vector dimension.
func (o *Ollama) Dimension() int { return o.dimension }

// Embed generates one vector.
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates vectors for multiple texts in one request.
func (o *Ollama) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vectors, err := o.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
	}
	for i, vector := range vectors {
		if len(vector) != o.dimension {
			return nil, fmt.Errorf("embedding %d dimension mismatch: got %d, want %d (model: %s)",
				i, len(vector), o.dimension, o.model)
		}
	}
	return vectors, nil
}
