// Package semantic scores anchor similarity with text embeddings. It supplies
// the residue-compatibility predicate the linker consults during canonical
// resolution, plus an "embedding" activation kind for indirect links. All
// embedding I/O happens out-of-band: the engine-facing paths only read a
// primed in-memory cache.
package semantic

import (
	"context"
	"fmt"
	"strings"
)

// Embedder converts texts to vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Options selects and configures an embedding provider.
type Options struct {
	Provider  string
	APIKey    string
	Model     string
	Dimension int
	BaseURL   string
}

// NewEmbedder builds the configured provider. An empty provider selects
// Gemini.
func NewEmbedder(ctx context.Context, opts Options) (Embedder, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if provider == "" {
		provider = "gemini"
	}

	switch provider {
	case "gemini":
		return NewGeminiEmbedder(ctx, opts.APIKey, opts.Model, opts.Dimension)
	case "ollama":
		return NewOllamaEmbedder(opts.Model, opts.Dimension, opts.BaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported embedder provider: %s", opts.Provider)
	}
}
