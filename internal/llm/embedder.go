package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

type EmbedderOptions struct {
	Model     string
	APIKey    string
	BaseURL   string
	Dimension int
}

// Embedder turns text into vectors through the configured embedding model.
type Embedder struct {
	inner     *embeddings.EmbedderImpl
	dimension int
}

func NewEmbedder(opts EmbedderOptions) (*Embedder, error) {
	oopts := []openai.Option{
		openai.WithEmbeddingModel(opts.Model),
		openai.WithToken(opts.APIKey),
	}
	if opts.BaseURL != "" {
		oopts = append(oopts, openai.WithBaseURL(opts.BaseURL))
	}
	client, err := openai.New(oopts...)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}
	inner, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return &Embedder{inner: inner, dimension: opts.Dimension}, nil
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	return vec, nil
}

func (e *Embedder) Dimension() int { return e.dimension }
