package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// defaultParallelism caps concurrent embedding calls during indexing; a local
// Ollama serves them one model at a time anyway.
const defaultParallelism = 4

// EmbeddingEngine is the part of engine.Engine the Embedder needs.
type EmbeddingEngine interface {
	Embed(ctx context.Context, model string, text string) ([]float32, error)
}

// Embedder turns text into vectors with a fixed model.
type Embedder struct {
	engine      EmbeddingEngine
	model       string
	parallelism int
}

func NewEmbedder(e EmbeddingEngine, model string) *Embedder {
	return &Embedder{engine: e, model: model, parallelism: defaultParallelism}
}

// Embed returns the embedding of one text. An empty vector is an error: it
// would score 0 against everything.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.engine.Embed(ctx, e.model, text)
	if err != nil {
		return nil, fmt.Errorf("embedding with %s: %w", e.model, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("embedding with %s: empty vector", e.model)
	}
	return vec, nil
}

// EmbedBatch embeds texts concurrently and returns vectors index-aligned with
// texts. All vectors must share one dimension. Empty input returns nil.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.Embed(ctx, text)
			if err != nil {
				return fmt.Errorf("passage %d: %w", i, err)
			}
			out[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, vec := range out {
		if len(vec) != len(out[0]) {
			return nil, fmt.Errorf("passage %d: dimension %d, want %d", i, len(vec), len(out[0]))
		}
	}
	return out, nil
}
