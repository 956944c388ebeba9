package engine

import "context"

// Engine abstracts the local inference backend. Scripture indexing uses it for
// embeddings and the generation gateway can use it for replies when no cloud
// provider is configured.
type Engine interface {
	// Chat sends messages to the given model and returns the assistant's reply.
	// opts may be nil to use the model defaults.
	Chat(ctx context.Context, model string, messages []Message, opts *ChatOptions) (string, error)

	// Embed returns the embedding vector for the given text.
	Embed(ctx context.Context, model string, text string) ([]float32, error)

	IsRunning(ctx context.Context) bool
	ListModels(ctx context.Context) ([]string, error)
	HasModel(ctx context.Context, name string) bool

	// PullModel downloads a model. The optional callback receives progress updates.
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}
