package retrieval

import (
	"context"
	"time"
)

// VectorStore stores passage embeddings and answers nearest-neighbour queries.
type VectorStore interface {
	// Replace swaps the whole index for records atomically. Readers see
	// either the old set or the new one.
	Replace(ctx context.Context, records []Record) error

	// Search returns the topK records most similar to vector, best first.
	Search(ctx context.Context, vector []float32, topK int) ([]ScoredRecord, error)

	Count(ctx context.Context) (int, error)
}

// Record is one embedded scripture passage.
type Record struct {
	ID        string
	SourceID  string
	Page      int
	TextChunk string
	Embedding []float32
	CreatedAt time.Time
}

// ScoredRecord is a Record with its cosine similarity to the query.
type ScoredRecord struct {
	Record
	Score float32
}

// Distance is the cosine distance, 1 - similarity.
func (r ScoredRecord) Distance() float32 {
	return 1 - r.Score
}
