package retrieval

import (
	"context"
	"fmt"
)

// Match is a passage found by similarity search.
type Match struct {
	ID       string
	SourceID string
	Page     int
	Text     string
	Distance float32
}

// Retriever embeds a query and looks up the closest stored passages.
type Retriever struct {
	embedder *Embedder
	store    VectorStore
}

func NewRetriever(embedder *Embedder, store VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Nearest returns up to topK passages whose cosine distance to the query is at
// most maxDistance, closest first.
func (r *Retriever) Nearest(ctx context.Context, query string, topK int, maxDistance float32) ([]Match, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	scored, err := r.store.Search(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}

	var out []Match
	for _, s := range scored {
		if s.Distance() > maxDistance {
			continue
		}
		out = append(out, Match{ID: s.ID, SourceID: s.SourceID, Page: s.Page, Text: s.TextChunk, Distance: s.Distance()})
	}
	return out, nil
}

// Index embeds and stores passages, replacing whatever was indexed before.
func (r *Retriever) Index(ctx context.Context, records []Record) error {
	texts := make([]string, len(records))
	for i, rec := range records {
		texts[i] = rec.TextChunk
	}
	vecs, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	for i := range records {
		records[i].Embedding = vecs[i]
	}

	if err := r.store.Replace(ctx, records); err != nil {
		return fmt.Errorf("storing index: %w", err)
	}
	return nil
}

// Size reports how many passages are indexed.
func (r *Retriever) Size(ctx context.Context) (int, error) {
	return r.store.Count(ctx)
}
