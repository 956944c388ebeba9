package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// keywordEngine embeds text onto axes by the presence of known words.
type keywordEngine struct{}

func (keywordEngine) Embed(_ context.Context, _ string, text string) ([]float32, error) {
	v := make([]float32, 3)
	for i, w := range []string{"soul", "duty", "love"} {
		if strings.Contains(text, w) {
			v[i] = 1
		}
	}
	return v, nil
}

func TestRetriever_IndexAndNearest(t *testing.T) {
	store := NewSQLiteStore(openTestDB(t))
	r := NewRetriever(NewEmbedder(keywordEngine{}, "m"), store)

	err := r.Index(context.Background(), []Record{
		{ID: "1", SourceID: "bgita", Page: 2, TextChunk: "the soul is never born"},
		{ID: "2", SourceID: "bgita", Page: 3, TextChunk: "do your duty"},
	})
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if n, _ := r.Size(context.Background()); n != 2 {
		t.Fatalf("Size = %d, want 2", n)
	}

	got, err := r.Nearest(context.Background(), "what is duty", 1, 0.8)
	if err != nil {
		t.Fatalf("Nearest: %v", err)
	}
	if len(got) != 1 || got[0].Page != 3 {
		t.Errorf("Nearest = %+v, want the duty passage", got)
	}

	// Orthogonal query: distance 1 exceeds the threshold.
	got, err = r.Nearest(context.Background(), "love", 1, 0.8)
	if err != nil {
		t.Fatalf("Nearest: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Nearest beyond threshold = %+v, want none", got)
	}
}

func TestRetriever_IndexReplaces(t *testing.T) {
	store := NewSQLiteStore(openTestDB(t))
	r := NewRetriever(NewEmbedder(keywordEngine{}, "m"), store)

	r.Index(context.Background(), []Record{{ID: "1", SourceID: "a", Page: 1, TextChunk: "soul"}})
	r.Index(context.Background(), []Record{{ID: "2", SourceID: "b", Page: 1, TextChunk: "duty"}})

	if n, _ := r.Size(context.Background()); n != 1 {
		t.Errorf("Size after reindex = %d, want 1", n)
	}
}

type failingEngine struct{}

func (failingEngine) Embed(context.Context, string, string) ([]float32, error) {
	return nil, errors.New("down")
}

func TestRetriever_EmbedFails(t *testing.T) {
	r := NewRetriever(NewEmbedder(failingEngine{}, "m"), NewSQLiteStore(openTestDB(t)))
	if _, err := r.Nearest(context.Background(), "soul", 1, 0.8); err == nil {
		t.Fatal("expected error when embedding fails")
	}
}
