package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/sakha/internal/storage"
)

// openTestDB returns a migrated in-memory database holding scripture_vectors.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	s, err := storage.Open(storage.MemoryDSN)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s.DB()
}

// axis returns a unit vector along dimension i.
func axis(dim, i int) []float32 {
	v := make([]float32, dim)
	v[i] = 1
	return v
}

func ids(recs []ScoredRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestReplaceAndSearch(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteStore(openTestDB(t))

	err := s.Replace(ctx, []Record{
		{ID: "a", SourceID: "bgita", Page: 3, TextChunk: "the soul is eternal", Embedding: axis(4, 0)},
		{ID: "b", SourceID: "bgita", Page: 7, TextChunk: "act without attachment", Embedding: axis(4, 1)},
	})
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}

	got, err := s.Search(ctx, axis(4, 1), 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	if got[0].ID != "b" || got[0].Page != 7 || got[0].TextChunk != "act without attachment" {
		t.Errorf("top result = %+v, want record b", got[0].Record)
	}
	if d := got[0].Distance(); math.Abs(float64(d)) > 1e-6 {
		t.Errorf("distance = %f, want 0", d)
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not filled in")
	}
}

func TestSearch_BestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteStore(openTestDB(t))

	var recs []Record
	for i := range 5 {
		recs = append(recs, Record{
			ID:        fmt.Sprintf("r%d", i),
			SourceID:  "s",
			Page:      i + 1,
			TextChunk: "t",
			Embedding: []float32{1, float32(i), 0},
		})
	}
	// Insert in reverse so result order cannot come from row order.
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	if err := s.Replace(ctx, recs); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	got, err := s.Search(ctx, []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if diff := cmp.Diff([]string{"r0", "r1", "r2"}, ids(got)); diff != "" {
		t.Errorf("ranking (-want +got):\n%s", diff)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("scores not descending: %v then %v", got[i-1].Score, got[i].Score)
		}
	}
}

func TestSearch_NothingToReturn(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteStore(openTestDB(t))

	if got, err := s.Search(ctx, axis(3, 0), 5); err != nil || len(got) != 0 {
		t.Errorf("empty table: Search = (%v, %v), want nothing", got, err)
	}

	if err := s.Replace(ctx, []Record{{ID: "a", SourceID: "s", Page: 1, TextChunk: "t", Embedding: axis(3, 0)}}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if got, err := s.Search(ctx, axis(3, 0), 0); err != nil || len(got) != 0 {
		t.Errorf("topK 0: Search = (%v, %v), want nothing", got, err)
	}
	if got, err := s.Search(ctx, make([]float32, 3), 1); err != nil || len(got) != 0 {
		t.Errorf("zero query: Search = (%v, %v), want nothing", got, err)
	}
}

func TestSearch_LegacyRowsWithoutNorm(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	_, err := db.Exec(`INSERT INTO scripture_vectors (id, source_id, page, text_chunk, embedding, created_at)
		VALUES ('old', 's', 1, 't', ?, '2024-01-01T00:00:00Z')`, vectorBlob([]float32{0, 3, 4}))
	if err != nil {
		t.Fatalf("inserting legacy row: %v", err)
	}

	got, err := NewSQLiteStore(db).Search(ctx, []float32{0, 3, 4}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || math.Abs(float64(got[0].Score)-1) > 1e-6 {
		t.Errorf("Search = %+v, want legacy row with score 1", got)
	}
}

func TestReplace_SwapsWholeIndex(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteStore(openTestDB(t))

	first := []Record{
		{ID: "a", SourceID: "s", Page: 1, TextChunk: "x", Embedding: axis(2, 0)},
		{ID: "b", SourceID: "s", Page: 2, TextChunk: "y", Embedding: axis(2, 1)},
	}
	if err := s.Replace(ctx, first); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if n, err := s.Count(ctx); err != nil || n != 2 {
		t.Fatalf("Count = (%d, %v), want 2", n, err)
	}

	if err := s.Replace(ctx, []Record{{ID: "c", SourceID: "t", Page: 1, TextChunk: "z", Embedding: axis(2, 0)}}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	got, err := s.Search(ctx, axis(2, 0), 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if diff := cmp.Diff([]string{"c"}, ids(got)); diff != "" {
		t.Errorf("after second Replace (-want +got):\n%s", diff)
	}
}

func TestReplace_DuplicateIDRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewSQLiteStore(openTestDB(t))
	if err := s.Replace(ctx, []Record{{ID: "keep", SourceID: "s", Page: 1, TextChunk: "x", Embedding: axis(2, 0)}}); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	dup := []Record{
		{ID: "d", SourceID: "s", Page: 1, TextChunk: "x", Embedding: axis(2, 0)},
		{ID: "d", SourceID: "s", Page: 2, TextChunk: "y", Embedding: axis(2, 1)},
	}
	if err := s.Replace(ctx, dup); err == nil {
		t.Fatal("Replace with duplicate ids succeeded")
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("Count after failed Replace = %d, want the previous 1", n)
	}
}

func TestLeaders(t *testing.T) {
	l := &leaders{k: 3}
	for _, c := range []scored{{"a", 0.1}, {"b", 0.9}, {"c", 0.5}, {"d", 0.5}, {"e", 0.2}, {"f", 0.95}} {
		l.offer(c.id, c.score)
	}
	var got []string
	for _, it := range l.items {
		got = append(got, it.id)
	}
	if diff := cmp.Diff([]string{"f", "b", "c"}, got); diff != "" {
		t.Errorf("leaders (-want +got):\n%s", diff)
	}
}

func TestVectorBlobRoundTrip(t *testing.T) {
	in := []float32{0, 1.5, -2.25, float32(math.Pi)}
	out, err := readVector(nil, vectorBlob(in))
	if err != nil {
		t.Fatalf("readVector: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip (-in +out):\n%s", diff)
	}
	if _, err := readVector(nil, []byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
