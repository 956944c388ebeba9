package scripture

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kalambet/sakha/internal/retrieval"
)

func testCorpus() *Corpus {
	return NewCorpus([]Document{
		{Source: "bgita.pdf", Name: "Bhagavad Gita", Pages: []string{
			"The soul is never born and never dies.",
			"Perform your prescribed duty, for action is better than inaction.",
		}},
		{Source: "upanishads.txt", Name: "The Upanishads", Pages: []string{
			"Lead me from the unreal to the real, from darkness to light.",
		}},
	}, 1000, 200)
}

func TestKeyword_UniqueTermMatch(t *testing.T) {
	r := NewRetriever(testCorpus(), nil, 0)

	res, ok := r.Find(context.Background(), "darkness")
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Source != "upanishads.txt" || res.Page != 1 || res.SourceName != "The Upanishads" {
		t.Errorf("result = %+v", res)
	}
	if !strings.HasSuffix(res.Excerpt, "...") {
		t.Errorf("excerpt = %q, want trailing ellipsis", res.Excerpt)
	}
}

func TestKeyword_NoMatch(t *testing.T) {
	r := NewRetriever(testCorpus(), nil, 0)
	if res, ok := r.Find(context.Background(), "zzzqqq"); ok {
		t.Errorf("Find = %+v, want not found", res)
	}
	if _, ok := r.Find(context.Background(), "  "); ok {
		t.Error("blank query matched")
	}
}

func TestKeyword_HighestScoreThenFirstSeen(t *testing.T) {
	r := NewRetriever(testCorpus(), nil, 0)

	res, ok := r.Find(context.Background(), "prescribed duty action")
	if !ok || res.Page != 2 {
		t.Errorf("Find = (%+v, %v), want the duty page", res, ok)
	}

	// "never" and "light" each score 1 on different passages; the first wins.
	res, _ = r.Find(context.Background(), "light never")
	if res.Source != "bgita.pdf" || res.Page != 1 {
		t.Errorf("tie resolved to %s p%d, want bgita.pdf p1", res.Source, res.Page)
	}
}

func TestForMessage_FallsBackToRawQuery(t *testing.T) {
	r := NewRetriever(testCorpus(), nil, 0)

	// Themed query shares words with nothing specific, raw query hits "soul".
	res, ok := r.ForMessage(context.Background(), "tell me about the soul")
	if !ok || res.Page != 1 || res.Source != "bgita.pdf" {
		t.Errorf("ForMessage = (%+v, %v)", res, ok)
	}
}

func TestForMessage_ExplicitRequestFallbacks(t *testing.T) {
	corpus := NewCorpus([]Document{{Source: "x.txt", Pages: []string{"the nature of the soul"}}}, 1000, 200)
	r := NewRetriever(corpus, nil, 0)

	res, ok := r.ForMessage(context.Background(), "gita please")
	if !ok || res.Source != "x.txt" {
		t.Errorf("ForMessage = (%+v, %v), want fallback query hit", res, ok)
	}
}

type fakeSemantic struct {
	size    int
	matches []retrieval.Match
	err     error
	indexed []retrieval.Record
}

func (f *fakeSemantic) Nearest(context.Context, string, int, float32) ([]retrieval.Match, error) {
	return f.matches, f.err
}
func (f *fakeSemantic) Index(_ context.Context, recs []retrieval.Record) error {
	f.indexed = recs
	f.size = len(recs)
	return nil
}
func (f *fakeSemantic) Size(context.Context) (int, error) { return f.size, nil }

func TestFind_PrefersSemantic(t *testing.T) {
	sem := &fakeSemantic{size: 3, matches: []retrieval.Match{{ID: "bgita.pdf:2:0", SourceID: "bgita.pdf", Page: 2, Text: "Perform your prescribed duty"}}}
	r := NewRetriever(testCorpus(), sem, 0)

	res, ok := r.Find(context.Background(), "darkness")
	if !ok || res.Page != 2 || res.ID != "bgita.pdf:2:0" {
		t.Errorf("Find = (%+v, %v), want semantic hit", res, ok)
	}
}

func TestFind_SemanticErrorFallsBackToKeyword(t *testing.T) {
	sem := &fakeSemantic{size: 3, err: errors.New("ollama down")}
	r := NewRetriever(testCorpus(), sem, 0)

	res, ok := r.Find(context.Background(), "darkness")
	if !ok || res.Source != "upanishads.txt" {
		t.Errorf("Find = (%+v, %v), want keyword hit", res, ok)
	}
}

func TestFind_SemanticMissFallsBackToKeyword(t *testing.T) {
	sem := &fakeSemantic{size: 3}
	r := NewRetriever(testCorpus(), sem, 0)

	if _, ok := r.Find(context.Background(), "darkness"); !ok {
		t.Error("expected keyword fallback after semantic miss")
	}
}

func TestBuildIndex(t *testing.T) {
	sem := &fakeSemantic{}
	r := NewRetriever(testCorpus(), sem, 0)

	if err := r.BuildIndex(context.Background()); err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if len(sem.indexed) != 3 {
		t.Fatalf("indexed %d records, want 3", len(sem.indexed))
	}

	sem.indexed = nil
	r.BuildIndex(context.Background())
	if sem.indexed != nil {
		t.Error("up-to-date index was rebuilt")
	}
}

func TestCorpusSourcesAndPage(t *testing.T) {
	c := testCorpus()

	srcs := c.Sources()
	if len(srcs) != 2 || srcs[0].ID != "bgita.pdf" || srcs[0].Pages != 2 {
		t.Errorf("Sources = %+v", srcs)
	}

	text, total, ok := c.Page("BGITA", 2)
	if !ok || total != 2 || !strings.Contains(text, "prescribed duty") {
		t.Errorf("Page(BGITA, 2) = (%q, %d, %v)", text, total, ok)
	}
	if _, _, ok := c.Page("bgita.pdf", 3); ok {
		t.Error("out-of-range page found")
	}
	if _, _, ok := c.Page("missing", 1); ok {
		t.Error("unknown source found")
	}
}

func TestReadableName(t *testing.T) {
	tests := map[string]string{
		"bgita.pdf":          "Bhagavad Gita",
		"SB3.1.pdf":          "Srimad Bhagavatam",
		"ten-upanishads.pdf": "The Upanishads",
		"yoga_sutras.txt":    "yoga sutras",
	}
	for in, want := range tests {
		if got := ReadableName(in); got != want {
			t.Errorf("ReadableName(%q) = %q, want %q", in, got, want)
		}
	}
}
