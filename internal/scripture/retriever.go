package scripture

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/kalambet/sakha/internal/retrieval"
)

// DefaultMaxDistance is the cosine distance above which a semantic hit is rejected.
const DefaultMaxDistance = 0.8

const excerptLen = 150

// Result is a passage chosen for a conversation.
type Result struct {
	ID         string
	Text       string
	Source     string
	SourceName string
	Page       int
	Excerpt    string
}

// Semantic is the embedding index used when available.
type Semantic interface {
	Nearest(ctx context.Context, query string, topK int, maxDistance float32) ([]retrieval.Match, error)
	Index(ctx context.Context, records []retrieval.Record) error
	Size(ctx context.Context) (int, error)
}

// Retriever finds passages by embedding similarity when an index exists and
// by query-term overlap otherwise.
type Retriever struct {
	corpus      *Corpus
	lower       []string
	semantic    Semantic
	maxDistance float32
}

// NewRetriever builds a retriever over corpus. semantic may be nil.
func NewRetriever(corpus *Corpus, semantic Semantic, maxDistance float32) *Retriever {
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistance
	}
	lower := make([]string, corpus.Len())
	for i, p := range corpus.Passages() {
		lower[i] = strings.ToLower(p.Text)
	}
	return &Retriever{corpus: corpus, lower: lower, semantic: semantic, maxDistance: maxDistance}
}

// Corpus returns the underlying corpus.
func (r *Retriever) Corpus() *Corpus {
	return r.corpus
}

// BuildIndex embeds every passage into the semantic index unless it already
// holds exactly the corpus' passage count.
func (r *Retriever) BuildIndex(ctx context.Context) error {
	if r.semantic == nil || r.corpus.Len() == 0 {
		return nil
	}
	if n, err := r.semantic.Size(ctx); err == nil && n == r.corpus.Len() {
		slog.Info("scripture index up to date", "passages", n)
		return nil
	}

	passages := r.corpus.Passages()
	records := make([]retrieval.Record, len(passages))
	for i, p := range passages {
		records[i] = retrieval.Record{ID: p.ID, SourceID: p.Source, Page: p.Page, TextChunk: p.Text}
	}
	if err := r.semantic.Index(ctx, records); err != nil {
		return err
	}
	slog.Info("scripture index built", "passages", len(records))
	return nil
}

// Find returns the best passage for query, or false when nothing matches.
func (r *Retriever) Find(ctx context.Context, query string) (Result, bool) {
	if strings.TrimSpace(query) == "" {
		return Result{}, false
	}
	if r.semanticReady(ctx) {
		matches, err := r.semantic.Nearest(ctx, query, 1, r.maxDistance)
		if err != nil {
			slog.Warn("semantic scripture search failed, using keywords", "error", err)
		} else if len(matches) > 0 {
			m := matches[0]
			return r.result(Passage{ID: m.ID, Source: m.SourceID, Page: m.Page, Text: m.Text}), true
		}
	}
	return r.findKeyword(query)
}

// ForMessage searches with the message's themed query first and the raw
// message second. A message that asks for scripture by name falls back to a
// fixed list of general queries.
func (r *Retriever) ForMessage(ctx context.Context, message string) (Result, bool) {
	if q, ok := ExpandQuery(message); ok {
		if res, found := r.Find(ctx, q); found {
			return res, true
		}
	}
	if res, found := r.Find(ctx, message); found {
		return res, true
	}
	if IsExplicitRequest(message) {
		for _, q := range FallbackQueries {
			if res, found := r.Find(ctx, q); found {
				return res, true
			}
		}
	}
	return Result{}, false
}

func (r *Retriever) semanticReady(ctx context.Context) bool {
	if r.semantic == nil {
		return false
	}
	n, err := r.semantic.Size(ctx)
	return err == nil && n > 0
}

// findKeyword scores each passage by how many distinct query terms it
// contains. The first passage with the highest positive score wins.
func (r *Retriever) findKeyword(query string) (Result, bool) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return Result{}, false
	}

	best, bestScore := -1, 0
	for i, text := range r.lower {
		score := 0
		for _, t := range terms {
			if strings.Contains(text, t) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return Result{}, false
	}
	return r.result(r.corpus.Passages()[best]), true
}

func queryTerms(query string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, f := range strings.Fields(strings.ToLower(query)) {
		t := strings.TrimFunc(f, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		terms = append(terms, t)
	}
	return terms
}

func (r *Retriever) result(p Passage) Result {
	return Result{
		ID:         p.ID,
		Text:       p.Text,
		Source:     p.Source,
		SourceName: r.corpus.Name(p.Source),
		Page:       p.Page,
		Excerpt:    Excerpt(p.Text),
	}
}

// Excerpt returns the first 150 characters of text followed by "...".
func Excerpt(text string) string {
	rs := []rune(text)
	if len(rs) > excerptLen {
		rs = rs[:excerptLen]
	}
	return string(rs) + "..."
}
