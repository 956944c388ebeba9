// Package scripture loads paginated scripture documents once at startup and
// finds passages relevant to a conversation.
package scripture

import (
	"fmt"
	"sort"
	"strings"
)

// Passage is one chunk of a scripture page.
type Passage struct {
	ID     string
	Source string
	Page   int // 1-based
	Text   string
}

// Document is a loaded scripture file.
type Document struct {
	Source string
	Name   string
	Pages  []string
}

// SourceInfo describes an available scripture.
type SourceInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Pages int    `json:"pages"`
}

// Corpus is the read-only set of loaded documents and their passages.
type Corpus struct {
	docs     []Document
	passages []Passage
}

// NewCorpus chunks every page of docs. Documents are kept in source order so
// keyword ties resolve deterministically.
func NewCorpus(docs []Document, chunkSize, overlap int) *Corpus {
	sorted := append([]Document(nil), docs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Source < sorted[j].Source })

	c := &Corpus{docs: sorted}
	for _, d := range sorted {
		for i, page := range d.Pages {
			for j, text := range Chunk(page, chunkSize, overlap) {
				c.passages = append(c.passages, Passage{
					ID:     fmt.Sprintf("%s:%d:%d", d.Source, i+1, j),
					Source: d.Source,
					Page:   i + 1,
					Text:   text,
				})
			}
		}
	}
	return c
}

// Passages returns all chunks in corpus order.
func (c *Corpus) Passages() []Passage {
	return c.passages
}

func (c *Corpus) Len() int {
	return len(c.passages)
}

// Sources lists the loaded scriptures.
func (c *Corpus) Sources() []SourceInfo {
	out := make([]SourceInfo, len(c.docs))
	for i, d := range c.docs {
		out[i] = SourceInfo{ID: d.Source, Name: d.Name, Pages: len(d.Pages)}
	}
	return out
}

// Page returns the full text of a page and the page count of its document.
// The source is matched exactly first, then by case-insensitive substring.
func (c *Corpus) Page(source string, page int) (text string, total int, ok bool) {
	d, found := c.find(source)
	if !found || page < 1 || page > len(d.Pages) {
		return "", 0, false
	}
	return d.Pages[page-1], len(d.Pages), true
}

// Name returns the readable name of a source id.
func (c *Corpus) Name(source string) string {
	if d, ok := c.find(source); ok && d.Name != "" {
		return d.Name
	}
	return ReadableName(source)
}

func (c *Corpus) find(source string) (Document, bool) {
	want := strings.ToLower(source)
	for _, d := range c.docs {
		if strings.ToLower(d.Source) == want {
			return d, true
		}
	}
	if want == "" {
		return Document{}, false
	}
	for _, d := range c.docs {
		if strings.Contains(strings.ToLower(d.Source), want) {
			return d, true
		}
	}
	return Document{}, false
}
