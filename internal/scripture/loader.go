package scripture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

var (
	// Extracted PDF text often loses spaces between words.
	joinedCase  = regexp.MustCompile(`([a-z])([A-Z])`)
	joinedPunct = regexp.MustCompile(`([.,;:!?])([A-Za-z])`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// ErrUnsupported is returned for files with no reader.
var ErrUnsupported = errors.New("unsupported document type")

// LoadDir reads every supported document in dir concurrently. A document that
// fails to parse is logged and skipped. A missing directory yields no
// documents and no error.
func LoadDir(ctx context.Context, dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("scripture directory does not exist", "dir", dir)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading scripture directory: %w", err)
	}

	cat, err := LoadCatalog(filepath.Join(dir, CatalogFile))
	if err != nil {
		slog.Warn("ignoring scripture catalog", "error", err)
		cat = Catalog{}
	}

	var (
		mu   sync.Mutex
		docs []Document
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, e := range entries {
		if e.IsDir() || !supported(e.Name()) || cat.skipped(e.Name()) {
			continue
		}
		name := e.Name()
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			pages, err := readPages(filepath.Join(dir, name))
			if err != nil {
				slog.Error("loading scripture failed", "file", name, "error", err)
				return nil
			}
			mu.Lock()
			docs = append(docs, Document{Source: name, Name: cat.name(name), Pages: pages})
			mu.Unlock()
			slog.Info("loaded scripture", "file", name, "pages", len(pages))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Source < docs[j].Source })
	return docs, nil
}

func supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf", ".html", ".htm", ".txt", ".md":
		return true
	}
	return false
}

func readPages(path string) ([]string, error) {
	var (
		pages []string
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		pages, err = readPDF(path)
	case ".html", ".htm":
		pages, err = readHTML(path)
	case ".txt", ".md":
		pages, err = readText(path)
	default:
		return nil, ErrUnsupported
	}
	if err != nil {
		return nil, err
	}
	for i := range pages {
		pages[i] = normalizeText(pages[i])
	}
	return pages, nil
}

func readPDF(path string) (pages []string, err error) {
	// The pdf reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("reading pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	pages = make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extracting page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func readHTML(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		if n.Type == html.ElementNode && n.Data == "hr" {
			sb.WriteByte('\f')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return splitPages(sb.String()), nil
}

func readText(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return splitPages(string(raw)), nil
}

// splitPages splits on form feeds; text without them is a single page.
func splitPages(s string) []string {
	pages := strings.Split(s, "\f")
	for len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}

func normalizeText(s string) string {
	s = strings.ToValidUTF8(s, "�")
	s = joinedCase.ReplaceAllString(s, "$1 $2")
	s = joinedPunct.ReplaceAllString(s, "$1 $2")
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
