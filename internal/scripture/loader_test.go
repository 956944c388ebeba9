package scripture

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDir(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	writeFile(t, dir, "gita.txt", "Chapter one\fThe soul\n  is eternal.")
	writeFile(t, dir, "sayings.html", `<html><head><style>p{}</style></head><body><p>Be still.</p><hr><p>Know the self.</p></body></html>`)
	writeFile(t, dir, "broken.pdf", "not a pdf")
	writeFile(t, dir, "notes.docx", "ignored")
	writeFile(t, dir, "draft.txt", "skip me")
	writeFile(t, dir, CatalogFile, "names:\n  gita.txt: Song of God\nskip:\n  - draft.txt\n")

	docs, err := LoadDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	want := []Document{
		{Source: "gita.txt", Name: "Song of God", Pages: []string{"Chapter one", "The soul is eternal."}},
		{Source: "sayings.html", Name: "sayings", Pages: []string{"Be still.", "Know the self."}},
	}
	if diff := cmp.Diff(want, docs); diff != "" {
		t.Errorf("LoadDir mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadDir_Missing(t *testing.T) {
	docs, err := LoadDir(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if err != nil || docs != nil {
		t.Errorf("LoadDir(missing) = (%v, %v), want (nil, nil)", docs, err)
	}
}

func TestLoadCatalog_Invalid(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, CatalogFile, "names: [unclosed")
	if _, err := LoadCatalog(filepath.Join(dir, CatalogFile)); err == nil {
		t.Error("expected parse error")
	}
}

func TestNormalizeText(t *testing.T) {
	got := normalizeText("theSoul is\n\n eternal.It  never dies")
	want := "the Soul is eternal. It never dies"
	if got != want {
		t.Errorf("normalizeText = %q, want %q", got, want)
	}
}
