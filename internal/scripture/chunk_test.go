package scripture

import (
	"strings"
	"testing"
)

func TestChunk_ShortTextSingleChunk(t *testing.T) {
	got := Chunk("  the soul is eternal  ", 1000, 200)
	if len(got) != 1 || got[0] != "the soul is eternal" {
		t.Errorf("Chunk = %q", got)
	}
	if Chunk("   ", 1000, 200) != nil {
		t.Error("blank text should produce no chunks")
	}
}

func TestChunk_SizeAndOverlap(t *testing.T) {
	words := make([]string, 600)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ") // 2999 runes

	chunks := Chunk(text, 1000, 200)
	if len(chunks) < 3 {
		t.Fatalf("got %d chunks, want at least 3", len(chunks))
	}
	for i, c := range chunks {
		if n := len([]rune(c)); n > 1000 {
			t.Errorf("chunk %d has %d runes, want <= 1000", i, n)
		}
		if strings.HasPrefix(c, "ord") || strings.HasSuffix(c, "wor") {
			t.Errorf("chunk %d split a word: %q...", i, c[:10])
		}
	}

	// Consecutive chunks share text.
	tail := chunks[0][len(chunks[0])-50:]
	if !strings.Contains(chunks[1], tail) {
		t.Error("second chunk does not overlap the first")
	}
}

func TestChunk_NoWhitespace(t *testing.T) {
	text := strings.Repeat("a", 2500)
	chunks := Chunk(text, 1000, 200)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if len(chunks[0]) != 1000 {
		t.Errorf("first chunk length = %d, want 1000", len(chunks[0]))
	}
}

func TestChunk_BadOverlapStillProgresses(t *testing.T) {
	chunks := Chunk(strings.Repeat("ab ", 100), 10, 50)
	if len(chunks) == 0 || len(chunks) > 60 {
		t.Errorf("got %d chunks", len(chunks))
	}
}
