package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"
)

// embedFunc adapts a function to EmbeddingEngine.
type embedFunc func(ctx context.Context, model, text string) ([]float32, error)

func (f embedFunc) Embed(ctx context.Context, model, text string) ([]float32, error) {
	return f(ctx, model, text)
}

// byLength embeds a text as a one-dimensional vector holding its length.
var byLength = embedFunc(func(_ context.Context, _, text string) ([]float32, error) {
	return []float32{float32(len(text))}, nil
})

func TestEmbed(t *testing.T) {
	var gotModel string
	e := NewEmbedder(embedFunc(func(_ context.Context, model, _ string) ([]float32, error) {
		gotModel = model
		return []float32{0.1, 0.2, 0.3}, nil
	}), "nomic-embed-text")

	vec, err := e.Embed(context.Background(), "dharma")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if gotModel != "nomic-embed-text" {
		t.Errorf("model = %q", gotModel)
	}
	if diff := cmp.Diff([]float32{0.1, 0.2, 0.3}, vec); diff != "" {
		t.Errorf("Embed (-want +got):\n%s", diff)
	}
}

func TestEmbed_Failures(t *testing.T) {
	tests := []struct {
		name    string
		engine  embedFunc
		wantErr string
	}{
		{
			name: "engine error",
			engine: func(context.Context, string, string) ([]float32, error) {
				return nil, errors.New("connection refused")
			},
			wantErr: "connection refused",
		},
		{
			name:    "empty vector",
			engine:  func(context.Context, string, string) ([]float32, error) { return nil, nil },
			wantErr: "empty vector",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEmbedder(tt.engine, "m").Embed(context.Background(), "x")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestEmbedBatch_IndexAligned(t *testing.T) {
	defer goleak.VerifyNone(t)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee", "ffffff"}
	vecs, err := NewEmbedder(byLength, "m").EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	want := [][]float32{{1}, {2}, {3}, {4}, {5}, {6}}
	if diff := cmp.Diff(want, vecs); diff != "" {
		t.Errorf("EmbedBatch (-want +got):\n%s", diff)
	}
}

func TestEmbedBatch_RespectsParallelism(t *testing.T) {
	defer goleak.VerifyNone(t)

	var inFlight, peak atomic.Int32
	e := NewEmbedder(embedFunc(func(_ context.Context, _, _ string) ([]float32, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		return []float32{1}, nil
	}), "m")
	e.parallelism = 2

	if _, err := e.EmbedBatch(context.Background(), make([]string, 20)); err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want at most 2", p)
	}
}

func TestEmbedBatch_Failures(t *testing.T) {
	defer goleak.VerifyNone(t)

	tests := []struct {
		name    string
		engine  embedFunc
		texts   []string
		wantErr string
	}{
		{
			name: "one passage fails",
			engine: func(ctx context.Context, _, text string) ([]float32, error) {
				if strings.HasPrefix(text, "bad") {
					return nil, errors.New("model crashed")
				}
				return []float32{1}, ctx.Err()
			},
			texts:   []string{"ok", "bad", "ok"},
			wantErr: "passage 1",
		},
		{
			name:    "mixed dimensions",
			engine:  func(_ context.Context, _, text string) ([]float32, error) { return make([]float32, len(text)), nil },
			texts:   []string{"ab", "ab", "abc"},
			wantErr: "dimension 3, want 2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEmbedder(tt.engine, "m").EmbedBatch(context.Background(), tt.texts)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	vecs, err := NewEmbedder(byLength, "m").EmbedBatch(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("EmbedBatch(nil) = (%v, %v), want (nil, nil)", vecs, err)
	}
}
