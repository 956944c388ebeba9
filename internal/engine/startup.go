package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrNotRunning means the local engine did not answer its health probe.
var ErrNotRunning = errors.New("ollama is not running; start it with: ollama serve")

// EnsureReady checks that e answers and pulls whichever of models it lacks,
// reporting progress to w. Empty and repeated names are skipped, so a
// deployment that only embeds locally passes "" for the chat model.
func EnsureReady(ctx context.Context, e Engine, w io.Writer, models ...string) error {
	if !e.IsRunning(ctx) {
		return ErrNotRunning
	}

	seen := make(map[string]bool, len(models))
	for _, model := range models {
		if model == "" || seen[model] {
			continue
		}
		seen[model] = true

		if !e.HasModel(ctx, model) {
			fmt.Fprintf(w, "model %s: pulling\n", model)
			if err := e.PullModel(ctx, model, progressPrinter(w)); err != nil {
				return fmt.Errorf("pulling model %s: %w", model, err)
			}
		}
		fmt.Fprintf(w, "model %s: ready\n", model)
	}
	return nil
}

// progressPrinter writes a line when the pull status changes or the
// download advances by another tenth.
func progressPrinter(w io.Writer) func(PullProgress) {
	lastStatus, lastTenth := "", -1
	return func(p PullProgress) {
		tenth := -1
		if p.Total > 0 {
			tenth = int(p.Completed * 10 / p.Total)
		}
		if p.Status == lastStatus && tenth == lastTenth {
			return
		}
		lastStatus, lastTenth = p.Status, tenth
		if tenth < 0 {
			fmt.Fprintf(w, "  %s\n", p.Status)
			return
		}
		fmt.Fprintf(w, "  %s %d%%\n", p.Status, tenth*10)
	}
}
