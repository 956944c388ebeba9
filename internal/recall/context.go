// Package recall turns what is stored about a user into prompt context: the
// current session's moods, entities and topics, and glimpses of other recent
// sessions.
package recall

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kalambet/sakha/internal/extract"
	"github.com/kalambet/sakha/internal/profile"
	"github.com/kalambet/sakha/internal/storage"
)

const (
	moodLimit  = 3
	topicLimit = 10
)

// MoodStore reads mood history. Implemented by storage.Store.
type MoodStore interface {
	RecentMoods(sessionID string, n int) ([]storage.MoodSample, error)
}

// MemorySource returns the session registry. Implemented by profile.Manager.
type MemorySource interface {
	Memory(sessionID string) (profile.Memory, error)
}

var entityLabels = map[string]string{
	extract.People: "People",
	extract.Places: "Places",
	extract.Events: "Events",
	extract.Dates:  "Important dates",
}

// ContextBuilder renders the memory section of the persona prompt.
type ContextBuilder struct {
	moods  MoodStore
	memory MemorySource
}

func NewContextBuilder(moods MoodStore, memory MemorySource) *ContextBuilder {
	return &ContextBuilder{moods: moods, memory: memory}
}

// Build returns the memory context for a session, or "" when nothing is
// known. Read failures drop the affected section.
func (b *ContextBuilder) Build(sessionID string) string {
	var sections []string

	moods, err := b.moods.RecentMoods(sessionID, moodLimit)
	if err != nil {
		slog.Warn("reading moods for context failed", "session_id", sessionID, "error", err)
	}
	if len(moods) > 0 {
		var sb strings.Builder
		sb.WriteString("Previous moods detected:\n")
		for i := len(moods) - 1; i >= 0; i-- {
			m := moods[i]
			fmt.Fprintf(&sb, "- %s: %s\n", m.CreatedAt.Format("2006-01-02 15:04:05"), m.Mood)
		}
		sections = append(sections, strings.TrimRight(sb.String(), "\n"))
	}

	mem, err := b.memory.Memory(sessionID)
	if err != nil {
		slog.Warn("reading session memory for context failed", "session_id", sessionID, "error", err)
		return strings.Join(sections, "\n\n")
	}

	if s := EntityLines(mem.Entities); s != "" {
		sections = append(sections, "Important details from your conversations:\n"+s)
	}

	if topics := mem.RecentTopics(topicLimit); len(topics) > 0 {
		sections = append(sections, "Topics you've touched on:\n- "+strings.Join(topics, "\n- "))
	}
	return strings.Join(sections, "\n\n")
}

// EntityLines renders one "Label: a, b" line per non-empty category with
// values sorted.
func EntityLines(e extract.Entities) string {
	var lines []string
	for _, cat := range extract.Categories {
		vals := append([]string(nil), e[cat]...)
		if len(vals) == 0 {
			continue
		}
		sort.Strings(vals)
		lines = append(lines, entityLabels[cat]+": "+strings.Join(vals, ", "))
	}
	return strings.Join(lines, "\n")
}
