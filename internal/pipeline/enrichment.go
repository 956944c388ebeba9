// Package pipeline gathers the context a default-path reply is composed from.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/sakha/internal/composer"
	"github.com/kalambet/sakha/internal/extract"
	"github.com/kalambet/sakha/internal/intent"
	"github.com/kalambet/sakha/internal/profile"
	"github.com/kalambet/sakha/internal/scripture"
	"github.com/kalambet/sakha/internal/storage"
)

// Default inclusion rates.
const (
	DefaultScriptureRate = 0.6
	DefaultPastRate      = 0.25
)

// DefaultExcludedTopics suppress past references when the message mentions
// them.
var DefaultExcludedTopics = []string{"dog", "pet"}

// MemoryContext renders mood, entity and topic memory. Implemented by
// recall.ContextBuilder.
type MemoryContext interface {
	Build(sessionID string) string
}

// PastContext renders glimpses of other sessions. Implemented by
// recall.Referencer.
type PastContext interface {
	Context(currentID string) string
}

// ScriptureFinder looks up a passage for a message. Implemented by
// scripture.Retriever.
type ScriptureFinder interface {
	ForMessage(ctx context.Context, message string) (scripture.Result, bool)
}

// MemorySource returns the session registry. Implemented by profile.Manager.
type MemorySource interface {
	Memory(sessionID string) (profile.Memory, error)
}

// Rand returns a float in [0, 1).
type Rand interface {
	Float64() float64
}

// Config sets how often optional context is included. A rate of 0 disables
// the source; 1 always includes it.
type Config struct {
	ScriptureRate  float64
	PastRate       float64
	ExcludedTopics []string
}

// DefaultConfig returns the default inclusion rates.
func DefaultConfig() Config {
	return Config{
		ScriptureRate:  DefaultScriptureRate,
		PastRate:       DefaultPastRate,
		ExcludedTopics: DefaultExcludedTopics,
	}
}

// Request is the input to Enrich.
type Request struct {
	SessionID string
	Message   string
	// History is the session log ending with Message.
	History []storage.Message
}

// Metadata captures diagnostic information about the enrichment process.
type Metadata struct {
	MemoryQuestion       bool
	ScriptureIncluded    bool
	PastIncluded         bool
	EnrichmentDurationMs int64
}

// Result is the gathered context plus the passage it cites, if any.
type Result struct {
	Enrichment composer.Enrichment
	Scripture  *scripture.Result
	Meta       Metadata
}

// Enricher orchestrates the optional context sources of a reply.
type Enricher struct {
	memory    MemoryContext
	past      PastContext
	scripture ScriptureFinder
	registry  MemorySource
	rand      Rand
	cfg       Config
}

// NewEnricher creates an Enricher. Any source may be nil, in which case its
// section is left empty.
func NewEnricher(memory MemoryContext, past PastContext, finder ScriptureFinder, registry MemorySource, rnd Rand, cfg Config) *Enricher {
	return &Enricher{
		memory:    memory,
		past:      past,
		scripture: finder,
		registry:  registry,
		rand:      rnd,
		cfg:       cfg,
	}
}

// Enrich gathers context for req:
//  1. Memory context for the session
//  2. Recall prompt inputs when the message asks about earlier conversation
//  3. A scripture passage, drawn with ScriptureRate or forced when the user
//     asks for scripture
//  4. A past-conversation reference, drawn with PastRate
//
// Both random draws are taken on every call, scripture first. A failing
// source leaves its section empty.
func (e *Enricher) Enrich(ctx context.Context, req Request) (out Result) {
	start := time.Now()
	defer func() {
		out.Meta.EnrichmentDurationMs = time.Since(start).Milliseconds()
	}()

	msg := intent.Normalize(req.Message)
	memoryQuestion := intent.IsMemoryQuestion(msg)
	out.Meta.MemoryQuestion = memoryQuestion
	out.Enrichment.MemoryQuestion = memoryQuestion

	// 1. Memory context.
	if e.memory != nil {
		out.Enrichment.Memory = e.memory.Build(req.SessionID)
	}

	// 2. Recall prompt inputs.
	if memoryQuestion {
		out.Enrichment.KeyTopics = extract.FormatTopics(extract.KeyTopics(userMessages(req.History)))
		out.Enrichment.EntityContext = e.entityContext(req.SessionID)
	}

	wantScripture := e.draw(e.cfg.ScriptureRate) || scripture.IsExplicitRequest(msg)
	wantPast := e.draw(e.cfg.PastRate)

	// 3. Scripture.
	if wantScripture && e.scripture != nil {
		if res, ok := e.scripture.ForMessage(ctx, req.Message); ok {
			out.Scripture = &res
			out.Enrichment.Scripture = composer.ScriptureContext(&res, false)
			out.Meta.ScriptureIncluded = true
		}
	}

	// 4. Past reference.
	if wantPast && !memoryQuestion && !intent.MentionsAny(msg, e.cfg.ExcludedTopics) && e.past != nil {
		out.Enrichment.Past = e.past.Context(req.SessionID)
		out.Meta.PastIncluded = out.Enrichment.Past != ""
	}

	slog.Debug("enrichment complete",
		"session_id", req.SessionID,
		"memory_question", memoryQuestion,
		"scripture", out.Meta.ScriptureIncluded,
		"past", out.Meta.PastIncluded,
	)
	return out
}

func (e *Enricher) draw(rate float64) bool {
	if rate <= 0 || e.rand == nil {
		return false
	}
	return e.rand.Float64() < rate
}

// entityContext lists the people, places and events a recall answer should
// name explicitly.
func (e *Enricher) entityContext(sessionID string) string {
	if e.registry == nil {
		return ""
	}
	mem, err := e.registry.Memory(sessionID)
	if err != nil {
		slog.Warn("enrichment: failed to load session memory", "session_id", sessionID, "error", err)
		return ""
	}
	var sb strings.Builder
	for _, c := range []struct{ cat, label string }{
		{extract.People, "People"},
		{extract.Places, "Places"},
		{extract.Events, "Events"},
	} {
		if vals := mem.Entities[c.cat]; len(vals) > 0 {
			sb.WriteString(c.label + " mentioned: " + strings.Join(vals, ", ") + "\n")
		}
	}
	return sb.String()
}

func userMessages(history []storage.Message) []string {
	var out []string
	for _, m := range history {
		if m.Sender == storage.SenderUser {
			out = append(out, m.Text)
		}
	}
	return out
}
