// Package agent answers seeker messages as Krishna. Each message is routed
// through an ordered chain of rules; the first rule whose predicate matches
// produces the reply.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/sakha/internal/composer"
	"github.com/kalambet/sakha/internal/extract"
	"github.com/kalambet/sakha/internal/gateway"
	"github.com/kalambet/sakha/internal/intent"
	"github.com/kalambet/sakha/internal/pipeline"
	"github.com/kalambet/sakha/internal/scripture"
	"github.com/kalambet/sakha/internal/storage"
)

// ReplyStillness is returned whenever a reply cannot be produced.
const ReplyStillness = "I'm having a moment of stillness. Let's reconnect shortly."

const (
	defaultMaxReplyChars = 800
	summaryTimeout       = 30 * time.Second
)

// ErrEmptyConversation is returned when summarizing a session with no messages.
var ErrEmptyConversation = errors.New("conversation has no messages")

// Store is the durable session log. Implemented by storage.Store.
type Store interface {
	CreateSession() (string, error)
	IsDeleted(sessionID string) (bool, error)
	AppendMessage(sessionID string, sender storage.Sender, text string) (storage.Message, error)
	ListMessages(sessionID string, limit int) ([]storage.Message, error)
	DeleteSession(sessionID string) error
	DeleteMessage(sessionID, messageID string) (bool, error)
	Wipe() error
	SaveMood(sessionID, mood string) error
	SaveSummary(sessionID, text string) error
	ListSessions() ([]storage.SessionInfo, error)
}

// Memory is the per-session entity and topic registry. Implemented by
// profile.Manager.
type Memory interface {
	TrackEntities(sessionID string, e extract.Entities) error
	TrackTopics(sessionID string, topics []string) error
	Forget(sessionID string)
	ForgetAll()
}

// Enricher gathers default-path context. Implemented by pipeline.Enricher.
type Enricher interface {
	Enrich(ctx context.Context, req pipeline.Request) pipeline.Result
}

// Scriptures is the passage index. Implemented by scripture.Retriever.
type Scriptures interface {
	Find(ctx context.Context, query string) (scripture.Result, bool)
	ForMessage(ctx context.Context, message string) (scripture.Result, bool)
	Corpus() *scripture.Corpus
}

// Rand is the agent's source of randomness. Production uses math/rand/v2.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Deps wires an Agent. Store, Memory and Generator are required; a nil
// Enricher or Scriptures disables that context.
type Deps struct {
	Store     Store
	Memory    Memory
	Enricher  Enricher
	Scripture Scriptures
	Generator gateway.Generator
	Composer  *composer.Composer
	Rand      Rand
	Now       func() time.Time

	// MaxReplyChars bounds generated replies; 0 means 800.
	MaxReplyChars int
}

// Agent routes messages and exposes session management.
type Agent struct {
	store     Store
	memory    Memory
	enricher  Enricher
	scripture Scriptures
	gen       gateway.Generator
	composer  *composer.Composer
	rand      Rand
	now       func() time.Time
	maxChars  int
	rules     []Rule
}

func New(d Deps) *Agent {
	a := &Agent{
		store:     d.Store,
		memory:    d.Memory,
		enricher:  d.Enricher,
		scripture: d.Scripture,
		gen:       d.Generator,
		composer:  d.Composer,
		rand:      d.Rand,
		now:       d.Now,
		maxChars:  d.MaxReplyChars,
	}
	if a.composer == nil {
		a.composer = composer.New(0)
	}
	if a.rand == nil {
		a.rand = NewRand()
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.maxChars <= 0 {
		a.maxChars = defaultMaxReplyChars
	}
	a.rules = a.defaultRules()
	return a
}

// Reply is what a rule produced. A nil Scripture means no passage was used.
type Reply struct {
	Text      string
	Scripture *scripture.Result
}

// Response is the outcome of ProcessMessage.
type Response struct {
	Response         string `json:"response"`
	ScriptureSource  string `json:"scripture_source"`
	ScriptureID      string `json:"scripture_id"`
	ScripturePage    int    `json:"scripture_page,omitempty"`
	ScriptureExcerpt string `json:"scripture_excerpt,omitempty"`
	SessionID        string `json:"session_id"`
}

func newResponse(sessionID string, r Reply) Response {
	resp := Response{Response: r.Text, ScriptureID: "0", SessionID: sessionID}
	if r.Scripture != nil {
		resp.ScriptureSource = r.Scripture.SourceName
		resp.ScriptureID = r.Scripture.ID
		resp.ScripturePage = r.Scripture.Page
		resp.ScriptureExcerpt = r.Scripture.Excerpt
	}
	return resp
}

// ProcessMessage answers text within sessionID. An empty or deleted session
// id is replaced by a fresh one, returned in the response. Failures never
// propagate: the reply degrades to a fixed apology.
func (a *Agent) ProcessMessage(ctx context.Context, sessionID, text string) Response {
	id, err := a.resolveSession(sessionID)
	if err != nil {
		slog.Error("resolving session failed", "session_id", sessionID, "error", err)
		return newResponse(id, Reply{Text: ReplyStillness})
	}
	return newResponse(id, a.respond(ctx, id, text))
}

func (a *Agent) resolveSession(sessionID string) (string, error) {
	if sessionID != "" {
		deleted, err := a.store.IsDeleted(sessionID)
		if err != nil {
			return sessionID, fmt.Errorf("checking session: %w", err)
		}
		if !deleted {
			return sessionID, nil
		}
		slog.Info("session was deleted, starting a new one", "session_id", sessionID)
	}
	return a.store.CreateSession()
}

// respond records the user's message and runs the first matching rule.
func (a *Agent) respond(ctx context.Context, sessionID, text string) (reply Reply) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("reply panicked", "session_id", sessionID, "panic", r)
			reply = Reply{Text: ReplyStillness}
		}
	}()

	if _, err := a.store.AppendMessage(sessionID, storage.SenderUser, text); err != nil {
		slog.Error("recording user message failed", "session_id", sessionID, "error", err)
		return Reply{Text: ReplyStillness}
	}

	t := &Turn{SessionID: sessionID, Text: text, Msg: intent.Normalize(text)}
	for _, rule := range a.rules {
		if !rule.Match(t.Msg) {
			continue
		}
		slog.Debug("rule matched", "session_id", sessionID, "rule", rule.Name)
		r, err := rule.Handle(ctx, t)
		if err != nil {
			slog.Error("reply failed", "session_id", sessionID, "rule", rule.Name, "error", err)
			return Reply{Text: ReplyStillness}
		}
		if rule.Generated {
			r.Text = a.postProcess(r.Text)
		}
		if _, err := a.store.AppendMessage(sessionID, storage.SenderAssistant, r.Text); err != nil {
			slog.Error("recording reply failed", "session_id", sessionID, "error", err)
		}
		return r
	}
	return Reply{Text: ReplyStillness}
}

// ConversationHistory returns every message of a session, oldest first.
func (a *Agent) ConversationHistory(sessionID string) ([]storage.Message, error) {
	return a.store.ListMessages(sessionID, 0)
}

// DeleteConversation removes a session and everything remembered about it.
func (a *Agent) DeleteConversation(sessionID string) bool {
	if err := a.store.DeleteSession(sessionID); err != nil {
		slog.Error("deleting conversation failed", "session_id", sessionID, "error", err)
		return false
	}
	a.memory.Forget(sessionID)
	return true
}

// DeleteAllConversations wipes every session. All prior ids stay invalid.
func (a *Agent) DeleteAllConversations() bool {
	if err := a.store.Wipe(); err != nil {
		slog.Error("deleting all conversations failed", "error", err)
		return false
	}
	a.memory.ForgetAll()
	return true
}

// DeleteMessage removes one message by id, including legacy
// "{epoch_ms}_{sender}" ids.
func (a *Agent) DeleteMessage(sessionID, messageID string) bool {
	ok, err := a.store.DeleteMessage(sessionID, messageID)
	if err != nil {
		slog.Error("deleting message failed", "session_id", sessionID, "message_id", messageID, "error", err)
		return false
	}
	return ok
}

// UserSessions lists live sessions, newest first.
func (a *Agent) UserSessions() []storage.SessionInfo {
	sessions, err := a.store.ListSessions()
	if err != nil {
		slog.Error("listing sessions failed", "error", err)
		return []storage.SessionInfo{}
	}
	return sessions
}

// ResetSession starts a new, empty session.
func (a *Agent) ResetSession() (string, error) {
	id, err := a.store.CreateSession()
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	slog.Info("started new session", "session_id", id)
	return id, nil
}

// SummarizeSession asks the generator for a short summary of a session and
// stores it.
func (a *Agent) SummarizeSession(ctx context.Context, sessionID string) (string, error) {
	msgs, err := a.store.ListMessages(sessionID, 0)
	if err != nil {
		return "", fmt.Errorf("loading conversation: %w", err)
	}
	if len(msgs) == 0 {
		return "", ErrEmptyConversation
	}

	ctx, cancel := context.WithTimeout(ctx, summaryTimeout)
	defer cancel()

	summary, err := a.gen.Generate(ctx, composer.SummaryPrompt(msgs))
	if err != nil {
		return "", fmt.Errorf("generating summary: %w", err)
	}
	summary = strings.TrimSpace(summary)
	if err := a.store.SaveSummary(sessionID, summary); err != nil {
		return "", fmt.Errorf("saving summary: %w", err)
	}
	return summary, nil
}

// Scriptures lists the loaded scripture sources.
func (a *Agent) Scriptures() []scripture.SourceInfo {
	if a.scripture == nil {
		return []scripture.SourceInfo{}
	}
	return a.scripture.Corpus().Sources()
}

// ScripturePage returns the full text of one page.
func (a *Agent) ScripturePage(source string, page int) (string, bool) {
	if a.scripture == nil {
		return "", false
	}
	text, _, ok := a.scripture.Corpus().Page(source, page)
	return text, ok
}

// SearchScripture finds the passage that best matches query.
func (a *Agent) SearchScripture(ctx context.Context, query string) (scripture.Result, bool) {
	if a.scripture == nil {
		return scripture.Result{}, false
	}
	return a.scripture.Find(ctx, query)
}
