package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/sakha/internal/composer"
	"github.com/kalambet/sakha/internal/extract"
	"github.com/kalambet/sakha/internal/gateway"
	"github.com/kalambet/sakha/internal/intent"
	"github.com/kalambet/sakha/internal/pipeline"
	"github.com/kalambet/sakha/internal/recall"
	"github.com/kalambet/sakha/internal/storage"
)

// Fixed temporal-recall replies.
const (
	mentionedFormat   = "You mentioned that %s. Would you like to explore it further?"
	otherTopicsFormat = "I don't recall discussing that specifically, but we've talked about %s. Which of these interests you now?"
	notDiscussed      = "I don't believe we've discussed that yet. Would you like to share more about it?"
)

var errEmptyReply = errors.New("generator returned an empty reply")

// Turn is the message being answered. Msg is the normalized text that rule
// predicates match against.
type Turn struct {
	SessionID string
	Text      string
	Msg       string

	history []storage.Message
	loaded  bool
}

// Rule pairs a predicate with the handler that answers matching messages.
// Replies of Generated rules are post-processed before they are stored.
type Rule struct {
	Name      string
	Match     func(msg string) bool
	Handle    func(ctx context.Context, t *Turn) (Reply, error)
	Generated bool
}

// RuleNames lists the chain in evaluation order.
func (a *Agent) RuleNames() []string {
	names := make([]string, len(a.rules))
	for i, r := range a.rules {
		names[i] = r.Name
	}
	return names
}

func (a *Agent) defaultRules() []Rule {
	return []Rule{
		{Name: "canonical", Match: isCanonical, Handle: a.canonical},
		{Name: "identity", Match: intent.IsIdentity, Handle: fixed(intent.ReplyIdentity)},
		{Name: "how-are-you", Match: intent.IsHowAreYou, Handle: a.howAreYou},
		{Name: "temporal-recall", Match: intent.IsTemporalRecall, Handle: a.temporalRecall},
		{Name: "follow-up", Match: intent.IsFollowUp, Handle: a.followUp, Generated: true},
		{Name: "correction", Match: intent.IsCorrection, Handle: a.correction, Generated: true},
		{Name: "memory-apology", Match: intent.IsMemorySlip, Handle: fixed(intent.ReplyMemorySlip)},
		{Name: "default", Match: func(string) bool { return true }, Handle: a.defaultReply, Generated: true},
	}
}

func isCanonical(msg string) bool {
	_, ok := intent.Canonical(msg)
	return ok
}

func fixed(text string) func(context.Context, *Turn) (Reply, error) {
	return func(context.Context, *Turn) (Reply, error) {
		return Reply{Text: text}, nil
	}
}

func (a *Agent) canonical(_ context.Context, t *Turn) (Reply, error) {
	text, _ := intent.Canonical(t.Msg)
	return Reply{Text: text}, nil
}

func (a *Agent) howAreYou(context.Context, *Turn) (Reply, error) {
	return Reply{Text: intent.HowAreYouReplies[a.rand.IntN(len(intent.HowAreYouReplies))]}, nil
}

func (a *Agent) temporalRecall(_ context.Context, t *Turn) (Reply, error) {
	history, err := a.history(t)
	if err != nil {
		return Reply{}, err
	}
	if m, ok := recall.FindMention(history, intent.TemporalTopic(t.Msg)); ok {
		return Reply{Text: fmt.Sprintf(mentionedFormat, recall.Ago(m.CreatedAt, a.now()))}, nil
	}
	if topics := extract.KeyTopics(userTexts(history)); len(topics) > 0 {
		return Reply{Text: fmt.Sprintf(otherTopicsFormat, extract.FormatTopics(topics))}, nil
	}
	return Reply{Text: notDiscussed}, nil
}

func (a *Agent) followUp(ctx context.Context, t *Turn) (Reply, error) {
	history, err := a.history(t)
	if err != nil {
		return Reply{}, err
	}

	f := composer.FollowUp{
		Message:   t.Text,
		KeyTopics: extract.FormatTopics(extract.KeyTopics(userTexts(history))),
	}
	if len(history) >= 3 {
		for i := len(history) - 2; i >= 0; i-- {
			if history[i].Sender != storage.SenderAssistant {
				continue
			}
			f.PreviousReply = history[i].Text
			if i > 0 && history[i-1].Sender == storage.SenderUser {
				f.PreviousMessage = history[i-1].Text
			}
			break
		}
	}

	var reply Reply
	if a.scripture != nil {
		query := f.PreviousReply
		if query == "" {
			query = t.Text
		}
		if res, ok := a.scripture.ForMessage(ctx, query); ok {
			reply.Scripture = &res
			f.Scripture = composer.ScriptureContext(&res, true)
		}
	}

	reply.Text, err = a.generate(ctx, composer.FollowUpPrompt(f))
	return reply, err
}

func (a *Agent) correction(ctx context.Context, t *Turn) (Reply, error) {
	history, err := a.history(t)
	if err != nil {
		return Reply{}, err
	}

	c := composer.Correction{Topic: intent.CorrectionCategory(t.Msg), Message: t.Text}
	for i := len(history) - 2; i >= 0; i-- {
		if history[i].Sender == storage.SenderAssistant {
			c.PreviousReply = history[i].Text
			break
		}
	}
	for i := len(history) - 3; i >= 0 && len(c.EarlierMessages) < 2; i-- {
		if history[i].Sender == storage.SenderUser {
			c.EarlierMessages = append(c.EarlierMessages, history[i].Text)
		}
	}

	text, err := a.generate(ctx, composer.CorrectionPrompt(c))
	return Reply{Text: text}, err
}

func (a *Agent) defaultReply(ctx context.Context, t *Turn) (Reply, error) {
	a.observe(t)

	history, err := a.history(t)
	if err != nil {
		return Reply{}, err
	}

	var res pipeline.Result
	if a.enricher != nil {
		res = a.enricher.Enrich(ctx, pipeline.Request{SessionID: t.SessionID, Message: t.Text, History: history})
	} else {
		res.Enrichment.MemoryQuestion = intent.IsMemoryQuestion(t.Msg)
	}

	text, err := a.generate(ctx, a.composer.Compose(res.Enrichment, history))
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: text, Scripture: res.Scripture}, nil
}

// observe records what the message reveals: entities, topic keywords and
// mood. Failures are logged and otherwise ignored.
func (a *Agent) observe(t *Turn) {
	if err := a.memory.TrackEntities(t.SessionID, extract.ExtractEntities(t.Text)); err != nil {
		slog.Warn("tracking entities failed", "session_id", t.SessionID, "error", err)
	}
	if err := a.memory.TrackTopics(t.SessionID, extract.SessionKeywords(t.Text)); err != nil {
		slog.Warn("tracking topics failed", "session_id", t.SessionID, "error", err)
	}
	if mood := extract.DetectMood(t.Text); mood != extract.MoodNone {
		if err := a.store.SaveMood(t.SessionID, string(mood)); err != nil {
			slog.Warn("saving mood failed", "session_id", t.SessionID, "error", err)
		}
	}
}

// history loads the session log once per turn. It ends with the message
// being answered.
func (a *Agent) history(t *Turn) ([]storage.Message, error) {
	if t.loaded {
		return t.history, nil
	}
	msgs, err := a.store.ListMessages(t.SessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	t.history, t.loaded = msgs, true
	return msgs, nil
}

func (a *Agent) generate(ctx context.Context, msgs []gateway.Message) (string, error) {
	text, err := a.gen.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("generating reply: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errEmptyReply
	}
	return text, nil
}

func userTexts(history []storage.Message) []string {
	var out []string
	for _, m := range history {
		if m.Sender == storage.SenderUser {
			out = append(out, m.Text)
		}
	}
	return out
}
