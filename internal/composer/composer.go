// Package composer assembles the prompts sent to the generation gateway.
package composer

import (
	"strings"

	"github.com/kalambet/sakha/internal/gateway"
	"github.com/kalambet/sakha/internal/storage"
)

const defaultMaxContextTokens = 6000

// History budgets, in messages.
const (
	HistoryLimit       = 30
	MemoryHistoryLimit = 50
)

// Enrichment is the context gathered for a default-path reply.
type Enrichment struct {
	Memory    string
	Past      string
	Scripture string

	// MemoryQuestion marks a request to recall earlier conversation.
	MemoryQuestion bool
	KeyTopics      string
	EntityContext  string
}

// Composer assembles default-path prompts within a token budget.
type Composer struct {
	MaxContextTokens int
}

// New creates a Composer with the given token budget for the whole prompt.
// If maxContextTokens <= 0, the default (6000) is used.
func New(maxContextTokens int) *Composer {
	if maxContextTokens <= 0 {
		maxContextTokens = defaultMaxContextTokens
	}
	return &Composer{MaxContextTokens: maxContextTokens}
}

// Compose builds the message list for a default-path reply. history is the
// session log ending with the current user message. Older history is dropped
// first when the prompt exceeds the token budget; the current message is
// always kept.
func (c *Composer) Compose(e Enrichment, history []storage.Message) []gateway.Message {
	head := []gateway.Message{
		{Role: gateway.RoleSystem, Content: PersonaPrompt(e.Memory, e.Past, e.Scripture)},
		{Role: gateway.RoleSystem, Content: PersonaReminder},
	}
	if e.MemoryQuestion {
		head = append(head,
			gateway.Message{Role: gateway.RoleSystem, Content: MemoryPrompt(e.KeyTopics, e.EntityContext)},
			gateway.Message{Role: gateway.RoleUser, Content: recallUserCue},
			gateway.Message{Role: gateway.RoleAssistant, Content: recallAssistantCue},
		)
	}

	var tail []gateway.Message
	if e.MemoryQuestion {
		tail = append(tail, gateway.Message{Role: gateway.RoleSystem, Content: recallFinal})
	}
	if e.Past != "" {
		tail = append(tail, gateway.Message{Role: gateway.RoleSystem, Content: pastNudge})
	}

	limit := HistoryLimit
	if e.MemoryQuestion {
		limit = MemoryHistoryLimit
	}
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	turns := Turns(history)

	remaining := c.MaxContextTokens - countTokens(head) - countTokens(tail)
	start := len(turns)
	for start > 0 {
		cost := EstimateTokens(turns[start-1].Content)
		if cost > remaining && start < len(turns) {
			break
		}
		remaining -= cost
		start--
	}

	out := make([]gateway.Message, 0, len(head)+len(turns)-start+len(tail))
	out = append(out, head...)
	out = append(out, turns[start:]...)
	return append(out, tail...)
}

// Turns maps stored messages to prompt turns.
func Turns(history []storage.Message) []gateway.Message {
	out := make([]gateway.Message, len(history))
	for i, m := range history {
		role := gateway.RoleUser
		if m.Sender == storage.SenderAssistant {
			role = gateway.RoleAssistant
		}
		out[i] = gateway.Message{Role: role, Content: m.Text}
	}
	return out
}

// SummaryPrompt asks for a short summary of a conversation.
func SummaryPrompt(history []storage.Message) []gateway.Message {
	var sb strings.Builder
	for _, m := range history {
		speaker := "Seeker"
		if m.Sender == storage.SenderAssistant {
			speaker = "Krishna"
		}
		sb.WriteString(speaker + ": " + m.Text + "\n")
	}
	return []gateway.Message{
		{Role: gateway.RoleSystem, Content: "Summarize this conversation between a seeker and Krishna in two or three sentences. Name the concerns, people and events the seeker mentioned. Do not add advice."},
		{Role: gateway.RoleUser, Content: strings.TrimRight(sb.String(), "\n")},
	}
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

func countTokens(msgs []gateway.Message) int {
	n := 0
	for _, m := range msgs {
		n += EstimateTokens(m.Content)
	}
	return n
}
