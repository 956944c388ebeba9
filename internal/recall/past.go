package recall

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/sakha/internal/extract"
	"github.com/kalambet/sakha/internal/storage"
)

// Defaults for the past-conversation lookback.
const (
	DefaultWindow        = 14 * 24 * time.Hour
	DefaultMaxCandidates = 5

	sampleMessages = 6
	minExchangeLen = 10
	maxExchangeLen = 100
)

const pastHeader = `PAST CONVERSATION CONTEXT (to occasionally reference):
IMPORTANT: Only reference these past conversations if they're genuinely relevant to the current discussion.
DO NOT reference these unless you're confident they're accurate memories.
If the user expresses confusion about a reference, apologize and move on - don't insist the memory is correct.`

// SessionSource reads other sessions. Implemented by storage.Store.
type SessionSource interface {
	RecentSessions(excludeID string, since time.Time, limit int) ([]storage.SessionInfo, error)
	FirstMessages(sessionID string, n int) ([]storage.Message, error)
}

// Rand picks uniformly from [0, n).
type Rand interface {
	IntN(n int) int
}

// ReferencerConfig tunes the Referencer. Zero fields take defaults.
type ReferencerConfig struct {
	Window        time.Duration
	MaxCandidates int
	Now           func() time.Time
}

// Referencer summarizes a few other recent sessions so the persona can call
// back to them.
type Referencer struct {
	src    SessionSource
	rand   Rand
	window time.Duration
	max    int
	now    func() time.Time
}

func NewReferencer(src SessionSource, rnd Rand, cfg ReferencerConfig) *Referencer {
	r := &Referencer{src: src, rand: rnd, window: cfg.Window, max: cfg.MaxCandidates, now: cfg.Now}
	if r.window <= 0 {
		r.window = DefaultWindow
	}
	if r.max <= 0 {
		r.max = DefaultMaxCandidates
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

type candidate struct {
	started  time.Time
	topics   []string
	user     string
	response string
}

// Context returns the past-conversation block for currentID, or "" when no
// other session qualifies.
func (r *Referencer) Context(currentID string) string {
	sessions, err := r.src.RecentSessions(currentID, r.now().Add(-r.window), r.max)
	if err != nil {
		slog.Warn("listing past sessions failed", "session_id", currentID, "error", err)
		return ""
	}

	var cands []candidate
	for _, s := range sessions {
		msgs, err := r.src.FirstMessages(s.ID, sampleMessages)
		if err != nil {
			slog.Warn("reading past session failed", "session_id", s.ID, "error", err)
			continue
		}
		if c, ok := newCandidate(s, msgs); ok {
			cands = append(cands, c)
		}
	}
	if len(cands) == 0 {
		return ""
	}

	k := 1
	if len(cands) > 1 {
		k += r.rand.IntN(2)
	}
	// Partial Fisher-Yates: the first k entries become the sample.
	for i := 0; i < k; i++ {
		j := i + r.rand.IntN(len(cands)-i)
		cands[i], cands[j] = cands[j], cands[i]
	}

	lines := []string{pastHeader}
	for _, c := range cands[:k] {
		lines = append(lines, fmt.Sprintf(`On %s, you discussed %s. User: "%s..." - You: "%s..."`,
			c.started.Format("January 02"), strings.Join(c.topics, ", "),
			truncate(c.user, maxExchangeLen), truncate(c.response, maxExchangeLen)))
	}
	slog.Debug("added past conversation context", "session_id", currentID, "references", k)
	return strings.Join(lines, "\n")
}

func newCandidate(s storage.SessionInfo, msgs []storage.Message) (candidate, bool) {
	var userTexts []string
	var firstUser, firstResponse string
	for _, m := range msgs {
		switch m.Sender {
		case storage.SenderUser:
			userTexts = append(userTexts, m.Text)
			if firstUser == "" {
				firstUser = m.Text
			}
		case storage.SenderAssistant:
			if firstResponse == "" {
				firstResponse = m.Text
			}
		}
	}
	topics := extract.ConversationTopics(userTexts)
	if len(topics) == 0 {
		return candidate{}, false
	}
	if len([]rune(firstUser)) <= minExchangeLen || len([]rune(firstResponse)) <= minExchangeLen {
		return candidate{}, false
	}
	return candidate{started: s.StartedAt, topics: topics, user: firstUser, response: firstResponse}, true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
