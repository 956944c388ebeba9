package scripture

import (
	"strings"
)

// explicitRequest words mark a message that asks for scripture directly.
var explicitRequest = []string{"gita", "bhagavad", "scripture", "hindu", "upanishad", "verse", "sloka", "wisdom"}

// FallbackQueries are tried in order when a direct scripture request finds nothing.
var FallbackQueries = []string{
	"comfort grief loss",
	"purpose of life",
	"dealing with pain",
	"nature of soul self",
	"wisdom teaching",
}

// IsExplicitRequest reports whether the message asks for scripture by name.
func IsExplicitRequest(message string) bool {
	return containsAny(strings.ToLower(message), explicitRequest...)
}

type expansion struct {
	triggers []string
	query    func(lower string) string
}

// expansions are checked in order; the first whose trigger appears wins.
var expansions = []expansion{
	{
		triggers: []string{"loss", "lost", "died", "passed away", "grief", "death", "mourn"},
		query: func(m string) string {
			var specific []string
			if containsAny(m, "friend", "friendship") {
				specific = append(specific, "loss of friendship")
			}
			if containsAny(m, "parent", "mother", "father") {
				specific = append(specific, "loss of parent")
			}
			if containsAny(m, "child") {
				specific = append(specific, "loss of child")
			}
			if containsAny(m, "spouse", "wife", "husband", "partner") {
				specific = append(specific, "loss of spouse")
			}
			if len(specific) > 0 {
				return "scripture on dealing with " + strings.Join(specific, " ") + " grief death impermanence of form"
			}
			return "scripture on dealing with loss grief and death impermanence of physical form transmigration of soul"
		},
	},
	{
		triggers: []string{"depress", "anxiety", "stress", "mental health", "therapy", "counseling", "struggle", "hopeless"},
		query: func(m string) string {
			switch {
			case containsAny(m, "depress"):
				return "scripture on overcoming depression sadness mental darkness finding light purpose"
			case containsAny(m, "anxiety", "worry", "stress"):
				return "scripture on calming anxiety reducing stress finding peace of mind"
			case containsAny(m, "anger"):
				return "scripture on controlling anger managing emotions peace"
			}
			return "scripture on mental health emotional balance inner wisdom peace"
		},
	},
	{
		triggers: []string{"purpose", "meaning", "why am i here", "dharma", "duty", "direction"},
		query:    fixed("scripture on finding purpose dharma duty meaning of life"),
	},
	{
		triggers: []string{"relationship", "love", "partner", "marriage", "romantic"},
		query: func(m string) string {
			if containsAny(m, "breakup", "break up", "divorce") || containsWord(m, "ex") {
				return "scripture on healing from relationship endings attachment detachment"
			}
			return "scripture on love relationships attachment and devotion"
		},
	},
	{
		triggers: []string{"family", "parent", "child", "duty to", "obligation", "responsibility"},
		query:    fixed("scripture on family duty dharma responsibility"),
	},
	{
		triggers: []string{"career", "job", "work", "profession", "calling", "vocation"},
		query: func(m string) string {
			if containsAny(m, "lost job", "lost my job", "fired", "laid off") {
				return "scripture on dealing with career setbacks path forward dharma"
			}
			return "scripture on right livelihood work as service purpose in action"
		},
	},
	{
		triggers: []string{"meditat", "practice", "spiritual", "consciousness", "mindful"},
		query:    fixed("scripture on meditation practice consciousness awareness"),
	},
	{
		triggers: []string{"decision", "choice", "right thing", "wrong", "moral", "ethics", "dilemma"},
		query:    fixed("scripture on ethical decisions moral choices dharma karma"),
	},
	{
		triggers: []string{"who am i", "self", "identity", "true nature", "authentic", "real me"},
		query:    fixed("scripture on self-knowledge atman true identity beyond ego"),
	},
}

func fixed(q string) func(string) string {
	return func(string) string { return q }
}

// ExpandQuery maps a message onto a themed retrieval query. ok is false when
// no theme applies and the message should be searched as is.
func ExpandQuery(message string) (query string, ok bool) {
	lower := strings.ToLower(message)
	for _, e := range expansions {
		if containsAny(lower, e.triggers...) {
			return e.query(lower), true
		}
	}
	return message, false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func containsWord(s, word string) bool {
	for _, f := range strings.FieldsFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '\'')
	}) {
		if f == word {
			return true
		}
	}
	return false
}
