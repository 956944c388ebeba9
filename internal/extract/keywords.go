package extract

import "strings"

var stopWords = map[string]bool{
	"the": true, "and": true, "but": true, "for": true, "with": true, "about": true,
	"that": true, "this": true, "these": true, "those": true, "from": true, "have": true,
	"has": true, "had": true, "was": true, "were": true, "will": true, "would": true,
	"could": true, "should": true, "what": true, "when": true, "where": true, "who": true,
	"why": true, "how": true, "are": true, "you": true, "your": true, "yours": true,
	"can": true, "not": true, "isn't": true, "don't": true, "doesn't": true, "didn't": true,
	"won't": true, "can't": true,
}

// SessionKeywords returns the distinct lowercase words of text that are
// longer than three characters and not stop words.
func SessionKeywords(text string) (out []string) {
	defer recovered("keywords", &out)

	for _, f := range strings.Fields(strings.ToLower(text)) {
		w := trimPunct(f)
		if len([]rune(w)) <= 3 || stopWords[w] {
			continue
		}
		out = appendUnique(out, w)
	}
	return out
}

var conversationTopics = []struct {
	topic string
	words []string
}{
	{"meditation", []string{"meditate", "meditation", "mindfulness"}},
	{"purpose", []string{"purpose", "meaning", "goal", "dharma"}},
	{"anxiety", []string{"anxiety", "worry", "stress", "nervous"}},
	{"career", []string{"job", "career", "work", "profession"}},
	{"relationship", []string{"relationship", "partner", "love", "marriage"}},
	{"family", []string{"family", "parent", "child", "mother", "father"}},
	{"health", []string{"health", "sick", "illness", "disease", "body"}},
	{"spirituality", []string{"spiritual", "faith", "belief", "divine"}},
	{"death", []string{"death", "die", "mortality", "passing"}},
	{"happiness", []string{"happy", "joy", "content", "satisfaction"}},
}

// ConversationTopics names the broad subjects touched by a set of messages,
// in a fixed order.
func ConversationTopics(texts []string) (out []string) {
	defer recovered("conversation topics", &out)

	found := make(map[string]bool)
	for _, t := range texts {
		lower := strings.ToLower(t)
		for _, c := range conversationTopics {
			if containsAny(lower, c.words...) {
				found[c.topic] = true
			}
		}
	}
	for _, c := range conversationTopics {
		if found[c.topic] {
			out = append(out, c.topic)
		}
	}
	return out
}
