package agent

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// ReplyDeflection replaces generated replies that invent memories about a
// pet.
const ReplyDeflection = "The nature of existence is like a river - ever flowing, ever changing. What appears solid is merely an illusion of permanence. Let us discuss the true nature of reality rather than memories that may not exist."

var (
	deniedPhrases = []string{"your dog", "about your dog", "you mentioned your dog"}

	// AllowedEmoji may appear in a reply, at most once per reply.
	AllowedEmoji = []string{"🕉️", "🙏", "✨", "🪷", "🔱", "🧘", "🕯️", "☮️"}

	emoticons = regexp.MustCompile(`:\)|:\(|:D|:P|;\)|:\||XD|:/|:\\|;\(|:o|:O`)
)

// postProcess applies the reply rules in order: denylist, length cap, emoji
// filtering, whitespace collapse.
func (a *Agent) postProcess(text string) string {
	lower := strings.ToLower(text)
	for _, p := range deniedPhrases {
		if strings.Contains(lower, p) {
			text = ReplyDeflection
			break
		}
	}
	text = truncateReply(text, a.maxChars)
	text = filterEmoji(text)
	return strings.Join(strings.Fields(text), " ")
}

func truncateReply(text string, max int) string {
	if max <= 3 || utf8.RuneCountInString(text) <= max {
		return text
	}
	r := []rune(text)
	return string(r[:max-3]) + "..."
}

// filterEmoji keeps the first occurrence of the earliest allowed emoji and
// strips every other pictograph and emoticon.
func filterEmoji(text string) string {
	keep, pos := "", -1
	for _, e := range AllowedEmoji {
		if i := strings.Index(text, e); i >= 0 && (pos < 0 || i < pos) {
			keep, pos = e, i
		}
	}
	for _, e := range AllowedEmoji {
		if e != keep {
			text = strings.ReplaceAll(text, e, "")
		}
	}

	var sb strings.Builder
	kept := false
	for i := 0; i < len(text); {
		if keep != "" && strings.HasPrefix(text[i:], keep) {
			if !kept {
				sb.WriteString(keep)
				kept = true
			}
			i += len(keep)
			continue
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isPictograph(r) {
			sb.WriteRune(r)
		}
		i += size
	}
	return emoticons.ReplaceAllString(sb.String(), "")
}

// isPictograph reports emoji-like runes: everything outside the Basic
// Multilingual Plane, the Misc Symbols, Dingbats and Misc Symbols and Arrows
// blocks, and the joiners that glue emoji sequences together.
func isPictograph(r rune) bool {
	switch {
	case r > 0xFFFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	case r >= 0x2B00 && r <= 0x2BFF:
		return true
	}
	return r == 0xFE0F || r == 0x200D
}
