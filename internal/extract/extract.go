// Package extract scans message text for entities, moods and topics. Every
// extractor is best-effort: a panic inside one is logged and yields an empty
// result.
package extract

import (
	"log/slog"
	"strings"
	"unicode"
)

// recovered turns a panic in an extractor into its zero result.
func recovered[T any](name string, out *T) {
	if r := recover(); r != nil {
		slog.Error("extractor panicked", "extractor", name, "panic", r)
		var zero T
		*out = zero
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// hasWord reports whether word occurs in s as a whole word.
func hasWord(s, word string) bool {
	for _, w := range words(s) {
		if w == word {
			return true
		}
	}
	return false
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func trimPunct(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// sentences splits on "." the way users write, keeping empty pieces out.
func sentences(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ".") {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// appendUnique appends v unless it is already present.
func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
