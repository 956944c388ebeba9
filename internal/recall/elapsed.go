package recall

import (
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/sakha/internal/storage"
)

// Ago describes how long before now t was, in the largest whole unit.
func Ago(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d >= 24*time.Hour:
		return plural(int(d/(24*time.Hour)), "day")
	case d >= time.Hour:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute:
		return plural(int(d/time.Minute), "minute")
	}
	return "just moments ago"
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// FindMention returns the most recent user message containing phrase,
// ignoring the last message of history, which is the question itself.
func FindMention(history []storage.Message, phrase string) (storage.Message, bool) {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase == "" {
		return storage.Message{}, false
	}
	for i := len(history) - 2; i >= 0; i-- {
		m := history[i]
		if m.Sender == storage.SenderUser && strings.Contains(strings.ToLower(m.Text), phrase) {
			return m, true
		}
	}
	return storage.Message{}, false
}
