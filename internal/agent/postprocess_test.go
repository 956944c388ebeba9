package agent

import (
	"strings"
	"testing"
)

func TestPostProcess(t *testing.T) {
	a := &Agent{maxChars: defaultMaxReplyChars}
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Peace be with you.", "Peace be with you."},
		{"whitespace", "  Peace\n\nbe   with\tyou. ", "Peace be with you."},
		{"denylist", "You mentioned your dog before.", ReplyDeflection},
		{"denylist case", "How is Your Dog?", ReplyDeflection},
		{"first allowed emoji kept", "Breathe ✨ and smile 🙏", "Breathe ✨ and smile"},
		{"repeated kept emoji", "🙏 Go gently 🙏", "🙏 Go gently"},
		{"one allowed symbol per reply", "Peace be with you 🙏 breathe deeply 🙏 and rest 🙏 ✨", "Peace be with you 🙏 breathe deeply and rest"},
		{"plane zero pictographs stripped", "Stay strong ❤ and shine ⭐ ☀ ✅", "Stay strong and shine"},
		{"allowed dingbat kept", "Shine ✨ on ❤", "Shine ✨ on"},
		{"variation selector kept", "Om 🕉️ shanti ☮️", "Om 🕉️ shanti"},
		{"other emoji stripped", "Smile 😀 friend 🚀", "Smile friend"},
		{"emoticons stripped", "Hello :) there :D friend ;(", "Hello there friend"},
		{"no emoji", "Just words", "Just words"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.postProcess(tt.in); got != tt.want {
				t.Errorf("postProcess(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTruncateReply(t *testing.T) {
	long := strings.Repeat("é", 801)
	got := truncateReply(long, 800)
	if n := len([]rune(got)); n != 800 {
		t.Errorf("rune length = %d, want 800", n)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated reply does not end with ...")
	}

	exact := strings.Repeat("a", 800)
	if truncateReply(exact, 800) != exact {
		t.Error("reply at the limit was truncated")
	}
}
