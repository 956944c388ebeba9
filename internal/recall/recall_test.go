package recall

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/sakha/internal/extract"
	"github.com/kalambet/sakha/internal/profile"
	"github.com/kalambet/sakha/internal/storage"
)

// --- Fakes ---

type fakeMoods struct {
	moods []storage.MoodSample
	err   error
}

func (f *fakeMoods) RecentMoods(string, int) ([]storage.MoodSample, error) { return f.moods, f.err }

type fakeMemory struct {
	mem profile.Memory
	err error
}

func (f *fakeMemory) Memory(string) (profile.Memory, error) { return f.mem, f.err }

type fakeSessions struct {
	sessions []storage.SessionInfo
	msgs     map[string][]storage.Message
	since    time.Time
}

func (f *fakeSessions) RecentSessions(_ string, since time.Time, _ int) ([]storage.SessionInfo, error) {
	f.since = since
	return f.sessions, nil
}

func (f *fakeSessions) FirstMessages(id string, _ int) ([]storage.Message, error) {
	return f.msgs[id], nil
}

// seqRand returns its values in order, reduced modulo n.
type seqRand struct {
	vals []int
	i    int
}

func (r *seqRand) IntN(n int) int {
	v := r.vals[r.i%len(r.vals)]
	r.i++
	return v % n
}

func exchange(user, assistant string) []storage.Message {
	return []storage.Message{
		{Sender: storage.SenderUser, Text: user},
		{Sender: storage.SenderAssistant, Text: assistant},
	}
}

// --- ContextBuilder ---

func TestBuild_Empty(t *testing.T) {
	b := NewContextBuilder(&fakeMoods{}, &fakeMemory{})
	if got := b.Build("s1"); got != "" {
		t.Errorf("Build = %q, want empty", got)
	}
}

func TestBuild_AllSections(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	moods := &fakeMoods{moods: []storage.MoodSample{
		{Mood: "sad", CreatedAt: base},
		{Mood: "anxious", CreatedAt: base.Add(time.Hour)},
	}}
	mem := &fakeMemory{mem: profile.Memory{
		Entities: extract.Entities{
			extract.People: {"Ravi", "Meera"},
			extract.Dates:  {"yesterday"},
		},
		Topics: []string{"work", "family"},
	}}

	got := NewContextBuilder(moods, mem).Build("s1")
	want := `Previous moods detected:
- 2025-03-01 10:30:00: anxious
- 2025-03-01 09:30:00: sad

Important details from your conversations:
People: Meera, Ravi
Important dates: yesterday

Topics you've touched on:
- family
- work`
	if got != want {
		t.Errorf("Build =\n%s\n\nwant:\n%s", got, want)
	}
}

func TestBuild_MemoryErrorKeepsMoods(t *testing.T) {
	moods := &fakeMoods{moods: []storage.MoodSample{{Mood: "happy", CreatedAt: time.Now()}}}
	got := NewContextBuilder(moods, &fakeMemory{err: errors.New("boom")}).Build("s1")
	if !strings.HasPrefix(got, "Previous moods detected:") || strings.Contains(got, "Important details") {
		t.Errorf("Build = %q", got)
	}
}

// --- Referencer ---

func TestReferencer_NoSessions(t *testing.T) {
	r := NewReferencer(&fakeSessions{}, &seqRand{vals: []int{0}}, ReferencerConfig{})
	if got := r.Context("current"); got != "" {
		t.Errorf("Context = %q, want empty", got)
	}
}

func TestReferencer_FiltersAndFormats(t *testing.T) {
	started := time.Date(2025, 1, 2, 18, 0, 0, 0, time.UTC)
	src := &fakeSessions{
		sessions: []storage.SessionInfo{
			{ID: "greeting", StartedAt: started},
			{ID: "notopic", StartedAt: started},
			{ID: "good", StartedAt: started},
		},
		msgs: map[string][]storage.Message{
			"greeting": exchange("hi", "Hello, my friend. What brings you here?"),
			"notopic":  exchange("The weather is nice today", "Enjoy the sunshine, dear one."),
			"good":     exchange("I want to learn to meditate properly", "Sit quietly and watch your breath, friend."),
		},
	}
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	r := NewReferencer(src, &seqRand{vals: []int{0}}, ReferencerConfig{Now: func() time.Time { return now }})

	got := r.Context("current")
	want := pastHeader + "\n" +
		`On January 02, you discussed meditation. User: "I want to learn to meditate properly..." - You: "Sit quietly and watch your breath, friend...."`
	if got != want {
		t.Errorf("Context =\n%s\n\nwant:\n%s", got, want)
	}
	if !src.since.Equal(now.Add(-DefaultWindow)) {
		t.Errorf("lookback since = %v, want %v", src.since, now.Add(-DefaultWindow))
	}
}

func TestReferencer_SamplesUpToTwo(t *testing.T) {
	src := &fakeSessions{msgs: map[string][]storage.Message{}}
	for _, id := range []string{"a", "b", "c"} {
		src.sessions = append(src.sessions, storage.SessionInfo{ID: id, StartedAt: time.Now()})
		src.msgs[id] = exchange("my career feels stuck "+id, "Every path bends before it opens "+id)
	}

	// IntN(2) = 1 selects two references.
	r := NewReferencer(src, &seqRand{vals: []int{1, 2, 0}}, ReferencerConfig{})
	got := r.Context("current")
	if n := strings.Count(got, "you discussed career"); n != 2 {
		t.Errorf("got %d references, want 2:\n%s", n, got)
	}
	// Partial shuffle swaps c (index 2) into first place.
	if !strings.Contains(got, "stuck c") {
		t.Errorf("expected session c to be sampled:\n%s", got)
	}
}

func TestReferencer_TruncatesExchange(t *testing.T) {
	long := "I keep thinking about my purpose " + strings.Repeat("x", 200)
	src := &fakeSessions{
		sessions: []storage.SessionInfo{{ID: "a", StartedAt: time.Now()}},
		msgs:     map[string][]storage.Message{"a": exchange(long, "Purpose unfolds as you walk, dear friend.")},
	}
	got := NewReferencer(src, &seqRand{vals: []int{0}}, ReferencerConfig{}).Context("current")
	if !strings.Contains(got, long[:100]+"...\"") || strings.Contains(got, long[:101]) {
		t.Errorf("user message not truncated to 100 chars:\n%s", got)
	}
}

// --- Elapsed ---

func TestAgo(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		d    time.Duration
		want string
	}{
		{3 * 24 * time.Hour, "3 days ago"},
		{25 * time.Hour, "1 day ago"},
		{5 * time.Hour, "5 hours ago"},
		{time.Hour, "1 hour ago"},
		{2 * time.Minute, "2 minutes ago"},
		{30 * time.Second, "just moments ago"},
		{-time.Minute, "just moments ago"},
	}
	for _, tt := range tests {
		if got := Ago(now.Add(-tt.d), now); got != tt.want {
			t.Errorf("Ago(-%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFindMention(t *testing.T) {
	history := []storage.Message{
		{ID: "1", Sender: storage.SenderUser, Text: "I have a Job Interview on friday"},
		{ID: "2", Sender: storage.SenderAssistant, Text: "Your job interview will go well"},
		{ID: "3", Sender: storage.SenderUser, Text: "the job interview went fine"},
		{ID: "4", Sender: storage.SenderUser, Text: "when did we talk about job interview"},
	}

	m, ok := FindMention(history, "job interview")
	if !ok || m.ID != "3" {
		t.Errorf("FindMention = (%+v, %v), want message 3", m, ok)
	}
	if _, ok := FindMention(history, "wedding"); ok {
		t.Error("unexpected match for wedding")
	}
	if _, ok := FindMention(history, " "); ok {
		t.Error("blank phrase matched")
	}
	if _, ok := FindMention(history[:1], "job"); ok {
		t.Error("the triggering message itself matched")
	}
}
