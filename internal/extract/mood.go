package extract

import "strings"

// Mood is the coarse emotional state detected in a message.
type Mood string

const (
	MoodHappy    Mood = "happy"
	MoodSad      Mood = "sad"
	MoodAnxious  Mood = "anxious"
	MoodPeaceful Mood = "peaceful"
	MoodAngry    Mood = "angry"
	MoodNone     Mood = "none"
)

// moodKeywords is checked in order; the first category with a hit wins.
var moodKeywords = []struct {
	mood  Mood
	words []string
}{
	{MoodHappy, []string{"happy", "joy", "excited", "great", "blessed", "wonderful"}},
	{MoodSad, []string{"sad", "down", "depressed", "unhappy", "lost", "miserable", "alone"}},
	{MoodAnxious, []string{"anxious", "worried", "nervous", "stress", "fear", "afraid", "panic"}},
	{MoodPeaceful, []string{"peace", "calm", "serene", "content", "quiet", "still"}},
	{MoodAngry, []string{"angry", "frustrated", "mad", "upset", "annoyed", "irritated"}},
}

// DetectMood returns the first mood whose keywords appear in text.
func DetectMood(text string) (m Mood) {
	defer recovered("mood", &m)

	lower := strings.ToLower(text)
	for _, k := range moodKeywords {
		if containsAny(lower, k.words...) {
			return k.mood
		}
	}
	return MoodNone
}
