package extract

import "strings"

// NoTopics is how an empty topic list is rendered.
const NoTopics = "No specific topics found"

// recentUserMessages bounds how far back KeyTopics looks.
const recentUserMessages = 5

type topic struct {
	name     string
	category string
	// generic topics are dropped when a specific topic of the same
	// category was found.
	generic bool
}

func specific(category, name string) topic { return topic{name: name, category: category} }
func generic(category, name string) topic  { return topic{name: name, category: category, generic: true} }

var (
	healthIndicators = []string{"sick", "health", "pain", "hurt", "doctor", "hospital", "disease", "condition",
		"therapy", "medication", "depression", "anxiety", "disorder", "diagnosis",
		"symptom", "treatment", "surgery", "recovery", "illness"}
	lossIndicators         = []string{"lost", "loss", "died", "passed", "gone", "missing", "grief"}
	worryIndicators        = []string{"worried", "anxious", "concerned", "fear", "stress", "afraid"}
	relationshipIndicators = []string{"relationship", "married", "marriage", "dating", "girlfriend", "boyfriend",
		"partner", "spouse", "wife", "husband", "divorce", "breakup", "love", "crush", "romance", "friend"}
	careerIndicators = []string{"job", "career", "work", "profession", "business", "company", "office",
		"interview", "application", "resume", "promotion", "fired", "quit",
		"boss", "supervisor", "colleague", "coworker", "salary", "employed"}
	spiritualIndicators = []string{"purpose", "meaning", "existence", "spiritual", "meditation", "consciousness",
		"dharma", "karma", "divine", "enlightenment", "awakening",
		"peace", "truth", "reality", "universe", "creation", "liberation", "moksha"}

	romanticWords     = []string{"girlfriend", "boyfriend", "wife", "husband", "spouse", "partner", "dating", "romantic", "lover", "breakup", "divorce"}
	friendshipWords   = []string{"friend", "friends", "friendship", "buddy", "pal"}
	familyWords       = []string{"parent", "parents", "mother", "father", "mom", "dad", "brother", "sister", "sibling", "siblings", "aunt", "uncle", "cousin", "grandma", "grandpa", "grandmother", "grandfather", "family", "son", "daughter", "child", "children"}
	professionalWords = []string{"boss", "colleague", "coworker", "supervisor", "employee", "manager", "client", "customer", "teacher", "student", "classmate"}
)

// KeyTopics summarizes what the user has talked about. userMessages are the
// session's user turns, oldest first; the latest is treated as the current
// question and skipped when there is more than one. Topics come out in
// first-seen order without duplicates.
func KeyTopics(userMessages []string) (out []string) {
	defer recovered("key topics", &out)

	msgs := userMessages
	if len(msgs) > 1 {
		msgs = msgs[:len(msgs)-1]
	}
	if len(msgs) > recentUserMessages {
		msgs = msgs[len(msgs)-recentUserMessages:]
	}

	var found []topic
	seen := make(map[string]bool)
	for _, m := range msgs {
		for _, t := range messageTopics(m) {
			if !seen[t.name] {
				seen[t.name] = true
				found = append(found, t)
			}
		}
	}

	hasSpecific := make(map[string]bool)
	for _, t := range found {
		if !t.generic {
			hasSpecific[t.category] = true
		}
	}
	for _, t := range found {
		if t.generic && hasSpecific[t.category] {
			continue
		}
		out = append(out, t.name)
	}
	return out
}

// FormatTopics joins topics for a prompt.
func FormatTopics(topics []string) string {
	if len(topics) == 0 {
		return NoTopics
	}
	return strings.Join(topics, ", ")
}

func messageTopics(msg string) []topic {
	lower := strings.ToLower(msg)
	ss := sentences(lower)
	var ts []topic

	for _, s := range ss {
		if containsAny(s, healthIndicators...) {
			ts = append(ts, healthTopics(s)...)
		}
	}

	for _, s := range ss {
		if containsAny(s, lossIndicators...) {
			ts = append(ts, lossTopic(s))
			break
		}
	}

	if containsAny(lower, worryIndicators...) {
		ts = append(ts, worryTopic(lower))
	}

	if containsAny(lower, "job", "work", "career") {
		ts = append(ts, generic("career", "job/career"))
	}
	if strings.Contains(lower, "interview") {
		ts = append(ts, specific("career", "job interview"))
	}
	if containsAny(lower, "relationship", "partner", "girlfriend", "boyfriend") {
		ts = append(ts, generic("relationship", "relationship"))
	}
	if containsAny(lower, "family", "parent") {
		ts = append(ts, generic("relationship", "family"))
	}
	if containsAny(lower, "lonely", "alone") {
		ts = append(ts, specific("loneliness", "loneliness"))
	}
	if strings.Contains(lower, "meditat") {
		ts = append(ts, generic("spirituality", "meditation"))
	}
	if containsAny(lower, "purpose", "meaning") {
		ts = append(ts, generic("spirituality", "life purpose/meaning"))
	}

	names := ExtractEntities(msg)[People]
	for _, s := range ss {
		if containsAny(s, relationshipIndicators...) || hasWord(s, "ex") {
			ts = append(ts, relationshipTopics(s, names)...)
		}
	}

	for _, s := range ss {
		if containsAny(s, careerIndicators...) || hasWord(s, "pay") {
			ts = append(ts, careerTopic(s))
		}
	}

	for _, s := range ss {
		if containsAny(s, spiritualIndicators...) || hasAnyWord(s, "self", "soul", "god") {
			ts = append(ts, spiritualTopic(s))
		}
	}

	if containsAny(lower, "gita", "bhagavad") {
		ts = append(ts, specific("scripture", "Bhagavad Gita study"))
	}
	if strings.Contains(lower, "upanishad") {
		ts = append(ts, specific("scripture", "Upanishads study"))
	}
	if strings.Contains(lower, "veda") {
		ts = append(ts, specific("scripture", "Vedic knowledge"))
	}
	if strings.Contains(lower, "yoga") && !containsAny(lower, "exercise", "stretch", "pose", "class") {
		ts = append(ts, specific("scripture", "yoga philosophy"))
	}
	return ts
}

func healthTopics(s string) []topic {
	const cat = "health"
	var ts []topic
	switch {
	case containsAny(s, "depress", "anxiety", "panic", "mental", "therapy", "psycholog"):
		if strings.Contains(s, "depress") {
			ts = append(ts, specific(cat, "depression"))
		}
		if containsAny(s, "anxiety", "panic") {
			ts = append(ts, specific(cat, "anxiety disorder"))
		}
		if strings.Contains(s, "therapy") {
			ts = append(ts, specific(cat, "therapy treatment"))
		}
		if len(ts) == 0 {
			ts = append(ts, generic(cat, "mental health concerns"))
		}
	case containsAny(s, "pain", "ache", "hurt", "chronic"):
		switch {
		case containsAny(s, "back", "spine"):
			ts = append(ts, specific(cat, "back pain"))
		case containsAny(s, "head", "migraine"):
			ts = append(ts, specific(cat, "headaches"))
		case containsAny(s, "stomach", "digest"):
			ts = append(ts, specific(cat, "digestive issues"))
		case containsAny(s, "joint", "arthritis"):
			ts = append(ts, specific(cat, "joint pain"))
		default:
			ts = append(ts, specific(cat, "physical pain"))
		}
	case containsAny(s, "doctor", "hospital", "surgery", "medication"):
		if strings.Contains(s, "surgery") {
			ts = append(ts, specific(cat, "upcoming surgery"))
		}
		if strings.Contains(s, "medication") {
			ts = append(ts, specific(cat, "medication treatment"))
		}
		if strings.Contains(s, "doctor") {
			ts = append(ts, specific(cat, "doctor's appointment"))
		}
		if len(ts) == 0 {
			ts = append(ts, generic(cat, "medical treatment"))
		}
	default:
		ts = append(ts, generic(cat, "health concerns"))
	}
	return ts
}

func lossTopic(s string) topic {
	const cat = "loss"
	switch {
	case strings.Contains(s, "friend"):
		return specific(cat, "loss of a friend")
	case containsAny(s, "parent", "father", "mother"):
		return specific(cat, "loss of a parent")
	case strings.Contains(s, "child"):
		return specific(cat, "loss of a child")
	case containsAny(s, "relative", "family"):
		return specific(cat, "loss of a family member")
	case hasAnyWord(s, "pet", "pets", "dog", "dogs", "cat", "cats", "puppy", "kitten"):
		return specific(cat, "loss of a pet")
	case hasAnyWord(s, "job", "work"):
		return specific(cat, "loss of job")
	case hasAnyWord(s, "home", "house"):
		return specific(cat, "loss of home")
	}
	return generic(cat, "loss of someone")
}

func worryTopic(lower string) topic {
	if i := strings.Index(lower, "about "); i >= 0 {
		rest := lower[i+len("about "):]
		if j := strings.IndexAny(rest, ".?!,;"); j >= 0 {
			rest = rest[:j]
		}
		if rest = strings.TrimSpace(rest); rest != "" {
			return specific("worry", "worried about "+rest)
		}
	}
	switch {
	case strings.Contains(lower, "interview"):
		return specific("career", "job interview")
	case containsAny(lower, "test", "exam"):
		return specific("worry", "test/exam")
	case strings.Contains(lower, "relationship"):
		return generic("relationship", "relationship")
	case strings.Contains(lower, "health"):
		return generic("health", "health")
	}
	return generic("worry", "anxiety/worry")
}

func relationshipTopics(s string, names []string) []topic {
	const cat = "relationship"

	var kind string
	switch {
	case containsAny(s, romanticWords...) || hasWord(s, "ex"):
		kind = "romantic"
	case hasAnyWord(s, friendshipWords...):
		kind = "friendship"
	case hasAnyWord(s, familyWords...):
		kind = "family"
	case containsAny(s, professionalWords...):
		kind = "professional"
	}

	var ts []topic
	switch kind {
	case "romantic":
		switch {
		case hasWord(s, "ex") || strings.Contains(s, "break"):
			ts = append(ts, specific(cat, "breakup"))
		case containsAny(s, "problem", "issue", "fight", "conflict"):
			ts = append(ts, specific(cat, "romantic relationship problems"))
		case containsAny(s, "married", "marriage"):
			ts = append(ts, specific(cat, "marriage"))
		case strings.Contains(s, "dating"):
			ts = append(ts, specific(cat, "dating relationship"))
		default:
			ts = append(ts, specific(cat, "romantic relationship"))
		}
	case "friendship":
		switch {
		case strings.Contains(s, "best friend"):
			ts = append(ts, specific(cat, "best friend"))
		case strings.Contains(s, "old friend"):
			ts = append(ts, specific(cat, "old friendship"))
		case strings.Contains(s, "new friend"):
			ts = append(ts, specific(cat, "new friendship"))
		default:
			ts = append(ts, specific(cat, "friendship"))
		}
	case "family":
		switch {
		case hasAnyWord(s, "parent", "parents", "mother", "father", "mom", "dad"):
			ts = append(ts, specific(cat, "parent relationship"))
		case hasAnyWord(s, "sibling", "siblings", "brother", "sister"):
			ts = append(ts, specific(cat, "sibling relationship"))
		default:
			ts = append(ts, specific(cat, "family relationship"))
		}
	case "professional":
		ts = append(ts, specific(cat, "work relationship"))
	default:
		ts = append(ts, generic(cat, "interpersonal relationship"))
	}

	if len(names) > 0 && (strings.Contains(s, "with ") || strings.Contains(s, "my ")) {
		for _, n := range names {
			if hasWord(s, strings.ToLower(n)) {
				if kind == "" {
					ts = append(ts, specific(cat, "relationship with "+n))
				} else {
					ts = append(ts, specific(cat, kind+" with "+n))
				}
				break
			}
		}
	}
	return ts
}

func careerTopic(s string) topic {
	const cat = "career"
	switch {
	case containsAny(s, "interview", "application", "apply", "resume", "cv"):
		if !strings.Contains(s, "interview") {
			return specific(cat, "job search")
		}
		switch {
		case strings.Contains(s, "tomorrow"):
			return specific(cat, "job interview tomorrow")
		case strings.Contains(s, "next week"):
			return specific(cat, "job interview next week")
		case strings.Contains(s, "today"):
			return specific(cat, "job interview today")
		}
		return specific(cat, "job interview")
	case containsAny(s, "new job", "started", "starting"):
		return specific(cat, "new job")
	case containsAny(s, "fired", "laid off"):
		return specific(cat, "job loss")
	case containsAny(s, "quit", "resign", "leaving"):
		return specific(cat, "quitting job")
	case containsAny(s, "stress", "pressure", "overwork", "burnout", "exhausted", "tired"):
		return specific(cat, "work stress")
	case containsAny(s, "promotion", "raise", "advance", "grow", "progress"):
		return specific(cat, "career advancement")
	case containsAny(s, "boss", "manager", "supervisor", "colleague", "coworker", "team"):
		if containsAny(s, "problem", "issue", "conflict", "difficult", "toxic") {
			return specific(cat, "workplace conflict")
		}
		return specific(cat, "workplace relationships")
	case containsAny(s, "career", "profession"):
		return specific(cat, "career path")
	}
	return generic(cat, "work-related concerns")
}

func spiritualTopic(s string) topic {
	const cat = "spirituality"
	switch {
	case containsAny(s, "purpose", "meaning", "why am i here"):
		return specific(cat, "life purpose")
	case containsAny(s, "meditat", "mindful", "practice"):
		if hasWord(s, "how") {
			return specific(cat, "meditation techniques")
		}
		return specific(cat, "meditation practice")
	case containsAny(s, "conscious", "aware", "atman") || hasAnyWord(s, "self", "soul"):
		return specific(cat, "consciousness and self-realization")
	case containsAny(s, "karma", "dharma", "duty", "action", "consequence"):
		switch {
		case strings.Contains(s, "karma"):
			return specific(cat, "karma")
		case strings.Contains(s, "dharma"):
			return specific(cat, "dharma (duty)")
		}
		return specific(cat, "life path and duty")
	case containsAny(s, "divine", "cosmic", "universe", "creation") || hasWord(s, "god"):
		return specific(cat, "connection with the divine")
	case containsAny(s, "liberation", "moksha", "enlighten", "awaken") || hasWord(s, "free"):
		return specific(cat, "spiritual liberation")
	}
	return generic(cat, "spiritual growth")
}

func hasAnyWord(s string, ws ...string) bool {
	set := make(map[string]bool, len(ws))
	for _, w := range ws {
		set[w] = true
	}
	for _, w := range words(s) {
		if set[w] {
			return true
		}
	}
	return false
}
