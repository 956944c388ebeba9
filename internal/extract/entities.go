package extract

import (
	"regexp"
	"strings"
	"unicode"
)

// Entity categories.
const (
	People = "people"
	Places = "places"
	Events = "events"
	Dates  = "dates"
)

// Categories lists entity categories in display order.
var Categories = []string{People, Places, Events, Dates}

// Entities maps a category to its values in first-seen order.
type Entities map[string][]string

// Empty reports whether no category holds a value.
func (e Entities) Empty() bool {
	for _, v := range e {
		if len(v) > 0 {
			return false
		}
	}
	return true
}

// stoplist holds capitalized words that are never people or places.
var stoplist = map[string]bool{
	"Krishna": true, "Gita": true, "Bhagavad": true, "Upanishads": true,
	"God": true, "Hindu": true, "India": true,
}

var pronouns = map[string]bool{"i": true, "i'm": true, "i'll": true, "i've": true, "i'd": true}

var placePattern = regexp.MustCompile(`\b(?:in|at|to|from)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\b`)

var eventTerms = []string{
	"wedding", "ceremony", "funeral", "birthday", "anniversary", "meeting",
	"conference", "interview", "trip", "vacation", "travel", "journey", "exam", "test",
}

var eventPatterns = func() map[string][2]*regexp.Regexp {
	m := make(map[string][2]*regexp.Regexp, len(eventTerms))
	for _, t := range eventTerms {
		m[t] = [2]*regexp.Regexp{
			regexp.MustCompile(`\b` + t + `\b`),
			regexp.MustCompile(`\b\w+\s+` + t + `\b`),
		}
	}
	return m
}()

const months = `january|february|march|april|may|june|july|august|september|october|november|december`

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:yesterday|today|tomorrow)\b`),
	regexp.MustCompile(`\b(?:last|next|this)\s+(?:week|month|year|monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`),
	regexp.MustCompile(`\b(?:` + months + `)\s+\d{1,2}(?:st|nd|rd|th)?\b`),
	regexp.MustCompile(`\b\d{1,2}(?:st|nd|rd|th)?\s+(?:of\s+)?(?:` + months + `)\b`),
}

// ExtractEntities finds people, places, events and dates mentioned in text.
// Categories with no match are absent from the result.
func ExtractEntities(text string) (e Entities) {
	defer recovered("entities", &e)

	e = make(Entities)
	add := func(cat, v string) { e[cat] = appendUnique(e[cat], v) }

	// A capitalized phrase after a preposition is a place, not a person.
	placeWords := make(map[string]bool)
	var places []string
	for _, m := range placePattern.FindAllStringSubmatch(text, -1) {
		places = append(places, m[1])
		for _, w := range strings.Fields(m[1]) {
			placeWords[w] = true
		}
	}

	for _, s := range sentences(text) {
		for i, tok := range strings.Fields(s) {
			if i == 0 {
				continue
			}
			w := trimPunct(tok)
			if w == "" || !unicode.IsUpper([]rune(w)[0]) {
				continue
			}
			if pronouns[strings.ToLower(w)] || stoplist[w] || placeWords[w] {
				continue
			}
			add(People, w)
		}
	}

	for _, p := range places {
		if stoplist[p] || contains(e[People], p) {
			continue
		}
		add(Places, p)
	}

	lower := strings.ToLower(text)
	for _, t := range eventTerms {
		pats := eventPatterns[t]
		if !pats[0].MatchString(lower) {
			continue
		}
		if ms := pats[1].FindAllString(lower, -1); len(ms) > 0 {
			for _, m := range ms {
				add(Events, m)
			}
		} else {
			add(Events, t)
		}
	}

	for _, p := range datePatterns {
		for _, m := range p.FindAllString(lower, -1) {
			add(Dates, m)
		}
	}
	return e
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
