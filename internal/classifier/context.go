package classifier

import (
	"regexp"
	"strings"
)

// followUpMaxWords bounds how long a follow-up utterance can be.
const followUpMaxWords = 8

// IsFollowUp reports whether message leans on earlier turns: it is short,
// carries a pronoun or continuation marker, and the conversation already has
// at least two prior turns.
func IsFollowUp(message string, priorTurns int) bool {
	if priorTurns < 2 {
		return false
	}
	text := Normalize(message)
	if len(Tokenize(text)) > followUpMaxWords {
		return false
	}
	return followUpMarkers(text)
}

// Personalization holds facts the user volunteered about themselves.
type Personalization struct {
	Name     string `json:"name,omitempty"`
	Location string `json:"location,omitempty"`
}

func (p Personalization) Empty() bool { return p.Name == "" && p.Location == "" }

var (
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bmy name is ([\p{L}]+)`),
		regexp.MustCompile(`(?i)\bcall me ([\p{L}]+)`),
		regexp.MustCompile(`(?i)\bmera naam ([\p{L}]+)`),
	}
	locationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bi (?:live|stay) in ([\p{L} ]+?)(?:[.,!?]|$| and\b)`),
		regexp.MustCompile(`(?i)\bi(?:'m| am) from ([\p{L} ]+?)(?:[.,!?]|$| and\b)`),
		regexp.MustCompile(`(?i)\b(?:main|mai) ([\p{L}]+) (?:se|mein|me) (?:hoon|hu|rehta|rehti)\b`),
	}
	notNames = toSet("not", "a", "an", "the", "fine", "ok", "okay", "good", "kya", "nahi")
)

// DetectPersonalization extracts self-introductions such as "my name is Riya"
// or "main Pune se hoon".
func DetectPersonalization(message string) Personalization {
	var p Personalization
	for _, re := range namePatterns {
		if m := re.FindStringSubmatch(message); m != nil {
			if _, skip := notNames[strings.ToLower(m[1])]; !skip {
				p.Name = titleCase(m[1])
				break
			}
		}
	}
	for _, re := range locationPatterns {
		if m := re.FindStringSubmatch(message); m != nil {
			p.Location = titleCase(strings.TrimSpace(m[1]))
			break
		}
	}
	return p
}

func titleCase(s string) string {
	parts := strings.Fields(strings.ToLower(s))
	for i, w := range parts {
		r := []rune(w)
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		parts[i] = string(r)
	}
	return strings.Join(parts, " ")
}
