package classifier

import (
	"strings"
	"unicode"
)

const (
	// DefaultRepeatWindow is how many recent user turns are compared.
	DefaultRepeatWindow = 5
	// DefaultRepeatThreshold is the word-overlap ratio that counts as a repeat.
	DefaultRepeatThreshold = 0.8

	hinglishRatio = 0.35
	englishRatio  = 0.10
)

// Classifier holds the tunables. The zero value is not usable; call New.
type Classifier struct {
	RepeatWindow    int
	RepeatThreshold float64
}

func New() *Classifier {
	return &Classifier{
		RepeatWindow:    DefaultRepeatWindow,
		RepeatThreshold: DefaultRepeatThreshold,
	}
}

// Classify labels message. recent holds earlier user messages, oldest first.
func (c *Classifier) Classify(message string, recent []string) Result {
	text := Normalize(message)
	words := Tokenize(text)

	res := Result{WordCount: len(words)}

	intents := All(intentRules, text)
	res.Intent = intents[0]
	for _, in := range intents[1:] {
		if in != IntentCasual {
			res.SecondaryIntent = in
			break
		}
	}

	res.SafetyLevel, _ = First(safetyRules, text)
	res.SafetyAction = actionFor(res.SafetyLevel)
	res.Emotion, _ = First(emotionRules, text)
	res.Language, res.Script = detectLanguage(message, words)
	res.Complexity = complexity(text, len(words))
	res.Repetition = c.repetition(text, recent)
	res.NeedsFreshData = freshDataTerms(text)
	res.Confidence = confidence(res)
	res.Risk = risk(res)
	return res
}

// Classify runs the default classifier.
func Classify(message string, recent []string) Result {
	return New().Classify(message, recent)
}

// Normalize lowercases and collapses whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Tokenize splits normalized text into letter/digit words.
func Tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r) && !unicode.Is(unicode.Mc, r)
	})
}

func actionFor(level SafetyLevel) SafetyAction {
	switch level {
	case SafetySensitive:
		return ActionCaution
	case SafetyHealthQuery:
		return ActionHealthGuidance
	case SafetyEscalate:
		return ActionSupport
	case SafetyDangerous:
		return ActionBlock
	}
	return ActionAllow
}

func detectLanguage(raw string, words []string) (Language, Script) {
	if len(words) == 0 {
		return LanguageEnglish, ScriptLatin
	}
	markers, devanagari := 0, 0
	for _, w := range words {
		if isDevanagari(w) {
			devanagari++
			markers++
			continue
		}
		if _, ok := hinglishMarkers[w]; ok {
			markers++
		}
	}
	script := ScriptLatin
	if devanagari*2 >= len(words) {
		script = ScriptDevanagari
	}
	ratio := float64(markers) / float64(len(words))
	switch {
	case ratio >= hinglishRatio:
		return LanguageHinglish, script
	case ratio < englishRatio:
		return LanguageEnglish, script
	default:
		return LanguageMixed, script
	}
}

func isDevanagari(word string) bool {
	for _, r := range word {
		if unicode.Is(unicode.Devanagari, r) {
			return true
		}
	}
	return false
}

func complexity(text string, wordCount int) Complexity {
	level := 0
	switch {
	case wordCount > 40:
		level = 2
	case wordCount > 12:
		level = 1
	}
	if complexTerms(text) && level < 2 {
		level++
	}
	return []Complexity{ComplexitySimple, ComplexityModerate, ComplexityComplex}[level]
}

func confidence(r Result) float64 {
	c := 0.5
	if r.Intent != IntentCasual {
		c += 0.3
	}
	if r.SecondaryIntent != "" {
		c -= 0.1
	}
	if r.Language != LanguageMixed {
		c += 0.1
	}
	if r.WordCount <= 2 && r.Intent != IntentGreeting {
		c -= 0.2
	}
	return clamp(c, 0.1, 0.95)
}

var riskBySafety = map[SafetyLevel]float64{
	SafetyClean:       0.0,
	SafetySensitive:   0.3,
	SafetyHealthQuery: 0.5,
	SafetyEscalate:    0.85,
	SafetyDangerous:   1.0,
}

func risk(r Result) float64 {
	v := riskBySafety[r.SafetyLevel]
	if r.Emotion.Negative() {
		v += 0.05
	}
	return clamp(v, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
