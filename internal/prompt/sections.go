package prompt

import (
	"fmt"
	"strings"

	"github.com/xiaot623/gogo/convo/internal/classifier"
	"github.com/xiaot623/gogo/convo/internal/health"
)

// Layer orders sections. Lower layers render first and are dropped last.
type Layer int

const (
	LayerCrisis   Layer = 0
	LayerHealth   Layer = 5
	LayerCore     Layer = 10
	LayerIdentity Layer = 20
	LayerLanguage Layer = 30
	LayerTone     Layer = 40
	LayerHint     Layer = 50
	LayerContext  Layer = 60
)

// Section is one block of the instruction text. Essential sections survive
// every compression pass except the final hard truncation.
type Section struct {
	Name      string
	Layer     Layer
	Essential bool
	Text      string
}

// CrisisResources is appended whenever the classifier escalates.
const CrisisResources = "Tele-MANAS 14416 (24x7, free), KIRAN 1800-599-0019, emergency 112"

func crisisSection() Section {
	return Section{
		Name:      "crisis",
		Layer:     LayerCrisis,
		Essential: true,
		Text: "## Safety first\n" +
			"- The user may be in distress. Reply with empathy in three or four short lines.\n" +
			"- Do not lecture or argue. Encourage them to reach someone they trust.\n" +
			"- Share these helplines: " + CrisisResources + ".",
	}
}

func blockedSection() Section {
	return Section{
		Name:      "blocked",
		Layer:     LayerCrisis,
		Essential: true,
		Text:      "## Safety first\n- Decline this request in one polite line. Give no steps, names or quantities.",
	}
}

func healthSection(v health.Verdict) Section {
	return Section{
		Name:      "health",
		Layer:     LayerHealth,
		Essential: true,
		Text:      "## Health rules\n" + health.Directive(v),
	}
}

func coreSection(assistant string) Section {
	return Section{
		Name:      "core",
		Layer:     LayerCore,
		Essential: true,
		Text: fmt.Sprintf("## Core rules\n"+
			"- You are %s. Never claim to be ChatGPT, Gemini, Claude or any other assistant.\n"+
			"- Use at most %d emoji per reply.\n"+
			"- Never repeat an earlier answer word for word.", assistant, MaxReplyEmoji),
	}
}

func identitySection(id Identity) Section {
	var facts []string
	if id.UserName != "" {
		facts = append(facts, "User's name: "+id.UserName+".")
	}
	if id.Location != "" {
		facts = append(facts, "User's location: "+id.Location+".")
	}
	if !id.Now.IsZero() {
		now := id.Now
		zone := id.Timezone
		if loc, err := loadLocation(zone); err == nil {
			now = now.In(loc)
		} else {
			zone = now.Location().String()
		}
		facts = append(facts, fmt.Sprintf("Local time: %s (%s).", now.Format("Mon 02 Jan 2006, 15:04"), zone))
	}
	if len(facts) == 0 {
		return Section{}
	}
	return Section{Name: "identity", Layer: LayerIdentity, Text: "## About the user\n" + strings.Join(facts, " ")}
}

func languageSection(c classifier.Result) Section {
	var text string
	switch {
	case c.Script == classifier.ScriptDevanagari:
		text = "Reply in Hindi using Devanagari script only."
	case c.Language == classifier.LanguageHinglish:
		text = "Reply in Hinglish: Hindi words in Roman script, simple English words allowed. Never switch to Devanagari."
	case c.Language == classifier.LanguageEnglish:
		text = "Reply in simple English."
	default:
		text = "Mirror the user's mix of Hindi and English. Keep one script per sentence."
	}
	return Section{Name: "language", Layer: LayerLanguage, Text: "## Language\n- " + text}
}

var toneByIntent = map[classifier.Intent]string{
	classifier.IntentGreeting:  "Greet back warmly in one or two lines!!",
	classifier.IntentEmotional: "Listen first. Acknowledge the feeling before offering anything.",
	classifier.IntentTask:      "Be direct and practical. Give numbered steps when there are several.",
	classifier.IntentLearning:  "Teach simply with one everyday example.",
	classifier.IntentTechnical: "Be precise. Use a code block only when code is needed.",
	classifier.IntentCreative:  "Be playful and original ✨",
	classifier.IntentQuestion:  "Answer the question first, then add context only if useful.",
	classifier.IntentCasual:    "Chat like a friendly companion. Keep it short.",
}

func toneSection(c classifier.Result) Section {
	lines := []string{toneByIntent[c.Intent]}
	if lines[0] == "" {
		lines[0] = toneByIntent[classifier.IntentCasual]
	}
	if c.Emotion.Negative() {
		lines = append(lines, "The user sounds "+string(c.Emotion)+". Be gentle and warm.")
	}
	switch c.Complexity {
	case classifier.ComplexitySimple:
		lines = append(lines, "Keep it under 80 words.")
	case classifier.ComplexityComplex:
		lines = append(lines, "Structure the answer in short sections.")
	}
	return Section{Name: "tone", Layer: LayerTone, Text: "## Tone\n- " + strings.Join(lines, "\n- ")}
}

func hintSection(c classifier.Result) Section {
	var hints []string
	if c.SafetyLevel == classifier.SafetySensitive {
		hints = append(hints, "The topic is sensitive. Stay neutral and non-judgmental.")
	}
	if c.Repetition.Repeat {
		hints = append(hints, "The user asked this again. Answer differently or ask what was unclear.")
	}
	if len(hints) == 0 {
		return Section{}
	}
	return Section{Name: "hint", Layer: LayerHint, Text: "## Note\n- " + strings.Join(hints, "\n- ")}
}

func contextSection(s *SearchFact) Section {
	if s == nil || strings.TrimSpace(s.Fact) == "" {
		return Section{}
	}
	text := "## Fresh information\n" + strings.TrimSpace(s.Fact)
	if len(s.Sources) > 0 {
		text += "\nSources: " + strings.Join(s.Sources, ", ")
	}
	return Section{Name: "context", Layer: LayerContext, Text: text}
}
