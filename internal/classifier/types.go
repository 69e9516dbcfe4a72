// Package classifier labels a user message with intent, complexity, language,
// emotion, safety level and repetition. It is deterministic and does no I/O.
package classifier

// Intent is what the user is trying to do.
type Intent string

const (
	IntentGreeting  Intent = "greeting"
	IntentEmotional Intent = "emotional"
	IntentTask      Intent = "task"
	IntentLearning  Intent = "learning"
	IntentTechnical Intent = "technical"
	IntentCreative  Intent = "creative"
	IntentQuestion  Intent = "question"
	IntentCasual    Intent = "casual"
)

type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Language buckets: Hinglish is the primary target language, English the
// secondary one.
type Language string

const (
	LanguageHinglish Language = "hinglish"
	LanguageEnglish  Language = "english"
	LanguageMixed    Language = "mixed"
)

type Script string

const (
	ScriptLatin      Script = "latin"
	ScriptDevanagari Script = "devanagari"
)

type Emotion string

const (
	EmotionNeutral     Emotion = "neutral"
	EmotionJoy         Emotion = "joy"
	EmotionSadness     Emotion = "sadness"
	EmotionAnger       Emotion = "anger"
	EmotionAnxiety     Emotion = "anxiety"
	EmotionFrustration Emotion = "frustration"
)

// Negative reports whether the emotion calls for a softer tone.
func (e Emotion) Negative() bool {
	switch e {
	case EmotionSadness, EmotionAnger, EmotionAnxiety, EmotionFrustration:
		return true
	}
	return false
}

// SafetyLevel is ordered: Clean < Sensitive < HealthQuery < Escalate < Dangerous.
type SafetyLevel int

const (
	SafetyClean SafetyLevel = iota
	SafetySensitive
	SafetyHealthQuery
	SafetyEscalate
	SafetyDangerous
)

func (s SafetyLevel) String() string {
	switch s {
	case SafetyClean:
		return "clean"
	case SafetySensitive:
		return "sensitive"
	case SafetyHealthQuery:
		return "health_query"
	case SafetyEscalate:
		return "escalate"
	case SafetyDangerous:
		return "dangerous"
	}
	return "unknown"
}

func (s SafetyLevel) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// SafetyAction is what the pipeline does with a given safety level.
type SafetyAction string

const (
	ActionAllow          SafetyAction = "allow"
	ActionCaution        SafetyAction = "caution"
	ActionHealthGuidance SafetyAction = "health_guidance"
	ActionSupport        SafetyAction = "support"
	ActionBlock          SafetyAction = "block"
)

// Repetition describes how the message relates to the user's recent turns.
type Repetition struct {
	Repeat     bool    `json:"repeat"`
	Exact      bool    `json:"exact"`
	Count      int     `json:"count"`
	Similarity float64 `json:"similarity"`
}

// Result is the per-turn classification. It is never cached across turns.
type Result struct {
	Intent          Intent       `json:"intent"`
	SecondaryIntent Intent       `json:"secondary_intent,omitempty"`
	Complexity      Complexity   `json:"complexity"`
	Language        Language     `json:"language"`
	Script          Script       `json:"script"`
	Emotion         Emotion      `json:"emotion"`
	SafetyLevel     SafetyLevel  `json:"safety_level"`
	SafetyAction    SafetyAction `json:"safety_action"`
	Confidence      float64      `json:"confidence"`
	Risk            float64      `json:"risk"`
	Repetition      Repetition   `json:"repetition"`
	NeedsFreshData  bool         `json:"needs_fresh_data"`
	WordCount       int          `json:"word_count"`
}

// Blocked reports whether the message must not reach the model.
func (r Result) Blocked() bool { return r.SafetyLevel == SafetyDangerous }
