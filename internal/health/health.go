// Package health derives the response posture for health-related messages.
// It never blocks a reply; it only shapes the instruction text.
package health

import "github.com/xiaot623/gogo/convo/internal/classifier"

// IntentDepth is why a health question is being asked.
type IntentDepth string

const (
	DepthEmergency         IntentDepth = "emergency"
	DepthValidationSeeking IntentDepth = "validation_seeking"
	DepthRemedySeeking     IntentDepth = "remedy_seeking"
	DepthRemedyMentioned   IntentDepth = "remedy_mentioned"
	DepthEducationSeeking  IntentDepth = "education_seeking"
	DepthComfortSeeking    IntentDepth = "comfort_seeking"
	DepthCasualMention     IntentDepth = "casual_mention"
)

// ResponseMode is how much medical specificity a reply may carry.
type ResponseMode string

const (
	ModeEmergencyOverride      ResponseMode = "emergency_override"
	ModeRedirectToDoctor       ResponseMode = "redirect_to_doctor"
	ModeEducationOnly          ResponseMode = "education_only"
	ModeComfortPlusEducation   ResponseMode = "comfort_plus_education"
	ModeComfortOnly            ResponseMode = "comfort_only"
	ModeBalancedRemedyResponse ResponseMode = "balanced_remedy_response"
)

// modeByDepth is the product's safety posture. Do not edit casually.
var modeByDepth = map[IntentDepth]ResponseMode{
	DepthEmergency:         ModeEmergencyOverride,
	DepthValidationSeeking: ModeRedirectToDoctor,
	DepthRemedySeeking:     ModeRedirectToDoctor,
	DepthRemedyMentioned:   ModeBalancedRemedyResponse,
	DepthEducationSeeking:  ModeEducationOnly,
	DepthComfortSeeking:    ModeComfortOnly,
	DepthCasualMention:     ModeComfortPlusEducation,
}

// ModeFor returns the response mode for depth. Unknown depths get the
// most conservative non-emergency mode.
func ModeFor(depth IntentDepth) ResponseMode {
	if m, ok := modeByDepth[depth]; ok {
		return m
	}
	return ModeRedirectToDoctor
}

// Verdict is the per-turn health assessment. It is not persisted.
type Verdict struct {
	IntentDepth  IntentDepth  `json:"intent_depth"`
	ResponseMode ResponseMode `json:"response_mode"`
	Manipulation bool         `json:"manipulation"`
	Tester       bool         `json:"tester"`
}

// Assess classifies a health message. Callers invoke it when the classifier
// reported a health query or an escalation.
func Assess(message string) Verdict {
	text := classifier.Normalize(message)
	depth, _ := classifier.First(depthRules, text)
	return Verdict{
		IntentDepth:  depth,
		ResponseMode: ModeFor(depth),
		Manipulation: manipulation(text),
		Tester:       tester(text),
	}
}
