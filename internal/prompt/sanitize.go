package prompt

import (
	"regexp"
	"strings"
)

// MaxReplyEmoji caps emoji in a model reply.
const MaxReplyEmoji = 3

// FallbackReply is sent when sanitation leaves nothing.
const FallbackReply = "Sorry, abhi jawab nahi ban paaya. Ek baar phir try karein?"

var (
	rolePrefix    = regexp.MustCompile(`(?im)^\s*(?:assistant|system|user|ai|bot)\s*:\s*`)
	roleTags      = regexp.MustCompile(`(?i)</?(?:assistant|system|user|s|im_start|im_end)>|<\|[a-z_]+\|>`)
	impersonation = regexp.MustCompile(`(?i)\b(?:i am|i'm|main|mai)\s+(?:chatgpt|gpt-?\d*|gemini|bard|claude|siri|alexa|copilot)\b`)
	makerClaim    = regexp.MustCompile(`(?i)\b(?:made|created|developed|trained|built) by (?:openai|google|anthropic|meta|microsoft)\b`)
)

// SanitizeResponse cleans a model reply before it is stored or sent.
func SanitizeResponse(reply, assistant string) string {
	if assistant == "" {
		assistant = "Saathi"
	}
	s := roleTags.ReplaceAllString(reply, "")
	s = rolePrefix.ReplaceAllString(s, "")
	s = impersonation.ReplaceAllString(s, "I'm "+assistant)
	s = makerClaim.ReplaceAllString(s, "here to help you")
	s = capEmoji(s, MaxReplyEmoji)
	s = dedupeLines(s)
	s = strings.TrimSpace(s)
	if s == "" {
		return FallbackReply
	}
	return s
}

func capEmoji(s string, limit int) string {
	seen := 0
	prevKept := false
	return strings.Map(func(r rune) rune {
		if !IsEmoji(r) {
			return r
		}
		// Joiners and selectors follow their base emoji.
		if r == 0x200D || r == 0xFE0F {
			if prevKept {
				return r
			}
			return -1
		}
		seen++
		prevKept = seen <= limit
		if prevKept {
			return r
		}
		return -1
	}, s)
}

func dedupeLines(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	prev := ""
	blank := 0
	for _, l := range lines {
		t := strings.TrimRight(spaceRun.ReplaceAllString(l, " "), " ")
		if strings.TrimSpace(t) == "" {
			blank++
			if blank > 1 {
				continue
			}
			out = append(out, "")
			continue
		}
		blank = 0
		if strings.EqualFold(strings.TrimSpace(t), prev) {
			continue
		}
		prev = strings.TrimSpace(t)
		out = append(out, t)
	}
	return strings.Join(out, "\n")
}
