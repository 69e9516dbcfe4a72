package prompt

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	spaceRun    = regexp.MustCompile(`[ \t]+`)
	blankLines  = regexp.MustCompile(`\n{2,}`)
	headerMark  = regexp.MustCompile(`(?m)^#+\s*`)
	bulletMark  = regexp.MustCompile(`(?m)^\s*(?:[-*•]|\d+[.)])\s+`)
	emphasis    = regexp.MustCompile(`\*\*|__|~~|` + "`")
	repeatPunct = regexp.MustCompile(`([!?.])[!?.]+`)
	ruleLine    = regexp.MustCompile(`(?m)^[-=_*]{3,}\s*$`)
)

// normalizeWhitespace trims lines and collapses runs of spaces and blank lines.
func normalizeWhitespace(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(l, " "))
	}
	s = blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n")
	return strings.TrimSpace(s)
}

// stripDecoration removes markdown markers, repeated punctuation, emoji and
// rule lines. Words and numbers are untouched.
func stripDecoration(s string) string {
	s = ruleLine.ReplaceAllString(s, "")
	s = headerMark.ReplaceAllString(s, "")
	s = bulletMark.ReplaceAllString(s, "")
	s = emphasis.ReplaceAllString(s, "")
	s = repeatPunct.ReplaceAllString(s, "$1")
	s = StripEmoji(s)
	return normalizeWhitespace(s)
}

// IsEmoji reports pictographic runes. Joiners and variation selectors count
// as emoji so they are removed along with their base.
func IsEmoji(r rune) bool {
	switch {
	case r == 0x200D, r == 0xFE0F:
		return true
	case r >= 0x1F000 && r <= 0x1FAFF:
		return true
	case r >= 0x2600 && r <= 0x27BF:
		return true
	}
	return unicode.Is(unicode.So, r)
}

func StripEmoji(s string) string {
	return strings.Map(func(r rune) rune {
		if IsEmoji(r) {
			return -1
		}
		return r
	}, s)
}
