package prompt

import "unicode/utf8"

// EstimateTokens approximates tokens as one per four characters, rounded up.
// It is a budget proxy, not a tokenizer.
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// TrimToTokens cuts s to at most tokens*4 runes.
func TrimToTokens(s string, tokens int) string {
	if tokens <= 0 {
		return ""
	}
	limit := tokens * 4
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
