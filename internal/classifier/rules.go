package classifier

import (
	"regexp"
	"strings"
)

// Rule pairs a predicate with the result it yields. Rules are evaluated in
// slice order; earlier rules win.
type Rule[T any] struct {
	Name   string
	Result T
	Match  func(text string) bool
}

// First returns the result of the first matching rule.
func First[T any](rules []Rule[T], text string) (T, bool) {
	for _, r := range rules {
		if r.Match(text) {
			return r.Result, true
		}
	}
	var zero T
	return zero, false
}

// All returns the results of every matching rule, in priority order.
func All[T any](rules []Rule[T], text string) []T {
	var out []T
	for _, r := range rules {
		if r.Match(text) {
			out = append(out, r.Result)
		}
	}
	return out
}

// Always matches anything. Use it as the last rule of a table to get a default.
func Always(string) bool { return true }

// Words matches any of the given words or phrases on ASCII word boundaries.
// Entries are regular expression fragments.
func Words(terms ...string) func(string) bool {
	re := regexp.MustCompile(`\b(?:` + strings.Join(terms, "|") + `)\b`)
	return re.MatchString
}

// Pattern matches a raw regular expression.
func Pattern(expr string) func(string) bool {
	return regexp.MustCompile(expr).MatchString
}

// Contains matches any substring. Used for scripts where \b does not apply.
func Contains(subs ...string) func(string) bool {
	return func(text string) bool {
		for _, s := range subs {
			if strings.Contains(text, s) {
				return true
			}
		}
		return false
	}
}

// AnyOf combines predicates with OR.
func AnyOf(preds ...func(string) bool) func(string) bool {
	return func(text string) bool {
		for _, p := range preds {
			if p(text) {
				return true
			}
		}
		return false
	}
}
