// Package contextwin trims conversation history to a token budget before it
// is handed to the model.
package contextwin

import (
	"fmt"
	"strings"

	"github.com/xiaot623/gogo/convo/internal/domain"
	"github.com/xiaot623/gogo/convo/internal/prompt"
)

const (
	// DefaultBudget is the history ceiling in estimated tokens.
	DefaultBudget = 2000

	digestShare    = 10 // percent of the budget reserved for the digest
	digestTopics   = 5
	digestWords    = 8
	perMessageCap  = 2 // a single message may use at most budget/perMessageCap
	truncateMarker = " …"
)

// Window is the history the model will see.
type Window struct {
	Messages []domain.Message
	// Digest summarizes dropped older user turns. Empty when nothing was dropped.
	Digest  string
	Tokens  int
	Dropped int
}

// Fit keeps the most recent messages that fit in budget, oldest first. The
// newest message is always kept, cut down if it alone is too long. When
// older messages are dropped a short digest of their topics takes a reserved
// slice of the budget.
func Fit(history []domain.Message, budget int) Window {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if len(history) == 0 {
		return Window{}
	}

	total := 0
	for _, m := range history {
		total += prompt.EstimateTokens(m.Content)
	}
	if total <= budget {
		return Window{Messages: history, Tokens: total}
	}

	reserve := budget * digestShare / 100
	avail := budget - reserve
	limit := avail / perMessageCap

	var kept []domain.Message
	used := 0
	i := len(history) - 1
	for ; i >= 0; i-- {
		m := history[i]
		if prompt.EstimateTokens(m.Content) > limit {
			m.Content = prompt.TrimToTokens(m.Content, limit-1) + truncateMarker
		}
		cost := prompt.EstimateTokens(m.Content)
		if used+cost > avail && len(kept) > 0 {
			break
		}
		kept = append(kept, m)
		used += cost
	}
	for l, r := 0, len(kept)-1; l < r; l, r = l+1, r-1 {
		kept[l], kept[r] = kept[r], kept[l]
	}

	dropped := history[:i+1]
	w := Window{Messages: kept, Tokens: used, Dropped: len(dropped)}
	if len(dropped) > 0 {
		w.Digest = prompt.TrimToTokens(digest(dropped), reserve)
		w.Tokens += prompt.EstimateTokens(w.Digest)
	}
	return w
}

// digest lists the openings of the most recent dropped user turns.
func digest(dropped []domain.Message) string {
	var topics []string
	for i := len(dropped) - 1; i >= 0 && len(topics) < digestTopics; i-- {
		if dropped[i].Role != domain.RoleUser {
			continue
		}
		words := strings.Fields(dropped[i].Content)
		if len(words) == 0 {
			continue
		}
		if len(words) > digestWords {
			words = append(words[:digestWords], "…")
		}
		topics = append(topics, strings.Join(words, " "))
	}
	if len(topics) == 0 {
		return fmt.Sprintf("(%d earlier messages omitted)", len(dropped))
	}
	for l, r := 0, len(topics)-1; l < r; l, r = l+1, r-1 {
		topics[l], topics[r] = topics[r], topics[l]
	}
	return fmt.Sprintf("Earlier in this conversation (%d messages omitted) the user asked: %s",
		len(dropped), strings.Join(topics, "; "))
}
