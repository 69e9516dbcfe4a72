package contextwin

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/convo/internal/domain"
	"github.com/xiaot623/gogo/convo/internal/prompt"
)

func turns(n int, words int) []domain.Message {
	var out []domain.Message
	for i := 0; i < n; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		content := fmt.Sprintf("topic%d ", i) + strings.Repeat("word ", words)
		out = append(out, domain.Message{MessageID: fmt.Sprint(i), Role: role, Content: strings.TrimSpace(content)})
	}
	return out
}

func TestFitUnderBudgetKeepsEverything(t *testing.T) {
	h := turns(4, 3)
	w := Fit(h, 1000)
	assert.Equal(t, h, w.Messages)
	assert.Zero(t, w.Dropped)
	assert.Empty(t, w.Digest)
}

func TestFitDropsOldestAndDigests(t *testing.T) {
	h := turns(20, 40) // ~52 tokens each
	w := Fit(h, 300)

	require.NotEmpty(t, w.Messages)
	assert.Equal(t, h[len(h)-1].MessageID, w.Messages[len(w.Messages)-1].MessageID, "newest kept")
	assert.Equal(t, 20, w.Dropped+len(w.Messages))
	assert.Greater(t, w.Dropped, 0)
	assert.LessOrEqual(t, w.Tokens, 300)

	assert.Equal(t, h[w.Dropped:], w.Messages, "kept messages are the newest, in order")
	assert.Contains(t, w.Digest, "messages omitted")
	assert.Contains(t, w.Digest, "the user asked: topic")
	assert.NotContains(t, w.Digest, "topic19")
}

func TestFitCutsOversizedNewestMessage(t *testing.T) {
	h := []domain.Message{
		{MessageID: "old", Role: domain.RoleUser, Content: "short question"},
		{MessageID: "new", Role: domain.RoleUser, Content: strings.Repeat("x", 4000)},
	}
	w := Fit(h, 200)
	require.NotEmpty(t, w.Messages)
	last := w.Messages[len(w.Messages)-1]
	assert.Equal(t, "new", last.MessageID)
	assert.True(t, strings.HasSuffix(last.Content, "…"))
	assert.LessOrEqual(t, prompt.EstimateTokens(last.Content), 90)
	assert.LessOrEqual(t, w.Tokens, 200)
	assert.Equal(t, strings.Repeat("x", 4000), h[1].Content, "input is not modified")
}

func TestFitEmpty(t *testing.T) {
	assert.Equal(t, Window{}, Fit(nil, 100))
}
