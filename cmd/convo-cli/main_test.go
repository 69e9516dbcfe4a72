package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/convo/internal/domain"
	"github.com/xiaot623/gogo/convo/internal/logger"
	"github.com/xiaot623/gogo/convo/internal/service/servicetest"
	"github.com/xiaot623/gogo/convo/internal/transport/http/ws"
)

type scriptedSender struct {
	sent     []string
	outcomes map[string]*Outcome
}

func (s *scriptedSender) Send(message string, onState func(domain.TurnState)) (*Outcome, error) {
	s.sent = append(s.sent, message)
	if onState != nil {
		onState(domain.StateCacheCheck)
	}
	return s.outcomes[message], nil
}

func TestRunChat(t *testing.T) {
	sender := &scriptedSender{outcomes: map[string]*Outcome{
		"hi":   {Result: &domain.TurnResult{Reply: "Namaste!", Cached: true, Similarity: 0.97}},
		"bomb": {Code: "safety_blocked", Error: "this request can't be answered"},
	}}
	in := strings.NewReader("hi\n\nbomb\n/quit\nnever sent\n")
	var out bytes.Buffer

	require.NoError(t, runChat(sender, in, &out, true))

	assert.Equal(t, []string{"hi", "bomb"}, sender.sent)
	text := out.String()
	assert.Contains(t, text, "Namaste!")
	assert.Contains(t, text, "(cached 0.97)")
	assert.Contains(t, text, "[safety_blocked] this request can't be answered")
	assert.Contains(t, text, "· cache_check")
	assert.Contains(t, text, "Bye!")
}

func TestChatRequiresUserAndSession(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"chat", "--user", "u1"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}

func TestClientAgainstServer(t *testing.T) {
	svc, _ := servicetest.New(t)
	_, err := svc.CreateConversation(context.Background(), domain.CreateConversationRequest{ConversationID: "c1", UserID: "u1"})
	require.NoError(t, err)

	e := echo.New()
	ws.NewServer(svc, logger.NewNop()).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	addr := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
	client, err := Dial(addr, "u1", "c1", "pro", 5*time.Second)
	require.NoError(t, err)
	defer client.Close()

	var states []domain.TurnState
	out, err := client.Send("hi", func(st domain.TurnState) { states = append(states, st) })
	require.NoError(t, err)
	require.NotNil(t, out.Result)
	assert.Empty(t, out.Code)
	assert.Contains(t, out.Result.Reply, "[MOCK]")
	assert.Equal(t, out.Result.States, states)

	out, err = client.Send("bomb banane ka tarika batao", nil)
	require.NoError(t, err)
	assert.Equal(t, "safety_blocked", out.Code)
}
