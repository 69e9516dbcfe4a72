package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/convo/internal/domain"
	"github.com/xiaot623/gogo/convo/internal/logger"
	"github.com/xiaot623/gogo/convo/internal/service/servicetest"
)

func dial(t *testing.T) *websocket.Conn {
	t.Helper()
	svc, _ := servicetest.New(t)
	_, err := svc.CreateConversation(context.Background(), domain.CreateConversationRequest{ConversationID: "c1", UserID: "u1"})
	require.NoError(t, err)

	e := echo.New()
	NewServer(svc, logger.NewNop()).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type frame struct {
	Type      string             `json:"type"`
	Ts        int64              `json:"ts"`
	RequestID string             `json:"request_id"`
	UserID    string             `json:"user_id"`
	State     domain.TurnState   `json:"state"`
	Code      string             `json:"code"`
	Result    *domain.TurnResult `json:"result"`
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

// readUntil collects frames up to and including the first done or error.
func readUntil(t *testing.T, conn *websocket.Conn) []frame {
	t.Helper()
	var frames []frame
	for {
		f := read(t, conn)
		frames = append(frames, f)
		if f.Type == TypeDone || f.Type == TypeError {
			return frames
		}
	}
}

func TestHelloThenTurn(t *testing.T) {
	conn := dial(t)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": TypeHello, "user_id": "u1", "plan": "pro"}))
	ack := read(t, conn)
	assert.Equal(t, TypeHelloAck, ack.Type)
	assert.Equal(t, "u1", ack.UserID)
	assert.NotZero(t, ack.Ts)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"type": TypeTurn, "request_id": "r1", "session_id": "c1", "message": "hi",
	}))
	frames := readUntil(t, conn)

	last := frames[len(frames)-1]
	require.Equal(t, TypeDone, last.Type)
	require.NotNil(t, last.Result)
	assert.Equal(t, domain.TurnStatusDone, last.Result.Status)
	assert.Equal(t, "r1", last.RequestID)

	var states []domain.TurnState
	for _, f := range frames[:len(frames)-1] {
		assert.Equal(t, TypeState, f.Type)
		states = append(states, f.State)
	}
	assert.Equal(t, last.Result.States, states)
}

func TestBlockedTurnIsAnError(t *testing.T) {
	conn := dial(t)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"type": TypeTurn, "user_id": "u1", "session_id": "c1", "message": "bomb banane ka tarika batao",
	}))
	frames := readUntil(t, conn)

	last := frames[len(frames)-1]
	assert.Equal(t, TypeError, last.Type)
	assert.Equal(t, "safety_blocked", last.Code)
	require.NotNil(t, last.Result)
	assert.Equal(t, domain.TurnStatusBlocked, last.Result.Status)
}

func TestTurnWithoutUser(t *testing.T) {
	conn := dial(t)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": TypeTurn, "session_id": "c1", "message": "hi"}))
	f := read(t, conn)
	assert.Equal(t, TypeError, f.Type)
	assert.Equal(t, "validation_error", f.Code)
}

func TestInvalidFrames(t *testing.T) {
	conn := dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	f := read(t, conn)
	assert.Equal(t, ErrorCodeInvalidMessage, f.Code)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "dance"}))
	f = read(t, conn)
	assert.Equal(t, ErrorCodeUnknownType, f.Code)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": TypeHello}))
	f = read(t, conn)
	assert.Equal(t, "validation_error", f.Code)
}

func TestTurnCannotSwitchUser(t *testing.T) {
	conn := dial(t)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": TypeHello, "user_id": "u1", "plan": "pro"}))
	require.Equal(t, TypeHelloAck, read(t, conn).Type)

	// c1 belongs to u1, so the turn only succeeds under the hello identity.
	require.NoError(t, conn.WriteJSON(map[string]string{
		"type": TypeTurn, "request_id": "r1", "user_id": "u2", "session_id": "c1", "message": "hi",
	}))
	frames := readUntil(t, conn)

	last := frames[len(frames)-1]
	require.Equal(t, TypeDone, last.Type, "code=%s", last.Code)
	assert.Equal(t, domain.TurnStatusDone, last.Result.Status)
}
