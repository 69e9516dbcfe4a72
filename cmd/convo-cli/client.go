package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xiaot623/gogo/convo/internal/domain"
	"github.com/xiaot623/gogo/convo/internal/transport/http/ws"
)

// Client is a WebSocket chat client.
type Client struct {
	conn      *websocket.Conn
	userID    string
	sessionID string
	timeout   time.Duration
}

// Outcome is what one turn produced.
type Outcome struct {
	States []domain.TurnState
	Result *domain.TurnResult
	Code   string
	Error  string
}

// Dial connects to addr and sends hello.
func Dial(addr, userID, sessionID, plan string, timeout time.Duration) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	c := &Client{conn: conn, userID: userID, sessionID: sessionID, timeout: timeout}
	if err := c.hello(plan); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

func (c *Client) hello(plan string) error {
	msg := ws.HelloMessage{
		BaseMessage: ws.BaseMessage{Type: ws.TypeHello, Ts: time.Now().UnixMilli()},
		UserID:      c.userID,
		Plan:        plan,
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	data, err := c.read()
	if err != nil {
		return fmt.Errorf("read hello_ack: %w", err)
	}
	var base ws.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		return fmt.Errorf("unmarshal hello_ack: %w", err)
	}
	switch base.Type {
	case ws.TypeHelloAck:
		return nil
	case ws.TypeError:
		var errMsg ws.ErrorMessage
		_ = json.Unmarshal(data, &errMsg)
		return fmt.Errorf("hello failed: %s - %s", errMsg.Code, errMsg.Message)
	default:
		return fmt.Errorf("expected hello_ack, got: %s", base.Type)
	}
}

// Send runs one turn and blocks until it is done or failed. onState, if set,
// sees each state as it arrives.
func (c *Client) Send(message string, onState func(domain.TurnState)) (*Outcome, error) {
	requestID := "req_" + uuid.New().String()
	msg := ws.TurnMessage{
		BaseMessage: ws.BaseMessage{
			Type:      ws.TypeTurn,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
			SessionID: c.sessionID,
		},
		Message: message,
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return nil, fmt.Errorf("write turn: %w", err)
	}

	out := &Outcome{}
	for {
		data, err := c.read()
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		var base ws.BaseMessage
		if err := json.Unmarshal(data, &base); err != nil {
			return nil, fmt.Errorf("unmarshal: %w", err)
		}
		if base.RequestID != "" && base.RequestID != requestID {
			continue
		}

		switch base.Type {
		case ws.TypeState:
			var st ws.StateMessage
			if err := json.Unmarshal(data, &st); err == nil {
				out.States = append(out.States, st.State)
				if onState != nil {
					onState(st.State)
				}
			}
		case ws.TypeDone:
			var done ws.DoneMessage
			if err := json.Unmarshal(data, &done); err != nil {
				return nil, fmt.Errorf("unmarshal done: %w", err)
			}
			out.Result = done.Result
			return out, nil
		case ws.TypeError:
			var errMsg ws.ErrorMessage
			if err := json.Unmarshal(data, &errMsg); err != nil {
				return nil, fmt.Errorf("unmarshal error: %w", err)
			}
			out.Code, out.Error, out.Result = errMsg.Code, errMsg.Message, errMsg.Result
			return out, nil
		}
	}
}

func (c *Client) read() ([]byte, error) {
	if c.timeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	}
	_, data, err := c.conn.ReadMessage()
	return data, err
}
