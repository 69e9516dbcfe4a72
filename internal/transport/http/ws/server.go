// Package ws streams conversation turns over WebSocket connections.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/convo/internal/apperr"
	"github.com/xiaot623/gogo/convo/internal/domain"
	"github.com/xiaot623/gogo/convo/internal/logger"
)

const (
	maxMessageSize = 64 * 1024
	readTimeout    = 60 * time.Second
	writeTimeout   = 10 * time.Second
	pingInterval   = 50 * time.Second
	sendBuffer     = 64
)

// TurnProcessor runs a turn and reports each state it enters.
type TurnProcessor interface {
	ProcessTurnStream(ctx context.Context, req domain.TurnRequest, onState func(domain.TurnState)) (*domain.TurnResult, error)
}

// Server handles WebSocket connections.
type Server struct {
	turns    TurnProcessor
	log      *logger.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
}

// NewServer creates a new WebSocket server.
func NewServer(turns TurnProcessor, log *logger.Logger) *Server {
	return &Server{
		turns: turns,
		log:   log.With("component", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients are served from other origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		now: time.Now,
	}
}

// RegisterRoutes registers the websocket endpoint.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/v1/ws", s.HandleWebSocket)
}

// connection is one client. Writes go through send and are flushed by
// writePump; identity is set by hello.
type connection struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	ctx    context.Context
	cancel context.CancelFunc
	turns  sync.WaitGroup

	mu    sync.Mutex
	hello *HelloMessage

	closeOnce sync.Once
}

func (c *connection) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.conn.Close()
	})
}

func (c *connection) identity() *HelloMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hello
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Warn("failed to upgrade websocket", "error", err)
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	conn := &connection{
		id:     uuid.New().String(),
		conn:   ws,
		send:   make(chan []byte, sendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
	ws.SetReadLimit(maxMessageSize)
	s.log.Debug("websocket connected", "conn_id", conn.id)

	go s.writePump(conn)
	go s.readPump(conn)
	return nil
}

// readPump reads frames until the client goes away, then waits for turns in
// flight before closing the send channel.
func (s *Server) readPump(conn *connection) {
	defer func() {
		conn.cancel()
		conn.turns.Wait()
		close(conn.send)
		s.log.Debug("websocket disconnected", "conn_id", conn.id)
	}()

	_ = conn.conn.SetReadDeadline(s.now().Add(readTimeout))
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(s.now().Add(readTimeout))
	})

	for {
		_, message, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.log.Warn("websocket read failed", "conn_id", conn.id, "error", err)
			}
			return
		}
		s.handleMessage(conn, message)
	}
}

// writePump writes queued frames and keeps the connection alive with pings.
func (s *Server) writePump(conn *connection) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.close()
	}()

	for {
		select {
		case message, ok := <-conn.send:
			_ = conn.conn.SetWriteDeadline(s.now().Add(writeTimeout))
			if !ok {
				_ = conn.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.log.Warn("websocket write failed", "conn_id", conn.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.conn.SetWriteDeadline(s.now().Add(writeTimeout))
			if err := conn.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming frames.
func (s *Server) handleMessage(conn *connection, data []byte) {
	var base BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid JSON message", nil)
		return
	}

	switch base.Type {
	case TypeHello:
		s.handleHello(conn, data)
	case TypeTurn:
		s.handleTurn(conn, data)
	default:
		s.sendError(conn, base.RequestID, ErrorCodeUnknownType, "unknown message type: "+base.Type, nil)
	}
}

func (s *Server) handleHello(conn *connection, data []byte) {
	var msg HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.UserID == "" {
		s.sendError(conn, msg.RequestID, apperr.CodeValidation, "hello requires user_id", nil)
		return
	}
	conn.mu.Lock()
	conn.hello = &msg
	conn.mu.Unlock()

	s.send(conn, HelloAckMessage{
		BaseMessage: s.base(TypeHelloAck, msg.RequestID, ""),
		UserID:      msg.UserID,
	})
}

// handleTurn runs the turn in its own goroutine so reads (and pongs) keep
// flowing. Disconnecting cancels the turn.
func (s *Server) handleTurn(conn *connection, data []byte) {
	var msg TurnMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", ErrorCodeInvalidMessage, "invalid turn message", nil)
		return
	}
	req := domain.TurnRequest{
		RequestID:       msg.RequestID,
		UserID:          msg.UserID,
		SessionID:       msg.SessionID,
		Message:         msg.Message,
		Plan:            msg.Plan,
		BranchID:        msg.BranchID,
		ParentMessageID: msg.ParentMessageID,
		Temperature:     msg.Temperature,
		SkipCache:       msg.SkipCache,
	}
	// The hello identity is fixed for the connection; turn frames cannot
	// switch to another user or plan.
	if hello := conn.identity(); hello != nil {
		if hello.UserID != "" {
			req.UserID = hello.UserID
		}
		if hello.Plan != "" {
			req.Plan = hello.Plan
		}
		req.UserName, req.Location, req.Timezone = hello.UserName, hello.Location, hello.Timezone
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	conn.turns.Add(1)
	go func() {
		defer conn.turns.Done()
		res, err := s.turns.ProcessTurnStream(conn.ctx, req, func(st domain.TurnState) {
			s.send(conn, StateMessage{BaseMessage: s.base(TypeState, req.RequestID, req.SessionID), State: st})
		})
		if err != nil {
			code, message := apperr.Public(err)
			s.sendError(conn, req.RequestID, code, message, res)
			return
		}
		s.send(conn, DoneMessage{BaseMessage: s.base(TypeDone, req.RequestID, req.SessionID), Result: res})
	}()
}

func (s *Server) base(typ, requestID, sessionID string) BaseMessage {
	return BaseMessage{Type: typ, Ts: s.now().UnixMilli(), RequestID: requestID, SessionID: sessionID}
}

func (s *Server) sendError(conn *connection, requestID, code, message string, res *domain.TurnResult) {
	s.send(conn, ErrorMessage{
		BaseMessage: s.base(TypeError, requestID, ""),
		Code:        code,
		Message:     message,
		Result:      res,
	})
}

// send queues a frame. Frames for a gone client are dropped.
func (s *Server) send(conn *connection, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Error("failed to marshal websocket message", "error", err)
		return
	}
	select {
	case <-conn.ctx.Done():
	case conn.send <- data:
	}
}
