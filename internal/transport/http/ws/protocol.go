package ws

import "github.com/xiaot623/gogo/convo/internal/domain"

// Message types from client to server
const (
	TypeHello = "hello"
	TypeTurn  = "turn"
)

// Message types from server to client
const (
	TypeHelloAck = "hello_ack"
	TypeState    = "state"
	TypeDone     = "done"
	TypeError    = "error"
)

// Error codes that are not service reason codes.
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeUnknownType    = "unknown_type"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// HelloMessage identifies the user for the rest of the connection.
type HelloMessage struct {
	BaseMessage
	UserID   string `json:"user_id"`
	Plan     string `json:"plan,omitempty"`
	UserName string `json:"user_name,omitempty"`
	Location string `json:"location,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// HelloAckMessage confirms a hello.
type HelloAckMessage struct {
	BaseMessage
	UserID string `json:"user_id"`
}

// TurnMessage asks for a reply. Fields left empty fall back to the hello.
type TurnMessage struct {
	BaseMessage
	UserID          string   `json:"user_id,omitempty"`
	Plan            string   `json:"plan,omitempty"`
	Message         string   `json:"message"`
	BranchID        string   `json:"branch_id,omitempty"`
	ParentMessageID string   `json:"parent_message_id,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	SkipCache       bool     `json:"skip_cache,omitempty"`
}

// StateMessage reports a state the turn entered.
type StateMessage struct {
	BaseMessage
	State domain.TurnState `json:"state"`
}

// DoneMessage carries the finished turn.
type DoneMessage struct {
	BaseMessage
	Result *domain.TurnResult `json:"result"`
}

// ErrorMessage reports a failed frame or turn. Result is set when a turn
// ended blocked, over quota or failed.
type ErrorMessage struct {
	BaseMessage
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Result  *domain.TurnResult `json:"result,omitempty"`
}
