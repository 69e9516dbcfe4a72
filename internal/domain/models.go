package domain

import (
	"encoding/json"
	"time"
)

// Conversation is an ordered sequence of turns for one user.
type Conversation struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	Active         bool      `json:"active"`
	Pinned         bool      `json:"pinned"`
	Archived       bool      `json:"archived"`
	MessageCount   int       `json:"message_count"`
	TokenTotal     int       `json:"token_total"`
	LastActivityAt time.Time `json:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// Message is one turn: a single user or assistant message.
type Message struct {
	MessageID       string          `json:"message_id"`
	ConversationID  string          `json:"conversation_id"`
	Role            Role            `json:"role"`
	Content         string          `json:"content"`
	BranchID        string          `json:"branch_id,omitempty"`
	ParentMessageID string          `json:"parent_message_id,omitempty"`
	Tokens          int             `json:"tokens"`
	ReactionCount   int             `json:"reaction_count"`
	CreatedAt       time.Time       `json:"created_at"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
}

// OnTrunk reports whether the message belongs to the main line.
func (m Message) OnTrunk() bool { return m.BranchID == "" }

// Branch is an alternate continuation diverging at ParentMessageID.
type Branch struct {
	BranchID        string    `json:"branch_id"`
	ConversationID  string    `json:"conversation_id"`
	ParentMessageID string    `json:"parent_message_id"`
	Label           string    `json:"label"`
	Depth           int       `json:"depth"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}

// Event is an analytics record kept for replay and inspection.
type Event struct {
	EventID        string          `json:"event_id"`
	ConversationID string          `json:"conversation_id"`
	UserID         string          `json:"user_id"`
	Ts             int64           `json:"ts"` // Unix milliseconds
	Type           EventType       `json:"type"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}
