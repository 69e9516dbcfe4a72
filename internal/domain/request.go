package domain

// TurnRequest is one user utterance to be answered.
type TurnRequest struct {
	RequestID       string   `json:"request_id,omitempty"`
	UserID          string   `json:"user_id" validate:"required,max=128"`
	SessionID       string   `json:"session_id" validate:"required,max=128"`
	Message         string   `json:"message" validate:"required,max=4000"`
	Plan            string   `json:"plan,omitempty" validate:"omitempty,max=32"`
	BranchID        string   `json:"branch_id,omitempty"`
	ParentMessageID string   `json:"parent_message_id,omitempty"`
	UserName        string   `json:"user_name,omitempty" validate:"omitempty,max=80"`
	Location        string   `json:"location,omitempty" validate:"omitempty,max=120"`
	Timezone        string   `json:"timezone,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	SkipCache       bool     `json:"skip_cache,omitempty"`
}

// IsEdit reports whether the request edits or regenerates an earlier message.
func (r TurnRequest) IsEdit() bool { return r.ParentMessageID != "" }

// TurnInsight summarises how the turn was classified.
type TurnInsight struct {
	Intent       string  `json:"intent"`
	Language     string  `json:"language"`
	Emotion      string  `json:"emotion"`
	SafetyLevel  string  `json:"safety_level"`
	Complexity   string  `json:"complexity"`
	HealthMode   string  `json:"health_mode,omitempty"`
	Repeat       bool    `json:"repeat,omitempty"`
	Confidence   float64 `json:"confidence"`
	PromptTokens int     `json:"prompt_tokens"`
}

// Usage is token accounting reported by the model.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// TurnResult is the outcome of one processed turn.
type TurnResult struct {
	Status         TurnStatus   `json:"status"`
	ConversationID string       `json:"conversation_id"`
	BranchID       string       `json:"branch_id,omitempty"`
	UserMessageID  string       `json:"user_message_id,omitempty"`
	ReplyMessageID string       `json:"reply_message_id,omitempty"`
	Reply          string       `json:"reply,omitempty"`
	Cached         bool         `json:"cached"`
	Similarity     float64      `json:"similarity,omitempty"`
	Sources        []string     `json:"sources,omitempty"`
	Reason         string       `json:"reason,omitempty"`
	Usage          Usage        `json:"usage"`
	UnitsDeducted  int64        `json:"units_deducted"`
	Insight        *TurnInsight `json:"insight,omitempty"`
	States         []TurnState  `json:"states"`
	ModelAttempts  int          `json:"model_attempts,omitempty"`
	LatencyMs      int64        `json:"latency_ms"`
}

// CreateConversationRequest opens a new conversation.
type CreateConversationRequest struct {
	ConversationID string `json:"conversation_id,omitempty" validate:"omitempty,max=128"`
	UserID         string `json:"user_id" validate:"required,max=128"`
	Title          string `json:"title,omitempty" validate:"omitempty,max=200"`
}

// CreateBranchRequest forks a conversation at an earlier message.
type CreateBranchRequest struct {
	UserID          string `json:"user_id" validate:"required"`
	ParentMessageID string `json:"parent_message_id" validate:"required"`
	Plan            string `json:"plan,omitempty"`
	Label           string `json:"label,omitempty" validate:"omitempty,max=80"`
}
