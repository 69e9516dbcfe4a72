// Package domain defines the core domain models for the conversation service.
package domain

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// TurnState is one step of the per-turn state machine.
type TurnState string

const (
	StateCacheCheck            TurnState = "cache_check"
	StateQuotaCheck            TurnState = "quota_check"
	StateSessionResolve        TurnState = "session_resolve"
	StateBranchResolve         TurnState = "branch_resolve"
	StateHistoryFetch          TurnState = "history_fetch"
	StatePersonalizationDetect TurnState = "personalization_detect"
	StateClassify              TurnState = "classify"
	StateHealthAssess          TurnState = "health_assess"
	StateSearchAugment         TurnState = "search_augment"
	StatePromptCompile         TurnState = "prompt_compile"
	StateModelInvoke           TurnState = "model_invoke"
	StateResponseSanitize      TurnState = "response_sanitize"
	StatePersist               TurnState = "persist"
	StateCacheStore            TurnState = "cache_store"
	StateUsageDeduct           TurnState = "usage_deduct"
	StateAnalyticsEmit         TurnState = "analytics_emit"
)

// TurnStatus is the terminal outcome of a turn.
type TurnStatus string

const (
	TurnStatusDone            TurnStatus = "done"
	TurnStatusBlocked         TurnStatus = "blocked"
	TurnStatusQuotaExceeded   TurnStatus = "quota_exceeded"
	TurnStatusSessionNotFound TurnStatus = "session_not_found"
	TurnStatusFailed          TurnStatus = "failed"
)

// EventType represents the type of an analytics event.
type EventType string

const (
	EventTypeTurnCompleted  EventType = "turn_completed"
	EventTypeTurnBlocked    EventType = "turn_blocked"
	EventTypeTurnFailed     EventType = "turn_failed"
	EventTypeCacheHit       EventType = "cache_hit"
	EventTypeBranchCreated  EventType = "branch_created"
	EventTypeBranchDeleted  EventType = "branch_deleted"
	EventTypeQuotaExhausted EventType = "quota_exhausted"
)
