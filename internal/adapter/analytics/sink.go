// Package analytics records turn and branch events. Sinks are best effort:
// callers log a failed Emit and move on.
package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/xiaot623/gogo/convo/internal/domain"
)

// TurnMetrics describes one processed turn.
type TurnMetrics struct {
	RequestID     string             `json:"request_id,omitempty"`
	BranchID      string             `json:"branch_id,omitempty"`
	Status        domain.TurnStatus  `json:"status"`
	Reason        string             `json:"reason,omitempty"`
	States        []domain.TurnState `json:"states"`
	Intent        string             `json:"intent,omitempty"`
	Language      string             `json:"language,omitempty"`
	SafetyLevel   string             `json:"safety_level,omitempty"`
	HealthMode    string             `json:"health_mode,omitempty"`
	CacheHit      bool               `json:"cache_hit"`
	Similarity    float64            `json:"similarity,omitempty"`
	Searched      bool               `json:"searched,omitempty"`
	Usage         domain.Usage       `json:"usage"`
	Units         int64              `json:"units"`
	ModelAttempts int                `json:"model_attempts,omitempty"`
	Latency       time.Duration      `json:"latency_ns"`
}

// Event is one analytics record.
type Event struct {
	Type           domain.EventType
	ConversationID string
	UserID         string
	At             time.Time
	Turn           *TurnMetrics
	Attrs          map[string]interface{}
}

// Sink receives events.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// Multi fans an event out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Emit(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops everything.
type Discard struct{}

func (Discard) Emit(context.Context, Event) error { return nil }
