package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/convo/internal/domain"
)

// EventStore persists events.
type EventStore interface {
	CreateEvent(ctx context.Context, event *domain.Event) error
}

// EventLog writes events to the store for later inspection.
type EventLog struct {
	store EventStore
}

func NewEventLog(store EventStore) *EventLog {
	return &EventLog{store: store}
}

func (l *EventLog) Emit(ctx context.Context, ev Event) error {
	payload := make(map[string]interface{}, len(ev.Attrs)+1)
	for k, v := range ev.Attrs {
		payload[k] = v
	}
	if ev.Turn != nil {
		payload["turn"] = ev.Turn
	}
	var raw json.RawMessage
	if len(payload) > 0 {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal event payload: %w", err)
		}
		raw = b
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	return l.store.CreateEvent(ctx, &domain.Event{
		EventID:        uuid.NewString(),
		ConversationID: ev.ConversationID,
		UserID:         ev.UserID,
		Ts:             at.UnixMilli(),
		Type:           ev.Type,
		Payload:        raw,
	})
}
