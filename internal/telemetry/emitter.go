package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Gift-Esethu/Ussd-Server/internal/telemetry/domain"
)

// EventEmitter emits wallet events (e.g. to OTel Logs or Kafka). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.Event) error
}

// Multi fans an event out to every non-nil emitter and joins their errors.
type Multi []EventEmitter

// Emit implements EventEmitter.
func (m Multi) Emit(ctx context.Context, event *domain.Event) error {
	var errs []error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewEvent builds an event with a random ID and the current UTC time.
// metadata is marshaled as JSON; a nil map or a marshal failure leaves it empty.
func NewEvent(eventType, callerID, sessionID string, metadata map[string]any) *domain.Event {
	ev := &domain.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		CallerID:  callerID,
		SessionID: sessionID,
		Source:    domain.SourceUSSD,
		CreatedAt: time.Now().UTC(),
	}
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			ev.Metadata = b
		}
	}
	return ev
}
