// Package producer defines the interface for publishing wallet events to a broker (e.g. Kafka).
package producer

import (
	"context"

	"github.com/Gift-Esethu/Ussd-Server/internal/telemetry/domain"
)

// Producer publishes wallet events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit publishes a single event. Implementations may block briefly; use telemetry.EmitAsync from request paths.
	Emit(ctx context.Context, event *domain.Event) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
