package telemetry

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Gift-Esethu/Ussd-Server/internal/telemetry/domain"
)

// emitTimeout bounds a single async emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is the longest Drain needs to wait: every in-flight emit finishes or
// times out within emitTimeout.
const ShutdownDrainDuration = emitTimeout

var inflight sync.WaitGroup

// EmitAsync runs Emit in a goroutine with a short timeout so the USSD turn is not blocked.
// A nil emitter or event is a no-op. The goroutine does not inherit request cancellation.
func EmitAsync(emitter EventEmitter, event *domain.Event) {
	if emitter == nil || event == nil {
		return
	}
	inflight.Add(1)
	go func() {
		defer inflight.Done()
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			log.Printf("telemetry: async emit of %s failed: %v", event.Type, err)
		}
	}()
}

// Drain waits until every emit started by EmitAsync has returned or ctx is done.
// Call it after the HTTP server stops and before exporters are shut down.
func Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
