package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Gift-Esethu/Ussd-Server/internal/telemetry/domain"
)

// mockEventEmitter implements EventEmitter for tests.
type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*domain.Event
	emitErr error
	delay   time.Duration
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.delay):
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Event(nil), m.events...)
}

// waitForEvents polls until n events were recorded or the deadline passes.
func waitForEvents(t *testing.T, m *mockEventEmitter, n int) []*domain.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ev := m.getEvents(); len(ev) >= n {
			return ev
		}
		time.Sleep(5 * time.Millisecond)
	}
	return m.getEvents()
}

func TestEmitAsync_NilEmitter(t *testing.T) {
	// Should not panic
	EmitAsync(nil, NewEvent(domain.EventTransfer, "0821", "s1", nil))
}

func TestEmitAsync_NilEvent(t *testing.T) {
	emitter := &mockEventEmitter{}
	EmitAsync(emitter, nil)

	time.Sleep(10 * time.Millisecond)
	if events := emitter.getEvents(); len(events) != 0 {
		t.Errorf("expected 0 events, got %d", len(events))
	}
}

func TestEmitAsync_SuccessfulEmit(t *testing.T) {
	emitter := &mockEventEmitter{}
	EmitAsync(emitter, NewEvent(domain.EventRegistered, "0821234567", "sess-1", nil))

	events := waitForEvents(t, emitter, 1)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].CallerID != "0821234567" {
		t.Errorf("CallerID = %q, want 0821234567", events[0].CallerID)
	}
	if events[0].SessionID != "sess-1" {
		t.Errorf("SessionID = %q, want sess-1", events[0].SessionID)
	}
	if events[0].Type != domain.EventRegistered {
		t.Errorf("Type = %q, want %q", events[0].Type, domain.EventRegistered)
	}
}

func TestEmitAsync_ErrorIsSwallowed(t *testing.T) {
	emitter := &mockEventEmitter{emitErr: context.DeadlineExceeded}
	EmitAsync(emitter, NewEvent(domain.EventTransfer, "0821", "s1", nil))
	if events := waitForEvents(t, emitter, 1); len(events) != 1 {
		t.Errorf("expected 1 recorded event, got %d", len(events))
	}
}

func TestEmitAsync_ConcurrentAccess(t *testing.T) {
	emitter := &mockEventEmitter{}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			EmitAsync(emitter, NewEvent(domain.EventTransfer, "0821", "s1", nil))
		}()
	}
	wg.Wait()

	if events := waitForEvents(t, emitter, 10); len(events) != 10 {
		t.Errorf("expected 10 events, got %d", len(events))
	}
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent(domain.EventTransfer, "0821", "s1", map[string]any{"amount": 50, "to": "0832"})
	if ev.ID == "" {
		t.Error("ID should be set")
	}
	if ev.Source != domain.SourceUSSD {
		t.Errorf("Source = %q, want %q", ev.Source, domain.SourceUSSD)
	}
	if ev.CreatedAt.IsZero() || ev.CreatedAt.Location() != time.UTC {
		t.Errorf("CreatedAt = %v, want non-zero UTC", ev.CreatedAt)
	}
	var meta map[string]any
	if err := json.Unmarshal(ev.Metadata, &meta); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta["to"] != "0832" || meta["amount"] != float64(50) {
		t.Errorf("metadata = %v", meta)
	}

	other := NewEvent(domain.EventTransfer, "", "", nil)
	if other.ID == ev.ID {
		t.Error("IDs should be unique")
	}
	if len(other.Metadata) != 0 {
		t.Errorf("nil metadata should stay empty, got %s", other.Metadata)
	}
}

func TestEventJSONFieldNames(t *testing.T) {
	ev := NewEvent(domain.EventVoucherRedeemed, "0821", "s1", nil)
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, k := range []string{"id", "eventType", "callerId", "sessionId", "source", "createdAt"} {
		if _, ok := raw[k]; !ok {
			t.Errorf("missing JSON field %q in %s", k, b)
		}
	}
}

func TestMulti_FansOutAndJoinsErrors(t *testing.T) {
	a := &mockEventEmitter{}
	b := &mockEventEmitter{emitErr: errors.New("kafka down")}
	m := Multi{a, nil, b}

	err := m.Emit(context.Background(), NewEvent(domain.EventTransfer, "0821", "s1", nil))
	if err == nil || err.Error() != "kafka down" {
		t.Errorf("Emit err = %v, want kafka down", err)
	}
	if len(a.getEvents()) != 1 || len(b.getEvents()) != 1 {
		t.Errorf("each emitter should receive one event, got %d and %d", len(a.getEvents()), len(b.getEvents()))
	}
}

func TestDrain_WaitsForInflightEmits(t *testing.T) {
	emitter := &mockEventEmitter{delay: 50 * time.Millisecond}
	EmitAsync(emitter, NewEvent(domain.EventTransfer, "0821", "s1", nil))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	if n := len(emitter.getEvents()); n != 1 {
		t.Errorf("events after Drain = %d, want 1", n)
	}
}

func TestDrain_ContextDone(t *testing.T) {
	emitter := &mockEventEmitter{delay: time.Second}
	EmitAsync(emitter, NewEvent(domain.EventTransfer, "0821", "s1", nil))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Drain = %v, want DeadlineExceeded", err)
	}
}
