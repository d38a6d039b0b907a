package devotp

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_PutGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Put(ctx, "+27820000001", "123456", time.Now().UTC().Add(5*time.Minute))

	otp, ok := store.Get(ctx, "+27820000001")
	if !ok || otp != "123456" {
		t.Fatalf("Get = %q, %v; want 123456, true", otp, ok)
	}
	if otp, ok := store.Get(ctx, "nonexistent"); ok || otp != "" {
		t.Errorf("Get missing = %q, %v", otp, ok)
	}
}

func TestMemoryStore_PutOverwrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	exp := time.Now().UTC().Add(time.Minute)
	store.Put(ctx, "c1", "111111", exp)
	store.Put(ctx, "c1", "222222", exp)
	if otp, _ := store.Get(ctx, "c1"); otp != "222222" {
		t.Errorf("otp = %q, want latest", otp)
	}
}

func TestMemoryStore_ExpiredRemoved(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.nowF = func() time.Time { return now }

	store.Put(ctx, "c1", "123456", now)
	if _, ok := store.Get(ctx, "c1"); ok {
		t.Error("code expiring at now should not be returned")
	}
	store.mu.RLock()
	_, present := store.m["c1"]
	store.mu.RUnlock()
	if present {
		t.Error("expired entry should be deleted on Get")
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	exp := time.Now().UTC().Add(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			store.Put(ctx, "c1", "123456", exp)
		}()
		go func() {
			defer wg.Done()
			store.Get(ctx, "c1")
		}()
	}
	wg.Wait()
}

func TestNotifier_CapturesCode(t *testing.T) {
	store := NewMemoryStore()
	n := &Notifier{Store: store, TTL: time.Minute}
	if err := n.Notify(context.Background(), "c1", "987654"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if otp, ok := store.Get(context.Background(), "c1"); !ok || otp != "987654" {
		t.Errorf("Get = %q, %v", otp, ok)
	}
}
