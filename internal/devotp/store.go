// Package devotp captures plain OTPs by caller id, used only when dev OTP mode is enabled (GET /dev/otp/{callerId}).
package devotp

import (
	"context"
	"sync"
	"time"
)

// Store holds plain OTP by caller id for dev-only retrieval. Not used in production.
type Store interface {
	// Put stores otp for callerID until expiresAt, replacing any previous code.
	Put(ctx context.Context, callerID, otp string, expiresAt time.Time)
	// Get returns the otp for callerID if present and not expired. Returns ok false if missing or expired.
	Get(ctx context.Context, callerID string) (otp string, ok bool)
}

type entry struct {
	otp       string
	expiresAt time.Time
}

// MemoryStore is an in-memory Store implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns a new in-memory dev OTP store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[string]entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Put stores otp for callerID until expiresAt.
func (s *MemoryStore) Put(ctx context.Context, callerID, otp string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[callerID] = entry{otp: otp, expiresAt: expiresAt}
}

// Get returns the otp for callerID if present and not expired.
func (s *MemoryStore) Get(ctx context.Context, callerID string) (string, bool) {
	s.mu.RLock()
	e, ok := s.m[callerID]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, callerID)
		s.mu.Unlock()
		return "", false
	}
	return e.otp, true
}

// Notifier captures delivered codes into a Store. It satisfies notify.Notifier.
type Notifier struct {
	Store Store
	TTL   time.Duration
}

// Notify stores code for callerID for TTL.
func (n *Notifier) Notify(ctx context.Context, callerID, code string) error {
	n.Store.Put(ctx, callerID, code, time.Now().UTC().Add(n.TTL))
	return nil
}
