package domain

import "time"

// Session is the per-session transient state of a USSD dialogue: the caller's
// in-progress menu answers, keyed by the gateway-supplied session id.
type Session struct {
	ID               string
	CallerID         string
	PendingIDNumber  string
	PendingRecipient string
	PendingAmount    int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Idle reports whether the session has not been touched for longer than ttl at now.
// A non-positive ttl disables expiry.
func (s *Session) Idle(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(s.UpdatedAt) > ttl
}
