package domain

import "time"

// AuditLog represents an audit event: a wallet action taken by, or on behalf of, a caller.
type AuditLog struct {
	ID        string
	CallerID  string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
