package domain

import "time"

// Record is the outstanding one-time code for a caller. At most one exists per caller.
type Record struct {
	CallerID    string
	CodeHash    string
	VoucherCode string // the voucher this code authorizes
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Expired reports whether the record is past its expiry at now.
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Result is the outcome of verifying a presented code.
type Result int

const (
	ResultAbsent Result = iota
	ResultValid
	ResultExpired
	ResultMismatch
)

func (r Result) String() string {
	switch r {
	case ResultValid:
		return "valid"
	case ResultExpired:
		return "expired"
	case ResultMismatch:
		return "mismatch"
	default:
		return "absent"
	}
}
