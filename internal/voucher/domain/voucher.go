package domain

import (
	"strings"
	"time"
)

// Voucher is a single-use, pre-funded code redeemable for a fixed credit.
type Voucher struct {
	Code       string // normalized upper-case
	Amount     int64
	Redeemed   bool
	RedeemedAt *time.Time
	CreatedAt  time.Time
}

// NormalizeCode trims surrounding whitespace and upper-cases code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
