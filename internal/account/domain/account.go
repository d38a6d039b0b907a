package domain

import "time"

// Account is a wallet holder keyed by caller id (the phone number supplied by the gateway).
type Account struct {
	CallerID       string
	IdentityDigest string // hex SHA-256 of the national ID; empty for auto-created recipients
	CredentialHash string // bcrypt hash of the 4-digit PIN; empty until registration
	Balance        int64  // whole Rand
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Registered reports whether the account has a PIN set.
func (a *Account) Registered() bool {
	return a != nil && a.CredentialHash != ""
}
