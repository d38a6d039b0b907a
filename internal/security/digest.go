package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// IdentityDigest returns the hex SHA-256 of the trimmed national ID number.
// Only the digest is persisted on the account.
func IdentityDigest(idNumber string) string {
	h := sha256.Sum256([]byte(strings.TrimSpace(idNumber)))
	return hex.EncodeToString(h[:])
}

// IdentityDigestEqual compares a presented ID number against a stored digest in constant time.
func IdentityDigestEqual(idNumber, storedDigest string) bool {
	if storedDigest == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(IdentityDigest(idNumber)), []byte(storedDigest)) == 1
}
