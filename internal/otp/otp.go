// Package otp generates and compares the one-time codes that gate voucher redemption.
package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Digits is the length of a one-time code.
const Digits = 6

var codeSpace = big.NewInt(1_000_000)

// GenerateCode returns a 6-digit numeric code (e.g. "042917") drawn uniformly from crypto/rand.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", Digits, n.Int64()), nil
}

// HashCode returns the hex SHA-256 of code. Only the hash is persisted.
func HashCode(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// CodeEqual performs constant-time comparison of the provided code's hash with the stored hash.
func CodeEqual(providedCode, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashCode(providedCode)), []byte(storedHash)) == 1
}
