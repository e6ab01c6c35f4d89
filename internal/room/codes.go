package room

import (
	"crypto/rand"
	"fmt"
)

const codeLength = 6

// GenerateCode returns a random 6-digit room code. Uniqueness is the
// caller's problem; Create collision-checks against the store.
func GenerateCode() (string, error) {
	const digits = "0123456789"
	b := make([]byte, codeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate room code: %w", err)
	}
	for i := range b {
		b[i] = digits[int(b[i])%len(digits)]
	}
	return string(b), nil
}

// ValidCode reports whether code is exactly six ASCII digits. Malformed
// codes are rejected before any path derived from them reaches the store.
func ValidCode(code string) bool {
	if len(code) != codeLength {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
