package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenerateResetToken returns 32 random bytes as 64 hex characters.
func GenerateResetToken() (string, error) {
	return randomHex(32)
}

// GenerateSessionID returns 16 random bytes as 32 hex characters.
func GenerateSessionID() (string, error) {
	return randomHex(16)
}

// HashToken is the SHA-256 hex digest under which tokens are stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
