package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
)

// TokenBytes is the entropy of session, account and chat tokens.
const TokenBytes = 32

// NewToken returns 32 cryptographically random bytes, hex encoded.
func NewToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// APIKeyMatches compares the provided key with the configured one in
// constant time. An empty expected key never matches.
func APIKeyMatches(expected, provided string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}
