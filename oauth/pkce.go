package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// ChallengeMethodS256 is the only code challenge method the Gather API
// accepts. The plain method is never offered.
const ChallengeMethodS256 = "S256"

const (
	verifierBytes = 48 // encodes to exactly 64 base64url characters
	stateBytes    = 32
)

// GenerateVerifier returns a fresh PKCE code verifier: 64 characters from
// the base64url alphabet, sourced from crypto/rand.
func GenerateVerifier() (string, error) {
	b := make([]byte, verifierBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating code verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ChallengeS256 derives the code challenge for a verifier: SHA-256, then
// base64url without padding. The same verifier always yields the same
// challenge.
func ChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// GenerateState returns an opaque value binding an authorization redirect to
// the callback that follows it.
func GenerateState() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
