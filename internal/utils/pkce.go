package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// randomURLToken returns size random bytes base64url-encoded without padding.
func randomURLToken(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read randomness: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateCodeVerifier returns a high-entropy PKCE code verifier (RFC 7636).
func GenerateCodeVerifier() (string, error) {
	return randomURLToken(32)
}

// CodeChallengeS256 derives the S256 code challenge for a verifier.
func CodeChallengeS256(codeVerifier string) string {
	sum := sha256.Sum256([]byte(codeVerifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// GenerateNonce returns a random OIDC nonce.
func GenerateNonce() (string, error) {
	return randomURLToken(16)
}

// GenerateAntiforgeryToken returns a random token paired with issued JWTs via
// a cookie so state-changing requests can prove they originated from the app.
func GenerateAntiforgeryToken() (string, error) {
	return randomURLToken(32)
}
