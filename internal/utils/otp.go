package utils

import (
	"crypto/rand"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// otpAlphabet excludes ambiguous characters (0/O, 1/I, Q) so codes survive
// being read aloud or retyped.
const otpAlphabet = "ABCDEFGHJKLMNPRSTUVWXYZ23456789"

// OneTimePasswordLength is the number of characters in a generated code.
const OneTimePasswordLength = 6

// GenerateOneTimePassword returns a random code drawn from the fixed
// alphabet. Comparison is case-insensitive, so codes are generated uppercase.
func GenerateOneTimePassword(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate one-time password: %w", err)
	}
	code := make([]byte, length)
	for i, b := range buf {
		code[i] = otpAlphabet[int(b)%len(otpAlphabet)]
	}
	return string(code), nil
}

// HashOneTimePassword hashes a code with bcrypt. The code is normalized to
// uppercase first so verification is case-insensitive.
func HashOneTimePassword(code string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(normalizeCode(code)), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash one-time password: %w", err)
	}
	return string(bytes), nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CodeVerifier checks a submitted one-time password against a stored hash.
// The implementation is selected at construction time from environment
// configuration; production wiring only ever constructs BcryptCodeVerifier.
type CodeVerifier interface {
	Verify(code, hash string) bool
}

// BcryptCodeVerifier verifies codes against their bcrypt hash.
type BcryptCodeVerifier struct{}

func (BcryptCodeVerifier) Verify(code, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(normalizeCode(code))) == nil
}

// DevCodeVerifier accepts a fixed development code in addition to the real
// one. It must never be wired in production environments.
type DevCodeVerifier struct {
	DevCode string
	Inner   CodeVerifier
}

func (v DevCodeVerifier) Verify(code, hash string) bool {
	if v.DevCode != "" && normalizeCode(code) == normalizeCode(v.DevCode) {
		return true
	}
	return v.Inner.Verify(code, hash)
}
