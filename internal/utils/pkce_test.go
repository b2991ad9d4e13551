package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCodeVerifier(t *testing.T) {
	verifier, err := GenerateCodeVerifier()
	require.NoError(t, err)
	// 32 random bytes base64url-encoded without padding.
	assert.Len(t, verifier, 43)

	other, err := GenerateCodeVerifier()
	require.NoError(t, err)
	assert.NotEqual(t, verifier, other)
}

func TestCodeChallengeS256(t *testing.T) {
	// RFC 7636 appendix B reference vector.
	challenge := CodeChallengeS256("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk")
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", challenge)

	// The challenge is deterministic for a verifier.
	assert.Equal(t, challenge, CodeChallengeS256("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"))
	assert.NotEqual(t, challenge, CodeChallengeS256("another-verifier"))
}

func TestGenerateNonce(t *testing.T) {
	nonce, err := GenerateNonce()
	require.NoError(t, err)
	assert.NotEmpty(t, nonce)

	other, err := GenerateNonce()
	require.NoError(t, err)
	assert.NotEqual(t, nonce, other)
}

func TestBrowserFingerprint(t *testing.T) {
	fp := BrowserFingerprint("Mozilla/5.0", "en-US")

	assert.Len(t, fp, 64)
	assert.Equal(t, fp, BrowserFingerprint("Mozilla/5.0", "en-US"))
	assert.NotEqual(t, fp, BrowserFingerprint("Mozilla/5.0", "da-DK"))
	assert.NotEqual(t, fp, BrowserFingerprint("curl/8.0", "en-US"))

	// The separator keeps ambiguous concatenations apart.
	assert.NotEqual(t, BrowserFingerprint("ab", "c"), BrowserFingerprint("a", "bc"))
}
