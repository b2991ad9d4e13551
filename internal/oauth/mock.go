package oauth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// MockProvider is an in-process provider for non-production environments and
// tests. The authorization "code" encodes the claims to return, and each
// flow's nonce is remembered under its PKCE code challenge so interleaved
// flows echo back their own nonce.
type MockProvider struct {
	mu     sync.Mutex
	nonces map[string]string

	// ExchangeErr, when set, makes every Exchange fail. Used to exercise the
	// CodeExchangeFailed path.
	ExchangeErr error
}

// NewMockProvider returns a mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{nonces: make(map[string]string)}
}

// Name returns "mock".
func (p *MockProvider) Name() string { return "mock" }

// AuthCodeURL returns a local callback-shaped URL carrying the parameters.
func (p *MockProvider) AuthCodeURL(state, codeChallenge, nonce string) string {
	p.mu.Lock()
	p.nonces[codeChallenge] = nonce
	p.mu.Unlock()

	q := url.Values{}
	q.Set("state", state)
	q.Set("code_challenge", codeChallenge)
	q.Set("nonce", nonce)
	return "https://mock.invalid/authorize?" + q.Encode()
}

// Exchange decodes claims from the code. The expected code format is
// "sub:email", e.g. "mock-user-1:owner@example.com". The nonce returned is
// the one recorded for the flow whose code challenge matches the verifier.
func (p *MockProvider) Exchange(_ context.Context, code, codeVerifier string) (*Claims, error) {
	if p.ExchangeErr != nil {
		return nil, p.ExchangeErr
	}
	if codeVerifier == "" {
		return nil, fmt.Errorf("missing code verifier")
	}

	parts := strings.SplitN(code, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("malformed mock authorization code")
	}

	digest := sha256.Sum256([]byte(codeVerifier))
	challenge := base64.RawURLEncoding.EncodeToString(digest[:])

	p.mu.Lock()
	nonce, ok := p.nonces[challenge]
	delete(p.nonces, challenge)
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown code verifier")
	}

	return &Claims{
		Sub:           parts[0],
		Email:         parts[1],
		EmailVerified: true,
		Nonce:         nonce,
	}, nil
}
