package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProviderType identifies a configured OAuth2 provider.
type ProviderType string

const (
	ProviderTypeGoogle ProviderType = "google"
	ProviderTypeMock   ProviderType = "mock"
)

// LoginResult is the terminal outcome of an external login attempt.
type LoginResult string

const (
	LoginResultCompleted            LoginResult = "Completed"
	LoginResultUserNotFound         LoginResult = "UserNotFound"
	LoginResultIdentityMismatch     LoginResult = "IdentityMismatch"
	LoginResultAccountAlreadyExists LoginResult = "AccountAlreadyExists"
	LoginResultCodeExchangeFailed   LoginResult = "CodeExchangeFailed"
)

// OIDCErrorCode maps a failure result to the error code surfaced on the
// browser redirect. Callback failures are never returned as JSON.
func (r LoginResult) OIDCErrorCode() string {
	switch r {
	case LoginResultUserNotFound:
		return "user_not_found"
	case LoginResultIdentityMismatch:
		return "identity_mismatch"
	case LoginResultAccountAlreadyExists:
		return "account_already_exists"
	case LoginResultCodeExchangeFailed:
		return "code_exchange_failed"
	default:
		return "access_denied"
	}
}

// ErrExternalLoginConsumed is returned when a consumed record is mutated or
// presented again to mint a session.
var ErrExternalLoginConsumed = errors.New("external login already consumed")

// ExternalLogin is one OAuth2 authorization-code attempt. The PKCE code
// verifier and nonce are single-use: once the record is consumed (completed
// or terminally failed) it can never mint a session.
type ExternalLogin struct {
	aggregate

	ID                 string
	Type               LoginType
	Provider           ProviderType
	Email              *string
	CodeVerifier       string
	Nonce              string
	BrowserFingerprint string
	Result             *LoginResult
	CreatedAt          time.Time
	ModifiedAt         time.Time
}

// NewExternalLoginID returns a prefixed opaque id.
func NewExternalLoginID() string {
	return "exlog_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewExternalLogin starts a new external login attempt.
func NewExternalLogin(loginType LoginType, provider ProviderType, codeVerifier, nonce, browserFingerprint string, now time.Time) *ExternalLogin {
	l := &ExternalLogin{
		ID:                 NewExternalLoginID(),
		Type:               loginType,
		Provider:           provider,
		CodeVerifier:       codeVerifier,
		Nonce:              nonce,
		BrowserFingerprint: browserFingerprint,
		CreatedAt:          now,
		ModifiedAt:         now,
	}
	l.AddEvent(ExternalLoginStarted{ExternalLoginID: l.ID, Provider: provider, Type: loginType})
	return l
}

// Consumed reports whether the attempt reached a terminal state.
func (l *ExternalLogin) Consumed() bool {
	return l.Result != nil
}

// Elapsed returns time since the attempt started. Telemetry always derives
// elapsed time from CreatedAt so it cannot drift between emission points.
func (l *ExternalLogin) Elapsed(now time.Time) time.Duration {
	return now.Sub(l.CreatedAt)
}

// Complete terminally succeeds the attempt, recording the resolved email.
func (l *ExternalLogin) Complete(email string, now time.Time) error {
	if l.Consumed() {
		return ErrExternalLoginConsumed
	}
	result := LoginResultCompleted
	l.Result = &result
	l.Email = &email
	l.ModifiedAt = now
	l.AddEvent(ExternalLoginCompleted{
		ExternalLoginID: l.ID,
		Provider:        l.Provider,
		Type:            l.Type,
		Elapsed:         l.Elapsed(now),
	})
	return nil
}

// Fail terminally fails the attempt with a specific result code.
func (l *ExternalLogin) Fail(result LoginResult, now time.Time) error {
	if l.Consumed() {
		return ErrExternalLoginConsumed
	}
	l.Result = &result
	l.ModifiedAt = now
	l.AddEvent(ExternalLoginFailed{
		ExternalLoginID: l.ID,
		Provider:        l.Provider,
		Type:            l.Type,
		Result:          result,
		Elapsed:         l.Elapsed(now),
	})
	return nil
}
