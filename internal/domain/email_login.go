package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LoginType distinguishes a login attempt from a signup attempt.
type LoginType string

const (
	LoginTypeLogin  LoginType = "Login"
	LoginTypeSignup LoginType = "Signup"
)

const (
	// EmailLoginMaxAttempts is the number of code verifications allowed before
	// the attempt is blocked.
	EmailLoginMaxAttempts = 4

	// EmailLoginMaxResends bounds how often the code can be regenerated.
	EmailLoginMaxResends = 3

	// EmailLoginValidFor is the window during which a code can be completed,
	// measured from creation (or from the last resend).
	EmailLoginValidFor = 10 * time.Minute
)

var (
	ErrEmailLoginCompleted   = errors.New("email login already completed")
	ErrEmailLoginExpired     = errors.New("email login is no longer valid")
	ErrEmailLoginBlocked     = errors.New("too many attempts")
	ErrEmailLoginResendLimit = errors.New("resend limit reached")
)

// EmailLogin is one login-or-signup-by-email attempt. It owns the retry and
// resend counters and the completion state. Records are never hard-deleted;
// they are retained for audit.
type EmailLogin struct {
	aggregate

	ID                  string
	Type                LoginType
	Email               string
	OneTimePasswordHash string
	RetryCount          int
	ResendCount         int
	Completed           bool
	CreatedAt           time.Time
	ModifiedAt          time.Time
}

// NewEmailLoginID returns a prefixed opaque id.
func NewEmailLoginID() string {
	return "emlog_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewEmailLogin starts a new email login attempt.
func NewEmailLogin(loginType LoginType, email, oneTimePasswordHash string, now time.Time) *EmailLogin {
	l := &EmailLogin{
		ID:                  NewEmailLoginID(),
		Type:                loginType,
		Email:               email,
		OneTimePasswordHash: oneTimePasswordHash,
		CreatedAt:           now,
		ModifiedAt:          now,
	}
	l.AddEvent(EmailLoginStarted{EmailLoginID: l.ID, Type: loginType})
	return l
}

// HasExpired reports whether the validity window has passed. The window is
// anchored at CreatedAt, which RegenerateCode resets on resend.
func (l *EmailLogin) HasExpired(now time.Time) bool {
	return now.Sub(l.CreatedAt) > EmailLoginValidFor
}

// ValidForSeconds returns the remaining validity in whole seconds, floored at zero.
func (l *EmailLogin) ValidForSeconds(now time.Time) int {
	remaining := EmailLoginValidFor - now.Sub(l.CreatedAt)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Seconds())
}

// IsBlocked reports whether the retry budget is exhausted.
func (l *EmailLogin) IsBlocked() bool {
	return l.RetryCount >= EmailLoginMaxAttempts
}

// RecordFailedAttempt increments the retry counter and reports whether this
// attempt exhausted the budget. The caller persists the mutation even though
// the command fails.
func (l *EmailLogin) RecordFailedAttempt(now time.Time) (blocked bool) {
	l.RetryCount++
	l.ModifiedAt = now
	if l.RetryCount >= EmailLoginMaxAttempts {
		l.AddEvent(EmailLoginBlocked{EmailLoginID: l.ID, RetryCount: l.RetryCount})
		return true
	}
	l.AddEvent(EmailLoginCodeFailed{EmailLoginID: l.ID, RetryCount: l.RetryCount})
	return false
}

// MarkCompleted terminally completes the attempt. No further mutation is
// permitted afterwards.
func (l *EmailLogin) MarkCompleted(now time.Time) error {
	if l.Completed {
		return ErrEmailLoginCompleted
	}
	l.Completed = true
	l.ModifiedAt = now
	return nil
}

// RegenerateCode installs a freshly generated code hash and restarts the
// validity window. The retry counter is deliberately preserved.
func (l *EmailLogin) RegenerateCode(oneTimePasswordHash string, now time.Time) error {
	switch {
	case l.Completed:
		return ErrEmailLoginCompleted
	case l.HasExpired(now):
		return ErrEmailLoginExpired
	case l.ResendCount >= EmailLoginMaxResends:
		return ErrEmailLoginResendLimit
	}
	l.OneTimePasswordHash = oneTimePasswordHash
	l.ResendCount++
	l.CreatedAt = now
	l.ModifiedAt = now
	l.AddEvent(EmailLoginCodeResent{EmailLoginID: l.ID, ResendCount: l.ResendCount})
	return nil
}
