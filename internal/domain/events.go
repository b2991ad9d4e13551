package domain

import "time"

// Event is a domain event raised by an aggregate during a command. Events are
// accumulated on the aggregate and drained by the orchestrator only after the
// surrounding transaction commits.
type Event interface {
	EventName() string
}

// aggregate is embedded by every aggregate root to collect events.
type aggregate struct {
	events []Event
}

// AddEvent records an event for publication after commit.
func (a *aggregate) AddEvent(e Event) {
	a.events = append(a.events, e)
}

// DrainEvents returns the accumulated events and clears the list.
func (a *aggregate) DrainEvents() []Event {
	events := a.events
	a.events = nil
	return events
}

type EmailLoginStarted struct {
	EmailLoginID string
	Type         LoginType
}

func (EmailLoginStarted) EventName() string { return "email_login.started" }

type EmailLoginCodeResent struct {
	EmailLoginID string
	ResendCount  int
}

func (EmailLoginCodeResent) EventName() string { return "email_login.code_resent" }

type EmailLoginCodeFailed struct {
	EmailLoginID string
	RetryCount   int
}

func (EmailLoginCodeFailed) EventName() string { return "email_login.code_failed" }

type EmailLoginBlocked struct {
	EmailLoginID string
	RetryCount   int
}

func (EmailLoginBlocked) EventName() string { return "email_login.blocked" }

type EmailLoginCompleted struct {
	EmailLoginID string
	TenantID     string
	UserID       string
}

func (EmailLoginCompleted) EventName() string { return "email_login.completed" }

type InviteAccepted struct {
	TenantID string
	UserID   string
}

func (InviteAccepted) EventName() string { return "invite.accepted" }

type ExternalLoginStarted struct {
	ExternalLoginID string
	Provider        ProviderType
	Type            LoginType
}

func (ExternalLoginStarted) EventName() string { return "external_login.started" }

type ExternalLoginCompleted struct {
	ExternalLoginID string
	Provider        ProviderType
	Type            LoginType
	Elapsed         time.Duration
}

func (ExternalLoginCompleted) EventName() string { return "external_login.completed" }

type ExternalLoginFailed struct {
	ExternalLoginID string
	Provider        ProviderType
	Type            LoginType
	Result          LoginResult
	Elapsed         time.Duration
}

func (ExternalLoginFailed) EventName() string { return "external_login.failed" }

type SessionCreated struct {
	TenantID    string
	SessionID   string
	UserID      string
	LoginMethod LoginMethod
}

func (SessionCreated) EventName() string { return "session.created" }

type SessionRevoked struct {
	TenantID  string
	SessionID string
	Reason    RevocationReason
}

func (SessionRevoked) EventName() string { return "session.revoked" }

type RefreshTokenRotated struct {
	TenantID  string
	SessionID string
	Version   int
}

func (RefreshTokenRotated) EventName() string { return "session.refresh_token_rotated" }
