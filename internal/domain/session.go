package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LoginMethod records how the session was established.
type LoginMethod string

const (
	LoginMethodEmailOTP LoginMethod = "EmailOtp"
	LoginMethodGoogle   LoginMethod = "Google"
	LoginMethodMock     LoginMethod = "Mock"
)

// RevocationReason records why a session was terminated.
type RevocationReason string

const (
	RevocationReasonLogout         RevocationReason = "Logout"
	RevocationReasonReuseDetected  RevocationReason = "ReuseDetected"
	RevocationReasonAdministrative RevocationReason = "Administrative"
)

var (
	ErrSessionRevoked       = errors.New("session is revoked")
	ErrRefreshTokenReused   = errors.New("refresh token reuse detected")
	ErrUnknownRefreshToken  = errors.New("unknown refresh token")
	ErrSessionAlreadyActive = errors.New("session is not revoked")
)

// Session is one authenticated device session, scoped to a tenant and user.
// It is the only entity carrying long-lived security state across requests:
// exactly one current refresh-token JTI exists at any time, and rotation moves
// the current JTI into previous so a single in-flight retry is tolerated while
// genuine replay is still detected.
type Session struct {
	aggregate

	TenantID                string
	ID                      string
	UserID                  string
	RefreshTokenJti         string
	PreviousRefreshTokenJti *string
	RefreshTokenVersion     int
	LoginMethod             LoginMethod
	DeviceType              string
	UserAgent               string
	IPAddress               string
	RevokedAt               *time.Time
	RevokedReason           *RevocationReason
	CreatedAt               time.Time
	ModifiedAt              time.Time
}

// NewSessionID returns a prefixed opaque id.
func NewSessionID() string {
	return "sess_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewSession allocates a session with a fresh refresh-token JTI at version 1.
func NewSession(tenantID, userID string, loginMethod LoginMethod, userAgent, ipAddress string, now time.Time) *Session {
	s := &Session{
		TenantID:            tenantID,
		ID:                  NewSessionID(),
		UserID:              userID,
		RefreshTokenJti:     uuid.NewString(),
		RefreshTokenVersion: 1,
		LoginMethod:         loginMethod,
		DeviceType:          DeviceTypeFromUserAgent(userAgent),
		UserAgent:           userAgent,
		IPAddress:           ipAddress,
		CreatedAt:           now,
		ModifiedAt:          now,
	}
	s.AddEvent(SessionCreated{
		TenantID:    tenantID,
		SessionID:   s.ID,
		UserID:      userID,
		LoginMethod: loginMethod,
	})
	return s
}

// IsRevoked reports whether the session has been terminated.
func (s *Session) IsRevoked() bool {
	return s.RevokedAt != nil
}

// Rotate advances the refresh token if presentedJti matches the current JTI.
// Presenting the previous JTI is a reuse signal: the session is revoked and
// ErrRefreshTokenReused is returned, and the caller must persist the revoked
// state. Any other JTI fails without mutating the session. A revoked session
// never rotates again.
func (s *Session) Rotate(presentedJti string, now time.Time) error {
	if s.IsRevoked() {
		return ErrSessionRevoked
	}

	if presentedJti == s.RefreshTokenJti {
		previous := s.RefreshTokenJti
		s.PreviousRefreshTokenJti = &previous
		s.RefreshTokenJti = uuid.NewString()
		s.RefreshTokenVersion++
		s.ModifiedAt = now
		s.AddEvent(RefreshTokenRotated{
			TenantID:  s.TenantID,
			SessionID: s.ID,
			Version:   s.RefreshTokenVersion,
		})
		return nil
	}

	if s.PreviousRefreshTokenJti != nil && presentedJti == *s.PreviousRefreshTokenJti {
		_ = s.Revoke(RevocationReasonReuseDetected, now)
		return ErrRefreshTokenReused
	}

	return ErrUnknownRefreshToken
}

// Revoke terminates the session. Revocation is terminal and idempotent-safe:
// revoking an already revoked session returns ErrSessionRevoked untouched.
func (s *Session) Revoke(reason RevocationReason, now time.Time) error {
	if s.IsRevoked() {
		return ErrSessionRevoked
	}
	s.RevokedAt = &now
	s.RevokedReason = &reason
	s.ModifiedAt = now
	s.AddEvent(SessionRevoked{TenantID: s.TenantID, SessionID: s.ID, Reason: reason})
	return nil
}

// DeviceTypeFromUserAgent classifies the user agent into a coarse device type.
func DeviceTypeFromUserAgent(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return "Unknown"
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return "Tablet"
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone"):
		return "Mobile"
	default:
		return "Desktop"
	}
}
