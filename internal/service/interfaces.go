package service

import (
	"context"
	"time"

	"github.com/platformplatform/identity-service/internal/domain"
	"github.com/platformplatform/identity-service/internal/dto"
	"github.com/platformplatform/identity-service/internal/utils"
)

// DeviceDetails captures the request characteristics bound to a flow attempt.
type DeviceDetails struct {
	UserAgent      string
	IPAddress      string
	AcceptLanguage string
}

// Fingerprint hashes the device characteristics for callback binding.
func (d DeviceDetails) Fingerprint() string {
	return utils.BrowserFingerprint(d.UserAgent, d.AcceptLanguage)
}

// AuthTokens is the pair of signed tokens plus the antiforgery token issued
// on every successful authentication. Handlers attach them to the response
// transport.
type AuthTokens struct {
	AccessToken      string
	RefreshToken     string
	AntiforgeryToken string
	AccessExpiresIn  int
	RefreshExpiresIn int
}

// EmailLoginService orchestrates the email one-time-password flow.
type EmailLoginService interface {
	Start(ctx context.Context, loginType domain.LoginType, req *dto.StartEmailLoginRequest) (*dto.StartEmailLoginResponse, error)
	Complete(ctx context.Context, id string, req *dto.CompleteEmailLoginRequest, device DeviceDetails) (*AuthTokens, error)
	Resend(ctx context.Context, id string) (*dto.ResendEmailLoginResponse, error)
}

// StartExternalLoginResult carries everything the handler needs to redirect
// the browser to the provider and set the flow cookies.
type StartExternalLoginResult struct {
	ExternalLoginID  string
	AuthorizationURL string
}

// CompleteExternalLoginRequest carries the callback parameters plus the two
// independent proofs: the encrypted state token and the cookie-carried id.
type CompleteExternalLoginRequest struct {
	Provider              string
	Code                  string
	State                 string
	ProviderError         string
	ProviderErrorDesc     string
	CookieExternalLoginID string
	PreferredTenantID     string
	ReturnPath            string
	Device                DeviceDetails
}

// CompleteExternalLoginResult is the successful outcome of a callback.
type CompleteExternalLoginResult struct {
	RedirectPath string
	Tokens       *AuthTokens
}

// ExternalLoginService orchestrates the OAuth2 PKCE flow.
type ExternalLoginService interface {
	Start(ctx context.Context, provider string, loginType domain.LoginType, device DeviceDetails) (*StartExternalLoginResult, error)
	Complete(ctx context.Context, loginType domain.LoginType, req *CompleteExternalLoginRequest) (*CompleteExternalLoginResult, error)
}

// SessionService owns session refresh rotation and revocation.
type SessionService interface {
	Refresh(ctx context.Context, refreshToken string) (*AuthTokens, error)
	Logout(ctx context.Context, sessionID string) error
	ValidateAccessToken(ctx context.Context, token string) (*utils.AccessTokenClaims, error)
}

// EventPublisher receives domain events drained from aggregates after the
// surrounding transaction commits. Publication order follows emission order.
type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.Event)
}

// EmailSender dispatches one-time passwords. Content templating and delivery
// are collaborator concerns; only the contract lives here.
type EmailSender interface {
	SendOneTimePassword(ctx context.Context, recipient, code string, validFor time.Duration) error
}
