package service

import (
	"fmt"

	"github.com/platformplatform/identity-service/internal/domain"
	"github.com/platformplatform/identity-service/internal/utils"
)

// TokenIssuer turns a session plus user identity into signed tokens. Every
// successful login, signup, and refresh passes through here.
type TokenIssuer struct {
	jwtManager *utils.JWTManager
}

// NewTokenIssuer creates a token issuer.
func NewTokenIssuer(jwtManager *utils.JWTManager) *TokenIssuer {
	return &TokenIssuer{jwtManager: jwtManager}
}

// Issue signs an access token carrying user/tenant/role claims and a refresh
// token carrying only the session reference, plus a fresh antiforgery token.
func (t *TokenIssuer) Issue(user *domain.User, session *domain.Session) (*AuthTokens, error) {
	accessToken, err := t.jwtManager.GenerateAccessToken(user.ID, user.TenantID, user.Email, user.Role, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := t.jwtManager.GenerateRefreshToken(session.ID, session.RefreshTokenJti, session.RefreshTokenVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	antiforgeryToken, err := utils.GenerateAntiforgeryToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate antiforgery token: %w", err)
	}

	return &AuthTokens{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AntiforgeryToken: antiforgeryToken,
		AccessExpiresIn:  t.jwtManager.GetAccessTokenExpiry(),
		RefreshExpiresIn: t.jwtManager.GetRefreshTokenExpiry(),
	}, nil
}
