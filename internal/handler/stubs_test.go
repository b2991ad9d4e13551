package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformplatform/identity-service/internal/domain"
	"github.com/platformplatform/identity-service/internal/dto"
	"github.com/platformplatform/identity-service/internal/service"
	"github.com/platformplatform/identity-service/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testTokens() *service.AuthTokens {
	return &service.AuthTokens{
		AccessToken:      "access-token-value",
		RefreshToken:     "refresh-token-value",
		AntiforgeryToken: "antiforgery-value",
		AccessExpiresIn:  900,
		RefreshExpiresIn: 604800,
	}
}

type stubEmailLoginService struct {
	startFn    func(ctx context.Context, loginType domain.LoginType, req *dto.StartEmailLoginRequest) (*dto.StartEmailLoginResponse, error)
	completeFn func(ctx context.Context, id string, req *dto.CompleteEmailLoginRequest, device service.DeviceDetails) (*service.AuthTokens, error)
	resendFn   func(ctx context.Context, id string) (*dto.ResendEmailLoginResponse, error)
}

func (s *stubEmailLoginService) Start(ctx context.Context, loginType domain.LoginType, req *dto.StartEmailLoginRequest) (*dto.StartEmailLoginResponse, error) {
	return s.startFn(ctx, loginType, req)
}

func (s *stubEmailLoginService) Complete(ctx context.Context, id string, req *dto.CompleteEmailLoginRequest, device service.DeviceDetails) (*service.AuthTokens, error) {
	return s.completeFn(ctx, id, req, device)
}

func (s *stubEmailLoginService) Resend(ctx context.Context, id string) (*dto.ResendEmailLoginResponse, error) {
	return s.resendFn(ctx, id)
}

type stubExternalLoginService struct {
	startFn    func(ctx context.Context, provider string, loginType domain.LoginType, device service.DeviceDetails) (*service.StartExternalLoginResult, error)
	completeFn func(ctx context.Context, loginType domain.LoginType, req *service.CompleteExternalLoginRequest) (*service.CompleteExternalLoginResult, error)
}

func (s *stubExternalLoginService) Start(ctx context.Context, provider string, loginType domain.LoginType, device service.DeviceDetails) (*service.StartExternalLoginResult, error) {
	return s.startFn(ctx, provider, loginType, device)
}

func (s *stubExternalLoginService) Complete(ctx context.Context, loginType domain.LoginType, req *service.CompleteExternalLoginRequest) (*service.CompleteExternalLoginResult, error) {
	return s.completeFn(ctx, loginType, req)
}

type stubSessionService struct {
	refreshFn  func(ctx context.Context, refreshToken string) (*service.AuthTokens, error)
	logoutFn   func(ctx context.Context, sessionID string) error
	validateFn func(ctx context.Context, token string) (*utils.AccessTokenClaims, error)
}

func (s *stubSessionService) Refresh(ctx context.Context, refreshToken string) (*service.AuthTokens, error) {
	return s.refreshFn(ctx, refreshToken)
}

func (s *stubSessionService) Logout(ctx context.Context, sessionID string) error {
	return s.logoutFn(ctx, sessionID)
}

func (s *stubSessionService) ValidateAccessToken(ctx context.Context, token string) (*utils.AccessTokenClaims, error) {
	return s.validateFn(ctx, token)
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, cookie := range cookies {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}
