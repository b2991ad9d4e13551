package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/platformplatform/identity-service/internal/domain"
	"github.com/platformplatform/identity-service/internal/dto"
	"github.com/platformplatform/identity-service/internal/service"
)

// loginErrorPath is the frontend page rendering OAuth failures.
const loginErrorPath = "/login/error"

// ExternalLoginHandler handles the OAuth login and signup endpoints. Both
// endpoints are top-level browser navigations, so every outcome is a
// redirect: success to the return path, failure to the error page with an
// OIDC error code. Failures never surface as JSON.
type ExternalLoginHandler struct {
	externalLogins service.ExternalLoginService
	cookies        CookieNames
}

// NewExternalLoginHandler creates a new external login handler
func NewExternalLoginHandler(externalLogins service.ExternalLoginService, cookies CookieNames) *ExternalLoginHandler {
	return &ExternalLoginHandler{externalLogins: externalLogins, cookies: cookies}
}

// StartLogin redirects the browser to the provider's authorization endpoint.
// GET /authentication/:provider/login/start
func (h *ExternalLoginHandler) StartLogin(c *gin.Context) {
	h.start(c, domain.LoginTypeLogin)
}

// StartSignup starts an OAuth signup attempt.
// GET /authentication/:provider/signup/start
func (h *ExternalLoginHandler) StartSignup(c *gin.Context) {
	h.start(c, domain.LoginTypeSignup)
}

func (h *ExternalLoginHandler) start(c *gin.Context, loginType domain.LoginType) {
	var req dto.StartExternalLoginRequest
	_ = c.ShouldBindQuery(&req)

	result, err := h.externalLogins.Start(c.Request.Context(), c.Param("provider"), loginType, deviceDetails(c))
	if err != nil {
		h.redirectError(c, "", "invalid_request")
		return
	}

	h.cookies.setExternalFlowCookies(c, result.ExternalLoginID, req.PreferredTenantID, req.ReturnPath, req.Locale)
	c.Redirect(http.StatusFound, result.AuthorizationURL)
}

// LoginCallback processes the provider callback for a login attempt.
// GET /authentication/:provider/login/callback
func (h *ExternalLoginHandler) LoginCallback(c *gin.Context) {
	h.callback(c, domain.LoginTypeLogin)
}

// SignupCallback processes the provider callback for a signup attempt.
// GET /authentication/:provider/signup/callback
func (h *ExternalLoginHandler) SignupCallback(c *gin.Context) {
	h.callback(c, domain.LoginTypeSignup)
}

func (h *ExternalLoginHandler) callback(c *gin.Context, loginType domain.LoginType) {
	var query dto.ExternalLoginCallbackRequest
	_ = c.ShouldBindQuery(&query)

	cookieID, _ := c.Cookie(h.cookies.ExternalLoginID)
	preferredTenantID, _ := c.Cookie(h.cookies.PreferredTenant)
	returnPath, _ := c.Cookie(h.cookies.ReturnPath)

	// The per-attempt cookies leave with this response no matter the outcome.
	h.cookies.clearExternalFlowCookies(c)

	req := &service.CompleteExternalLoginRequest{
		Provider:              c.Param("provider"),
		Code:                  query.Code,
		State:                 query.State,
		ProviderError:         query.Error,
		ProviderErrorDesc:     query.ErrorDescription,
		CookieExternalLoginID: cookieID,
		PreferredTenantID:     preferredTenantID,
		ReturnPath:            returnPath,
		Device:                deviceDetails(c),
	}

	result, err := h.externalLogins.Complete(c.Request.Context(), loginType, req)
	if err != nil {
		var loginErr *service.ExternalLoginError
		if errors.As(err, &loginErr) {
			h.redirectError(c, loginErr.ExternalLoginID, loginErr.OIDCCode)
			return
		}
		h.redirectError(c, cookieID, "server_error")
		return
	}

	h.cookies.attachTokens(c, result.Tokens)
	c.Redirect(http.StatusFound, result.RedirectPath)
}

func (h *ExternalLoginHandler) redirectError(c *gin.Context, externalLoginID, oidcCode string) {
	values := url.Values{}
	values.Set("error", oidcCode)
	if externalLoginID != "" {
		values.Set("id", externalLoginID)
	}
	c.Redirect(http.StatusFound, loginErrorPath+"?"+values.Encode())
}
