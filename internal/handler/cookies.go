package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/platformplatform/identity-service/internal/service"
)

// CookieNames holds the configurable names of the flow cookies.
type CookieNames struct {
	ExternalLoginID string
	PreferredTenant string
	ReturnPath      string
	Locale          string
	Antiforgery     string
}

// DefaultCookieNames returns the cookie names used unless overridden.
func DefaultCookieNames() CookieNames {
	return CookieNames{
		ExternalLoginID: "external-login-id",
		PreferredTenant: "preferred-tenant-id",
		ReturnPath:      "return-path",
		Locale:          "locale",
		Antiforgery:     "antiforgery-token",
	}
}

// externalFlowCookieMaxAge bounds the window between start and callback.
const externalFlowCookieMaxAge = 600

func (n CookieNames) setExternalFlowCookies(c *gin.Context, externalLoginID, preferredTenantID, returnPath, locale string) {
	c.SetCookie(n.ExternalLoginID, externalLoginID, externalFlowCookieMaxAge, "/authentication", "", true, true)
	if preferredTenantID != "" {
		c.SetCookie(n.PreferredTenant, preferredTenantID, externalFlowCookieMaxAge, "/authentication", "", true, true)
	}
	if returnPath != "" {
		c.SetCookie(n.ReturnPath, returnPath, externalFlowCookieMaxAge, "/authentication", "", true, true)
	}
	if locale != "" {
		c.SetCookie(n.Locale, locale, externalFlowCookieMaxAge, "/authentication", "", true, false)
	}
}

// clearExternalFlowCookies removes the per-attempt cookies. The callback
// calls this exactly once on every path, success or failure, so a second
// callback with the same cookies cannot look like a live attempt.
func (n CookieNames) clearExternalFlowCookies(c *gin.Context) {
	c.SetCookie(n.ExternalLoginID, "", -1, "/authentication", "", true, true)
	c.SetCookie(n.PreferredTenant, "", -1, "/authentication", "", true, true)
	c.SetCookie(n.ReturnPath, "", -1, "/authentication", "", true, true)
	c.SetCookie(n.Locale, "", -1, "/authentication", "", true, false)
}

// attachTokens writes the signed tokens as response headers and pairs them
// with an antiforgery cookie readable by the frontend.
func (n CookieNames) attachTokens(c *gin.Context, tokens *service.AuthTokens) {
	c.Header("x-access-token", tokens.AccessToken)
	c.Header("x-refresh-token", tokens.RefreshToken)
	c.SetCookie(n.Antiforgery, tokens.AntiforgeryToken, tokens.RefreshExpiresIn, "/", "", true, false)
}
