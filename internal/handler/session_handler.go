package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformplatform/identity-service/internal/dto"
	"github.com/platformplatform/identity-service/internal/service"
)

// SessionHandler handles refresh-token rotation and logout
type SessionHandler struct {
	sessions service.SessionService
	cookies  CookieNames
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions service.SessionService, cookies CookieNames) *SessionHandler {
	return &SessionHandler{sessions: sessions, cookies: cookies}
}

// Refresh rotates the refresh token presented in the x-refresh-token header
// and returns a fresh token pair the same way logins do.
// POST /authentication/refresh
func (h *SessionHandler) Refresh(c *gin.Context) {
	refreshToken := c.GetHeader("x-refresh-token")
	if refreshToken == "" {
		c.JSON(http.StatusBadRequest, dto.ProblemDetails{
			Title:  "Bad Request",
			Detail: "The x-refresh-token header is required",
			Status: http.StatusBadRequest,
		})
		return
	}

	tokens, err := h.sessions.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		respondError(c, err)
		return
	}

	h.cookies.attachTokens(c, tokens)
	c.Status(http.StatusNoContent)
}

// Logout revokes the authenticated session and clears the antiforgery cookie.
// POST /authentication/logout
func (h *SessionHandler) Logout(c *gin.Context) {
	sessionID, exists := c.Get("session_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, dto.ProblemDetails{
			Title:  "Unauthorized",
			Detail: "No authenticated session",
			Status: http.StatusUnauthorized,
		})
		return
	}

	if err := h.sessions.Logout(c.Request.Context(), sessionID.(string)); err != nil {
		respondError(c, err)
		return
	}

	c.SetCookie(h.cookies.Antiforgery, "", -1, "/", "", true, false)
	c.JSON(http.StatusOK, dto.SuccessResponse{Message: "Logged out successfully"})
}
