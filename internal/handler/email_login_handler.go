package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformplatform/identity-service/internal/domain"
	"github.com/platformplatform/identity-service/internal/dto"
	"github.com/platformplatform/identity-service/internal/service"
)

// EmailLoginHandler handles the email one-time-password endpoints
type EmailLoginHandler struct {
	emailLogins service.EmailLoginService
	cookies     CookieNames
}

// NewEmailLoginHandler creates a new email login handler
func NewEmailLoginHandler(emailLogins service.EmailLoginService, cookies CookieNames) *EmailLoginHandler {
	return &EmailLoginHandler{emailLogins: emailLogins, cookies: cookies}
}

// StartLogin starts an email login attempt.
// POST /authentication/email/login/start
func (h *EmailLoginHandler) StartLogin(c *gin.Context) {
	h.start(c, domain.LoginTypeLogin)
}

// StartSignup starts an email signup attempt.
// POST /authentication/email/signup/start
func (h *EmailLoginHandler) StartSignup(c *gin.Context) {
	h.start(c, domain.LoginTypeSignup)
}

func (h *EmailLoginHandler) start(c *gin.Context, loginType domain.LoginType) {
	var req dto.StartEmailLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ProblemDetails{
			Title:  "Bad Request",
			Detail: "A valid email address is required",
			Status: http.StatusBadRequest,
		})
		return
	}

	response, err := h.emailLogins.Start(c.Request.Context(), loginType, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// Complete verifies the submitted code and issues tokens on success.
// POST /authentication/email/login/:id/complete
func (h *EmailLoginHandler) Complete(c *gin.Context) {
	var req dto.CompleteEmailLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ProblemDetails{
			Title:  "Bad Request",
			Detail: "A one-time password is required",
			Status: http.StatusBadRequest,
		})
		return
	}

	device := deviceDetails(c)
	tokens, err := h.emailLogins.Complete(c.Request.Context(), c.Param("id"), &req, device)
	if err != nil {
		respondError(c, err)
		return
	}

	h.cookies.attachTokens(c, tokens)
	c.Status(http.StatusNoContent)
}

// Resend regenerates the code and restarts the validity window.
// POST /authentication/email/login/:id/resend-code
func (h *EmailLoginHandler) Resend(c *gin.Context) {
	response, err := h.emailLogins.Resend(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// deviceDetails captures the request characteristics passed to the flows.
func deviceDetails(c *gin.Context) service.DeviceDetails {
	return service.DeviceDetails{
		UserAgent:      c.Request.UserAgent(),
		IPAddress:      c.ClientIP(),
		AcceptLanguage: c.GetHeader("Accept-Language"),
	}
}
