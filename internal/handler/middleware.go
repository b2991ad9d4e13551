package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/platformplatform/identity-service/internal/dto"
	"github.com/platformplatform/identity-service/internal/service"
)

// AuthMiddleware validates the bearer access token and adds the session
// identity to the request context.
func AuthMiddleware(sessions service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "Authorization header is required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abortUnauthorized(c, "Invalid authorization header format")
			return
		}

		claims, err := sessions.ValidateAccessToken(c.Request.Context(), parts[1])
		if err != nil {
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("tenant_id", claims.TenantID)
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)
		c.Set("session_id", claims.SessionID)
		c.Set("claims", claims)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, detail string) {
	c.JSON(http.StatusUnauthorized, dto.ProblemDetails{
		Title:  "Unauthorized",
		Detail: detail,
		Status: http.StatusUnauthorized,
	})
	c.Abort()
}
