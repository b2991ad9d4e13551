package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platformplatform/identity-service/internal/dto"
	"github.com/platformplatform/identity-service/internal/service"
)

// respondError maps a business failure to a problem-details response.
// Unexpected errors never leak internals to the client.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	title := "Internal Server Error"
	detail := "An unexpected error occurred"

	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		detail = svcErr.Message
		switch svcErr.Kind {
		case service.KindBadRequest:
			status, title = http.StatusBadRequest, "Bad Request"
		case service.KindNotFound:
			status, title = http.StatusNotFound, "Not Found"
		case service.KindForbidden:
			status, title = http.StatusForbidden, "Forbidden"
		case service.KindUnauthorized:
			status, title = http.StatusUnauthorized, "Unauthorized"
		}
	}

	c.JSON(status, dto.ProblemDetails{Title: title, Detail: detail, Status: status})
}
