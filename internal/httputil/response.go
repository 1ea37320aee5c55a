// Package httputil turns errors into JSON responses for the gin handlers.
package httputil

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/keyguard/internal/errors"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// StatusFor maps an error kind to an HTTP status and public error code. Details of
// integrity and internal failures are never echoed to the client.
func StatusFor(err error) (int, ErrorResponse) {
	switch {
	case apperrors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "The requested resource was not found",
		}
	case apperrors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "invalid_input",
			Message: err.Error(),
		}
	case apperrors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: "The operation is not permitted in the current state",
		}
	case apperrors.Is(err, apperrors.ErrUnavailable):
		return http.StatusServiceUnavailable, ErrorResponse{
			Error:   "unavailable",
			Message: "A required backend is unavailable",
		}
	case apperrors.Is(err, apperrors.ErrIntegrity):
		return http.StatusInternalServerError, ErrorResponse{
			Error:   "integrity_error",
			Message: "Stored key material failed verification",
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		}
	}
}

// HandleErrorGin logs err and writes the mapped JSON response.
func HandleErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if err == nil {
		return
	}

	statusCode, response := StatusFor(err)
	if logger != nil {
		logger.Error("request failed",
			slog.Int("status_code", statusCode),
			slog.String("error_code", response.Error),
			slog.Any("error", err),
		)
	}

	c.JSON(statusCode, response)
}
