package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	cryptoDomain "github.com/allisson/keyguard/internal/crypto/domain"
	"github.com/allisson/keyguard/internal/httputil"
)

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readyHandler reports ready while the server is not shutting down and the wrapped-key
// store answers a status query.
func (s *Server) readyHandler(c *gin.Context) {
	if s.shuttingDown.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}

	if _, err := s.envelopeUseCase.Status(c.Request.Context()); err != nil {
		s.logger.Warn("readiness check failed", slog.Any("error", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": failureKind(err),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) keyStatusHandler(c *gin.Context) {
	status, err := s.envelopeUseCase.Status(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, s.logger)
		return
	}
	c.JSON(http.StatusOK, status)
}

func failureKind(err error) string {
	switch cryptoDomain.Kind(err) {
	case cryptoDomain.ErrProvisioning:
		return "provisioning"
	case cryptoDomain.ErrAuthentication:
		return "authentication"
	case cryptoDomain.ErrStorage:
		return "storage"
	default:
		return "internal"
	}
}
