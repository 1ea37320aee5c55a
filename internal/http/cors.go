package http

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// createCORSMiddleware returns nil when CORS is disabled or no usable origin is configured.
// The status API is read-only, so only GET is allowed.
func createCORSMiddleware(enabled bool, allowOrigins string, logger *slog.Logger) gin.HandlerFunc {
	if !enabled {
		return nil
	}

	origins := parseOrigins(allowOrigins)
	if len(origins) == 0 {
		logger.Warn("CORS enabled but no origins configured, CORS will not be applied")
		return nil
	}

	logger.Info("CORS enabled", slog.Any("origins", origins))

	return cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET"},
		AllowHeaders:  []string{"Content-Type"},
		ExposeHeaders: []string{"X-Request-Id"},
		MaxAge:        12 * time.Hour,
	})
}

func parseOrigins(allowOrigins string) []string {
	if allowOrigins == "" {
		return nil
	}

	var origins []string
	for _, part := range strings.Split(allowOrigins, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
