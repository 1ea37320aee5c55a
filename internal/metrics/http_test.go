package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	provider := newTestProvider(t)
	router := gin.New()
	router.Use(HTTPMetricsMiddleware(provider.MeterProvider(), "keyguard"))
	router.GET("/v1/keys/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"provisioned": true})
	})
	router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
	})

	for _, path := range []string{"/v1/keys/status", "/v1/keys/status", "/ready", "/nope"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	body := scrape(t, provider)
	assert.Contains(t, body, "keyguard_http_requests_total")
	assert.Contains(t, body, "keyguard_http_request_duration_seconds")
	assert.Contains(t, body, `path="/v1/keys/status"`)
	assert.Contains(t, body, `status_code="503"`)
	assert.Contains(t, body, `path="unmatched"`)
	assert.NotContains(t, body, `path="/nope"`)
}

func TestRouteLabel(t *testing.T) {
	assert.Equal(t, "/v1/keys/status", routeLabel("/v1/keys/status"))
	assert.Equal(t, unmatchedRoute, routeLabel(""))
}
