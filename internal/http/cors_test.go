package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateCORSMiddleware(t *testing.T) {
	logger := discardLogger()

	t.Run("Success_DisabledReturnsNil", func(t *testing.T) {
		assert.Nil(t, createCORSMiddleware(false, "https://ops.example.com", logger))
	})

	t.Run("Success_NoOriginsReturnsNil", func(t *testing.T) {
		assert.Nil(t, createCORSMiddleware(true, " , ", logger))
	})

	t.Run("Success_Enabled", func(t *testing.T) {
		assert.NotNil(t, createCORSMiddleware(true, "https://ops.example.com", logger))
	})
}

func TestParseOrigins(t *testing.T) {
	assert.Equal(t,
		[]string{"https://ops.example.com", "https://admin.example.com"},
		parseOrigins(" https://ops.example.com ,,https://admin.example.com "))
	assert.Nil(t, parseOrigins(""))
}

func TestCORSIntegration(t *testing.T) {
	t.Run("Success_HeadersAddedForAllowedOrigin", func(t *testing.T) {
		useCase := provisionedUseCase(t)
		server := newTestServer(useCase, WithCORS(true, "https://ops.example.com"))

		req := httptest.NewRequest(http.MethodGet, "/v1/keys/status", nil)
		req.Header.Set("Origin", "https://ops.example.com")
		w := serve(server, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://ops.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Success_PreflightOnlyAllowsGet", func(t *testing.T) {
		server := newTestServer(nil, WithCORS(true, "https://ops.example.com"))

		req := httptest.NewRequest(http.MethodOptions, "/v1/keys/status", nil)
		req.Header.Set("Origin", "https://ops.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		w := serve(server, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "GET", w.Header().Get("Access-Control-Allow-Methods"))
	})

	t.Run("Success_NoHeadersWhenDisabled", func(t *testing.T) {
		server := newTestServer(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://ops.example.com")
		w := serve(server, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}
