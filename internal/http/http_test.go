package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/keyguard/internal/crypto/domain"
	cryptoMocks "github.com/allisson/keyguard/internal/crypto/usecase/mocks"
	"github.com/allisson/keyguard/internal/metrics"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(useCase *cryptoMocks.MockEnvelopeUseCase, opts ...Option) *Server {
	if useCase == nil {
		useCase = &cryptoMocks.MockEnvelopeUseCase{}
	}
	return NewServer("127.0.0.1", 0, discardLogger(), useCase, opts...)
}

func serve(server *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	server.GetHandler().ServeHTTP(w, req)
	return w
}

func testStatus() *cryptoDomain.KeyStatus {
	return &cryptoDomain.KeyStatus{
		KeyAlias:    cryptoDomain.DefaultKeyAlias,
		Provider:    "local",
		Provisioned: true,
		Algorithm:   cryptoDomain.AESGCM,
		KeyVersion:  1,
		RecordID:    uuid.Must(uuid.NewV7()).String(),
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func provisionedUseCase(t *testing.T) *cryptoMocks.MockEnvelopeUseCase {
	t.Helper()
	useCase := &cryptoMocks.MockEnvelopeUseCase{}
	useCase.On("Status", mock.Anything).Return(testStatus(), nil)
	t.Cleanup(func() { useCase.AssertExpectations(t) })
	return useCase
}

func TestHealthEndpoint(t *testing.T) {
	w := serve(newTestServer(nil), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("Success_Ready", func(t *testing.T) {
		w := serve(newTestServer(provisionedUseCase(t)), httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ready"}`, w.Body.String())
	})

	t.Run("Error_StoreUnavailable", func(t *testing.T) {
		useCase := &cryptoMocks.MockEnvelopeUseCase{}
		useCase.On("Status", mock.Anything).Return(nil, cryptoDomain.ErrWrappedKeyStoreUnavailable)

		w := serve(newTestServer(useCase), httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.JSONEq(t, `{"status":"not ready","reason":"storage"}`, w.Body.String())
	})

	t.Run("Error_ShuttingDown", func(t *testing.T) {
		server := newTestServer(nil)
		require.NoError(t, server.Shutdown(context.Background()))

		w := serve(server, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestKeyStatusEndpoint(t *testing.T) {
	t.Run("Success_Provisioned", func(t *testing.T) {
		w := serve(newTestServer(provisionedUseCase(t)), httptest.NewRequest(http.MethodGet, "/v1/keys/status", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, cryptoDomain.DefaultKeyAlias, body["key_alias"])
		assert.Equal(t, true, body["provisioned"])
		assert.Equal(t, "aes-gcm", body["algorithm"])
		assert.NotContains(t, body, "encrypted_key")
		assert.NotContains(t, body, "iv")
	})

	t.Run("Success_NotProvisioned", func(t *testing.T) {
		useCase := &cryptoMocks.MockEnvelopeUseCase{}
		useCase.On("Status", mock.Anything).Return(&cryptoDomain.KeyStatus{
			KeyAlias: cryptoDomain.DefaultKeyAlias,
			Provider: "kms",
		}, nil)

		w := serve(newTestServer(useCase), httptest.NewRequest(http.MethodGet, "/v1/keys/status", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"key_alias":"keyguard_keystore_key","provider":"kms","provisioned":false}`, w.Body.String())
	})

	t.Run("Error_CorruptRecord", func(t *testing.T) {
		useCase := &cryptoMocks.MockEnvelopeUseCase{}
		useCase.On("Status", mock.Anything).Return(nil, cryptoDomain.ErrWrappedKeyCorrupt)

		w := serve(newTestServer(useCase), httptest.NewRequest(http.MethodGet, "/v1/keys/status", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "integrity_error")
	})

	t.Run("Error_KeystoreLocked", func(t *testing.T) {
		useCase := &cryptoMocks.MockEnvelopeUseCase{}
		useCase.On("Status", mock.Anything).Return(nil, cryptoDomain.ErrKeystoreLocked)

		w := serve(newTestServer(useCase), httptest.NewRequest(http.MethodGet, "/v1/keys/status", nil))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestNotFoundEndpoint(t *testing.T) {
	w := serve(newTestServer(nil), httptest.NewRequest(http.MethodGet, "/v1/keys/material", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequestIDAndLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	server := NewServer("127.0.0.1", 0, logger, provisionedUseCase(t))

	w := serve(server, httptest.NewRequest(http.MethodGet, "/v1/keys/status", nil))

	requestID := w.Header().Get("X-Request-Id")
	require.NotEmpty(t, requestID)
	_, err := uuid.Parse(requestID)
	assert.NoError(t, err)
	assert.Contains(t, buf.String(), `"request_id":"`+requestID+`"`)
	assert.Contains(t, buf.String(), `"path":"/v1/keys/status"`)
}

func TestRateLimit(t *testing.T) {
	useCase := &cryptoMocks.MockEnvelopeUseCase{}
	useCase.On("Status", mock.Anything).Return(testStatus(), nil)
	server := newTestServer(useCase, WithRateLimit(true, 0.001, 2))

	for range 2 {
		w := serve(server, httptest.NewRequest(http.MethodGet, "/v1/keys/status", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := serve(server, httptest.NewRequest(http.MethodGet, "/v1/keys/status", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w = serve(server, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code, "health checks are not rate limited")
}

func TestRateLimiterStore_EvictIdle(t *testing.T) {
	store := newRateLimiterStore(1, 1)
	first := store.limiter("10.0.0.1")
	assert.Same(t, first, store.limiter("10.0.0.1"))

	store.evictIdle(time.Now().Add(time.Minute))
	assert.NotSame(t, first, store.limiter("10.0.0.1"))
}

func TestServer_StartAndShutdown(t *testing.T) {
	server := newTestServer(nil, WithRateLimit(true, 1, 1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	require.NoError(t, server.Shutdown(shutdownCtx))
	assert.NoError(t, <-errCh)
}

func TestHTTPMetrics(t *testing.T) {
	provider, err := metrics.NewProvider("keyguard")
	require.NoError(t, err)
	defer func() { assert.NoError(t, provider.Shutdown(context.Background())) }()

	server := newTestServer(provisionedUseCase(t), WithHTTPMetrics(provider.MeterProvider(), "keyguard"))
	serve(server, httptest.NewRequest(http.MethodGet, "/v1/keys/status", nil))

	metricsServer := NewMetricsServer("127.0.0.1", 0, discardLogger(), provider)
	w := httptest.NewRecorder()
	metricsServer.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "keyguard_http_requests_total")
	assert.Contains(t, w.Body.String(), `path="/v1/keys/status"`)
}

func TestMetricsServer(t *testing.T) {
	provider, err := metrics.NewProvider("keyguard")
	require.NoError(t, err)
	defer func() { assert.NoError(t, provider.Shutdown(context.Background())) }()

	metricsServer := NewMetricsServer("::1", 9100, discardLogger(), provider)
	assert.Equal(t, "[::1]:9100", metricsServer.server.Addr)

	w := httptest.NewRecorder()
	metricsServer.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodHead, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	metricsServer.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/keys/status", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
