package ratelimit_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kakehashi/internal/model"
	"github.com/ashita-ai/kakehashi/internal/ratelimit"
)

// brokenLimiter simulates a limiter malfunction on every call.
type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("limiter store unreachable")
}

func (brokenLimiter) Close() error { return nil }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("passed"))
	})
}

func doRequest(t *testing.T, h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareAllowsUnderLimit(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(100, 10)
	defer func() { _ = limiter.Close() }()

	h := ratelimit.Middleware(limiter, ratelimit.IPKeyFunc, nil)(okHandler())

	rec := doRequest(t, h, "203.0.113.7:4431")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "passed", rec.Body.String())
}

func TestMiddlewareDeniesOverLimit(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(0.001, 1)
	defer func() { _ = limiter.Close() }()

	reqID := func(*http.Request) string { return "req-123" }
	h := ratelimit.Middleware(limiter, ratelimit.IPKeyFunc, reqID)(okHandler())

	rec := doRequest(t, h, "203.0.113.7:4431")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, "203.0.113.7:4431")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var apiErr model.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, model.ErrCodeRateLimited, apiErr.Error.Code)
	assert.Equal(t, "too many requests", apiErr.Error.Message)
	assert.Equal(t, "req-123", apiErr.Meta.RequestID)
	assert.False(t, apiErr.Meta.Timestamp.IsZero())
}

func TestMiddlewareIsolatesClients(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(0.001, 1)
	defer func() { _ = limiter.Close() }()

	h := ratelimit.Middleware(limiter, ratelimit.IPKeyFunc, nil)(okHandler())

	// Exhaust the first client's bucket.
	rec := doRequest(t, h, "203.0.113.7:1111")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, h, "203.0.113.7:2222")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different client still gets through.
	rec = doRequest(t, h, "198.51.100.9:3333")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareSkipsEmptyKey(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(0.001, 1)
	defer func() { _ = limiter.Close() }()

	noKey := func(*http.Request) string { return "" }
	h := ratelimit.Middleware(limiter, noKey, nil)(okHandler())

	for i := 0; i < 5; i++ {
		rec := doRequest(t, h, "203.0.113.7:4431")
		assert.Equal(t, http.StatusOK, rec.Code, "request %d should bypass the limiter", i)
	}
}

func TestMiddlewareFailsOpenOnLimiterError(t *testing.T) {
	h := ratelimit.Middleware(brokenLimiter{}, ratelimit.IPKeyFunc, nil)(okHandler())

	for i := 0; i < 3; i++ {
		rec := doRequest(t, h, "203.0.113.7:4431")
		assert.Equal(t, http.StatusOK, rec.Code, "request %d should fail open", i)
	}
}

func TestMiddlewareNilLimiterPassesThrough(t *testing.T) {
	h := ratelimit.Middleware(nil, ratelimit.IPKeyFunc, nil)(okHandler())

	rec := doRequest(t, h, "203.0.113.7:4431")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIPKeyFunc(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"203.0.113.7:4431", "203.0.113.7"},
		{"[2001:db8::1]:8080", "[2001:db8::1]"},
		{"localhost", "localhost"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remoteAddr
		assert.Equal(t, tt.want, ratelimit.IPKeyFunc(req), "RemoteAddr %q", tt.remoteAddr)
	}
}

func TestIPKeyFuncIgnoresForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:4431"
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	assert.Equal(t, "203.0.113.7", ratelimit.IPKeyFunc(req))
}
