package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashita-ai/kakehashi/internal/gateway"
	"github.com/ashita-ai/kakehashi/internal/mcp"
	"github.com/ashita-ai/kakehashi/internal/ratelimit"
	"github.com/ashita-ai/kakehashi/internal/storage"
)

// Server is the gateway HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Handlers returns the underlying Handlers.
func (s *Server) Handlers() *Handlers {
	return s.handlers
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil-safe): Broker, Limiter, OpenAPISpec.
type ServerConfig struct {
	// Required dependencies.
	DB       *storage.DB
	Registry *gateway.Registry
	Logger   *slog.Logger

	// Optional dependencies (nil = disabled).
	Broker  *Broker
	Limiter ratelimit.Limiter

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	ServerName          string
	ServerDescription   string
	PublicURL           string
	MaxRequestBodyBytes int64

	// Optional embedded assets.
	OpenAPISpec []byte // Embedded OpenAPI YAML.

	// ExtraRoutes are applied to the mux after the built-in routes, for
	// embedders extending the HTTP surface.
	ExtraRoutes []func(*http.ServeMux)
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		DB:                  cfg.DB,
		Registry:            cfg.Registry,
		Broker:              cfg.Broker,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		ServerName:          cfg.ServerName,
		ServerDescription:   cfg.ServerDescription,
		PublicURL:           cfg.PublicURL,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         cfg.OpenAPISpec,
	})

	dispatcher := mcp.NewDispatcher(cfg.Registry, cfg.ServerName, cfg.Version, cfg.Logger)

	// Request ID extractor for rate limit error responses.
	reqIDFunc := func(r *http.Request) string {
		return RequestIDFromContext(r.Context())
	}
	mcpRL := ratelimit.Middleware(cfg.Limiter, ratelimit.IPKeyFunc, reqIDFunc)

	mux := http.NewServeMux()

	// MCP endpoints (rate limited per client IP when a limiter is configured).
	mux.Handle("POST /mcp", mcpRL(http.HandlerFunc(dispatcher.HandleAggregated)))
	mux.Handle("POST /mcp/{prefix}", mcpRL(http.HandlerFunc(dispatcher.HandleMount)))

	// Discovery document, also served at the root for zero-config clients.
	mux.HandleFunc("GET /.well-known/mcp.json", h.HandleDiscovery)
	mux.HandleFunc("GET /{$}", h.HandleDiscovery)

	// Admin API.
	mux.HandleFunc("GET /admin/backends", h.HandleListBackends)
	mux.HandleFunc("POST /admin/backends", h.HandleCreateBackend)
	mux.HandleFunc("GET /admin/backends/{name}", h.HandleGetBackend)
	mux.HandleFunc("PUT /admin/backends/{name}", h.HandleUpdateBackend)
	mux.HandleFunc("DELETE /admin/backends/{name}", h.HandleDeleteBackend)
	mux.HandleFunc("POST /admin/backends/{name}/refresh", h.HandleRefreshBackend)
	mux.HandleFunc("POST /admin/backends/{name}/enable", h.HandleEnableBackend)
	mux.HandleFunc("POST /admin/backends/{name}/disable", h.HandleDisableBackend)
	mux.HandleFunc("GET /admin/tools", h.HandleListTools)
	mux.HandleFunc("GET /admin/calls", h.HandleListCalls)
	mux.HandleFunc("GET /admin/calls/stream", h.HandleCallsStream)
	mux.HandleFunc("GET /admin/metrics", h.HandleMetrics)
	mux.HandleFunc("GET /admin/metrics/tools", h.HandleMetricsTools)
	mux.HandleFunc("GET /admin/metrics/timeseries", h.HandleMetricsTimeseries)
	mux.HandleFunc("GET /admin/info", h.HandleInfo)

	// OpenAPI spec (no rate limit).
	mux.HandleFunc("GET /openapi.yaml", h.HandleOpenAPISpec)

	// Health (no rate limit).
	mux.HandleFunc("GET /healthz", h.HandleHealth)

	// Embedder-supplied routes.
	for _, register := range cfg.ExtraRoutes {
		register(mux)
	}

	// Middleware chain (outermost executes first):
	// request ID → call meta → security headers → CORS → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = corsMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = callMetaMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
