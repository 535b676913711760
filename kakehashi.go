// Package kakehashi is the public API for embedding the MCP gateway.
//
// Consumers import this package to construct and extend the gateway without
// forking it:
//
//	app, err := kakehashi.New(
//	    kakehashi.WithVersion(version),
//	    kakehashi.WithLogger(logger),
//	    kakehashi.WithCallHook(myAuditHook),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: kakehashi (root) imports
// internal/*, but internal/* never imports kakehashi (root). Public types
// (CallRecord) are standalone structs with no internal imports; conversion
// helpers live here because this is the only file that sees both sides of
// the boundary.
package kakehashi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/ashita-ai/kakehashi/api"
	"github.com/ashita-ai/kakehashi/internal/config"
	"github.com/ashita-ai/kakehashi/internal/gateway"
	"github.com/ashita-ai/kakehashi/internal/model"
	"github.com/ashita-ai/kakehashi/internal/ratelimit"
	"github.com/ashita-ai/kakehashi/internal/server"
	"github.com/ashita-ai/kakehashi/internal/storage"
	"github.com/ashita-ai/kakehashi/internal/telemetry"
	"github.com/ashita-ai/kakehashi/migrations"
)

// CallRecord is one tool-invocation ledger entry as seen by registered call
// hooks. It mirrors the stored record without exposing internal types.
type CallRecord struct {
	BackendName  string
	ToolName     string
	Success      bool
	ErrorMessage string
	LatencyMs    int64
	CalledAt     time.Time
	ClientIP     string
	RequestID    string
	SessionID    string
	Caller       string
}

// CallHook observes every call record appended to the ledger. Hooks run
// synchronously on the invocation path and must not block.
type CallHook func(record CallRecord)

// App is the gateway server lifecycle. Construct with New(), run with Run().
// App has no public fields — use New() options to configure it.
type App struct {
	cfg          config.Config
	db           *storage.DB
	registry     *gateway.Registry
	srv          *server.Server
	limiter      ratelimit.Limiter
	otelShutdown func(context.Context) error
	logger       *slog.Logger
	version      string
}

// New initialises the gateway. It connects to the database, runs migrations,
// and wires all subsystems, returning a ready-to-run App. It does NOT dial
// any backend or accept HTTP connections — call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("kakehashi starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Connect to database.
	db, err := storage.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("storage: %w", err)
	}

	// Run built-in migrations, then any extra (embedder-supplied) ones.
	if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("migrations: %w", err)
	}
	for i, extraFS := range o.extraMigrations {
		if err := db.RunMigrations(context.Background(), extraFS); err != nil {
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("extra migrations[%d]: %w", i, err)
		}
	}

	// Connection registry. Backends are dialed in Run().
	registry := gateway.NewRegistry(db, logger.With("component", "gateway"))

	// SSE broker fed by the registry's call hook, alongside any hooks the
	// embedder registered.
	broker := server.NewBroker(logger.With("component", "broker"))
	hooks := o.callHooks
	registry.SetCallHook(func(call model.ToolCall) {
		broker.Publish(call)
		for _, h := range hooks {
			h(toPublicCallRecord(call))
		}
	})

	// Rate limiter.
	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	// Adapt route registrars to the internal mux signature.
	extraRoutes := make([]func(*http.ServeMux), 0, len(o.routeRegistrars))
	for _, fn := range o.routeRegistrars {
		extraRoutes = append(extraRoutes, fn)
	}

	srv := server.New(server.ServerConfig{
		DB:                  db,
		Registry:            registry,
		Broker:              broker,
		Limiter:             limiter,
		Logger:              logger,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		ServerName:          cfg.ServerName,
		ServerDescription:   cfg.ServerDescription,
		PublicURL:           cfg.PublicURL,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         api.OpenAPISpec,
		ExtraRoutes:         extraRoutes,
	})

	return &App{
		cfg:          cfg,
		db:           db,
		registry:     registry,
		srv:          srv,
		limiter:      limiter,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Run connects to the enabled backends, starts the HTTP server, and blocks
// until ctx is cancelled or a fatal server error occurs. On return, Shutdown
// is called automatically — callers should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	// Dial enabled backends. Unreachable backends are logged and skipped;
	// the window bounds the whole batch, not each backend.
	connectCtx, cancel := context.WithTimeout(ctx, a.cfg.ConnectTimeout)
	err := a.registry.Initialize(connectCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("gateway initialize: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown performs a phased graceful shutdown: stop accepting HTTP requests
// and drain in-flight ones (their call records land during the drain), then
// disconnect the backend connections, then release everything else.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("kakehashi shutting down")

	httpCtx, cancel := context.WithTimeout(ctx, a.cfg.ShutdownTimeout)
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}
	cancel()

	a.registry.DisconnectAll()
	_ = a.limiter.Close()
	_ = a.otelShutdown(context.Background())
	a.db.Close()

	a.logger.Info("kakehashi stopped")
	return nil
}

// toPublicCallRecord converts an internal model.ToolCall to the public
// CallRecord. Lives here because this is the only file that imports both
// sides of the boundary.
func toPublicCallRecord(c model.ToolCall) CallRecord {
	errMsg := ""
	if c.ErrorMessage != nil {
		errMsg = *c.ErrorMessage
	}
	return CallRecord{
		BackendName:  c.BackendName,
		ToolName:     c.ToolName,
		Success:      c.Success,
		ErrorMessage: errMsg,
		LatencyMs:    c.LatencyMs,
		CalledAt:     c.CalledAt,
		ClientIP:     c.ClientIP,
		RequestID:    c.RequestID,
		SessionID:    c.SessionID,
		Caller:       c.Caller,
	}
}
