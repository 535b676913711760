package kakehashi

import (
	"io/fs"
	"log/slog"
	"net/http"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	port            int
	databaseURL     string
	logger          *slog.Logger
	version         string
	callHooks       []CallHook
	routeRegistrars []RouteRegistrar
	extraMigrations []fs.FS
}

// WithPort overrides the TCP port from config (KAKEHASHI_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides the database connection string from config
// (KAKEHASHI_DATABASE_URL env var).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint,
// the discovery document, and the MCP initialize reply.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithCallHook registers an observer for every call record appended to the
// ledger. Multiple hooks may be registered; all of them see every record.
// Hooks run on the invocation path and must not block.
func WithCallHook(hook CallHook) Option {
	return func(o *resolvedOptions) { o.callHooks = append(o.callHooks, hook) }
}

// WithExtraRoutes registers additional routes on the shared HTTP mux.
// Multiple registrars may be registered; all are called in registration order.
func WithExtraRoutes(fn RouteRegistrar) Option {
	return func(o *resolvedOptions) { o.routeRegistrars = append(o.routeRegistrars, fn) }
}

// WithExtraMigrations adds an additional SQL migration filesystem to run
// after the built-in migrations. Multiple filesystems may be registered;
// they are applied in registration order.
func WithExtraMigrations(dir fs.FS) Option {
	return func(o *resolvedOptions) { o.extraMigrations = append(o.extraMigrations, dir) }
}

// RouteRegistrar adds routes to the gateway's HTTP mux before the server
// starts. Registered paths must not collide with the built-in surface.
type RouteRegistrar func(mux *http.ServeMux)
