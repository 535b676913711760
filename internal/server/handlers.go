package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ashita-ai/kakehashi/internal/gateway"
	"github.com/ashita-ai/kakehashi/internal/metrics"
	"github.com/ashita-ai/kakehashi/internal/model"
	"github.com/ashita-ai/kakehashi/internal/storage"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	db                  *storage.DB
	registry            *gateway.Registry
	broker              *Broker
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	serverName          string
	serverDescription   string
	publicURL           string
	maxRequestBodyBytes int64
	openapiSpec         []byte
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): Broker, OpenAPISpec.
type HandlersDeps struct {
	DB                  *storage.DB
	Registry            *gateway.Registry
	Broker              *Broker
	Logger              *slog.Logger
	Version             string
	ServerName          string
	ServerDescription   string
	PublicURL           string
	MaxRequestBodyBytes int64
	OpenAPISpec         []byte
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		db:                  d.DB,
		registry:            d.Registry,
		broker:              d.Broker,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		serverName:          d.ServerName,
		serverDescription:   d.ServerDescription,
		publicURL:           d.PublicURL,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		openapiSpec:         d.OpenAPISpec,
	}
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	pgStatus := "connected"
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.db.Ping(r.Context()); err != nil {
		pgStatus = "disconnected"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, r, httpStatus, model.HealthResponse{
		Status:            status,
		Version:           h.version,
		Postgres:          pgStatus,
		BackendsConnected: len(h.registry.ConnectedBackends()),
		UptimeSeconds:     int64(time.Since(h.startedAt).Seconds()),
	})
}

// HandleDiscovery handles GET / and GET /.well-known/mcp.json: the document
// MCP clients use to find the aggregated endpoint and the per-backend mounts.
// Mounts list only backends that are both enabled and mount-enabled.
func (h *Handlers) HandleDiscovery(w http.ResponseWriter, r *http.Request) {
	backends, err := h.db.ListBackends(r.Context(), true)
	if err != nil {
		h.writeInternalError(w, r, "failed to list backends", err)
		return
	}

	mounts := make(map[string]model.DiscoveryEndpoint)
	for _, b := range backends {
		if !b.MountEnabled {
			continue
		}
		prefix := b.EffectivePrefix()
		if _, taken := mounts[prefix]; taken {
			continue // First backend wins a contested prefix, matching mount routing.
		}
		mounts[prefix] = model.DiscoveryEndpoint{
			URL:         h.publicURL + "/mcp/" + prefix,
			Description: "Direct access to " + b.Name,
		}
	}

	doc := model.DiscoveryResponse{
		Name:        h.serverName,
		Version:     h.version,
		Description: h.serverDescription,
		Endpoints: model.DiscoveryEndpoints{
			Aggregated: model.DiscoveryEndpoint{
				URL:         h.publicURL + "/mcp",
				Description: "All tools from all connected backends, with prefixed names",
			},
			Mounts: mounts,
		},
	}

	// The discovery document is the raw payload, not wrapped in the API
	// envelope: external MCP clients expect the bare shape.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(doc)
}

// HandleInfo handles GET /admin/info: object counts for the CLI's info
// command and dashboards.
func (h *Handlers) HandleInfo(w http.ResponseWriter, r *http.Request) {
	backends, err := h.db.CountBackends(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "failed to count backends", err)
		return
	}
	tools, err := h.db.CountTools(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "failed to count tools", err)
		return
	}
	calls, err := h.db.CountCalls(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "failed to count calls", err)
		return
	}

	writeJSON(w, r, http.StatusOK, model.InfoResponse{
		Name:              h.serverName,
		Version:           h.version,
		Backends:          backends,
		BackendsConnected: len(h.registry.ConnectedBackends()),
		Tools:             tools,
		Calls:             calls,
	})
}

// HandleOpenAPISpec serves the embedded OpenAPI specification.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.openapiSpec) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openapiSpec)
}

// writeInternalError logs the cause and answers with a generic 500 envelope.
func (h *Handlers) writeInternalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg, "error", err, "request_id", RequestIDFromContext(r.Context()))
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, msg)
}

// --- Shared helpers ---

func queryInt(r *http.Request, key string, defaultVal int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

// maxQueryLimit is the maximum allowed value for limit query parameters.
const maxQueryLimit = 1000

// queryLimit returns a bounded limit value from query params.
// Values are clamped to [1, maxQueryLimit].
func queryLimit(r *http.Request, defaultVal int) int {
	limit := queryInt(r, "limit", defaultVal)
	if limit < 1 {
		return 1
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}

// maxQueryOffset prevents absurdly large offset values that cause expensive sequential scans.
const maxQueryOffset = 100_000

// queryOffset returns a bounded, non-negative offset from query params.
func queryOffset(r *http.Request) int {
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		return 0
	}
	if offset > maxQueryOffset {
		return maxQueryOffset
	}
	return offset
}

// queryPeriod converts the period query param ("30m", "24h", "7d", "all")
// into an optional cutoff time.
func queryPeriod(r *http.Request) (*time.Time, error) {
	return metrics.ParsePeriod(r.URL.Query().Get("period"), time.Now().UTC())
}
