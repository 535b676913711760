package model

import (
	"errors"
	"time"
)

var errTimeoutPositive = errors.New("timeout must be positive")

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// ListResponse is the standard envelope for paginated list endpoints.
type ListResponse struct {
	Data    any          `json:"data"`
	Total   int          `json:"total"`
	HasMore bool         `json:"has_more"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
	Meta    ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeUpstreamDown  = "UPSTREAM_UNAVAILABLE"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
)

// CreateBackendRequest is the request body for POST /admin/backends.
// Enabled and MountEnabled default to true, Timeout to DefaultTimeoutSeconds.
type CreateBackendRequest struct {
	Name         string   `json:"name"`
	URL          string   `json:"url"`
	Enabled      *bool    `json:"enabled,omitempty"`
	Timeout      *float64 `json:"timeout,omitempty"`
	Prefix       string   `json:"prefix,omitempty"`
	MountEnabled *bool    `json:"mount_enabled,omitempty"`
}

// Validate checks field constraints and fills defaults into a Backend.
func (r CreateBackendRequest) Validate() error {
	if err := ValidateBackendName(r.Name); err != nil {
		return err
	}
	if err := ValidateBackendURL(r.URL); err != nil {
		return err
	}
	if err := ValidatePrefix(r.Prefix); err != nil {
		return err
	}
	if r.Timeout != nil && *r.Timeout <= 0 {
		return errTimeoutPositive
	}
	return nil
}

// Backend converts the request into a Backend with defaults applied.
// The caller assigns ID and timestamps.
func (r CreateBackendRequest) Backend() Backend {
	b := Backend{
		Name:           r.Name,
		URL:            r.URL,
		Enabled:        true,
		TimeoutSeconds: DefaultTimeoutSeconds,
		Prefix:         r.Prefix,
		MountEnabled:   true,
	}
	if r.Enabled != nil {
		b.Enabled = *r.Enabled
	}
	if r.Timeout != nil {
		b.TimeoutSeconds = *r.Timeout
	}
	if r.MountEnabled != nil {
		b.MountEnabled = *r.MountEnabled
	}
	return b
}

// UpdateBackendRequest is the request body for PUT /admin/backends/{name}.
// Nil fields are left unchanged; the name itself is immutable.
type UpdateBackendRequest struct {
	URL          *string  `json:"url,omitempty"`
	Enabled      *bool    `json:"enabled,omitempty"`
	Timeout      *float64 `json:"timeout,omitempty"`
	Prefix       *string  `json:"prefix,omitempty"`
	MountEnabled *bool    `json:"mount_enabled,omitempty"`
}

// Validate checks the fields that are present.
func (r UpdateBackendRequest) Validate() error {
	if r.URL != nil {
		if err := ValidateBackendURL(*r.URL); err != nil {
			return err
		}
	}
	if r.Prefix != nil {
		if err := ValidatePrefix(*r.Prefix); err != nil {
			return err
		}
	}
	if r.Timeout != nil && *r.Timeout <= 0 {
		return errTimeoutPositive
	}
	return nil
}

// Apply merges the present fields into b.
func (r UpdateBackendRequest) Apply(b *Backend) {
	if r.URL != nil {
		b.URL = *r.URL
	}
	if r.Enabled != nil {
		b.Enabled = *r.Enabled
	}
	if r.Timeout != nil {
		b.TimeoutSeconds = *r.Timeout
	}
	if r.Prefix != nil {
		b.Prefix = *r.Prefix
	}
	if r.MountEnabled != nil {
		b.MountEnabled = *r.MountEnabled
	}
}

// BackendStatus is a backend row plus its live connection state, as returned
// by the admin API. Connected reflects the registry, not the enabled flag.
type BackendStatus struct {
	Backend
	Connected bool `json:"connected"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status            string `json:"status"`
	Version           string `json:"version"`
	Postgres          string `json:"postgres"`
	BackendsConnected int    `json:"backends_connected"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
}

// DiscoveryResponse is the document served at GET /, enumerating the
// aggregated endpoint and the per-backend mounts.
type DiscoveryResponse struct {
	Name        string             `json:"name"`
	Version     string             `json:"version"`
	Description string             `json:"description,omitempty"`
	Endpoints   DiscoveryEndpoints `json:"endpoints"`
}

// DiscoveryEndpoints groups the endpoint listings in a discovery document.
type DiscoveryEndpoints struct {
	Aggregated DiscoveryEndpoint            `json:"aggregated"`
	Mounts     map[string]DiscoveryEndpoint `json:"mounts"`
}

// DiscoveryEndpoint is one addressable MCP endpoint.
type DiscoveryEndpoint struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// RefreshResponse reports the outcome of a catalog refresh: how many tools
// the backend advertises now, by bare name.
type RefreshResponse struct {
	BackendName string   `json:"backend_name"`
	ToolsCount  int      `json:"tools_count"`
	Tools       []string `json:"tools"`
}

// InfoResponse is the response for GET /admin/info: object counts for the
// CLI's info command and dashboards.
type InfoResponse struct {
	Name              string `json:"name"`
	Version           string `json:"version"`
	Backends          int    `json:"backends"`
	BackendsConnected int    `json:"backends_connected"`
	Tools             int    `json:"tools"`
	Calls             int64  `json:"calls"`
}
