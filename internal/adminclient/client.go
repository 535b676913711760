// Package adminclient is an HTTP client for the gateway's admin REST API.
// The CLI's non-serve commands use it to talk to a running gateway.
package adminclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ashita-ai/kakehashi/internal/model"
)

// Error represents an error from the admin API with the HTTP status code
// and the server's error message.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("adminclient: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// IsNotFound reports whether the error is a 404 from the admin API.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.StatusCode == http.StatusNotFound
}

// Client is an HTTP client for a running gateway's admin API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a Client for the gateway at baseURL
// (e.g. "http://localhost:8913").
func New(baseURL string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("adminclient: baseURL is required")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Health checks the gateway's health endpoint.
func (c *Client) Health(ctx context.Context) (*model.HealthResponse, error) {
	var resp model.HealthResponse
	if err := c.get(ctx, "/healthz", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Info returns object counts and the gateway's identity.
func (c *Client) Info(ctx context.Context) (*model.InfoResponse, error) {
	var resp model.InfoResponse
	if err := c.get(ctx, "/admin/info", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListBackends lists backends with their live connection state.
func (c *Client) ListBackends(ctx context.Context, enabledOnly bool) ([]model.BackendStatus, error) {
	path := "/admin/backends"
	if enabledOnly {
		path += "?enabled=true"
	}
	var resp []model.BackendStatus
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CreateBackend registers a new backend.
func (c *Client) CreateBackend(ctx context.Context, req model.CreateBackendRequest) (*model.BackendStatus, error) {
	var resp model.BackendStatus
	if err := c.post(ctx, "/admin/backends", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetBackend fetches one backend by name.
func (c *Client) GetBackend(ctx context.Context, name string) (*model.BackendStatus, error) {
	var resp model.BackendStatus
	if err := c.get(ctx, "/admin/backends/"+url.PathEscape(name), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteBackend removes a backend and its cached tools.
func (c *Client) DeleteBackend(ctx context.Context, name string) error {
	return c.doDelete(ctx, "/admin/backends/"+url.PathEscape(name))
}

// EnableBackend enables a backend; the gateway attempts a connection.
func (c *Client) EnableBackend(ctx context.Context, name string) (*model.BackendStatus, error) {
	var resp model.BackendStatus
	if err := c.post(ctx, "/admin/backends/"+url.PathEscape(name)+"/enable", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DisableBackend disconnects and disables a backend.
func (c *Client) DisableBackend(ctx context.Context, name string) (*model.BackendStatus, error) {
	var resp model.BackendStatus
	if err := c.post(ctx, "/admin/backends/"+url.PathEscape(name)+"/disable", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RefreshBackend re-fetches a backend's tool catalog.
func (c *Client) RefreshBackend(ctx context.Context, name string) (*model.RefreshResponse, error) {
	var resp model.RefreshResponse
	if err := c.post(ctx, "/admin/backends/"+url.PathEscape(name)+"/refresh", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Tool is a cached catalog entry with its owning backend's name.
type Tool struct {
	model.Tool
	BackendName string `json:"backend_name"`
}

// ListTools lists the cached tool catalog, optionally for one backend.
func (c *Client) ListTools(ctx context.Context, backend string) ([]Tool, error) {
	path := "/admin/tools"
	if backend != "" {
		path += "?backend=" + url.QueryEscape(backend)
	}
	var resp []Tool
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// MetricsResponse is the aggregate statistics reply from /admin/metrics.
type MetricsResponse struct {
	Backend string `json:"backend,omitempty"`
	Tool    string `json:"tool,omitempty"`
	Period  string `json:"period"`
	model.CallStatsDetailed
}

// Metrics fetches aggregate call statistics with latency percentiles.
func (c *Client) Metrics(ctx context.Context, backend, tool, period string) (*MetricsResponse, error) {
	params := url.Values{}
	if backend != "" {
		params.Set("backend", backend)
	}
	if tool != "" {
		params.Set("tool", tool)
	}
	if period != "" {
		params.Set("period", period)
	}
	path := "/admin/metrics"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var resp MetricsResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ToolMetricsResponse is the per-tool breakdown reply from
// /admin/metrics/tools.
type ToolMetricsResponse struct {
	Period string            `json:"period"`
	SortBy string            `json:"sort_by"`
	Order  string            `json:"order"`
	Tools  []model.ToolStats `json:"tools"`
}

// ToolMetrics fetches the per-tool call breakdown.
func (c *Client) ToolMetrics(ctx context.Context, sortBy, order string, limit int, period string) (*ToolMetricsResponse, error) {
	params := url.Values{}
	if sortBy != "" {
		params.Set("sort_by", sortBy)
	}
	if order != "" {
		params.Set("order", order)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if period != "" {
		params.Set("period", period)
	}
	path := "/admin/metrics/tools"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var resp ToolMetricsResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

// apiEnvelope is the server's standard response wrapper.
type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// apiErrorEnvelope is the server's standard error response wrapper.
type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("adminclient: create request: %w", err)
	}
	return c.doRequest(req, dest)
}

func (c *Client) post(ctx context.Context, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("adminclient: marshal request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("adminclient: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.doRequest(req, dest)
}

func (c *Client) doDelete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("adminclient: create request: %w", err)
	}
	return c.doRequest(req, nil)
}

func (c *Client) doRequest(req *http.Request, dest any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("adminclient: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("adminclient: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, bodyBytes)
	}
	if resp.StatusCode == http.StatusNoContent || dest == nil {
		return nil
	}

	// Unwrap the server's { "data": ... } envelope, falling back to the
	// bare shape for endpoints that don't wrap (the discovery document).
	var envelope apiEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err == nil && envelope.Data != nil {
		return json.Unmarshal(envelope.Data, dest)
	}
	return json.Unmarshal(bodyBytes, dest)
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = string(body)
	}
	return apiErr
}
