// Package gateway maintains live MCP client connections to backend servers
// and routes tool invocations to them. The Registry is the concurrency
// boundary: it owns the connection map, serializes lifecycle operations per
// backend name, and appends one call record per invocation attempt.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/kakehashi/internal/model"
)

// clientInfo identifies the gateway to upstream servers during the MCP
// initialize handshake.
var clientInfo = mcplib.Implementation{Name: "kakehashi", Version: "1.0.0"}

// Connection wraps the MCP client for a single backend. It is not safe for
// unsynchronized concurrent use; the Registry holds a per-backend lock around
// every method call.
type Connection struct {
	backend model.Backend
	client  *mcpclient.Client
	logger  *slog.Logger
}

func newConnection(backend model.Backend, logger *slog.Logger) *Connection {
	return &Connection{
		backend: backend,
		logger:  logger.With("backend", backend.Name),
	}
}

// Backend returns the backend record this connection was built from.
func (c *Connection) Backend() model.Backend { return c.backend }

// Name returns the backend name.
func (c *Connection) Name() string { return c.backend.Name }

// IsConnected reports whether the connection has completed a handshake and
// has not been disconnected since.
func (c *Connection) IsConnected() bool { return c.client != nil }

// Connect establishes the streamable HTTP transport and verifies the backend
// is reachable with an initialize handshake followed by a ping. On any
// failure the connection is left disconnected.
//
// Only HTTP transports are supported; stdio backends are not implemented.
func (c *Connection) Connect(ctx context.Context) error {
	if c.backend.URL == "" {
		return &ConnectionError{Backend: c.backend.Name, Err: fmt.Errorf("no url configured")}
	}

	client, err := mcpclient.NewStreamableHttpClient(c.backend.URL)
	if err != nil {
		return &ConnectionError{Backend: c.backend.Name, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.backend.Timeout())
	defer cancel()

	if _, err := client.Initialize(ctx, mcplib.InitializeRequest{
		Params: mcplib.InitializeParams{ClientInfo: clientInfo},
	}); err != nil {
		_ = client.Close()
		return &ConnectionError{Backend: c.backend.Name, Err: err}
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return &ConnectionError{Backend: c.backend.Name, Err: err}
	}

	c.client = client
	c.logger.Debug("backend connected", "url", c.backend.URL)
	return nil
}

// Disconnect closes the transport. It is idempotent: disconnecting an
// already-disconnected connection is a no-op.
func (c *Connection) Disconnect() {
	if c.client == nil {
		return
	}
	if err := c.client.Close(); err != nil {
		c.logger.Debug("close backend client", "error", err)
	}
	c.client = nil
}

// ListTools fetches the backend's current tool catalog. Tool names are
// returned as the backend advertises them, without any prefix.
func (c *Connection) ListTools(ctx context.Context) ([]model.Tool, error) {
	if c.client == nil {
		return nil, &ConnectionError{Backend: c.backend.Name, Err: fmt.Errorf("not connected")}
	}

	ctx, cancel := context.WithTimeout(ctx, c.backend.Timeout())
	defer cancel()

	result, err := c.client.ListTools(ctx, mcplib.ListToolsRequest{})
	if err != nil {
		return nil, &ConnectionError{Backend: c.backend.Name, Err: err}
	}

	tools := make([]model.Tool, 0, len(result.Tools))
	for _, t := range result.Tools {
		schema, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("gateway: encode input schema for tool %s: %w", t.Name, err)
		}
		tools = append(tools, model.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	return tools, nil
}

// Invoke calls a tool on the backend under the backend's per-call timeout.
// The name is the bare upstream name, not the prefixed one. The raw result
// and error are returned unwrapped so the caller can record the outcome
// before deciding how to surface it.
func (c *Connection) Invoke(ctx context.Context, name string, args map[string]any) (*mcplib.CallToolResult, error) {
	if c.client == nil {
		return nil, &ConnectionError{Backend: c.backend.Name, Err: fmt.Errorf("not connected")}
	}

	ctx, cancel := context.WithTimeout(ctx, c.backend.Timeout())
	defer cancel()

	return c.client.CallTool(ctx, mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	})
}
