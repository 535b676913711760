package testutil

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// UpstreamTool describes one tool served by a fake upstream. A nil Handler
// replies with a plain "ok" text result.
type UpstreamTool struct {
	Name        string
	Description string
	Handler     func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// Upstream is an in-process backend MCP server for tests. Srv may be mutated
// while running (AddTool, DeleteTools) to simulate upstream catalog changes
// between refreshes.
type Upstream struct {
	Srv *mcpserver.MCPServer
	URL string

	ts *httptest.Server
}

// Close stops the HTTP listener early, simulating a backend that died
// mid-session. Safe to call more than once.
func (u *Upstream) Close() {
	u.ts.Close()
}

// AddTool registers another tool on the running upstream.
func (u *Upstream) AddTool(tool UpstreamTool) {
	u.Srv.AddTool(mcp.NewTool(tool.Name, mcp.WithDescription(tool.Description)), toolHandler(tool))
}

// DeleteTools removes tools from the running upstream by bare name.
func (u *Upstream) DeleteTools(names ...string) {
	u.Srv.DeleteTools(names...)
}

// StartFakeUpstream starts an in-process MCP server speaking streamable HTTP
// and serving the given tools. The server is torn down with the test.
func StartFakeUpstream(t *testing.T, serverName string, tools ...UpstreamTool) *Upstream {
	t.Helper()

	srv := mcpserver.NewMCPServer(serverName, "0.0.0-test",
		mcpserver.WithToolCapabilities(true),
	)
	for _, ut := range tools {
		srv.AddTool(mcp.NewTool(ut.Name, mcp.WithDescription(ut.Description)), toolHandler(ut))
	}

	h := mcpserver.NewStreamableHTTPServer(srv, mcpserver.WithStateLess(true))
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return &Upstream{Srv: srv, URL: ts.URL, ts: ts}
}

func toolHandler(ut UpstreamTool) func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if ut.Handler != nil {
		return ut.Handler
	}
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("ok"), nil
	}
}
