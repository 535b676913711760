// Package mcp implements the gateway's MCP protocol surface.
//
// The Dispatcher decodes the JSON-RPC-shaped envelope POSTed to /mcp and
// /mcp/{prefix}, resolves the method against a closed set, and hands tool
// traffic to the Router. The aggregated endpoint advertises prefixed tool
// names; a mount advertises one backend's tools under their bare names and
// re-prefixes call requests before routing, so both surfaces share a single
// routing path.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/kakehashi/internal/ctxutil"
	"github.com/ashita-ai/kakehashi/internal/model"
)

// defaultInputSchema is advertised for catalog entries that carry no schema.
var defaultInputSchema = json.RawMessage(`{"type":"object"}`)

// Router is the routing surface the dispatcher drives. *gateway.Registry
// implements it.
type Router interface {
	Tools(ctx context.Context) ([]model.Tool, error)
	ToolsForBackend(ctx context.Context, backendName string) ([]model.Tool, error)
	Backends(ctx context.Context, enabledOnly bool) ([]model.Backend, error)
	Invoke(ctx context.Context, prefixedName string, args map[string]any, rc model.RequestContext) (*mcplib.CallToolResult, error)
}

// Dispatcher converts wire requests into Router operations and Router
// results and errors back into wire envelopes. It is the single place where
// failures from below become protocol errors; nothing escapes it uncaught.
type Dispatcher struct {
	router  Router
	name    string
	version string
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher advertising the given server name and
// version in initialize replies.
func NewDispatcher(router Router, name, version string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		router:  router,
		name:    name,
		version: version,
		logger:  logger,
	}
}

// HandleAggregated serves POST /mcp: every tool from every backend, keyed
// by prefixed name.
func (d *Dispatcher) HandleAggregated(w http.ResponseWriter, r *http.Request) {
	d.handle(w, r, "")
}

// HandleMount serves POST /mcp/{prefix}: one backend's tools under their
// bare names.
func (d *Dispatcher) HandleMount(w http.ResponseWriter, r *http.Request) {
	d.handle(w, r, r.PathValue("prefix"))
}

func (d *Dispatcher) handle(w http.ResponseWriter, r *http.Request, prefix string) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		d.writeError(w, http.StatusBadRequest, nil, CodeParseError, "Parse error")
		return
	}

	// Session bookkeeping notifications get no reply body. Everything else
	// goes through method dispatch, id or not, so an id-less tools/call is
	// executed rather than swallowed and an unknown method is always
	// answered with method-not-found.
	if req.Notification() {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	method, ok := ParseMethod(req.Method)
	if !ok {
		d.writeError(w, http.StatusBadRequest, req.ID, CodeMethodNotFound, "Method not found: "+req.Method)
		return
	}

	result, err := d.dispatch(r, method, prefix, req.Params)
	if err != nil {
		d.logger.Error("mcp request failed",
			"method", req.Method, "prefix", prefix, "error", err)
		d.writeError(w, http.StatusInternalServerError, req.ID, CodeInternal, err.Error())
		return
	}
	d.write(w, http.StatusOK, Response{JSONRPC: "2.0", Result: result, ID: req.ID})
}

func (d *Dispatcher) dispatch(r *http.Request, method Method, prefix string, params json.RawMessage) (any, error) {
	ctx := r.Context()

	switch method {
	case MethodInitialize:
		return InitializeResult{
			ProtocolVersion: mcplib.LATEST_PROTOCOL_VERSION,
			Capabilities:    Capabilities{Tools: ToolCapabilities{ListChanged: true}},
			ServerInfo:      ServerInfo{Name: d.name, Version: d.version},
		}, nil

	case MethodPing:
		return struct{}{}, nil

	case MethodListTools:
		if prefix != "" {
			return d.listMountTools(ctx, prefix)
		}
		return d.listAggregatedTools(ctx)

	case MethodCallTool:
		var p CallParams
		if len(params) > 0 {
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, fmt.Errorf("invalid tools/call params: %w", err)
			}
		}
		name := p.Name
		if prefix != "" {
			name = model.PrefixedToolName(prefix, p.Name)
		}
		return d.router.Invoke(ctx, name, p.Arguments, ctxutil.CallMetaFromContext(ctx))
	}

	return nil, fmt.Errorf("unhandled method %s", method)
}

func (d *Dispatcher) listAggregatedTools(ctx context.Context) (ListToolsResult, error) {
	tools, err := d.router.Tools(ctx)
	if err != nil {
		return ListToolsResult{}, err
	}

	entries := make([]ToolEntry, 0, len(tools))
	for _, t := range tools {
		entries = append(entries, toolEntry(t.PrefixedName, t))
	}
	return ListToolsResult{Tools: entries}, nil
}

// listMountTools resolves the mount's backend by effective prefix among
// enabled, mount-enabled backends. An unknown or unmounted prefix yields an
// empty tool list, not an error.
func (d *Dispatcher) listMountTools(ctx context.Context, prefix string) (ListToolsResult, error) {
	backends, err := d.router.Backends(ctx, true)
	if err != nil {
		return ListToolsResult{}, err
	}

	var backend *model.Backend
	for i := range backends {
		if backends[i].MountEnabled && backends[i].EffectivePrefix() == prefix {
			backend = &backends[i]
			break
		}
	}
	if backend == nil {
		return ListToolsResult{Tools: []ToolEntry{}}, nil
	}

	tools, err := d.router.ToolsForBackend(ctx, backend.Name)
	if err != nil {
		return ListToolsResult{}, err
	}

	entries := make([]ToolEntry, 0, len(tools))
	for _, t := range tools {
		entries = append(entries, toolEntry(t.Name, t))
	}
	return ListToolsResult{Tools: entries}, nil
}

func toolEntry(name string, t model.Tool) ToolEntry {
	schema := t.InputSchema
	if len(schema) == 0 {
		schema = defaultInputSchema
	}
	return ToolEntry{
		Name:        name,
		Description: t.Description,
		InputSchema: schema,
	}
}

func (d *Dispatcher) write(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		d.logger.Error("encode mcp response", "error", err)
	}
}

func (d *Dispatcher) writeError(w http.ResponseWriter, status int, id json.RawMessage, code int, message string) {
	d.write(w, status, Response{
		JSONRPC: "2.0",
		Error:   &ErrorObject{Code: code, Message: message},
		ID:      id,
	})
}
