package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/kakehashi/internal/model"
	"github.com/ashita-ai/kakehashi/internal/storage"
)

// connectParallelism bounds how many backends Initialize dials at once.
const connectParallelism = 8

// Store is the persistence surface the registry needs: backend records, the
// cached tool catalog, and the append-only call ledger. *storage.DB satisfies
// it; tests substitute an in-memory fake.
type Store interface {
	ListBackends(ctx context.Context, enabledOnly bool) ([]model.Backend, error)
	GetBackendByName(ctx context.Context, name string) (model.Backend, error)
	GetBackendByID(ctx context.Context, id uuid.UUID) (model.Backend, error)
	ReplaceBackendTools(ctx context.Context, backendID uuid.UUID, tools []model.Tool) ([]model.Tool, error)
	ListTools(ctx context.Context) ([]model.Tool, error)
	ListToolsByBackend(ctx context.Context, backendName string) ([]model.Tool, error)
	GetToolByPrefixedName(ctx context.Context, prefixedName string) (model.Tool, error)
	AppendCall(ctx context.Context, call model.ToolCall) (model.ToolCall, error)
}

// CallHook observes every call record after it is appended to the ledger.
// The registry invokes it synchronously; hooks must not block.
type CallHook func(call model.ToolCall)

// Registry owns the live connections to backend MCP servers and routes tool
// invocations to them by prefixed name.
//
// Locking discipline: mu guards the two maps and is never held across I/O.
// Each backend name additionally has its own mutex, held for the full
// duration of connect, disconnect, refresh, and the check-then-invoke
// sequence, so lifecycle operations on one backend serialize with calls to
// it without stalling traffic to other backends.
type Registry struct {
	store  Store
	logger *slog.Logger
	hook   CallHook

	mu    sync.RWMutex
	conns map[string]*Connection
	locks map[string]*sync.Mutex
}

// NewRegistry creates a registry with no live connections. Call Initialize
// to connect to the enabled backends.
func NewRegistry(store Store, logger *slog.Logger) *Registry {
	return &Registry{
		store:  store,
		logger: logger,
		conns:  make(map[string]*Connection),
		locks:  make(map[string]*sync.Mutex),
	}
}

// SetCallHook registers the observer for appended call records. It must be
// set before the registry starts serving traffic.
func (r *Registry) SetCallHook(h CallHook) { r.hook = h }

// lockFor returns the mutex that serializes operations on one backend name,
// creating it on first use. Locks are never removed: a stale entry for a
// deleted backend costs a few bytes and avoids lock/map races.
func (r *Registry) lockFor(name string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[name]
	if !ok {
		l = &sync.Mutex{}
		r.locks[name] = l
	}
	return l
}

func (r *Registry) connection(name string) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[name]
}

func (r *Registry) setConnection(name string, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[name] = conn
}

func (r *Registry) removeConnection(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, name)
}

// Initialize connects to every enabled backend. Individual connection
// failures are logged and skipped so one unreachable backend never blocks
// startup; the catalog for a failed backend stays as it was last cached.
func (r *Registry) Initialize(ctx context.Context) error {
	backends, err := r.store.ListBackends(ctx, true)
	if err != nil {
		return fmt.Errorf("gateway: list backends: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(connectParallelism)
	for _, backend := range backends {
		g.Go(func() error {
			l := r.lockFor(backend.Name)
			l.Lock()
			defer l.Unlock()

			conn := newConnection(backend, r.logger)
			if err := conn.Connect(gctx); err != nil {
				r.logger.Warn("backend unreachable at startup", "backend", backend.Name, "error", err)
				return nil
			}
			r.setConnection(backend.Name, conn)
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Info("gateway initialized",
		"backends", len(backends), "connected", len(r.ConnectedBackends()))
	return nil
}

// AddBackend connects to a backend and caches its tool catalog, returning
// the stored tools with their prefixed names. The connection is registered
// as soon as the handshake succeeds: if the subsequent catalog fetch or
// store fails, the backend stays connected and a later refresh can complete
// the catalog.
func (r *Registry) AddBackend(ctx context.Context, backend model.Backend) ([]model.Tool, error) {
	l := r.lockFor(backend.Name)
	l.Lock()
	defer l.Unlock()

	if old := r.connection(backend.Name); old != nil {
		old.Disconnect()
		r.removeConnection(backend.Name)
	}

	conn := newConnection(backend, r.logger)
	if err := conn.Connect(ctx); err != nil {
		return nil, err
	}
	r.setConnection(backend.Name, conn)

	tools, err := conn.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	stored, err := r.store.ReplaceBackendTools(ctx, backend.ID, prefixTools(backend, tools))
	if err != nil {
		return nil, fmt.Errorf("gateway: store tools for %s: %w", backend.Name, err)
	}

	r.logger.Info("backend added", "backend", backend.Name, "tools", len(stored))
	return stored, nil
}

// RemoveBackend disconnects a backend and drops it from the registry. It is
// idempotent: removing an unknown or already-removed backend is a no-op.
// The cached catalog and call history are left to the caller.
func (r *Registry) RemoveBackend(name string) {
	l := r.lockFor(name)
	l.Lock()
	defer l.Unlock()

	if conn := r.connection(name); conn != nil {
		conn.Disconnect()
		r.removeConnection(name)
		r.logger.Info("backend removed", "backend", name)
	}
}

// RefreshBackend re-fetches a connected backend's tool catalog and replaces
// the cached tools wholesale. Tools that disappeared upstream are gone from
// the catalog once the refresh returns.
func (r *Registry) RefreshBackend(ctx context.Context, name string) ([]model.Tool, error) {
	l := r.lockFor(name)
	l.Lock()
	defer l.Unlock()

	conn := r.connection(name)
	if conn == nil || !conn.IsConnected() {
		return nil, &BackendNotFoundError{Name: name}
	}

	tools, err := conn.ListTools(ctx)
	if err != nil {
		return nil, err
	}

	backend, err := r.store.GetBackendByName(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &BackendNotFoundError{Name: name}
		}
		return nil, fmt.Errorf("gateway: refresh %s: %w", name, err)
	}

	stored, err := r.store.ReplaceBackendTools(ctx, backend.ID, prefixTools(backend, tools))
	if err != nil {
		return nil, fmt.Errorf("gateway: store tools for %s: %w", name, err)
	}

	r.logger.Info("backend refreshed", "backend", name, "tools", len(stored))
	return stored, nil
}

// prefixTools assigns each discovered tool its aggregated-endpoint name
// under the backend's effective prefix.
func prefixTools(backend model.Backend, tools []model.Tool) []model.Tool {
	prefix := backend.EffectivePrefix()
	for i := range tools {
		tools[i].PrefixedName = model.PrefixedToolName(prefix, tools[i].Name)
	}
	return tools
}

// Invoke routes a call by prefixed tool name: resolve the tool, resolve its
// backend, check the connection, and call upstream. Exactly one record is
// appended to the call ledger per attempt that reaches a live connection;
// resolution failures produce no record. A result whose payload marks an
// upstream tool error still counts as a successful call here, since the
// backend answered.
func (r *Registry) Invoke(ctx context.Context, prefixedName string, args map[string]any, rc model.RequestContext) (*mcplib.CallToolResult, error) {
	start := time.Now()

	tool, err := r.store.GetToolByPrefixedName(ctx, prefixedName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &ToolNotFoundError{PrefixedName: prefixedName}
		}
		return nil, fmt.Errorf("gateway: resolve tool %s: %w", prefixedName, err)
	}

	backend, err := r.store.GetBackendByID(ctx, tool.BackendID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &BackendNotFoundError{Name: tool.BackendID.String()}
		}
		return nil, fmt.Errorf("gateway: resolve backend for %s: %w", prefixedName, err)
	}

	l := r.lockFor(backend.Name)
	l.Lock()
	conn := r.connection(backend.Name)
	if conn == nil || !conn.IsConnected() {
		l.Unlock()
		return nil, &BackendNotFoundError{Name: backend.Name}
	}

	result, callErr := conn.Invoke(ctx, tool.Name, args)
	latencyMs := time.Since(start).Milliseconds()
	l.Unlock()

	record := model.ToolCall{
		ToolID:      &tool.ID,
		BackendName: backend.Name,
		ToolName:    tool.Name,
		Arguments:   args,
		Success:     callErr == nil,
		LatencyMs:   latencyMs,
		ClientIP:    rc.ClientIP,
		RequestID:   rc.RequestID,
		SessionID:   rc.SessionID,
		Caller:      rc.Caller,
	}
	if callErr != nil {
		msg := callErr.Error()
		record.ErrorMessage = &msg
	}

	// The record must land even when the caller gave up mid-call.
	recorded, appendErr := r.store.AppendCall(context.WithoutCancel(ctx), record)
	if appendErr != nil {
		r.logger.Error("append call record",
			"backend", backend.Name, "tool", tool.Name, "error", appendErr)
	} else if r.hook != nil {
		r.hook(recorded)
	}

	if callErr != nil {
		return nil, &ToolCallError{Backend: backend.Name, Tool: tool.Name, Err: callErr}
	}
	if appendErr != nil {
		return nil, fmt.Errorf("gateway: record call: %w", appendErr)
	}
	return result, nil
}

// IsConnected reports whether a live connection exists for the backend name.
// Map presence is the liveness signal: a connection is registered only after
// its handshake succeeds and is dropped from the map when it is torn down.
// Connection state must not be read here — that would race with Disconnect,
// which runs under the per-backend lock this method deliberately avoids so
// status checks never stall behind an in-flight dial.
func (r *Registry) IsConnected(name string) bool {
	return r.connection(name) != nil
}

// ConnectedBackends returns the names of all live connections, sorted.
func (r *Registry) ConnectedBackends() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.conns))
	for name := range r.conns {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// DisconnectAll tears down every live connection. Used at shutdown.
func (r *Registry) DisconnectAll() {
	for _, name := range r.ConnectedBackends() {
		r.RemoveBackend(name)
	}
}

// Tools returns the full aggregated catalog, sorted by prefixed name.
func (r *Registry) Tools(ctx context.Context) ([]model.Tool, error) {
	return r.store.ListTools(ctx)
}

// ToolsForBackend returns the cached catalog of one backend by name, with
// bare tool names preserved alongside the prefixed ones.
func (r *Registry) ToolsForBackend(ctx context.Context, backendName string) ([]model.Tool, error) {
	return r.store.ListToolsByBackend(ctx, backendName)
}

// Backends lists backend records from storage, optionally only enabled ones.
func (r *Registry) Backends(ctx context.Context, enabledOnly bool) ([]model.Backend, error) {
	return r.store.ListBackends(ctx, enabledOnly)
}
