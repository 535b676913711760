package gateway_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kakehashi/internal/gateway"
	"github.com/ashita-ai/kakehashi/internal/model"
	"github.com/ashita-ai/kakehashi/internal/storage"
	"github.com/ashita-ai/kakehashi/internal/testutil"
)

// fakeStore is an in-memory gateway.Store. It keeps the same not-found
// semantics as the real storage layer so the registry's error mapping is
// exercised.
type fakeStore struct {
	mu       sync.Mutex
	backends map[uuid.UUID]model.Backend
	tools    map[string]model.Tool
	calls    []model.ToolCall

	appendErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		backends: make(map[uuid.UUID]model.Backend),
		tools:    make(map[string]model.Tool),
	}
}

func (s *fakeStore) putBackend(b model.Backend) model.Backend {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	s.backends[b.ID] = b
	return b
}

func (s *fakeStore) putTool(t model.Tool) model.Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	s.tools[t.PrefixedName] = t
	return t
}

func (s *fakeStore) deleteBackend(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.backends, id)
}

func (s *fakeStore) recordedCalls() []model.ToolCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ToolCall(nil), s.calls...)
}

func (s *fakeStore) ListBackends(_ context.Context, enabledOnly bool) ([]model.Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Backend
	for _, b := range s.backends {
		if enabledOnly && !b.Enabled {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeStore) GetBackendByName(_ context.Context, name string) (model.Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.backends {
		if b.Name == name {
			return b, nil
		}
	}
	return model.Backend{}, storage.ErrNotFound
}

func (s *fakeStore) GetBackendByID(_ context.Context, id uuid.UUID) (model.Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.backends[id]
	if !ok {
		return model.Backend{}, storage.ErrNotFound
	}
	return b, nil
}

func (s *fakeStore) ReplaceBackendTools(_ context.Context, backendID uuid.UUID, tools []model.Tool) ([]model.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, t := range s.tools {
		if t.BackendID == backendID {
			delete(s.tools, name)
		}
	}
	now := time.Now().UTC()
	stored := make([]model.Tool, len(tools))
	for i, t := range tools {
		t.ID = uuid.New()
		t.BackendID = backendID
		t.RefreshedAt = now
		s.tools[t.PrefixedName] = t
		stored[i] = t
	}
	return stored, nil
}

func (s *fakeStore) ListTools(_ context.Context) ([]model.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Tool
	for _, t := range s.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PrefixedName < out[j].PrefixedName })
	return out, nil
}

func (s *fakeStore) ListToolsByBackend(_ context.Context, backendName string) ([]model.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var backendID uuid.UUID
	for _, b := range s.backends {
		if b.Name == backendName {
			backendID = b.ID
		}
	}
	var out []model.Tool
	for _, t := range s.tools {
		if t.BackendID == backendID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeStore) GetToolByPrefixedName(_ context.Context, prefixedName string) (model.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tools[prefixedName]
	if !ok {
		return model.Tool{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *fakeStore) AppendCall(_ context.Context, call model.ToolCall) (model.ToolCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return model.ToolCall{}, s.appendErr
	}
	call.ID = uuid.New()
	call.CalledAt = time.Now().UTC()
	s.calls = append(s.calls, call)
	return call, nil
}

func testBackend(name, url string) model.Backend {
	return model.Backend{
		ID:             uuid.New(),
		Name:           name,
		URL:            url,
		Enabled:        true,
		TimeoutSeconds: 5,
		MountEnabled:   true,
	}
}

func newTestRegistry(t *testing.T, store gateway.Store) *gateway.Registry {
	t.Helper()
	reg := gateway.NewRegistry(store, testutil.TestLogger())
	t.Cleanup(reg.DisconnectAll)
	return reg
}

// ---- Lifecycle ----

func TestAddBackend_DiscoversTools(t *testing.T) {
	up := testutil.StartFakeUpstream(t, "calc",
		testutil.UpstreamTool{Name: "add", Description: "adds numbers"},
		testutil.UpstreamTool{Name: "sub"},
	)
	store := newFakeStore()
	reg := newTestRegistry(t, store)

	backend := store.putBackend(testBackend("calc", up.URL))
	tools, err := reg.AddBackend(context.Background(), backend)
	require.NoError(t, err)
	require.Len(t, tools, 2)

	names := make(map[string]string)
	for _, tool := range tools {
		names[tool.PrefixedName] = tool.Name
	}
	assert.Equal(t, "add", names["calc__add"])
	assert.Equal(t, "sub", names["calc__sub"])

	assert.True(t, reg.IsConnected("calc"))

	cached, err := reg.Tools(context.Background())
	require.NoError(t, err)
	assert.Len(t, cached, 2)
}

func TestAddBackend_ExplicitPrefix(t *testing.T) {
	up := testutil.StartFakeUpstream(t, "calc", testutil.UpstreamTool{Name: "add"})
	store := newFakeStore()
	reg := newTestRegistry(t, store)

	backend := testBackend("calc-prod", up.URL)
	backend.Prefix = "math"
	backend = store.putBackend(backend)

	tools, err := reg.AddBackend(context.Background(), backend)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "math__add", tools[0].PrefixedName)
	assert.Equal(t, "add", tools[0].Name)
}

func TestAddBackend_Unreachable(t *testing.T) {
	store := newFakeStore()
	reg := newTestRegistry(t, store)

	backend := store.putBackend(testBackend("ghost", "http://127.0.0.1:1/mcp"))
	_, err := reg.AddBackend(context.Background(), backend)

	var connErr *gateway.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "ghost", connErr.Backend)
	assert.False(t, reg.IsConnected("ghost"))

	cached, err := reg.Tools(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cached)
}

func TestAddBackend_NoURL(t *testing.T) {
	store := newFakeStore()
	reg := newTestRegistry(t, store)

	backend := store.putBackend(testBackend("blank", ""))
	_, err := reg.AddBackend(context.Background(), backend)

	var connErr *gateway.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.False(t, reg.IsConnected("blank"))
}

func TestAddBackend_ReplacesExistingConnection(t *testing.T) {
	up := testutil.StartFakeUpstream(t, "calc", testutil.UpstreamTool{Name: "add"})
	store := newFakeStore()
	reg := newTestRegistry(t, store)

	backend := store.putBackend(testBackend("calc", up.URL))
	_, err := reg.AddBackend(context.Background(), backend)
	require.NoError(t, err)

	// Registering again tears down the old connection and dials fresh.
	tools, err := reg.AddBackend(context.Background(), backend)
	require.NoError(t, err)
	assert.Len(t, tools, 1)
	assert.True(t, reg.IsConnected("calc"))

	_, err = reg.Invoke(context.Background(), "calc__add", nil, model.RequestContext{})
	require.NoError(t, err)
}

func TestRemoveBackend_Idempotent(t *testing.T) {
	up := testutil.StartFakeUpstream(t, "calc", testutil.UpstreamTool{Name: "add"})
	store := newFakeStore()
	reg := newTestRegistry(t, store)

	backend := store.putBackend(testBackend("calc", up.URL))
	_, err := reg.AddBackend(context.Background(), backend)
	require.NoError(t, err)

	reg.RemoveBackend("calc")
	assert.False(t, reg.IsConnected("calc"))
	reg.RemoveBackend("calc")
	reg.RemoveBackend("never-existed")

	// Removal drops the connection, not the cached catalog.
	cached, err := reg.Tools(context.Background())
	require.NoError(t, err)
	assert.Len(t, cached, 1)
}

func TestRefreshBackend_SupersedesCatalog(t *testing.T) {
	up := testutil.StartFakeUpstream(t, "calc", testutil.UpstreamTool{Name: "alpha"})
	store := newFakeStore()
	reg := newTestRegistry(t, store)

	backend := store.putBackend(testBackend("calc", up.URL))
	tools, err := reg.AddBackend(context.Background(), backend)
	require.NoError(t, err)
	require.Len(t, tools, 1)

	up.AddTool(testutil.UpstreamTool{Name: "beta"})
	tools, err = reg.RefreshBackend(context.Background(), "calc")
	require.NoError(t, err)
	assert.Len(t, tools, 2)

	up.DeleteTools("alpha")
	tools, err = reg.RefreshBackend(context.Background(), "calc")
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "calc__beta", tools[0].PrefixedName)

	// The dropped tool is gone from the aggregated catalog too.
	cached, err := reg.Tools(context.Background())
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "calc__beta", cached[0].PrefixedName)
}

func TestRefreshBackend_NotConnected(t *testing.T) {
	store := newFakeStore()
	reg := newTestRegistry(t, store)

	_, err := reg.RefreshBackend(context.Background(), "ghost")
	var nfErr *gateway.BackendNotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "ghost", nfErr.Name)
}

func TestRefreshBackend_DeletedFromStore(t *testing.T) {
	up := testutil.StartFakeUpstream(t, "calc", testutil.UpstreamTool{Name: "add"})
	store := newFakeStore()
	reg := newTestRegistry(t, store)

	backend := store.putBackend(testBackend("calc", up.URL))
	_, err := reg.AddBackend(context.Background(), backend)
	require.NoError(t, err)

	store.deleteBackend(backend.ID)
	_, err = reg.RefreshBackend(context.Background(), "calc")
	var nfErr *gateway.BackendNotFoundError
	require.ErrorAs(t, err, &nfErr)
}

func TestInitialize_SkipsDisabledAndUnreachable(t *testing.T) {
	upA := testutil.StartFakeUpstream(t, "a", testutil.UpstreamTool{Name: "t1"})
	upB := testutil.StartFakeUpstream(t, "b", testutil.UpstreamTool{Name: "t2"})
	store := newFakeStore()
	reg := newTestRegistry(t, store)

	store.putBackend(testBackend("alive", upA.URL))
	disabled := testBackend("disabled", upB.URL)
	disabled.Enabled = false
	store.putBackend(disabled)
	store.putBackend(testBackend("dead", "http://127.0.0.1:1/mcp"))

	err := reg.Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alive"}, reg.ConnectedBackends())
}

// ---- Invocation ----

func TestInvoke_Success(t *testing.T) {
	up := testutil.StartFakeUpstream(t, "calc", testutil.UpstreamTool{
		Name: "echo",
		Handler: func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText(req.GetString("msg", "none")), nil
		},
	})
	store := newFakeStore()
	reg := newTestRegistry(t, store)

	backend := store.putBackend(testBackend("calc", up.URL))
	_, err := reg.AddBackend(context.Background(), backend)
	require.NoError(t, err)

	rc := model.RequestContext{
		ClientIP:  "10.0.0.9",
		RequestID: "req-1",
		SessionID: "sess-1",
		Caller:    "cli",
	}
	result, err := reg.Invoke(context.Background(), "calc__echo", map[string]any{"msg": "hello"}, rc)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "hello", text.Text)

	calls := store.recordedCalls()
	require.Len(t, calls, 1)
	rec := calls[0]
	assert.True(t, rec.Success)
	assert.Nil(t, rec.ErrorMessage)
	assert.Equal(t, "calc", rec.BackendName)
	assert.Equal(t, "echo", rec.ToolName)
	require.NotNil(t, rec.ToolID)
	assert.Equal(t, map[string]any{"msg": "hello"}, rec.Arguments)
	assert.GreaterOrEqual(t, rec.LatencyMs, int64(0))
	assert.Equal(t, "10.0.0.9", rec.ClientIP)
	assert.Equal(t, "req-1", rec.RequestID)
	assert.Equal(t, "sess-1", rec.SessionID)
	assert.Equal(t, "cli", rec.Caller)
}

func TestInvoke_UpstreamToolErrorStillSucceeds(t *testing.T) {
	up := testutil.StartFakeUpstream(t, "calc", testutil.UpstreamTool{
		Name: "fail",
		Handler: func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultError("boom"), nil
		},
	})
	store := newFakeStore()
	reg := newTestRegistry(t, store)

	backend := store.putBackend(testBackend("calc", up.URL))
	_, err := reg.AddBackend(context.Background(), backend)
	require.NoError(t, err)

	result, err := reg.Invoke(context.Background(), "calc__fail", nil, model.RequestContext{})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)

	// The backend answered, so the ledger counts this as a successful call.
	calls := store.recordedCalls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Success)
}

func TestInvoke_TransportFailureRecordsError(t *testing.T) {
	up := testutil.StartFakeUpstream(t, "calc", testutil.UpstreamTool{Name: "add"})
	store := newFakeStore()
	reg := newTestRegistry(t, store)

	backend := store.putBackend(testBackend("calc", up.URL))
	_, err := reg.AddBackend(context.Background(), backend)
	require.NoError(t, err)

	up.Close()

	_, err = reg.Invoke(context.Background(), "calc__add", nil, model.RequestContext{})
	var callErr *gateway.ToolCallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, "calc", callErr.Backend)
	assert.Equal(t, "add", callErr.Tool)

	calls := store.recordedCalls()
	require.Len(t, calls, 1)
	assert.False(t, calls[0].Success)
	require.NotNil(t, calls[0].ErrorMessage)
	assert.NotEmpty(t, *calls[0].ErrorMessage)
}

func TestInvoke_UnknownToolNoRecord(t *testing.T) {
	store := newFakeStore()
	reg := newTestRegistry(t, store)

	_, err := reg.Invoke(context.Background(), "nope__missing", nil, model.RequestContext{})
	var nfErr *gateway.ToolNotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "nope__missing", nfErr.PrefixedName)
	assert.Empty(t, store.recordedCalls())
}

func TestInvoke_DisconnectedBackendNoRecord(t *testing.T) {
	store := newFakeStore()
	reg := newTestRegistry(t, store)

	// Catalog knows the tool but no connection was ever established.
	backend := store.putBackend(testBackend("calc", "http://127.0.0.1:1/mcp"))
	store.putTool(model.Tool{
		BackendID:    backend.ID,
		Name:         "add",
		PrefixedName: "calc__add",
	})

	_, err := reg.Invoke(context.Background(), "calc__add", nil, model.RequestContext{})
	var nfErr *gateway.BackendNotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "calc", nfErr.Name)
	assert.Empty(t, store.recordedCalls())
}

func TestInvoke_OrphanToolNoRecord(t *testing.T) {
	store := newFakeStore()
	reg := newTestRegistry(t, store)

	store.putTool(model.Tool{
		BackendID:    uuid.New(),
		Name:         "add",
		PrefixedName: "calc__add",
	})

	_, err := reg.Invoke(context.Background(), "calc__add", nil, model.RequestContext{})
	var nfErr *gateway.BackendNotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Empty(t, store.recordedCalls())
}

func TestInvoke_LedgerFailureSurfaces(t *testing.T) {
	up := testutil.StartFakeUpstream(t, "calc", testutil.UpstreamTool{Name: "add"})
	store := newFakeStore()
	reg := newTestRegistry(t, store)

	backend := store.putBackend(testBackend("calc", up.URL))
	_, err := reg.AddBackend(context.Background(), backend)
	require.NoError(t, err)

	ledgerDown := errors.New("ledger down")
	store.mu.Lock()
	store.appendErr = ledgerDown
	store.mu.Unlock()

	// Upstream call succeeded but the record could not be written.
	_, err = reg.Invoke(context.Background(), "calc__add", nil, model.RequestContext{})
	require.ErrorIs(t, err, ledgerDown)

	// When the call itself failed, that failure wins over the ledger one.
	up.Close()
	_, err = reg.Invoke(context.Background(), "calc__add", nil, model.RequestContext{})
	var callErr *gateway.ToolCallError
	require.ErrorAs(t, err, &callErr)
}

func TestInvoke_CallerCancellationStillRecords(t *testing.T) {
	up := testutil.StartFakeUpstream(t, "calc", testutil.UpstreamTool{
		Name: "slow",
		Handler: func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
			}
			return mcp.NewToolResultText("late"), nil
		},
	})
	store := newFakeStore()
	reg := newTestRegistry(t, store)

	backend := store.putBackend(testBackend("calc", up.URL))
	_, err := reg.AddBackend(context.Background(), backend)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = reg.Invoke(ctx, "calc__slow", nil, model.RequestContext{})
	require.Error(t, err)

	calls := store.recordedCalls()
	require.Len(t, calls, 1)
	assert.False(t, calls[0].Success)
}

func TestSetCallHook_ObservesAppendedRecords(t *testing.T) {
	up := testutil.StartFakeUpstream(t, "calc", testutil.UpstreamTool{Name: "add"})
	store := newFakeStore()
	reg := newTestRegistry(t, store)

	var mu sync.Mutex
	var seen []model.ToolCall
	reg.SetCallHook(func(call model.ToolCall) {
		mu.Lock()
		seen = append(seen, call)
		mu.Unlock()
	})

	backend := store.putBackend(testBackend("calc", up.URL))
	_, err := reg.AddBackend(context.Background(), backend)
	require.NoError(t, err)

	for range 2 {
		_, err := reg.Invoke(context.Background(), "calc__add", nil, model.RequestContext{})
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.NotEqual(t, uuid.Nil, seen[0].ID)
	assert.Equal(t, "calc", seen[0].BackendName)
}

// ---- Concurrency ----

func TestInvoke_ConcurrentWithRemoveAndReadd(t *testing.T) {
	up := testutil.StartFakeUpstream(t, "calc", testutil.UpstreamTool{
		Name: "add",
		Handler: func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			time.Sleep(2 * time.Millisecond)
			return mcp.NewToolResultText("ok"), nil
		},
	})
	store := newFakeStore()
	reg := newTestRegistry(t, store)

	backend := store.putBackend(testBackend("calc", up.URL))
	_, err := reg.AddBackend(context.Background(), backend)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 5 {
				_, err := reg.Invoke(context.Background(), "calc__add", nil, model.RequestContext{})
				if err != nil {
					// The only acceptable failure while the backend is
					// being cycled is a missing connection.
					var nfErr *gateway.BackendNotFoundError
					assert.ErrorAs(t, err, &nfErr)
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 3 {
			reg.RemoveBackend("calc")
			_, _ = reg.AddBackend(context.Background(), backend)
		}
	}()
	wg.Wait()

	assert.True(t, reg.IsConnected("calc"))
	for _, call := range store.recordedCalls() {
		assert.True(t, call.Success)
		assert.Equal(t, "calc", call.BackendName)
	}
}

// Status reads must never touch connection internals: admin handlers poll
// IsConnected while lifecycle operations tear connections down, and the race
// detector catches any unsynchronized overlap between the two.
func TestIsConnected_ConcurrentWithLifecycleChurn(t *testing.T) {
	up := testutil.StartFakeUpstream(t, "calc", testutil.UpstreamTool{Name: "add"})
	store := newFakeStore()
	reg := newTestRegistry(t, store)

	backend := store.putBackend(testBackend("calc", up.URL))

	done := make(chan struct{})
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					reg.IsConnected("calc")
					reg.ConnectedBackends()
				}
			}
		}()
	}

	for range 20 {
		_, err := reg.AddBackend(context.Background(), backend)
		require.NoError(t, err)
		assert.True(t, reg.IsConnected("calc"))
		reg.RemoveBackend("calc")
		assert.False(t, reg.IsConnected("calc"))
	}

	close(done)
	wg.Wait()
}

// ---- Catalog passthroughs ----

func TestToolsForBackend(t *testing.T) {
	upA := testutil.StartFakeUpstream(t, "a", testutil.UpstreamTool{Name: "t1"}, testutil.UpstreamTool{Name: "t2"})
	upB := testutil.StartFakeUpstream(t, "b", testutil.UpstreamTool{Name: "t3"})
	store := newFakeStore()
	reg := newTestRegistry(t, store)

	backendA := store.putBackend(testBackend("a", upA.URL))
	backendB := store.putBackend(testBackend("b", upB.URL))
	_, err := reg.AddBackend(context.Background(), backendA)
	require.NoError(t, err)
	_, err = reg.AddBackend(context.Background(), backendB)
	require.NoError(t, err)

	tools, err := reg.ToolsForBackend(context.Background(), "a")
	require.NoError(t, err)
	assert.Len(t, tools, 2)

	all, err := reg.Tools(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3)

	backends, err := reg.Backends(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, backends, 2)
}

func TestConnectedBackends_SortedAndDisconnectAll(t *testing.T) {
	upA := testutil.StartFakeUpstream(t, "zeta", testutil.UpstreamTool{Name: "t"})
	upB := testutil.StartFakeUpstream(t, "alpha", testutil.UpstreamTool{Name: "t"})
	store := newFakeStore()
	reg := newTestRegistry(t, store)

	_, err := reg.AddBackend(context.Background(), store.putBackend(testBackend("zeta", upA.URL)))
	require.NoError(t, err)
	_, err = reg.AddBackend(context.Background(), store.putBackend(testBackend("alpha", upB.URL)))
	require.NoError(t, err)

	assert.Equal(t, []string{"alpha", "zeta"}, reg.ConnectedBackends())

	reg.DisconnectAll()
	assert.Empty(t, reg.ConnectedBackends())
}
