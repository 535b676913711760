package gateway

import "fmt"

// ConnectionError reports a failure to establish or use the transport to a
// backend MCP server. Callers should treat it as retriable: the backend may
// come back, and reconnecting is a refresh away.
type ConnectionError struct {
	Backend string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("gateway: backend %s: connection failed: %v", e.Backend, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// BackendNotFoundError reports that a backend was not found where the
// operation needed it, either in the connection registry or in storage.
type BackendNotFoundError struct {
	Name string
}

func (e *BackendNotFoundError) Error() string {
	return fmt.Sprintf("gateway: backend %s: not found", e.Name)
}

// ToolNotFoundError reports that no tool with the given prefixed name exists
// in the aggregated catalog.
type ToolNotFoundError struct {
	PrefixedName string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("gateway: tool %s: not found", e.PrefixedName)
}

// ToolCallError reports that an invocation reached the backend but the
// upstream call itself failed. The failed attempt is already recorded in the
// call ledger by the time this error is returned.
type ToolCallError struct {
	Backend string
	Tool    string
	Err     error
}

func (e *ToolCallError) Error() string {
	return fmt.Sprintf("gateway: call %s on %s: %v", e.Tool, e.Backend, e.Err)
}

func (e *ToolCallError) Unwrap() error { return e.Err }
