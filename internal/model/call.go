package model

import (
	"time"

	"github.com/google/uuid"
)

// ToolCall is an immutable ledger entry for one tool-invocation attempt.
// Exactly one row is appended per invocation that reaches a live connection,
// whether the upstream call succeeded or not. Rows are never mutated.
type ToolCall struct {
	ID           uuid.UUID      `json:"id"`
	ToolID       *uuid.UUID     `json:"tool_id,omitempty"`
	BackendName  string         `json:"backend_name"`
	ToolName     string         `json:"tool_name"`
	Arguments    map[string]any `json:"arguments,omitempty"`
	Success      bool           `json:"success"`
	ErrorMessage *string        `json:"error_message,omitempty"`
	LatencyMs    int64          `json:"latency_ms"`
	CalledAt     time.Time      `json:"called_at"`

	// Request attribution, populated from the inbound HTTP request when known.
	ClientIP  string `json:"client_ip,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Caller    string `json:"caller,omitempty"`
}

// RequestContext carries caller metadata for metrics attribution. It is
// ephemeral: it exists only for the duration of the invocation it annotates.
type RequestContext struct {
	ClientIP  string
	RequestID string
	SessionID string
	Caller    string
}

// CallFilter selects a subset of the call ledger.
// A zero Limit means no pagination (the metrics read path wants every
// matching row); list endpoints apply their own default.
type CallFilter struct {
	Backend string
	Tool    string
	Success *bool
	Since   *time.Time
	Limit   int
	Offset  int
}
