package mcp

import (
	"encoding/json"
	"strings"
)

// Protocol error codes carried in the wire error envelope.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInternal       = -32603
)

// Method is the closed set of protocol methods the dispatcher serves.
// Wire strings are resolved once at decode time; anything else is a
// method-not-found.
type Method string

const (
	MethodInitialize Method = "initialize"
	MethodPing       Method = "ping"
	MethodListTools  Method = "tools/list"
	MethodCallTool   Method = "tools/call"
)

// ParseMethod resolves a wire method string to a Method.
func ParseMethod(s string) (Method, bool) {
	switch m := Method(s); m {
	case MethodInitialize, MethodPing, MethodListTools, MethodCallTool:
		return m, true
	}
	return "", false
}

// Request is the JSON-RPC-shaped envelope accepted on the MCP endpoints.
// The id is kept raw so responses echo it byte for byte.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Notification reports whether the request is a session bookkeeping
// notification. Only the notifications/* family qualifies: an absent id on
// any other method does not make it a notification — the request is still
// executed and answered with a null id.
func (r Request) Notification() bool { return strings.HasPrefix(r.Method, "notifications/") }

// Response is the wire envelope for one reply. A nil ID marshals as null,
// which is what parse-error replies carry.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// ErrorObject is the wire error payload.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// CallParams are the parameters of a tools/call request.
type CallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// InitializeResult is the handshake reply.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

// Capabilities advertises what the gateway serves. Only tools.
type Capabilities struct {
	Tools ToolCapabilities `json:"tools"`
}

// ToolCapabilities mirrors the protocol's tools capability object.
type ToolCapabilities struct {
	ListChanged bool `json:"listChanged"`
}

// ServerInfo identifies the gateway in the handshake reply.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolEntry is one advertised tool in a tools/list reply.
type ToolEntry struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ListToolsResult is the tools/list reply.
type ListToolsResult struct {
	Tools []ToolEntry `json:"tools"`
}
