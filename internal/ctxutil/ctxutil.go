// Package ctxutil provides shared context key accessors.
//
// This package exists to break the circular dependency between server and
// mcp: the server's middleware stamps request metadata into the context,
// and the MCP dispatcher reads it back when attributing call records. Both
// packages import ctxutil instead of each other.
package ctxutil

import (
	"context"

	"github.com/ashita-ai/kakehashi/internal/model"
)

type contextKey string

const (
	keyRequestID contextKey = "request_id"
	keyCallMeta  contextKey = "call_meta"
)

// WithRequestID returns a new context carrying the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// RequestIDFromContext extracts the request id from the context.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(keyRequestID).(string); ok {
		return v
	}
	return ""
}

// WithCallMeta returns a new context carrying the caller metadata that call
// records are attributed with.
func WithCallMeta(ctx context.Context, meta model.RequestContext) context.Context {
	return context.WithValue(ctx, keyCallMeta, meta)
}

// CallMetaFromContext extracts the caller metadata from the context.
// Returns the zero value when no middleware populated it.
func CallMetaFromContext(ctx context.Context) model.RequestContext {
	if v, ok := ctx.Value(keyCallMeta).(model.RequestContext); ok {
		return v
	}
	return model.RequestContext{}
}
