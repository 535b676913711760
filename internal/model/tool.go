package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Tool is one invokable capability advertised by a backend, cached locally
// under a globally unique prefixed name. The full set for a backend is
// replaced atomically on every refresh; rows are never updated in place.
type Tool struct {
	ID           uuid.UUID       `json:"id"`
	BackendID    uuid.UUID       `json:"backend_id"`
	Name         string          `json:"name"`
	PrefixedName string          `json:"prefixed_name"`
	Description  string          `json:"description,omitempty"`
	InputSchema  json.RawMessage `json:"input_schema,omitempty"`
	RefreshedAt  time.Time       `json:"refreshed_at"`
}

// PrefixedToolName builds the aggregated-endpoint handle for a tool:
// "{effectivePrefix}__{name}". The mount dispatcher uses the same function
// to reconstruct the handle from a bare name, so the two surfaces can never
// disagree on the separator.
func PrefixedToolName(prefix, name string) string {
	return prefix + "__" + name
}
