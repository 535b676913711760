package server

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ashita-ai/kakehashi/internal/model"
)

// toolWithBackend decorates a catalog row with its backend's name, which the
// tools table stores only as a foreign key.
type toolWithBackend struct {
	model.Tool
	BackendName string `json:"backend_name"`
}

// HandleListTools handles GET /admin/tools. With ?backend= only that
// backend's tools are returned.
func (h *Handlers) HandleListTools(w http.ResponseWriter, r *http.Request) {
	backendName := r.URL.Query().Get("backend")

	var (
		tools []model.Tool
		err   error
	)
	if backendName != "" {
		tools, err = h.db.ListToolsByBackend(r.Context(), backendName)
	} else {
		tools, err = h.db.ListTools(r.Context())
	}
	if err != nil {
		h.writeInternalError(w, r, "failed to list tools", err)
		return
	}

	backends, err := h.db.ListBackends(r.Context(), false)
	if err != nil {
		h.writeInternalError(w, r, "failed to list backends", err)
		return
	}
	names := make(map[uuid.UUID]string, len(backends))
	for _, b := range backends {
		names[b.ID] = b.Name
	}

	out := make([]toolWithBackend, len(tools))
	for i, t := range tools {
		name, ok := names[t.BackendID]
		if !ok {
			name = "unknown"
		}
		out[i] = toolWithBackend{Tool: t, BackendName: name}
	}
	writeJSON(w, r, http.StatusOK, out)
}
