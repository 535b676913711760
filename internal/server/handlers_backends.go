package server

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/kakehashi/internal/gateway"
	"github.com/ashita-ai/kakehashi/internal/model"
	"github.com/ashita-ai/kakehashi/internal/storage"
)

// HandleListBackends handles GET /admin/backends.
// With ?enabled=true only enabled backends are returned.
func (h *Handlers) HandleListBackends(w http.ResponseWriter, r *http.Request) {
	enabledOnly := r.URL.Query().Get("enabled") == "true"

	backends, err := h.db.ListBackends(r.Context(), enabledOnly)
	if err != nil {
		h.writeInternalError(w, r, "failed to list backends", err)
		return
	}

	statuses := make([]model.BackendStatus, len(backends))
	for i, b := range backends {
		statuses[i] = model.BackendStatus{Backend: b, Connected: h.registry.IsConnected(b.Name)}
	}
	writeJSON(w, r, http.StatusOK, statuses)
}

// HandleCreateBackend handles POST /admin/backends.
// When the new backend is enabled, a connection is attempted immediately;
// failure to connect is logged but never reverts the created row.
func (h *Handlers) HandleCreateBackend(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBackendRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	backend, err := h.db.CreateBackend(r.Context(), req.Backend())
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "backend name already exists")
			return
		}
		h.writeInternalError(w, r, "failed to create backend", err)
		return
	}

	if backend.Enabled {
		if _, err := h.registry.AddBackend(r.Context(), backend); err != nil {
			h.logger.Warn("backend created but connection failed",
				"backend", backend.Name, "error", err)
		}
	}

	writeJSON(w, r, http.StatusCreated, model.BackendStatus{
		Backend:   backend,
		Connected: h.registry.IsConnected(backend.Name),
	})
}

// HandleGetBackend handles GET /admin/backends/{name}.
func (h *Handlers) HandleGetBackend(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	backend, err := h.db.GetBackendByName(r.Context(), name)
	if err != nil {
		if isNotFoundError(err) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "backend not found: "+name)
			return
		}
		h.writeInternalError(w, r, "failed to get backend", err)
		return
	}

	writeJSON(w, r, http.StatusOK, model.BackendStatus{
		Backend:   backend,
		Connected: h.registry.IsConnected(backend.Name),
	})
}

// HandleUpdateBackend handles PUT /admin/backends/{name}. The name is
// immutable; absent fields keep their stored values. Disabling drops the
// live connection, and a changed url or prefix drops it too, because the
// cached catalog no longer describes what the connection would serve.
func (h *Handlers) HandleUpdateBackend(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	backend, err := h.db.GetBackendByName(r.Context(), name)
	if err != nil {
		if isNotFoundError(err) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "backend not found: "+name)
			return
		}
		h.writeInternalError(w, r, "failed to get backend", err)
		return
	}

	var req model.UpdateBackendRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	wasEnabled := backend.Enabled
	oldURL, oldPrefix := backend.URL, backend.Prefix
	req.Apply(&backend)

	updated, err := h.db.UpdateBackend(r.Context(), backend)
	if err != nil {
		if isNotFoundError(err) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "backend not found: "+name)
			return
		}
		h.writeInternalError(w, r, "failed to update backend", err)
		return
	}

	if !updated.Enabled {
		h.registry.RemoveBackend(updated.Name)
	} else {
		if updated.URL != oldURL || updated.Prefix != oldPrefix {
			h.registry.RemoveBackend(updated.Name)
		}
		if !wasEnabled {
			if _, err := h.registry.AddBackend(r.Context(), updated); err != nil {
				h.logger.Warn("backend enabled but connection failed",
					"backend", updated.Name, "error", err)
			}
		}
	}

	writeJSON(w, r, http.StatusOK, model.BackendStatus{
		Backend:   updated,
		Connected: h.registry.IsConnected(updated.Name),
	})
}

// HandleDeleteBackend handles DELETE /admin/backends/{name}.
// The live connection is dropped first; cached tools cascade with the row,
// while the call ledger keeps its history.
func (h *Handlers) HandleDeleteBackend(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	h.registry.RemoveBackend(name)

	if err := h.db.DeleteBackend(r.Context(), name); err != nil {
		if isNotFoundError(err) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "backend not found: "+name)
			return
		}
		h.writeInternalError(w, r, "failed to delete backend", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleRefreshBackend handles POST /admin/backends/{name}/refresh.
// A connected backend gets its catalog re-fetched in place. A known but
// disconnected backend gets a fresh connection attempt first; if the
// upstream cannot be reached the response is 503 and nothing changes.
func (h *Handlers) HandleRefreshBackend(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	tools, err := h.registry.RefreshBackend(r.Context(), name)
	if err != nil {
		var notFound *gateway.BackendNotFoundError
		if errors.As(err, &notFound) {
			backend, dbErr := h.db.GetBackendByName(r.Context(), name)
			if dbErr != nil {
				if isNotFoundError(dbErr) {
					writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "backend not found: "+name)
					return
				}
				h.writeInternalError(w, r, "failed to get backend", dbErr)
				return
			}
			tools, err = h.registry.AddBackend(r.Context(), backend)
		}
		if err != nil {
			var connErr *gateway.ConnectionError
			if errors.As(err, &connErr) {
				writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeUpstreamDown,
					"failed to connect to backend: "+name)
				return
			}
			h.writeInternalError(w, r, "failed to refresh backend", err)
			return
		}
	}

	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	writeJSON(w, r, http.StatusOK, model.RefreshResponse{
		BackendName: name,
		ToolsCount:  len(tools),
		Tools:       names,
	})
}

// HandleEnableBackend handles POST /admin/backends/{name}/enable.
// The row is flipped first; the connection attempt is best-effort and a
// failure still answers 200, mirroring create.
func (h *Handlers) HandleEnableBackend(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

// HandleDisableBackend handles POST /admin/backends/{name}/disable.
// The live connection is dropped before the row changes, so no invocation
// can race through a half-disabled backend.
func (h *Handlers) HandleDisableBackend(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

func (h *Handlers) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	name := r.PathValue("name")

	backend, err := h.db.GetBackendByName(r.Context(), name)
	if err != nil {
		if isNotFoundError(err) {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "backend not found: "+name)
			return
		}
		h.writeInternalError(w, r, "failed to get backend", err)
		return
	}

	if !enabled {
		h.registry.RemoveBackend(name)
	}

	backend.Enabled = enabled
	updated, err := h.db.UpdateBackend(r.Context(), backend)
	if err != nil {
		h.writeInternalError(w, r, "failed to update backend", err)
		return
	}

	if enabled {
		if _, err := h.registry.AddBackend(r.Context(), updated); err != nil {
			h.logger.Warn("backend enabled but connection failed",
				"backend", updated.Name, "error", err)
		}
	}

	writeJSON(w, r, http.StatusOK, model.BackendStatus{
		Backend:   updated,
		Connected: h.registry.IsConnected(updated.Name),
	})
}

// isNotFoundError checks if the error indicates a missing resource.
// Uses sentinel error matching instead of fragile string comparison.
func isNotFoundError(err error) bool {
	return errors.Is(err, storage.ErrNotFound) || errors.Is(err, pgx.ErrNoRows)
}
