package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ashita-ai/kakehashi/internal/model"
)

// HandleListCalls handles GET /admin/calls: a page of the call ledger,
// newest first. Filters: ?backend=, ?tool=, ?success=, ?period=.
func (h *Handlers) HandleListCalls(w http.ResponseWriter, r *http.Request) {
	f := model.CallFilter{
		Backend: r.URL.Query().Get("backend"),
		Tool:    r.URL.Query().Get("tool"),
	}

	if v := r.URL.Query().Get("success"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "success must be true or false")
			return
		}
		f.Success = &b
	}

	since, err := queryPeriod(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	f.Since = since
	f.Limit = queryLimit(r, 50)
	f.Offset = queryOffset(r)

	calls, total, err := h.db.ListCalls(r.Context(), f)
	if err != nil {
		h.writeInternalError(w, r, "failed to list calls", err)
		return
	}

	writeList(w, r, calls, total, f.Limit, f.Offset, len(calls))
}

// HandleCallsStream handles GET /admin/calls/stream (SSE). Every call record
// appended to the ledger is pushed to the client as an SSE "call" event.
func (h *Handlers) HandleCallsStream(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeInternalError,
			"call feed not available")
		return
	}

	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Warn("sse: streaming unsupported", "error", err)
		return
	}

	// Disable the server's WriteTimeout for this long-lived connection.
	// Without this, idle SSE connections are killed after WriteTimeout.
	_ = rc.SetWriteDeadline(time.Time{})

	ch := h.broker.Subscribe()
	defer h.broker.Unsubscribe(ch)

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if _, err := w.Write([]byte(":keepalive\n\n")); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		case event, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(event); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
