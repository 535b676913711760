package server

import (
	"net/http"
	"time"

	"github.com/ashita-ai/kakehashi/internal/metrics"
	"github.com/ashita-ai/kakehashi/internal/model"
)

// periodLabel echoes the period filter back in responses; an absent param
// means the whole ledger.
func periodLabel(r *http.Request) string {
	if v := r.URL.Query().Get("period"); v != "" {
		return v
	}
	return "all"
}

// HandleMetrics handles GET /admin/metrics: aggregate call statistics with
// latency percentiles. Filters: ?backend=, ?tool=, ?period=.
func (h *Handlers) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	f := model.CallFilter{
		Backend: r.URL.Query().Get("backend"),
		Tool:    r.URL.Query().Get("tool"),
	}
	since, err := queryPeriod(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	f.Since = since

	calls, _, err := h.db.ListCalls(r.Context(), f)
	if err != nil {
		h.writeInternalError(w, r, "failed to load calls", err)
		return
	}

	writeJSON(w, r, http.StatusOK, struct {
		Backend string `json:"backend,omitempty"`
		Tool    string `json:"tool,omitempty"`
		Period  string `json:"period"`
		model.CallStatsDetailed
	}{
		Backend:           f.Backend,
		Tool:              f.Tool,
		Period:            periodLabel(r),
		CallStatsDetailed: metrics.StatsWithPercentiles(calls),
	})
}

// HandleMetricsTools handles GET /admin/metrics/tools: the per-tool
// breakdown. Params: ?sort_by=, ?order=, ?limit=, ?period=. Unknown sort
// keys fall back to total_calls.
func (h *Handlers) HandleMetricsTools(w http.ResponseWriter, r *http.Request) {
	sortBy := r.URL.Query().Get("sort_by")
	if sortBy == "" {
		sortBy = metrics.SortTotalCalls
	}
	order := r.URL.Query().Get("order")
	if order == "" {
		order = "desc"
	}
	limit := queryInt(r, "limit", 0)
	if limit < 0 {
		limit = 0
	}

	since, err := queryPeriod(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	calls, _, err := h.db.ListCalls(r.Context(), model.CallFilter{Since: since})
	if err != nil {
		h.writeInternalError(w, r, "failed to load calls", err)
		return
	}

	writeJSON(w, r, http.StatusOK, struct {
		Period string            `json:"period"`
		SortBy string            `json:"sort_by"`
		Order  string            `json:"order"`
		Tools  []model.ToolStats `json:"tools"`
	}{
		Period: periodLabel(r),
		SortBy: sortBy,
		Order:  order,
		Tools:  metrics.ToolBreakdown(calls, sortBy, order, limit),
	})
}

// HandleMetricsTimeseries handles GET /admin/metrics/timeseries: call
// volume over time. Params: ?period=, ?granularity= (minute|hour|day,
// auto-picked from the window when absent), ?backend=.
func (h *Handlers) HandleMetricsTimeseries(w http.ResponseWriter, r *http.Request) {
	since, err := queryPeriod(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}

	var g metrics.Granularity
	if v := r.URL.Query().Get("granularity"); v != "" {
		g, err = metrics.ParseGranularity(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
			return
		}
	} else {
		g = metrics.AutoGranularity(since, time.Now().UTC())
	}

	calls, _, err := h.db.ListCalls(r.Context(), model.CallFilter{
		Backend: r.URL.Query().Get("backend"),
		Since:   since,
	})
	if err != nil {
		h.writeInternalError(w, r, "failed to load calls", err)
		return
	}

	writeJSON(w, r, http.StatusOK, struct {
		Period      string                  `json:"period"`
		Granularity string                  `json:"granularity"`
		Points      []model.TimeseriesPoint `json:"points"`
	}{
		Period:      periodLabel(r),
		Granularity: string(g),
		Points:      metrics.Timeseries(calls, g),
	})
}
