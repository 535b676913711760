package model

import "time"

// CallStats are basic aggregate statistics over a set of call records.
// All fields are zero-valued when the set is empty; SuccessRate is defined
// as 0.0 for an empty set, never NaN.
type CallStats struct {
	TotalCalls   int     `json:"total_calls"`
	SuccessCount int     `json:"success_count"`
	ErrorCount   int     `json:"error_count"`
	SuccessRate  float64 `json:"success_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	MinLatencyMs int64   `json:"min_latency_ms"`
	MaxLatencyMs int64   `json:"max_latency_ms"`
}

// CallStatsDetailed extends CallStats with nearest-rank latency percentiles.
// Percentile fields are nil when there are no calls.
type CallStatsDetailed struct {
	CallStats
	P50LatencyMs *int64 `json:"p50_latency_ms"`
	P95LatencyMs *int64 `json:"p95_latency_ms"`
	P99LatencyMs *int64 `json:"p99_latency_ms"`
}

// ToolStats is the per-tool breakdown entry: CallStats grouped by
// (backend, tool) plus the most recent call time.
type ToolStats struct {
	BackendName  string    `json:"backend_name"`
	ToolName     string    `json:"tool_name"`
	TotalCalls   int       `json:"total_calls"`
	SuccessCount int       `json:"success_count"`
	ErrorCount   int       `json:"error_count"`
	SuccessRate  float64   `json:"success_rate"`
	AvgLatencyMs float64   `json:"avg_latency_ms"`
	P95LatencyMs *int64    `json:"p95_latency_ms"`
	LastCalledAt time.Time `json:"last_called_at"`
}

// TimeseriesPoint is one bucket in a call-volume time series.
type TimeseriesPoint struct {
	Timestamp    time.Time `json:"timestamp"`
	TotalCalls   int       `json:"total_calls"`
	SuccessCount int       `json:"success_count"`
	ErrorCount   int       `json:"error_count"`
	AvgLatencyMs float64   `json:"avg_latency_ms"`
}
