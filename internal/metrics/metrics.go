// Package metrics computes read-only statistics over the tool call ledger.
//
// Every function here is a pure reduction over a caller-supplied record set;
// filtering (backend, tool, success, time window) happens in storage before
// the records arrive. Percentiles use the nearest-rank method so results are
// exactly reproducible.
package metrics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ashita-ai/kakehashi/internal/model"
)

// Sort keys accepted by ToolBreakdown.
const (
	SortTotalCalls = "total_calls"
	SortErrorCount = "error_count"
	SortAvgLatency = "avg_latency_ms"
	SortP95Latency = "p95_latency_ms"
	SortLastCalled = "last_called_at"
)

// Granularity selects the bucket width for time-series aggregation.
type Granularity string

const (
	GranularityMinute Granularity = "minute"
	GranularityHour   Granularity = "hour"
	GranularityDay    Granularity = "day"
)

// Stats computes basic aggregate statistics over a set of call records.
// An empty set yields all-zero stats with SuccessRate 0.0.
func Stats(calls []model.ToolCall) model.CallStats {
	s := model.CallStats{TotalCalls: len(calls)}
	if s.TotalCalls == 0 {
		return s
	}

	var sum int64
	s.MinLatencyMs = calls[0].LatencyMs
	s.MaxLatencyMs = calls[0].LatencyMs
	for _, c := range calls {
		if c.Success {
			s.SuccessCount++
		} else {
			s.ErrorCount++
		}
		sum += c.LatencyMs
		if c.LatencyMs < s.MinLatencyMs {
			s.MinLatencyMs = c.LatencyMs
		}
		if c.LatencyMs > s.MaxLatencyMs {
			s.MaxLatencyMs = c.LatencyMs
		}
	}
	s.SuccessRate = float64(s.SuccessCount) / float64(s.TotalCalls)
	s.AvgLatencyMs = float64(sum) / float64(s.TotalCalls)
	return s
}

// Percentile returns the p-th percentile of an ascending-sorted latency list
// using the nearest-rank method: the element at index floor(N*p/100), clamped
// to N-1. Returns nil when the list is empty.
func Percentile(sorted []int64, p int) *int64 {
	n := len(sorted)
	if n == 0 {
		return nil
	}
	idx := n * p / 100
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	v := sorted[idx]
	return &v
}

// StatsWithPercentiles extends Stats with p50/p95/p99 latencies.
func StatsWithPercentiles(calls []model.ToolCall) model.CallStatsDetailed {
	d := model.CallStatsDetailed{CallStats: Stats(calls)}
	lat := sortedLatencies(calls)
	d.P50LatencyMs = Percentile(lat, 50)
	d.P95LatencyMs = Percentile(lat, 95)
	d.P99LatencyMs = Percentile(lat, 99)
	return d
}

func sortedLatencies(calls []model.ToolCall) []int64 {
	lat := make([]int64, len(calls))
	for i, c := range calls {
		lat[i] = c.LatencyMs
	}
	sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })
	return lat
}

// ToolBreakdown groups records by (backend, tool) and computes per-group
// stats plus the most recent call time. sortBy accepts the Sort* keys
// (unknown values fall back to total_calls); order is "asc" or "desc"
// (default desc). A positive limit truncates the result.
func ToolBreakdown(calls []model.ToolCall, sortBy, order string, limit int) []model.ToolStats {
	type key struct{ backend, tool string }
	groups := make(map[key][]model.ToolCall)
	for _, c := range calls {
		k := key{c.BackendName, c.ToolName}
		groups[k] = append(groups[k], c)
	}

	stats := make([]model.ToolStats, 0, len(groups))
	for k, group := range groups {
		s := Stats(group)
		last := group[0].CalledAt
		for _, c := range group[1:] {
			if c.CalledAt.After(last) {
				last = c.CalledAt
			}
		}
		stats = append(stats, model.ToolStats{
			BackendName:  k.backend,
			ToolName:     k.tool,
			TotalCalls:   s.TotalCalls,
			SuccessCount: s.SuccessCount,
			ErrorCount:   s.ErrorCount,
			SuccessRate:  s.SuccessRate,
			AvgLatencyMs: s.AvgLatencyMs,
			P95LatencyMs: Percentile(sortedLatencies(group), 95),
			LastCalledAt: last,
		})
	}

	sortToolStats(stats, sortBy, order)
	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats
}

func sortToolStats(stats []model.ToolStats, sortBy, order string) {
	asc := strings.EqualFold(order, "asc")

	less := func(i, j int) bool {
		a, b := stats[i], stats[j]
		switch sortBy {
		case SortErrorCount:
			if a.ErrorCount != b.ErrorCount {
				return a.ErrorCount < b.ErrorCount
			}
		case SortAvgLatency:
			if a.AvgLatencyMs != b.AvgLatencyMs {
				return a.AvgLatencyMs < b.AvgLatencyMs
			}
		case SortP95Latency:
			av, bv := int64(0), int64(0)
			if a.P95LatencyMs != nil {
				av = *a.P95LatencyMs
			}
			if b.P95LatencyMs != nil {
				bv = *b.P95LatencyMs
			}
			if av != bv {
				return av < bv
			}
		case SortLastCalled:
			if !a.LastCalledAt.Equal(b.LastCalledAt) {
				return a.LastCalledAt.Before(b.LastCalledAt)
			}
		default: // SortTotalCalls
			if a.TotalCalls != b.TotalCalls {
				return a.TotalCalls < b.TotalCalls
			}
		}
		// Stable tie-break so output ordering is deterministic.
		if a.BackendName != b.BackendName {
			return a.BackendName < b.BackendName
		}
		return a.ToolName < b.ToolName
	}

	sort.Slice(stats, func(i, j int) bool {
		if asc {
			return less(i, j)
		}
		return less(j, i)
	})
}

// Timeseries buckets records by calledAt truncated to the granularity and
// emits one point per non-empty bucket, ascending by timestamp.
func Timeseries(calls []model.ToolCall, g Granularity) []model.TimeseriesPoint {
	type bucket struct {
		total   int
		success int
		errs    int
		sum     int64
	}
	buckets := make(map[time.Time]*bucket)
	for _, c := range calls {
		ts := truncate(c.CalledAt, g)
		b := buckets[ts]
		if b == nil {
			b = &bucket{}
			buckets[ts] = b
		}
		b.total++
		if c.Success {
			b.success++
		} else {
			b.errs++
		}
		b.sum += c.LatencyMs
	}

	points := make([]model.TimeseriesPoint, 0, len(buckets))
	for ts, b := range buckets {
		points = append(points, model.TimeseriesPoint{
			Timestamp:    ts,
			TotalCalls:   b.total,
			SuccessCount: b.success,
			ErrorCount:   b.errs,
			AvgLatencyMs: float64(b.sum) / float64(b.total),
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp.Before(points[j].Timestamp) })
	return points
}

// truncate maps a timestamp to its bucket boundary in UTC.
func truncate(t time.Time, g Granularity) time.Time {
	t = t.UTC()
	switch g {
	case GranularityMinute:
		return t.Truncate(time.Minute)
	case GranularityHour:
		return t.Truncate(time.Hour)
	default: // GranularityDay
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// ParsePeriod converts a period token into a lower-bound cutoff relative to
// now. Accepted forms: "<N>m" (minutes), "<N>h" (hours), "<N>d" (days), and
// "all" or "" meaning no cutoff (nil).
func ParsePeriod(s string, now time.Time) (*time.Time, error) {
	if s == "" || strings.EqualFold(s, "all") {
		return nil, nil
	}
	if len(s) < 2 {
		return nil, fmt.Errorf("metrics: invalid period %q", s)
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("metrics: invalid period %q", s)
	}

	var d time.Duration
	switch s[len(s)-1] {
	case 'm':
		d = time.Duration(n) * time.Minute
	case 'h':
		d = time.Duration(n) * time.Hour
	case 'd':
		d = time.Duration(n) * 24 * time.Hour
	default:
		return nil, fmt.Errorf("metrics: invalid period %q", s)
	}

	cutoff := now.Add(-d)
	return &cutoff, nil
}

// ParseGranularity validates an explicit granularity token.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(strings.ToLower(s)) {
	case GranularityMinute:
		return GranularityMinute, nil
	case GranularityHour:
		return GranularityHour, nil
	case GranularityDay:
		return GranularityDay, nil
	default:
		return "", fmt.Errorf("metrics: invalid granularity %q", s)
	}
}

// AutoGranularity picks a bucket width for a time window: spans of at most
// two hours bucket by minute, at most seven days by hour, anything longer
// (or an unbounded window) by day.
func AutoGranularity(since *time.Time, now time.Time) Granularity {
	if since == nil {
		return GranularityDay
	}
	span := now.Sub(*since)
	switch {
	case span <= 2*time.Hour:
		return GranularityMinute
	case span <= 7*24*time.Hour:
		return GranularityHour
	default:
		return GranularityDay
	}
}
