package metrics_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kakehashi/internal/metrics"
	"github.com/ashita-ai/kakehashi/internal/model"
)

func call(backend, tool string, success bool, latencyMs int64, at time.Time) model.ToolCall {
	return model.ToolCall{
		BackendName: backend,
		ToolName:    tool,
		Success:     success,
		LatencyMs:   latencyMs,
		CalledAt:    at,
	}
}

// ---- Stats ----------------------------------------------------------------

func TestStats_Empty(t *testing.T) {
	s := metrics.Stats(nil)
	assert.Equal(t, 0, s.TotalCalls)
	assert.Equal(t, 0, s.SuccessCount)
	assert.Equal(t, 0, s.ErrorCount)
	assert.Equal(t, 0.0, s.SuccessRate)
	assert.Equal(t, 0.0, s.AvgLatencyMs)
	assert.Equal(t, int64(0), s.MinLatencyMs)
	assert.Equal(t, int64(0), s.MaxLatencyMs)
}

func TestStats_SuccessRate(t *testing.T) {
	now := time.Now().UTC()
	calls := []model.ToolCall{
		call("b", "t", true, 10, now),
		call("b", "t", true, 20, now),
		call("b", "t", true, 30, now),
		call("b", "t", false, 40, now),
	}

	s := metrics.Stats(calls)
	assert.Equal(t, 4, s.TotalCalls)
	assert.Equal(t, 3, s.SuccessCount)
	assert.Equal(t, 1, s.ErrorCount)
	assert.Equal(t, 0.75, s.SuccessRate)
}

func TestStats_Latencies(t *testing.T) {
	now := time.Now().UTC()
	calls := []model.ToolCall{
		call("b", "t", true, 30, now),
		call("b", "t", true, 10, now),
		call("b", "t", true, 50, now),
	}

	s := metrics.Stats(calls)
	assert.Equal(t, int64(10), s.MinLatencyMs)
	assert.Equal(t, int64(50), s.MaxLatencyMs)
	assert.InDelta(t, 30.0, s.AvgLatencyMs, 0.0001)
}

// ---- Percentile -----------------------------------------------------------

func TestPercentile_NearestRank(t *testing.T) {
	sorted := []int64{10, 20, 30, 40, 50}

	p50 := metrics.Percentile(sorted, 50)
	require.NotNil(t, p50)
	assert.Equal(t, int64(30), *p50)

	p95 := metrics.Percentile(sorted, 95)
	require.NotNil(t, p95)
	assert.Equal(t, int64(50), *p95)

	p0 := metrics.Percentile(sorted, 0)
	require.NotNil(t, p0)
	assert.Equal(t, int64(10), *p0)

	p100 := metrics.Percentile(sorted, 100)
	require.NotNil(t, p100)
	assert.Equal(t, int64(50), *p100)
}

func TestPercentile_Empty(t *testing.T) {
	assert.Nil(t, metrics.Percentile(nil, 50))
	assert.Nil(t, metrics.Percentile([]int64{}, 95))
}

func TestPercentile_SingleElement(t *testing.T) {
	sorted := []int64{42}
	for _, p := range []int{0, 50, 95, 99, 100} {
		got := metrics.Percentile(sorted, p)
		require.NotNil(t, got)
		assert.Equal(t, int64(42), *got)
	}
}

func TestStatsWithPercentiles(t *testing.T) {
	now := time.Now().UTC()
	var calls []model.ToolCall
	// Unsorted on purpose; the reducer sorts before indexing.
	for _, l := range []int64{50, 10, 40, 20, 30} {
		calls = append(calls, call("b", "t", true, l, now))
	}

	d := metrics.StatsWithPercentiles(calls)
	assert.Equal(t, 5, d.TotalCalls)
	require.NotNil(t, d.P50LatencyMs)
	assert.Equal(t, int64(30), *d.P50LatencyMs)
	require.NotNil(t, d.P95LatencyMs)
	assert.Equal(t, int64(50), *d.P95LatencyMs)
	require.NotNil(t, d.P99LatencyMs)
	assert.Equal(t, int64(50), *d.P99LatencyMs)

	empty := metrics.StatsWithPercentiles(nil)
	assert.Nil(t, empty.P50LatencyMs)
	assert.Nil(t, empty.P95LatencyMs)
	assert.Nil(t, empty.P99LatencyMs)
}

// ---- ToolBreakdown --------------------------------------------------------

func TestToolBreakdown_Groups(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	calls := []model.ToolCall{
		call("gh", "search", true, 10, base),
		call("gh", "search", false, 30, base.Add(time.Minute)),
		call("gh", "create", true, 20, base.Add(2*time.Minute)),
		call("fs", "read", true, 5, base.Add(3*time.Minute)),
	}

	stats := metrics.ToolBreakdown(calls, metrics.SortTotalCalls, "desc", 0)
	require.Len(t, stats, 3)

	top := stats[0]
	assert.Equal(t, "gh", top.BackendName)
	assert.Equal(t, "search", top.ToolName)
	assert.Equal(t, 2, top.TotalCalls)
	assert.Equal(t, 1, top.ErrorCount)
	assert.Equal(t, 0.5, top.SuccessRate)
	assert.Equal(t, base.Add(time.Minute), top.LastCalledAt)
	require.NotNil(t, top.P95LatencyMs)
	assert.Equal(t, int64(30), *top.P95LatencyMs)
}

func TestToolBreakdown_SortAndLimit(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	calls := []model.ToolCall{
		call("a", "one", false, 10, base),
		call("a", "one", false, 10, base),
		call("b", "two", false, 10, base.Add(time.Hour)),
		call("c", "three", true, 10, base.Add(2*time.Hour)),
	}

	byErrors := metrics.ToolBreakdown(calls, metrics.SortErrorCount, "desc", 2)
	require.Len(t, byErrors, 2)
	assert.Equal(t, "one", byErrors[0].ToolName)
	assert.Equal(t, "two", byErrors[1].ToolName)

	byLastAsc := metrics.ToolBreakdown(calls, metrics.SortLastCalled, "asc", 0)
	require.Len(t, byLastAsc, 3)
	assert.Equal(t, "one", byLastAsc[0].ToolName)
	assert.Equal(t, "three", byLastAsc[2].ToolName)
}

func TestToolBreakdown_DeterministicTieBreak(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	calls := []model.ToolCall{
		call("b", "beta", true, 10, base),
		call("a", "alpha", true, 10, base),
	}

	// Equal on every sort key; order falls back to (backend, tool).
	first := metrics.ToolBreakdown(calls, metrics.SortTotalCalls, "asc", 0)
	second := metrics.ToolBreakdown(calls, metrics.SortTotalCalls, "asc", 0)
	require.Len(t, first, 2)
	assert.Equal(t, first[0].BackendName, second[0].BackendName)
	assert.Equal(t, "a", first[0].BackendName)
}

// ---- Timeseries -----------------------------------------------------------

func TestTimeseries_HourBuckets(t *testing.T) {
	a := time.Date(2024, 1, 1, 10, 15, 30, 0, time.UTC)
	b := time.Date(2024, 1, 1, 10, 45, 0, 0, time.UTC)
	c := time.Date(2024, 1, 1, 11, 5, 0, 0, time.UTC)
	calls := []model.ToolCall{
		call("b", "t", true, 10, a),
		call("b", "t", false, 30, b),
		call("b", "t", true, 50, c),
	}

	points := metrics.Timeseries(calls, metrics.GranularityHour)
	require.Len(t, points, 2)

	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), points[0].Timestamp)
	assert.Equal(t, 2, points[0].TotalCalls)
	assert.Equal(t, 1, points[0].SuccessCount)
	assert.Equal(t, 1, points[0].ErrorCount)
	assert.InDelta(t, 20.0, points[0].AvgLatencyMs, 0.0001)

	assert.Equal(t, time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC), points[1].Timestamp)
	assert.Equal(t, 1, points[1].TotalCalls)
}

func TestTimeseries_MinuteAndDayBuckets(t *testing.T) {
	at := time.Date(2024, 3, 5, 14, 30, 45, 123456789, time.UTC)
	calls := []model.ToolCall{call("b", "t", true, 10, at)}

	minute := metrics.Timeseries(calls, metrics.GranularityMinute)
	require.Len(t, minute, 1)
	assert.Equal(t, time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC), minute[0].Timestamp)

	day := metrics.Timeseries(calls, metrics.GranularityDay)
	require.Len(t, day, 1)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), day[0].Timestamp)
}

func TestTimeseries_Empty(t *testing.T) {
	assert.Empty(t, metrics.Timeseries(nil, metrics.GranularityHour))
}

// ---- Period parsing -------------------------------------------------------

func TestParsePeriod_Units(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	got, err := metrics.ParsePeriod("24h", now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, now.Add(-24*time.Hour), *got)

	got, err = metrics.ParsePeriod("7d", now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, now.Add(-7*24*time.Hour), *got)

	got, err = metrics.ParsePeriod("30m", now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, now.Add(-30*time.Minute), *got)
}

func TestParsePeriod_Unbounded(t *testing.T) {
	now := time.Now().UTC()

	got, err := metrics.ParsePeriod("all", now)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = metrics.ParsePeriod("", now)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestParsePeriod_Invalid(t *testing.T) {
	now := time.Now().UTC()
	for _, bad := range []string{"x", "h", "5", "5w", "-1h", "0d", "1.5h", "h24"} {
		_, err := metrics.ParsePeriod(bad, now)
		assert.Error(t, err, "period %q should be rejected", bad)
	}
}

// ---- Granularity ----------------------------------------------------------

func TestAutoGranularity(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	twoHours := now.Add(-2 * time.Hour)
	assert.Equal(t, metrics.GranularityMinute, metrics.AutoGranularity(&twoHours, now))

	threeHours := now.Add(-3 * time.Hour)
	assert.Equal(t, metrics.GranularityHour, metrics.AutoGranularity(&threeHours, now))

	sevenDays := now.Add(-7 * 24 * time.Hour)
	assert.Equal(t, metrics.GranularityHour, metrics.AutoGranularity(&sevenDays, now))

	eightDays := now.Add(-8 * 24 * time.Hour)
	assert.Equal(t, metrics.GranularityDay, metrics.AutoGranularity(&eightDays, now))

	assert.Equal(t, metrics.GranularityDay, metrics.AutoGranularity(nil, now))
}

func TestParseGranularity(t *testing.T) {
	g, err := metrics.ParseGranularity("minute")
	require.NoError(t, err)
	assert.Equal(t, metrics.GranularityMinute, g)

	g, err = metrics.ParseGranularity("Hour")
	require.NoError(t, err)
	assert.Equal(t, metrics.GranularityHour, g)

	_, err = metrics.ParseGranularity("week")
	assert.Error(t, err)
}
