package aggregation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWindowedTable_WindowAttribution(t *testing.T) {
	table := NewWindowedTable(10*time.Second, 5*time.Minute)

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	eventTime := base.Add(13 * time.Second) // lands in [12:00:10, 12:00:20)

	ok := table.Update("widget", 25, eventTime, eventTime)
	require.True(t, ok)

	stats, found := table.Get("widget", base.Add(10*time.Second))
	require.True(t, found)
	require.Equal(t, uint64(1), stats.OrderCount)
	require.Equal(t, base.Add(10*time.Second), stats.WindowStart)
	require.Equal(t, base.Add(20*time.Second), stats.WindowEnd)
}

func TestWindowedTable_SameWindowAccumulates(t *testing.T) {
	table := NewWindowedTable(10*time.Second, 5*time.Minute)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	require.True(t, table.Update("widget", 10, base.Add(1*time.Second), base.Add(1*time.Second)))
	require.True(t, table.Update("widget", 30, base.Add(9*time.Second), base.Add(9*time.Second)))

	stats, found := table.Get("widget", base)
	require.True(t, found)
	require.Equal(t, uint64(2), stats.OrderCount)
	require.InDelta(t, 40.0, stats.TotalRevenue, 1e-9)
	require.Equal(t, float32(10), stats.MinPrice)
	require.Equal(t, float32(30), stats.MaxPrice)
}

func TestWindowedTable_LateEventDropped(t *testing.T) {
	// No grace period: once a window has closed, events for it are dropped
	// rather than merged into a newer window.
	table := NewWindowedTable(10*time.Second, 5*time.Minute)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	eventTime := base.Add(3 * time.Second) // window [12:00:00, 12:00:10)
	arrival := base.Add(11 * time.Second)  // window already closed

	ok := table.Update("widget", 25, eventTime, arrival)
	require.False(t, ok)

	_, found := table.Get("widget", base)
	require.False(t, found, "a dropped late event must not create its window")
	require.Equal(t, 0, table.Len())
}

func TestWindowedTable_EvictionAfterRetention(t *testing.T) {
	table := NewWindowedTable(10*time.Second, 30*time.Second)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	require.True(t, table.Update("widget", 25, base.Add(time.Second), base.Add(time.Second)))

	// Window closes at 12:00:10; retention runs out at 12:00:40.
	require.Equal(t, 0, table.Evict(base.Add(39*time.Second)))
	_, found := table.Get("widget", base)
	require.True(t, found, "window must stay queryable through retention")

	require.Equal(t, 1, table.Evict(base.Add(41*time.Second)))
	_, found = table.Get("widget", base)
	require.False(t, found, "window must be gone after retention")
}

func TestWindowedTable_WindowsSortedOldestFirst(t *testing.T) {
	table := NewWindowedTable(10*time.Second, 5*time.Minute)
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	require.True(t, table.Update("widget", 1, base.Add(25*time.Second), base.Add(25*time.Second)))
	require.True(t, table.Update("widget", 2, base.Add(5*time.Second), base.Add(5*time.Second)))
	require.True(t, table.Update("gadget", 3, base.Add(5*time.Second), base.Add(5*time.Second)))

	windows := table.Windows("widget")
	require.Len(t, windows, 2)
	require.Equal(t, base, windows[0].WindowStart)
	require.Equal(t, base.Add(20*time.Second), windows[1].WindowStart)
}
