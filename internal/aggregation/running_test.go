package aggregation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunningTable_UpdateMath(t *testing.T) {
	table := NewRunningTable()
	now := time.Now()

	for _, price := range []float32{10, 30, 20} {
		table.Update("widget", price, now)
	}

	stats, ok := table.Get("widget")
	require.True(t, ok)
	require.Equal(t, uint64(3), stats.OrderCount)
	require.InDelta(t, 60.0, stats.TotalRevenue, 1e-9)
	require.InDelta(t, 20.0, stats.AveragePrice, 1e-9)
	require.Equal(t, float32(10), stats.MinPrice)
	require.Equal(t, float32(30), stats.MaxPrice)
}

func TestRunningTable_ZeroPriceIsARealMinimum(t *testing.T) {
	// The old zero-sentinel implementation conflated "unset" with a
	// legitimate $0 price; the explicit flag must not.
	table := NewRunningTable()
	now := time.Now()

	table.Update("freebie", 0, now)
	table.Update("freebie", 5, now)

	stats, ok := table.Get("freebie")
	require.True(t, ok)
	require.Equal(t, float32(0), stats.MinPrice)
	require.Equal(t, float32(5), stats.MaxPrice)
}

func TestRunningTable_UnknownProduct(t *testing.T) {
	table := NewRunningTable()

	_, ok := table.Get("nope")
	require.False(t, ok)
}

func TestRunningTable_Summary(t *testing.T) {
	table := NewRunningTable()
	now := time.Now()

	table.Update("widget", 10, now)
	table.Update("widget", 20, now)
	table.Update("gadget", 40, now)

	s := table.Summary()
	require.Equal(t, uint64(3), s.TotalOrders)
	require.InDelta(t, 70.0, s.TotalRevenue, 1e-9)
	require.Equal(t, 2, s.ProductCount)
	require.InDelta(t, 35.0, s.AvgRevenuePerProduct, 1e-9)
}

func TestRunningTable_EmptySummary(t *testing.T) {
	s := NewRunningTable().Summary()
	require.Equal(t, uint64(0), s.TotalOrders)
	require.Equal(t, 0, s.ProductCount)
	require.Equal(t, 0.0, s.AvgRevenuePerProduct)
}

func TestRunningTable_ConcurrentPerKeyUpdates(t *testing.T) {
	table := NewRunningTable()
	now := time.Now()

	products := []string{"a", "b", "c", "d"}
	const perProduct = 200

	var wg sync.WaitGroup
	for _, product := range products {
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(product string) {
				defer wg.Done()
				for j := 0; j < perProduct/4; j++ {
					table.Update(product, 2, now)
				}
			}(product)
		}
	}
	wg.Wait()

	for _, product := range products {
		stats, ok := table.Get(product)
		require.True(t, ok)
		require.Equal(t, uint64(perProduct), stats.OrderCount)
		require.InDelta(t, float64(perProduct*2), stats.TotalRevenue, 1e-9)
		require.InDelta(t, 2.0, stats.AveragePrice, 1e-9)
	}
}
