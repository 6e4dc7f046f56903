package domain

import "time"

// ProductStatistics is the running aggregate for a single product.
//
// MinPrice/MaxPrice use an explicit Priced flag as the "unset" marker. The
// previous generation of this system initialized MinPrice to 0 and tested
// `minPrice == 0` on update, which silently breaks for a legitimate
// zero-priced item; the flag makes unset distinct from 0.
type ProductStatistics struct {
	Product      string    `json:"product"`
	OrderCount   uint64    `json:"order_count"`
	TotalRevenue float64   `json:"total_revenue"`
	AveragePrice float64   `json:"average_price"`
	MinPrice     float32   `json:"min_price"`
	MaxPrice     float32   `json:"max_price"`
	Priced       bool      `json:"-"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Update folds one order price into the aggregate. Callers must hold the
// key's lock; there is exactly one writer per product at a time.
func (s *ProductStatistics) Update(price float32, at time.Time) {
	s.OrderCount++
	s.TotalRevenue += float64(price)
	s.AveragePrice = s.TotalRevenue / float64(s.OrderCount)

	if !s.Priced || price < s.MinPrice {
		s.MinPrice = price
	}
	if !s.Priced || price > s.MaxPrice {
		s.MaxPrice = price
	}
	s.Priced = true
	s.LastUpdated = at
}

// WindowedStatistics is a ProductStatistics scoped to one tumbling window
// [WindowStart, WindowEnd).
type WindowedStatistics struct {
	ProductStatistics
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}

// StatisticsSummary is the cross-product rollup served by the query surface.
type StatisticsSummary struct {
	TotalOrders          uint64  `json:"total_orders"`
	TotalRevenue         float64 `json:"total_revenue"`
	ProductCount         int     `json:"product_count"`
	AvgRevenuePerProduct float64 `json:"avg_revenue_per_product"`
}
