package domain

import "time"

// Order is the event payload flowing through the system. Immutable once
// produced; identity is OrderID.
type Order struct {
	OrderID string  `json:"order_id" msgpack:"order_id"`
	Product string  `json:"product"  msgpack:"product"`
	Price   float32 `json:"price"    msgpack:"price"`
}

// PersistedOrder is the durable record of a successfully processed order.
// Exactly one exists per OrderID; a second persistence attempt for the same
// OrderID is a duplicate-order failure.
type PersistedOrder struct {
	ID            string    `json:"id"`
	OrderID       string    `json:"order_id"`
	Product       string    `json:"product"`
	Price         float32   `json:"price"`
	CorrelationID string    `json:"correlation_id"`
	ReceivedAt    time.Time `json:"received_at"`
	ProcessedAt   time.Time `json:"processed_at"`
	Status        string    `json:"status"`
}

// OrderStatusProcessed is the only status a persisted order currently takes.
const OrderStatusProcessed = "PROCESSED"
