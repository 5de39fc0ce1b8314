package checkout

import "time"

// PaymentStatus tracks how far payment has progressed for an order.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// OrderStatus tracks fulfillment state.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPlaced    OrderStatus = "placed"
	OrderCancelled OrderStatus = "cancelled"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
)

// Order is the durable record created at checkout start. Line items are
// snapshotted from the cart at creation time and never recomputed.
type Order struct {
	ID              int64
	UserID          int64
	Total           int64 // minor currency units
	PaymentMethod   string
	PaymentStatus   PaymentStatus
	OrderStatus     OrderStatus
	ProviderOrderID string
	CreatedAt       time.Time
}

// OrderItem is the denormalized line-item snapshot.
type OrderItem struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Title     string
	UnitPrice int64
	Quantity  int
}

// CartItem is a cart line joined with the current product price and title,
// read through the collaborating cart layer.
type CartItem struct {
	ProductID int64
	Title     string
	UnitPrice int64
	Quantity  int
}

// ReservedItem is one stock reservation held by an in-flight checkout.
type ReservedItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// PendingCheckout is the ephemeral cache record correlating a provider
// order with the internal order and its reserved inventory. It must never
// outlive its TTL without being captured or compensated; the TTL is a
// safety net, not the primary mechanism.
type PendingCheckout struct {
	UserID  int64          `json:"user_id"`
	OrderID int64          `json:"order_id"`
	Items   []ReservedItem `json:"items"`
}
