package checkout

import (
	"context"
	"log"
)

// Provider push events that trigger compensation. Everything else is
// acknowledged and ignored.
const (
	EventOrderExpired  = "CHECKOUT.ORDER.EXPIRED"
	EventCaptureDenied = "PAYMENT.CAPTURE.DENIED"
)

// Compensator consumes asynchronous provider events and reverses
// reservations for checkouts the client-driven path never completed. It is
// the sole deleter of pending entries on the asynchronous path.
type Compensator struct {
	stock   StockLedger
	orders  OrderStore
	pending PendingStore
	logf    func(format string, args ...any)
}

// NewCompensator constructs the webhook compensator.
func NewCompensator(stock StockLedger, orders OrderStore, pending PendingStore, logf func(format string, args ...any)) *Compensator {
	if logf == nil {
		logf = log.Printf
	}
	return &Compensator{stock: stock, orders: orders, pending: pending, logf: logf}
}

// HandleEvent processes one provider event. Internal failures are logged,
// never surfaced: the webhook sender always gets a 200, and consistency is
// recovered by alerting and the cache TTL, not provider redelivery.
func (c *Compensator) HandleEvent(ctx context.Context, eventType, providerOrderID string) {
	switch eventType {
	case EventOrderExpired, EventCaptureDenied:
	default:
		return
	}
	if providerOrderID == "" {
		c.logf("webhook: %s event without a provider order id", eventType)
		return
	}

	pc, found, err := c.pending.GetPending(ctx, providerOrderID)
	if err != nil {
		c.logf("webhook: load pending %s: %v", providerOrderID, err)
		return
	}
	if !found {
		// Already reconciled by the capture path, or expired.
		return
	}

	claimed, err := c.pending.DeleteByProvider(ctx, providerOrderID, pc.UserID)
	if err != nil {
		c.logf("webhook: delete pending %s: %v", providerOrderID, err)
		return
	}
	if !claimed {
		// The capture path won the race; stock is its responsibility.
		return
	}

	for _, item := range pc.Items {
		if err := c.stock.Release(ctx, item.ProductID, item.Quantity); err != nil {
			c.logf("webhook: release product %d: %v", item.ProductID, err)
		}
	}
	if err := c.orders.UpdateStatus(ctx, pc.OrderID, OrderCancelled, PaymentFailed); err != nil {
		c.logf("webhook: cancel order %d: %v", pc.OrderID, err)
	}

	c.logf("webhook: compensated provider order %s (%s, order %d)", providerOrderID, eventType, pc.OrderID)
}
