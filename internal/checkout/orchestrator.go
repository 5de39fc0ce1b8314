package checkout

import (
	"context"
	"fmt"
	"log"
	"time"

	"storefront/internal/payment"
)

// StockLedger reserves and releases inventory. Reserve is atomic and
// conditional; insufficient stock is a normal false outcome.
type StockLedger interface {
	Reserve(ctx context.Context, productID int64, qty int) (bool, error)
	Release(ctx context.Context, productID int64, qty int) error
}

// OrderStore persists orders and their status transitions.
type OrderStore interface {
	CreateFromCart(ctx context.Context, userID int64, paymentMethod string) (Order, error)
	UpdateStatus(ctx context.Context, orderID int64, orderStatus OrderStatus, paymentStatus PaymentStatus) error
	AttachProviderOrder(ctx context.Context, orderID int64, providerOrderID string) error
	CancelDanglingOrder(ctx context.Context, providerOrderID string) (bool, error)
	ClearCart(ctx context.Context, userID int64) error
}

// CartReader is the read-only collaborator surface onto the cart layer.
type CartReader interface {
	ListCartItems(ctx context.Context, userID int64) ([]CartItem, error)
}

// PendingStore holds pending-checkout state in the fast cache. Any failure
// surfaces as ErrCacheUnavailable.
type PendingStore interface {
	GetPending(ctx context.Context, providerOrderID string) (PendingCheckout, bool, error)
	UserPending(ctx context.Context, userID int64) (string, bool, error)
	Put(ctx context.Context, providerOrderID string, pc PendingCheckout, ttl time.Duration) (bool, error)
	DeleteByProvider(ctx context.Context, providerOrderID string, userID int64) (bool, error)
}

// ProviderGateway talks to the external payment provider.
type ProviderGateway interface {
	CreateOrder(ctx context.Context, amountMinorUnits int64) (string, error)
	CaptureOrder(ctx context.Context, providerOrderID string) (payment.CaptureResult, error)
}

// sagaState names how far an initiate-checkout call has progressed. The
// compensation switch is keyed on it, so every exit path undoes exactly
// the steps that were applied.
type sagaState int

const (
	stateIdle sagaState = iota
	stateReservingStock
	stateOrderCreated
	stateProviderOrderCreated
	stateCommitted
)

func (s sagaState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateReservingStock:
		return "reserving_stock"
	case stateOrderCreated:
		return "order_created"
	case stateProviderOrderCreated:
		return "provider_order_created"
	case stateCommitted:
		return "committed"
	default:
		return "unknown"
	}
}

// DefaultPendingTTL bounds how long an abandoned checkout can hold stock
// before the cache reclaims its state.
const DefaultPendingTTL = 900 * time.Second

// Orchestrator coordinates the checkout saga across the relational store,
// the payment provider, and the fast cache. It is the sole writer of order
// status transitions and the sole creator of pending-checkout entries on
// the synchronous path.
type Orchestrator struct {
	stock         StockLedger
	orders        OrderStore
	cart          CartReader
	pending       PendingStore
	provider      ProviderGateway
	pendingTTL    time.Duration
	paymentMethod string
	logf          func(format string, args ...any)
}

// NewOrchestrator constructs the saga coordinator.
func NewOrchestrator(stock StockLedger, orders OrderStore, cart CartReader, pending PendingStore, provider ProviderGateway, pendingTTL time.Duration, logf func(format string, args ...any)) *Orchestrator {
	if pendingTTL <= 0 {
		pendingTTL = DefaultPendingTTL
	}
	if logf == nil {
		logf = log.Printf
	}
	return &Orchestrator{
		stock:         stock,
		orders:        orders,
		cart:          cart,
		pending:       pending,
		provider:      provider,
		pendingTTL:    pendingTTL,
		paymentMethod: "paypal",
		logf:          logf,
	}
}

// Initiate runs the forward half of the saga: reserve stock per cart line,
// create the pending order, create the provider order, then commit the
// correlation state to the cache. Every failure path compensates all steps
// applied in this call before returning; no error leaves stock decremented
// without a matching pending checkout.
func (o *Orchestrator) Initiate(ctx context.Context, userID int64, amountMinorUnits int64) (string, error) {
	if _, inFlight, err := o.pending.UserPending(ctx, userID); err != nil {
		return "", err
	} else if inFlight {
		return "", ErrCheckoutPending
	}

	if amountMinorUnits <= 0 {
		return "", fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	lines, err := o.cart.ListCartItems(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("list cart: %w", err)
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, ErrCartEmpty)
	}

	state := stateReservingStock
	var reserved []ReservedItem
	var order Order

	fail := func(cause error) (string, error) {
		o.compensate(ctx, state, reserved, order.ID)
		return "", cause
	}

	for _, line := range lines {
		ok, err := o.stock.Reserve(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return fail(fmt.Errorf("reserve product %d: %w", line.ProductID, err))
		}
		if !ok {
			return fail(fmt.Errorf("%w: product %d", ErrInsufficientStock, line.ProductID))
		}
		reserved = append(reserved, ReservedItem{ProductID: line.ProductID, Quantity: line.Quantity})
	}

	order, err = o.orders.CreateFromCart(ctx, userID, o.paymentMethod)
	if err != nil {
		return fail(fmt.Errorf("create order: %w", err))
	}
	state = stateOrderCreated

	providerOrderID, err := o.provider.CreateOrder(ctx, amountMinorUnits)
	if err != nil {
		return fail(err)
	}
	state = stateProviderOrderCreated

	if err := o.orders.AttachProviderOrder(ctx, order.ID, providerOrderID); err != nil {
		return fail(fmt.Errorf("attach provider order: %w", err))
	}

	acquired, err := o.pending.Put(ctx, providerOrderID, PendingCheckout{
		UserID:  userID,
		OrderID: order.ID,
		Items:   reserved,
	}, o.pendingTTL)
	if err != nil {
		return fail(err)
	}
	if !acquired {
		// Another checkout for this user committed between the advisory
		// check and the lock claim.
		return fail(ErrCheckoutPending)
	}
	state = stateCommitted

	o.logf("checkout: committed provider order %s (order %d, user %d)", providerOrderID, order.ID, userID)
	return providerOrderID, nil
}

// compensate releases every reservation made in this request and cancels
// the order if one was created. Failures here are logged; they must not
// mask the error being returned to the caller.
func (o *Orchestrator) compensate(ctx context.Context, state sagaState, reserved []ReservedItem, orderID int64) {
	for _, item := range reserved {
		if err := o.stock.Release(ctx, item.ProductID, item.Quantity); err != nil {
			o.logf("checkout: compensate release product %d: %v", item.ProductID, err)
		}
	}
	if state >= stateOrderCreated && orderID != 0 {
		if err := o.orders.UpdateStatus(ctx, orderID, OrderCancelled, PaymentFailed); err != nil {
			o.logf("checkout: compensate cancel order %d: %v", orderID, err)
		}
	}
	if state > stateIdle {
		o.logf("checkout: compensated from state %s (%d reservations)", state, len(reserved))
	}
}

// Capture reconciles a client-driven capture. A missing pending entry is
// the expected outcome of a TTL expiry race: the dangling order, when still
// resolvable, is cancelled, and ErrPendingNotFound is returned with no
// stock action. Capture is never auto-retried here.
func (o *Orchestrator) Capture(ctx context.Context, providerOrderID string) (int64, error) {
	if providerOrderID == "" {
		return 0, fmt.Errorf("%w: provider order id required", ErrInvalidRequest)
	}

	pc, found, err := o.pending.GetPending(ctx, providerOrderID)
	if err != nil {
		return 0, err
	}
	if !found {
		cancelled, err := o.orders.CancelDanglingOrder(ctx, providerOrderID)
		if err != nil {
			o.logf("checkout: cancel dangling order for %s: %v", providerOrderID, err)
		} else if cancelled {
			o.logf("checkout: cancelled dangling order for expired provider order %s", providerOrderID)
		}
		return 0, ErrPendingNotFound
	}

	result, err := o.provider.CaptureOrder(ctx, providerOrderID)
	if err != nil {
		return 0, err
	}

	if result.Status != payment.StatusCompleted {
		o.releaseReserved(ctx, providerOrderID, pc)
		if err := o.orders.UpdateStatus(ctx, pc.OrderID, OrderCancelled, PaymentFailed); err != nil {
			o.logf("checkout: cancel order %d after incomplete capture: %v", pc.OrderID, err)
		}
		return 0, &PaymentNotCompletedError{Status: result.Status}
	}

	if err := o.orders.UpdateStatus(ctx, pc.OrderID, OrderPlaced, PaymentPaid); err != nil {
		// Payment is captured; the pending entry stays so a retry can
		// finalize. Stock is not touched.
		return 0, fmt.Errorf("finalize order %d: %w", pc.OrderID, err)
	}
	if err := o.orders.ClearCart(ctx, pc.UserID); err != nil {
		o.logf("checkout: clear cart for user %d: %v", pc.UserID, err)
	}
	if _, err := o.pending.DeleteByProvider(ctx, providerOrderID, pc.UserID); err != nil {
		// Best effort: the TTL reclaims the entries.
		o.logf("checkout: delete pending %s: %v", providerOrderID, err)
	}

	o.logf("checkout: captured provider order %s (order %d, user %d)", providerOrderID, pc.OrderID, pc.UserID)
	return pc.OrderID, nil
}

// releaseReserved deletes the pending entries and, only when this caller
// won the delete, releases the snapshot's reservations. The claim makes
// the release exactly-once against the racing webhook path; an entry that
// is already gone means the other path reconciled it.
func (o *Orchestrator) releaseReserved(ctx context.Context, providerOrderID string, pc PendingCheckout) {
	claimed, err := o.pending.DeleteByProvider(ctx, providerOrderID, pc.UserID)
	if err != nil {
		// Without the claim a release could double-count against the
		// webhook path; leave reclamation to the TTL and webhook.
		o.logf("checkout: delete pending %s: %v", providerOrderID, err)
		return
	}
	if !claimed {
		return
	}
	for _, item := range pc.Items {
		if err := o.stock.Release(ctx, item.ProductID, item.Quantity); err != nil {
			o.logf("checkout: release product %d: %v", item.ProductID, err)
		}
	}
}
