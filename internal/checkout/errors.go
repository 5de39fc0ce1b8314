package checkout

import (
	"errors"
	"fmt"
)

// ErrCartEmpty signals an order-create attempt against an empty cart.
var ErrCartEmpty = errors.New("cart is empty")

// ErrCheckoutPending signals the user already has a checkout in flight.
var ErrCheckoutPending = errors.New("payment already pending")

// ErrInvalidRequest signals bad checkout input.
var ErrInvalidRequest = errors.New("invalid checkout request")

// ErrInsufficientStock signals a failed stock reservation.
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrPendingNotFound signals the pending-checkout entry is missing or has
// expired. This is the expected outcome of a TTL race, not a bug.
var ErrPendingNotFound = errors.New("order data not found or expired")

// ErrCacheUnavailable signals the fast cache is unreachable or its circuit
// breaker is open. It maps to 503 at the API boundary, distinctly from
// 500, so clients can tell "try again shortly" from "something is broken".
var ErrCacheUnavailable = errors.New("checkout cache unavailable")

// PaymentNotCompletedError carries the provider's capture status when it
// is anything other than completed.
type PaymentNotCompletedError struct {
	Status string
}

func (e *PaymentNotCompletedError) Error() string {
	return fmt.Sprintf("payment not completed: provider status %q", e.Status)
}
