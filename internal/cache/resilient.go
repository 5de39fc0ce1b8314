package cache

import (
	"context"
	"fmt"
	"time"

	"storefront/internal/checkout"
	"storefront/internal/resilience"
)

// PendingBackend is the store surface guarded by the breaker.
type PendingBackend interface {
	GetPending(ctx context.Context, providerOrderID string) (checkout.PendingCheckout, bool, error)
	UserPending(ctx context.Context, userID int64) (string, bool, error)
	Put(ctx context.Context, providerOrderID string, pc checkout.PendingCheckout, ttl time.Duration) (bool, error)
	DeleteByProvider(ctx context.Context, providerOrderID string, userID int64) (bool, error)
}

// Resilient routes every cache operation through a shared circuit breaker.
// Any backing failure, and the breaker's own fail-fast rejection, surface
// as checkout.ErrCacheUnavailable. Misses and lost lock claims are normal
// outcomes and never trip the breaker.
type Resilient struct {
	backend PendingBackend
	breaker *resilience.Breaker
}

// NewResilient wraps a pending store with a process-wide breaker instance.
func NewResilient(backend PendingBackend, breaker *resilience.Breaker) *Resilient {
	return &Resilient{backend: backend, breaker: breaker}
}

func (r *Resilient) GetPending(ctx context.Context, providerOrderID string) (checkout.PendingCheckout, bool, error) {
	var pc checkout.PendingCheckout
	var found bool
	err := r.breaker.Do(func() error {
		var err error
		pc, found, err = r.backend.GetPending(ctx, providerOrderID)
		return err
	})
	if err != nil {
		return checkout.PendingCheckout{}, false, unavailable(err)
	}
	return pc, found, nil
}

func (r *Resilient) UserPending(ctx context.Context, userID int64) (string, bool, error) {
	var id string
	var found bool
	err := r.breaker.Do(func() error {
		var err error
		id, found, err = r.backend.UserPending(ctx, userID)
		return err
	})
	if err != nil {
		return "", false, unavailable(err)
	}
	return id, found, nil
}

func (r *Resilient) Put(ctx context.Context, providerOrderID string, pc checkout.PendingCheckout, ttl time.Duration) (bool, error) {
	var acquired bool
	err := r.breaker.Do(func() error {
		var err error
		acquired, err = r.backend.Put(ctx, providerOrderID, pc, ttl)
		return err
	})
	if err != nil {
		return false, unavailable(err)
	}
	return acquired, nil
}

func (r *Resilient) DeleteByProvider(ctx context.Context, providerOrderID string, userID int64) (bool, error) {
	var claimed bool
	err := r.breaker.Do(func() error {
		var err error
		claimed, err = r.backend.DeleteByProvider(ctx, providerOrderID, userID)
		return err
	})
	if err != nil {
		return false, unavailable(err)
	}
	return claimed, nil
}

func unavailable(cause error) error {
	return fmt.Errorf("%w: %v", checkout.ErrCacheUnavailable, cause)
}
