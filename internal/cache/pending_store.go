package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/checkout"
)

const (
	orderKeyPrefix = "checkout:order:"
	userKeyPrefix  = "checkout:user:"
)

// RedisCmdable is the minimal client surface used by PendingStore.
// *redis.Client satisfies it.
type RedisCmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// PendingStore keeps pending-checkout records in Redis under two keys: the
// provider-order key holding the snapshot, and a per-user lock key mapping
// to the provider order id. Both carry the same TTL.
type PendingStore struct {
	client RedisCmdable
}

// NewPendingStore constructs a Redis-backed pending-checkout store.
func NewPendingStore(client RedisCmdable) *PendingStore {
	return &PendingStore{client: client}
}

func orderKey(providerOrderID string) string { return orderKeyPrefix + providerOrderID }

func userKey(userID int64) string { return userKeyPrefix + strconv.FormatInt(userID, 10) }

// GetPending loads the snapshot for a provider order id. A missing or
// expired entry is a normal false outcome.
func (s *PendingStore) GetPending(ctx context.Context, providerOrderID string) (checkout.PendingCheckout, bool, error) {
	raw, err := s.client.Get(ctx, orderKey(providerOrderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return checkout.PendingCheckout{}, false, nil
	}
	if err != nil {
		return checkout.PendingCheckout{}, false, err
	}

	var pc checkout.PendingCheckout
	if err := json.Unmarshal(raw, &pc); err != nil {
		return checkout.PendingCheckout{}, false, fmt.Errorf("decode pending checkout: %w", err)
	}
	return pc, true, nil
}

// UserPending returns the provider order id of the user's in-flight
// checkout, if any.
func (s *PendingStore) UserPending(ctx context.Context, userID int64) (string, bool, error) {
	id, err := s.client.Get(ctx, userKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// Put writes both entries with the same TTL. The user lock key is claimed
// with SET NX, so at most one in-flight checkout per user can commit; a
// false return means another checkout holds the lock. If the snapshot
// write fails the lock is released best-effort.
func (s *PendingStore) Put(ctx context.Context, providerOrderID string, pc checkout.PendingCheckout, ttl time.Duration) (bool, error) {
	raw, err := json.Marshal(pc)
	if err != nil {
		return false, fmt.Errorf("encode pending checkout: %w", err)
	}

	acquired, err := s.client.SetNX(ctx, userKey(pc.UserID), providerOrderID, ttl).Result()
	if err != nil {
		return false, err
	}
	if !acquired {
		return false, nil
	}

	if err := s.client.Set(ctx, orderKey(providerOrderID), raw, ttl).Err(); err != nil {
		_ = s.client.Del(ctx, userKey(pc.UserID)).Err()
		return false, err
	}
	return true, nil
}

// DeleteByProvider removes both entries. The claimed result reports whether
// this caller deleted the provider-order key; since DEL is atomic, exactly
// one of the racing capture and webhook paths observes true, and only that
// one may release the reserved stock. An already-gone entry is success.
func (s *PendingStore) DeleteByProvider(ctx context.Context, providerOrderID string, userID int64) (bool, error) {
	deleted, err := s.client.Del(ctx, orderKey(providerOrderID)).Result()
	if err != nil {
		return false, err
	}
	if err := s.client.Del(ctx, userKey(userID)).Err(); err != nil {
		return deleted > 0, err
	}
	return deleted > 0, nil
}
