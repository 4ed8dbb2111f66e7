package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// FixedWindow counts events in fixed periods using a ulule limiter store.
type FixedWindow struct {
	Store limiter.Store
}

// NewFixedWindow builds a fixed window limiter. A nil client falls back to an in-process store.
func NewFixedWindow(client *redis.Client, prefix string) (FixedWindow, error) {
	opts := limiter.StoreOptions{Prefix: prefix}
	if client == nil {
		return FixedWindow{Store: memory.NewStoreWithOptions(opts)}, nil
	}
	store, err := limiterredis.NewStoreWithOptions(client, opts)
	if err != nil {
		return FixedWindow{}, fmt.Errorf("fixed window store: %w", err)
	}
	return FixedWindow{Store: store}, nil
}

// Allow increments the counter for key and reports the state of the current period.
func (l FixedWindow) Allow(ctx context.Context, key string, window time.Duration, limit int) (allowed bool, remaining int, reset time.Time, err error) {
	if l.Store == nil || limit <= 0 || window <= 0 {
		return true, limit, time.Now().Add(window), nil
	}
	lctx, err := l.Store.Get(ctx, key, limiter.Rate{Period: window, Limit: int64(limit)})
	if err != nil {
		return false, 0, time.Now().Add(window), fmt.Errorf("fixed window %s: %w", key, err)
	}
	return !lctx.Reached, int(lctx.Remaining), time.Unix(lctx.Reset, 0), nil
}
