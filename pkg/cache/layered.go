package cache

import (
	"context"
	"errors"
	"time"
)

// LayeredCache reads through a fast local layer before the shared one and
// writes to both. A shared-layer failure on Set is returned so callers can
// decide whether staleness matters; reads fall back silently.
type LayeredCache struct {
	local  Service
	shared Service
}

// NewLayeredCache composes a local (L1) and shared (L2) cache.
func NewLayeredCache(local, shared Service) *LayeredCache {
	return &LayeredCache{local: local, shared: shared}
}

func (lc *LayeredCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := lc.local.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return lc.shared.Set(ctx, key, value, ttl)
}

func (lc *LayeredCache) Get(ctx context.Context, key string) (string, error) {
	if v, err := lc.local.Get(ctx, key); err == nil {
		return v, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		return "", err
	}

	v, err := lc.shared.Get(ctx, key)
	if err != nil {
		return "", err
	}
	// promote to L1; TTL unknown here, keep it short
	_ = lc.local.Set(ctx, key, v, time.Minute)
	return v, nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	if err := lc.local.Delete(ctx, keys...); err != nil {
		return err
	}
	return lc.shared.Delete(ctx, keys...)
}

func (lc *LayeredCache) Close() error {
	if err := lc.local.Close(); err != nil {
		return err
	}
	return lc.shared.Close()
}
