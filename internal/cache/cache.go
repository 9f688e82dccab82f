package cache

import (
	"context"
	"time"

	"goldpos/backend/internal/domain"
)

// RateCache holds the current rate snapshot in front of the store.
type RateCache interface {
	Get(ctx context.Context) (*domain.RateSnapshot, bool, error)
	// Set stores value unless the cache already holds a higher version.
	Set(ctx context.Context, value *domain.RateSnapshot, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopRateCache struct{}

func (NoopRateCache) Get(_ context.Context) (*domain.RateSnapshot, bool, error) {
	return nil, false, nil
}

func (NoopRateCache) Set(_ context.Context, _ *domain.RateSnapshot, _ time.Duration) error {
	return nil
}

func (NoopRateCache) Invalidate(_ context.Context) error {
	return nil
}
