// Package redisstore backs the invoice counter and the ledger lock with
// Redis so several server instances can share them.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	sequenceKeyPrefix = "goldpos:invoice-seq:"
	lockKeyPrefix     = "goldpos:ledger-lock:"
	// sequenceTTL keeps a day's counter well past the day it numbers.
	sequenceTTL = 72 * time.Hour
)

var ErrLockNotObtained = errors.New("ledger lock not obtained")

func NewClient(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Counter hands out per-date invoice sequences with INCR.
type Counter struct {
	client redis.UniversalClient
}

func NewCounter(client redis.UniversalClient) *Counter {
	return &Counter{client: client}
}

func (c *Counter) NextInvoiceSequence(ctx context.Context, dateKey string) (int64, error) {
	key := sequenceKeyPrefix + dateKey
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, sequenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Locker serializes ledger writes for a business day across processes.
type Locker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
	log    *zap.Logger
}

// NewLocker holds each lock for at most ttl and retries for up to wait
// before giving up.
func NewLocker(client redis.UniversalClient, ttl time.Duration, wait time.Duration, log *zap.Logger) *Locker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if wait <= 0 {
		wait = ttl
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Locker{client: redislock.New(client), ttl: ttl, wait: wait, log: log}
}

func (l *Locker) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	lockCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	lock, err := l.client.Obtain(lockCtx, lockKeyPrefix+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(25 * time.Millisecond),
	})
	if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) {
		l.log.Warn("could not obtain ledger lock", zap.String("business_day", key))
		return nil, ErrLockNotObtained
	}
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		err := lock.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			return nil
		}
		return err
	}, nil
}
