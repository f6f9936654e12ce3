// Package lock provides per-key mutual exclusion across service instances.
//
// The matching engine takes one lock per project so two instances (or an
// HTTP-triggered rebuild racing the scheduled refresh) never upsert the same
// project's matches at the same time.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/okian/xpand/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// ErrNotObtained is returned when another holder owns the key.
var ErrNotObtained = errors.New("lock not obtained")

// RedisLocker obtains leases on Redis keys through redislock.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	prefix string
	log    logger.Logger
}

// NewRedisLocker creates a locker on rdb.
func NewRedisLocker(rdb redis.Scripter, opts ...Option) *RedisLocker {
	l := &RedisLocker{
		client: redislock.New(rdb),
		ttl:    2 * time.Minute,
		prefix: "lock:",
		log:    logger.GetOrNop().Named("lock"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire obtains key for the configured TTL without retrying. The returned
// func releases the lease; it is safe to call after the TTL expired.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	full := l.prefix + key
	lk, err := l.client.Obtain(ctx, full, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, full)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain %s: %w", full, err)
	}

	return func() {
		// Release must run even when the caller's context is already done.
		rctx := context.WithoutCancel(ctx)
		if err := lk.Release(rctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.log.Warn(rctx, "failed to release lock", logger.String("key", full), logger.Error(err))
		}
	}, nil
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return rdb, nil
}
