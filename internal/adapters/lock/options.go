package lock

import (
	"time"

	"github.com/okian/xpand/pkg/logger"
)

// Option applies a configuration option to the RedisLocker.
type Option func(*RedisLocker)

// WithTTL sets the lease duration.
func WithTTL(ttl time.Duration) Option {
	return func(l *RedisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithKeyPrefix sets the prefix prepended to every key.
func WithKeyPrefix(prefix string) Option {
	return func(l *RedisLocker) {
		l.prefix = prefix
	}
}

// WithLogger sets the logger used for release failures.
func WithLogger(log logger.Logger) Option {
	return func(l *RedisLocker) {
		if log != nil {
			l.log = log
		}
	}
}
