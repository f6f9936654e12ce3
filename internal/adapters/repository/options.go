package repository

import "time"

// Option applies a configuration option to the GormStore.
type Option func(*GormStore)

// WithMaxOpenConns bounds the database/sql pool.
func WithMaxOpenConns(n int) Option {
	return func(s *GormStore) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}

// WithConnMaxLifetime sets how long a pooled connection may be reused.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(s *GormStore) {
		if d > 0 {
			s.connMaxLifetime = d
		}
	}
}

// WithTracing installs the OpenTelemetry gorm plugin.
func WithTracing(enabled bool) Option {
	return func(s *GormStore) {
		s.tracing = enabled
	}
}

// WithSlowQueryThreshold sets the duration above which queries are logged as slow.
func WithSlowQueryThreshold(d time.Duration) Option {
	return func(s *GormStore) {
		if d > 0 {
			s.slowThreshold = d
		}
	}
}
