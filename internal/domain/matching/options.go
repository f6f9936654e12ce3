package matching

import (
	"time"

	"github.com/okian/xpand/pkg/logger"
	"go.opentelemetry.io/otel/trace"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLocker serializes rebuilds of one project across processes.
func WithLocker(l Locker) Option {
	return func(e *Engine) {
		if l != nil {
			e.locker = l
		}
	}
}

// WithClock replaces the wall clock used for match timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithTracerProvider sets the provider the engine's spans come from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		if tp != nil {
			e.tracer = tp.Tracer(tracerName)
		}
	}
}
