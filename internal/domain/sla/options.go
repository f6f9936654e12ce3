package sla

import (
	"time"

	"github.com/okian/xpand/pkg/logger"
	"go.opentelemetry.io/otel/trace"
)

// Option applies a configuration option to the Monitor.
type Option func(*Monitor)

// WithClock replaces the wall clock used to age matches.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets a custom logger for the monitor.
func WithLogger(l logger.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.log = l
		}
	}
}

// WithTracerProvider sets the provider the monitor's spans come from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Monitor) {
		if tp != nil {
			m.tracer = tp.Tracer(tracerName)
		}
	}
}
