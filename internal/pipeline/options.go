package pipeline

import (
	"log/slog"

	"github.com/roach88/fitmerge/internal/observability"
	"github.com/roach88/fitmerge/internal/schema"
)

type options struct {
	logger   *slog.Logger
	registry schema.Registry
	metrics  *observability.Metrics
}

// Option configures Run and Load.
type Option func(*options)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegistry replaces the embedded schema registry.
func WithRegistry(reg schema.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithMetrics records counters for the run.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.registry == nil {
		o.registry = schema.Default()
	}
	return o
}
