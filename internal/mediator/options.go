package mediator

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a Mediator.
type Option func(*config)

// config contains construction-time configuration for the mediator.
type config struct {
	// logger receives structured mediation logs.
	logger *slog.Logger

	// registerer receives mediator metrics; nil disables metrics.
	registerer prometheus.Registerer

	// enforceEmit wires emit-side permission checks into widget-originated
	// publishes. Host publishes are never filtered.
	enforceEmit bool
}

// defaultConfig returns the default mediator configuration.
func defaultConfig() config {
	return config{
		logger: slog.Default(),
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics registers mediator metrics with the given registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *config) {
		c.registerer = reg
	}
}

// WithEmitEnforcement enables emit-side permission filtering for
// widget-originated publishes. Disabled by default: permission is enforced
// at subscribe time only, and emit grants exist as queryable capability.
func WithEmitEnforcement(enabled bool) Option {
	return func(c *config) {
		c.enforceEmit = enabled
	}
}
