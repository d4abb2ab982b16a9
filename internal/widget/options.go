package widget

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mosaicui/mosaic/internal/sandbox"
)

// DefaultLoadTimeout bounds one widget module load.
const DefaultLoadTimeout = 10 * time.Second

// SandboxHook runs between sandbox instantiation and module execution. It
// may install extra modules on the state or return a replacement; returning
// nil keeps the original.
type SandboxHook func(s *sandbox.State, identity string) *sandbox.State

// Option configures a Manager.
type Option func(*config)

// config contains construction-time configuration for the manager.
type config struct {
	// logger receives structured lifecycle logs.
	logger *slog.Logger

	// registerer receives widget metrics; nil disables metrics.
	registerer prometheus.Registerer

	// surface clears widget mount points on stop; nil logs and skips.
	surface Surface

	// hook customizes freshly instantiated sandboxes.
	hook SandboxHook

	// loadTimeout bounds one module load.
	loadTimeout time.Duration
}

// defaultConfig returns the default manager configuration.
func defaultConfig() config {
	return config{
		logger:      slog.Default(),
		loadTimeout: DefaultLoadTimeout,
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

// WithMetrics registers widget metrics with the given registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *config) {
		c.registerer = reg
	}
}

// WithSurface sets the rendering surface consulted on stop.
func WithSurface(surface Surface) Option {
	return func(c *config) {
		c.surface = surface
	}
}

// WithSandboxHook sets the sandbox customization hook.
func WithSandboxHook(hook SandboxHook) Option {
	return func(c *config) {
		c.hook = hook
	}
}

// WithLoadTimeout sets the per-widget module load deadline.
func WithLoadTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.loadTimeout = d
		}
	}
}
