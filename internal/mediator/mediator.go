// Package mediator implements the event router coordinating widget channels:
// permission-gated subscribe, publish with load-suspension queueing, and
// fan-out across all registered channels with per-channel fault isolation.
package mediator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mosaicui/mosaic/internal/channel"
	"github.com/mosaicui/mosaic/internal/faults"
	"github.com/mosaicui/mosaic/internal/path"
	"github.com/mosaicui/mosaic/internal/permission"
)

// Aliases re-exported so callers rarely need the channel package directly.
type (
	// Event is a published event as seen by handlers.
	Event = channel.Event

	// Handler processes delivered events.
	Handler = channel.Handler

	// HandlerFunc is a function adapter for Handler.
	HandlerFunc = channel.HandlerFunc

	// Subscription is a registered listener handle.
	Subscription = channel.Subscription
)

// HostSource is the event source recorded for host-issued publishes.
const HostSource = "host"

// Mediator is the single public entry point for event mediation. It owns the
// channel registry, the permission gate, and the load-suspension queue; one
// instance is one isolated mediation context.
type Mediator struct {
	registry    *channel.Registry
	gate        *permission.Gate
	logger      *slog.Logger
	metrics     *metrics
	enforceEmit bool

	// Suspension state. The mutex covers the pending set, holds, flag and
	// queue so queue appends observe a consistent suspension decision.
	mu        sync.Mutex
	pending   map[string]struct{}
	holds     int
	suspended bool
	queue     []queuedEmit

	published      atomic.Uint64
	queuedTotal    atomic.Uint64
	delivered      atomic.Uint64
	deliveryFaults atomic.Uint64
	deniedOn       atomic.Uint64
	deniedEmit     atomic.Uint64
	drains         atomic.Uint64
}

// queuedEmit is one buffered publish invocation. Metadata is assigned at
// issuance, so replayed events keep their original ID and timestamp.
type queuedEmit struct {
	path path.Path
	args []any
	meta channel.Meta
}

// New creates a mediator reading permission rules from the given source.
func New(source permission.Source, opts ...Option) *Mediator {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.logger.With("component", "mediator")

	mets, err := newMetrics(cfg.registerer)
	if err != nil {
		logger.Error("failed to register mediator metrics", "error", err)
		mets = nil // Continue without metrics
	}

	registry := channel.NewRegistry()
	return &Mediator{
		registry:    registry,
		gate:        permission.NewGate(registry, source, cfg.logger),
		logger:      logger,
		metrics:     mets,
		enforceEmit: cfg.enforceEmit,
		pending:     make(map[string]struct{}),
	}
}

// Registry returns the channel registry owned by the mediator.
func (m *Mediator) Registry() *channel.Registry {
	return m.registry
}

// Gate returns the permission gate owned by the mediator.
func (m *Mediator) Gate() *permission.Gate {
	return m.gate
}

// On subscribes handler to eventPath on the subscriber's channel. The
// whole-path pattern "*" listens to every event on that channel. Malformed
// arguments return an invalid-class error; a missing "on" grant silently
// subscribes nothing and returns (nil, nil), since permission denial is
// expected filtering, not an exceptional condition.
func (m *Mediator) On(eventPath path.Path, subscriberID string, handler Handler) (*Subscription, error) {
	if !eventPath.IsValid() {
		return nil, m.invalidArg("On", fmt.Errorf("%w: %q", ErrInvalidPath, eventPath))
	}
	// Subscribing under the permission namespace would plant a grant marker
	// on the caller's own channel. Only the gate registers there.
	if eventPath.IsReserved() {
		return nil, m.invalidArg("On", fmt.Errorf("%w: reserved namespace %q", ErrInvalidPath, eventPath))
	}
	if subscriberID == "" {
		return nil, m.invalidArg("On", ErrEmptyIdentity)
	}
	if handler == nil {
		return nil, m.invalidArg("On", ErrNilHandler)
	}

	if !m.gate.Has(permission.ActionOn, subscriberID, eventPath) {
		m.deniedOn.Add(1)
		m.metrics.incDenied(string(permission.ActionOn))
		m.logger.Debug("subscribe filtered", "widget", subscriberID, "path", eventPath.String())
		return nil, nil
	}

	sub, err := m.registry.Get(subscriberID).Subscribe(eventPath, handler)
	if err != nil {
		return nil, m.invalidArg("On", err)
	}
	return sub, nil
}

// Off removes a subscription previously returned by On. Nil subscriptions
// and already-removed subscriptions return false.
func (m *Mediator) Off(sub *Subscription) bool {
	if sub == nil {
		return false
	}
	ch, exists := m.registry.Lookup(sub.Owner())
	if !exists {
		return false
	}
	return ch.Unsubscribe(sub.ID())
}

// Emit publishes an event from the host. While suspended the invocation is
// buffered and (false, nil) is returned; otherwise the event fans out to
// every registered channel and (true, nil) is returned once fan-out
// completes, regardless of per-channel outcomes.
func (m *Mediator) Emit(ctx context.Context, eventPath path.Path, args ...any) (bool, error) {
	return m.publish(ctx, HostSource, eventPath, args)
}

// EmitFrom publishes an event on behalf of a widget. With emit enforcement
// enabled, an origin lacking an "emit" grant for the path is silently
// filtered, mirroring subscribe-side denial. Host publishes via Emit are
// never filtered.
func (m *Mediator) EmitFrom(ctx context.Context, origin string, eventPath path.Path, args ...any) (bool, error) {
	if origin == "" {
		return false, m.invalidArg("EmitFrom", ErrEmptyIdentity)
	}
	if !eventPath.IsValid() {
		return false, m.invalidArg("EmitFrom", fmt.Errorf("%w: %q", ErrInvalidPath, eventPath))
	}

	if m.enforceEmit && !m.gate.Has(permission.ActionEmit, origin, eventPath) {
		m.deniedEmit.Add(1)
		m.metrics.incDenied(string(permission.ActionEmit))
		m.logger.Debug("publish filtered", "widget", origin, "path", eventPath.String())
		return false, nil
	}
	return m.publish(ctx, origin, eventPath, args)
}

// publish buffers the invocation while suspended, otherwise delivers now.
func (m *Mediator) publish(ctx context.Context, source string, eventPath path.Path, args []any) (bool, error) {
	if !eventPath.IsValid() {
		return false, m.invalidArg("Emit", fmt.Errorf("%w: %q", ErrInvalidPath, eventPath))
	}
	if eventPath.IsReserved() {
		return false, m.invalidArg("Emit", fmt.Errorf("%w: reserved namespace %q", ErrInvalidPath, eventPath))
	}

	meta := channel.Meta{
		ID:        uuid.NewString(),
		Source:    source,
		Timestamp: time.Now(),
	}

	m.mu.Lock()
	if m.suspended {
		m.queue = append(m.queue, queuedEmit{path: eventPath, args: args, meta: meta})
		depth := len(m.queue)
		m.mu.Unlock()

		m.queuedTotal.Add(1)
		m.metrics.incQueued(depth)
		return false, nil
	}
	m.mu.Unlock()

	m.deliver(ctx, Event{Path: eventPath, Args: args, Meta: meta})
	return true, nil
}

// deliver fans the event out to every registered channel in registration
// order. A fault on one subscription is logged and never stops the fan-out.
func (m *Mediator) deliver(ctx context.Context, ev Event) {
	m.published.Add(1)
	m.metrics.incPublished()

	for _, ch := range m.registry.Channels() {
		for _, sub := range ch.Handlers(ev.Path) {
			m.delivered.Add(1)
			m.metrics.incDelivered()

			if err := m.invoke(ctx, ch.Owner(), sub, ev); err != nil {
				m.deliveryFaults.Add(1)
				m.metrics.incDeliveryFault()
				m.logger.Error("delivery fault",
					"widget", ch.Owner(),
					"path", ev.Path.String(),
					"subscription", sub.ID(),
					"error", err)
			}
		}
	}
}

// invoke runs one handler with panic recovery.
func (m *Mediator) invoke(ctx context.Context, owner string, sub *channel.Subscription, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Widget: owner, Path: ev.Path.String(), Value: r}
		}
	}()

	if herr := sub.Handler().Handle(ctx, ev); herr != nil {
		return &DeliveryError{
			Widget:         owner,
			SubscriptionID: sub.ID(),
			Path:           ev.Path.String(),
			Err:            herr,
		}
	}
	return nil
}

func (m *Mediator) invalidArg(op string, err error) error {
	return faults.WrapInvalid(err, "mediator", op, "validate arguments")
}

// Stats is a point-in-time snapshot of mediator activity.
type Stats struct {
	Published      uint64
	Queued         uint64
	Delivered      uint64
	DeliveryFaults uint64
	DeniedOn       uint64
	DeniedEmit     uint64
	Drains         uint64
	QueueDepth     int
	Suspended      bool
	Channels       int
}

// Stats returns current mediator statistics.
func (m *Mediator) Stats() Stats {
	m.mu.Lock()
	depth := len(m.queue)
	suspended := m.suspended
	m.mu.Unlock()

	return Stats{
		Published:      m.published.Load(),
		Queued:         m.queuedTotal.Load(),
		Delivered:      m.delivered.Load(),
		DeliveryFaults: m.deliveryFaults.Load(),
		DeniedOn:       m.deniedOn.Load(),
		DeniedEmit:     m.deniedEmit.Load(),
		Drains:         m.drains.Load(),
		QueueDepth:     depth,
		Suspended:      suspended,
		Channels:       m.registry.Len(),
	}
}
