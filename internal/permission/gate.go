package permission

import (
	"context"
	"log/slog"

	"github.com/mosaicui/mosaic/internal/channel"
	"github.com/mosaicui/mosaic/internal/faults"
	"github.com/mosaicui/mosaic/internal/path"
)

// noopHandler backs permission markers. Markers exist for their pattern, not
// their behavior.
var noopHandler = channel.HandlerFunc(func(ctx context.Context, event channel.Event) error {
	return nil
})

// Gate loads permission rules into subscriber channels and answers
// permission checks against them.
type Gate struct {
	registry *channel.Registry
	source   Source
	logger   *slog.Logger
}

// NewGate creates a gate over the given registry and rules source. A nil
// logger falls back to slog.Default().
func NewGate(registry *channel.Registry, source Source, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		registry: registry,
		source:   source,
		logger:   logger.With("component", "permission"),
	}
}

// Load reads the rule set for the identity from the source and registers a
// permission marker on the identity's channel for every rule in every action
// bucket. A malformed individual rule is logged and skipped; the remaining
// rules still load. Only a source read failure returns an error.
func (g *Gate) Load(id string) error {
	if id == "" {
		return faults.WrapInvalid(ErrEmptyIdentity, "permission", "Load", "validate identity")
	}

	rules, err := g.source.Rules(id)
	if err != nil {
		return faults.WrapTransient(err, "permission", "Load", "read rules for "+id)
	}

	ch := g.registry.Get(id)
	for _, action := range []Action{ActionOn, ActionEmit} {
		for _, rule := range rules.For(action) {
			if err := g.mark(ch, action, rule); err != nil {
				g.logger.Warn("skipping malformed permission rule",
					"widget", id,
					"action", string(action),
					"rule", rule.String(),
					"error", err)
			}
		}
	}
	return nil
}

// mark registers one permission marker, validating the rule first.
func (g *Gate) mark(ch *channel.Channel, action Action, rule path.Path) error {
	if !rule.IsValid() {
		return ErrInvalidRule
	}
	_, err := ch.Subscribe(MarkerPath(action, rule), noopHandler)
	return err
}

// Has reports whether the identity may perform the action on the event path.
// The catch-all marker perm.<action>.* short-circuits pattern evaluation;
// otherwise the fully-qualified perm.<action>.<path> is matched against the
// channel's segment patterns, real and marker alike. Any-event listeners do
// not count: they subscribe to events, and marker paths are not events.
// Never panics: a missing channel or malformed path is "no permission".
func (g *Gate) Has(action Action, id string, eventPath path.Path) bool {
	if id == "" || !eventPath.IsValid() {
		return false
	}

	ch, exists := g.registry.Lookup(id)
	if !exists {
		return false
	}

	if ch.HasExact(CatchAll(action)) {
		return true
	}
	return ch.Matches(MarkerPath(action, eventPath))
}

// MarkerPath builds the marker path perm.<action>.<rule>.
func MarkerPath(action Action, p path.Path) path.Path {
	segments := append([]string{path.PermNamespace, string(action)}, p.Segments()...)
	return path.Join(segments...)
}

// CatchAll returns the unconditional-grant marker perm.<action>.*.
func CatchAll(action Action) path.Path {
	return path.Join(path.PermNamespace, string(action), path.Wildcard)
}
