package channel

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mosaicui/mosaic/internal/path"
)

// Handler processes events delivered to a subscription.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription is one registered listener on a channel. Permission markers
// are plain subscriptions with a no-op handler under the reserved "perm"
// namespace.
type Subscription struct {
	id      string
	owner   string
	pattern path.Path
	handler Handler
	created time.Time
}

func newSubscription(owner string, pattern path.Path, handler Handler) *Subscription {
	return &Subscription{
		id:      uuid.NewString(),
		owner:   owner,
		pattern: pattern,
		handler: handler,
		created: time.Now(),
	}
}

// ID returns the unique subscription ID.
func (s *Subscription) ID() string {
	return s.id
}

// Owner returns the identity of the channel the subscription lives on.
func (s *Subscription) Owner() string {
	return s.owner
}

// Pattern returns the path pattern the subscription listens on.
func (s *Subscription) Pattern() path.Path {
	return s.pattern
}

// Handler returns the registered handler.
func (s *Subscription) Handler() Handler {
	return s.handler
}

// IsMarker reports whether the subscription is a permission marker rather
// than a real listener.
func (s *Subscription) IsMarker() bool {
	return s.pattern.IsReserved()
}

// Created returns when the subscription was registered.
func (s *Subscription) Created() time.Time {
	return s.created
}
