// Package channel provides per-subscriber pubsub channels and the registry
// that owns them. Each widget gets exactly one channel; its subscriptions and
// permission markers share a single wildcard pattern index so permission
// checks reuse the same matching machinery as event delivery.
package channel

import (
	"sync"

	"github.com/mosaicui/mosaic/internal/path"
)

// Channel is an isolated pubsub scope owned by one subscriber identity.
// It is safe for concurrent use.
type Channel struct {
	owner string

	mu      sync.RWMutex
	subs    map[path.Path][]*Subscription
	byID    map[string]*Subscription
	any     []*Subscription // whole-path "*" listeners
	matcher *path.Matcher
}

// New creates an empty wildcard-capable channel for the given identity.
func New(owner string) *Channel {
	return &Channel{
		owner:   owner,
		subs:    make(map[path.Path][]*Subscription),
		byID:    make(map[string]*Subscription),
		matcher: path.NewMatcher(),
	}
}

// Owner returns the subscriber identity that owns the channel.
func (c *Channel) Owner() string {
	return c.owner
}

// Subscribe registers a handler under the given pattern. The whole-path
// pattern "*" registers an any-event listener that matches every path on the
// channel regardless of segment count. Subscriptions under a pattern keep
// registration order.
func (c *Channel) Subscribe(pattern path.Path, handler Handler) (*Subscription, error) {
	if !pattern.IsValid() {
		return nil, ErrInvalidPattern
	}
	if handler == nil {
		return nil, ErrNilHandler
	}

	sub := newSubscription(c.owner, pattern, handler)

	c.mu.Lock()
	defer c.mu.Unlock()

	if pattern.IsAny() {
		c.any = append(c.any, sub)
	} else {
		c.subs[pattern] = append(c.subs[pattern], sub)
		c.matcher.Add(pattern)
	}
	c.byID[sub.id] = sub

	return sub, nil
}

// Unsubscribe removes a subscription by ID. Returns false if the ID is not
// registered on this channel.
func (c *Channel) Unsubscribe(subID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	sub, exists := c.byID[subID]
	if !exists {
		return false
	}

	if sub.pattern.IsAny() {
		for i, s := range c.any {
			if s.id == subID {
				c.any = append(c.any[:i], c.any[i+1:]...)
				break
			}
		}
	} else {
		subs := c.subs[sub.pattern]
		for i, s := range subs {
			if s.id == subID {
				c.subs[sub.pattern] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		// Clean up empty pattern entries
		if len(c.subs[sub.pattern]) == 0 {
			delete(c.subs, sub.pattern)
			c.matcher.Remove(sub.pattern)
		}
	}

	delete(c.byID, subID)
	return true
}

// HasExact reports whether at least one subscription is registered under the
// literal pattern. Wildcard segments compare literally; this is the
// catch-all marker existence check.
func (c *Channel) HasExact(pattern path.Path) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if pattern.IsAny() {
		return len(c.any) > 0
	}
	return c.matcher.Has(pattern)
}

// Matches reports whether at least one registered listener, real or marker,
// matches the given event path under wildcard-segment semantics. Any-event
// listeners match every event path, but not reserved marker paths: "*"
// subscribes to events, it does not grant anything.
func (c *Channel) Matches(event path.Path) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.any) > 0 && !event.IsReserved() {
		return true
	}
	return c.matcher.MatchesAny(event)
}

// Handlers returns the subscriptions matching the given event path, in
// registration order within each pattern, any-event listeners last. The
// returned slice is a copy.
func (c *Channel) Handlers(event path.Path) []*Subscription {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []*Subscription
	for _, pattern := range c.matcher.Match(event) {
		result = append(result, c.subs[pattern]...)
	}
	result = append(result, c.any...)
	return result
}

// Patterns returns all registered patterns, any-event listeners included.
func (c *Channel) Patterns() []path.Path {
	c.mu.RLock()
	defer c.mu.RUnlock()

	patterns := c.matcher.Patterns()
	if len(c.any) > 0 {
		patterns = append(patterns, path.Path(path.Wildcard))
	}
	return patterns
}

// Len returns the number of registered subscriptions, markers included.
func (c *Channel) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.byID)
}

// Clear removes every subscription and permission marker. The channel
// remains usable afterwards.
func (c *Channel) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subs = make(map[path.Path][]*Subscription)
	c.byID = make(map[string]*Subscription)
	c.any = nil
	c.matcher.Clear()
}
