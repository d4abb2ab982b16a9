package channel

import "sync"

// Registry owns one channel per subscriber identity. Channels are created
// lazily on first access and torn down on widget stop. It is safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Channel
	order    []string // identities in creation order, drives fan-out
}

// NewRegistry creates an empty channel registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]*Channel),
	}
}

// Get returns the channel for the identity, creating and storing a new empty
// one on first access.
func (r *Registry) Get(id string) *Channel {
	r.mu.RLock()
	ch, exists := r.channels[id]
	r.mu.RUnlock()
	if exists {
		return ch
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check: another goroutine may have created it
	if ch, exists := r.channels[id]; exists {
		return ch
	}

	ch = New(id)
	r.channels[id] = ch
	r.order = append(r.order, id)
	return ch
}

// Has reports whether a channel exists for the identity without creating one.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.channels[id]
	return exists
}

// Lookup returns the channel for the identity without creating one.
func (r *Registry) Lookup(id string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, exists := r.channels[id]
	return ch, exists
}

// Remove clears all subscriptions on the identity's channel, then removes it
// from the registry. Removing an unknown identity is a no-op. A subsequent
// Get for the same identity yields a brand-new empty channel.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	ch, exists := r.channels[id]
	if exists {
		delete(r.channels, id)
		for i, existing := range r.order {
			if existing == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	if exists {
		ch.Clear()
	}
}

// Identities returns the registered identities in creation order.
func (r *Registry) Identities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, len(r.order))
	copy(result, r.order)
	return result
}

// Channels returns a snapshot of all channels in creation order.
func (r *Registry) Channels() []*Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Channel, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.channels[id])
	}
	return result
}

// Len returns the number of registered channels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.channels)
}

// Clear tears down every channel and empties the registry.
func (r *Registry) Clear() {
	r.mu.Lock()
	channels := r.channels
	r.channels = make(map[string]*Channel)
	r.order = nil
	r.mu.Unlock()

	for _, ch := range channels {
		ch.Clear()
	}
}
