package mediator

import (
	"context"
	"sort"
)

// Suspend marks the given identities as pending loads and suspends delivery.
// With no arguments it adds an anonymous hold instead, for callers that need
// to pause delivery outside a widget load cycle. Empty identities are
// ignored.
func (m *Mediator) Suspend(ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(ids) == 0 {
		m.holds++
	} else {
		for _, id := range ids {
			if id != "" {
				m.pending[id] = struct{}{}
			}
		}
	}
	m.suspended = m.holds > 0 || len(m.pending) > 0
}

// Settle removes an identity from the pending load set. When the last
// pending identity settles and no holds remain, the buffered queue drains.
// Returns true if this call drained the queue. Settling an identity that
// was never pending is a no-op.
func (m *Mediator) Settle(ctx context.Context, id string) bool {
	m.mu.Lock()
	delete(m.pending, id)
	batch, ok := m.drainLocked()
	m.mu.Unlock()

	if !ok {
		return false
	}
	m.replay(ctx, batch)
	return true
}

// Pause adds an anonymous suspension hold. Events published while paused
// buffer exactly as they do during widget loads.
func (m *Mediator) Pause() {
	m.Suspend()
}

// Resume releases one anonymous hold. The queue drains once no holds and no
// pending loads remain. Returns true if this call drained the queue.
func (m *Mediator) Resume(ctx context.Context) bool {
	m.mu.Lock()
	if m.holds > 0 {
		m.holds--
	}
	batch, ok := m.drainLocked()
	m.mu.Unlock()

	if !ok {
		return false
	}
	m.replay(ctx, batch)
	return true
}

// drainLocked flips suspension off and takes ownership of the buffered
// batch when nothing remains pending. Callers hold m.mu. The flag flips
// before replay so reentrant publishes from replayed handlers deliver
// immediately instead of re-buffering.
func (m *Mediator) drainLocked() ([]queuedEmit, bool) {
	if !m.suspended || m.holds > 0 || len(m.pending) > 0 {
		return nil, false
	}
	m.suspended = false
	batch := m.queue
	m.queue = nil
	return batch, true
}

// replay re-publishes a drained batch in FIFO order. Each item goes back
// through the publish path, so if a replayed handler re-suspends the
// mediator the remainder of the batch re-buffers instead of leaking into a
// new load cycle.
func (m *Mediator) replay(ctx context.Context, batch []queuedEmit) {
	m.drains.Add(1)
	m.metrics.incDrain(0)

	for _, q := range batch {
		m.mu.Lock()
		if m.suspended {
			m.queue = append(m.queue, q)
			depth := len(m.queue)
			m.mu.Unlock()

			m.queuedTotal.Add(1)
			m.metrics.incQueued(depth)
			continue
		}
		m.mu.Unlock()

		m.deliver(ctx, Event{Path: q.path, Args: q.args, Meta: q.meta})
	}
}

// Suspended reports whether publishes are currently buffered.
func (m *Mediator) Suspended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suspended
}

// QueueLen returns the number of buffered publish invocations.
func (m *Mediator) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// PendingLoads returns the identities currently holding delivery suspended,
// sorted for stable output.
func (m *Mediator) PendingLoads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.pending))
	for id := range m.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
