package channel

import (
	"time"

	"github.com/mosaicui/mosaic/internal/path"
)

// Event is a published event as delivered to channel subscribers.
type Event struct {
	// Path is the event path the publisher used.
	Path path.Path

	// Args carries the published arguments in order.
	Args []any

	// Meta carries delivery metadata.
	Meta Meta
}

// Meta contains event metadata assigned at publish time.
type Meta struct {
	// ID uniquely identifies the publish invocation.
	ID string

	// Source names the originating widget identity, or "host" for
	// host-issued publishes.
	Source string

	// Timestamp is when the event was published (not delivered; queued
	// events keep their original timestamp).
	Timestamp time.Time
}

// Arg returns the i-th published argument, or nil when absent.
func (e Event) Arg(i int) any {
	if i < 0 || i >= len(e.Args) {
		return nil
	}
	return e.Args[i]
}
