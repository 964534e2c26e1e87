package events

import (
	"log/slog"

	"github.com/mlange-42/ark/ecs"
)

// Tag names a component an entity must carry for a subscription to fire.
type Tag uint8

const (
	TagBrainSlug Tag = iota
	TagVitals
	TagInventory
	tagCount
)

// String returns the tag name.
func (t Tag) String() string {
	switch t {
	case TagBrainSlug:
		return "brain_slug"
	case TagVitals:
		return "vitals"
	case TagInventory:
		return "inventory"
	default:
		return "unknown"
	}
}

// Handler processes an event raised on target.
type Handler func(target ecs.Entity, ev Event)

// Tagger reports whether an entity carries the component behind a tag.
type Tagger interface {
	HasTag(e ecs.Entity, tag Tag) bool
}

type subscription struct {
	tag     Tag
	handler Handler
}

// Bus dispatches directed events to handlers subscribed by (tag, kind).
//
// Architecture:
//   - Synchronous: Raise returns after every matching handler ran
//   - Handlers run in subscription order
//   - A handler fires only if the target carries its tag
//   - Handlers see earlier handlers' Handle/Cancel flags on the same event
type Bus struct {
	tagger Tagger
	subs   [kindCount][]subscription
	raised [kindCount]uint64
}

// NewBus creates a bus that resolves tags through tagger.
func NewBus(tagger Tagger) *Bus {
	return &Bus{tagger: tagger}
}

// Subscribe registers handler for events of kind raised on entities carrying tag.
func (b *Bus) Subscribe(tag Tag, kind Kind, handler Handler) {
	if kind >= kindCount || tag >= tagCount {
		slog.Warn("ignoring subscription", "tag", tag, "kind", kind)
		return
	}
	b.subs[kind] = append(b.subs[kind], subscription{tag: tag, handler: handler})
}

// Raise dispatches ev on target and returns it for flag inspection.
func (b *Bus) Raise(target ecs.Entity, ev Event) Event {
	kind := ev.Kind()
	if kind >= kindCount {
		return ev
	}
	b.raised[kind]++
	for _, s := range b.subs[kind] {
		if !b.tagger.HasTag(target, s.tag) {
			continue
		}
		s.handler(target, ev)
	}
	return ev
}

// HandlerCount returns the number of handlers registered for kind.
func (b *Bus) HandlerCount(kind Kind) int {
	if kind >= kindCount {
		return 0
	}
	return len(b.subs[kind])
}

// RaisedCount returns how many events of kind have been raised.
func (b *Bus) RaisedCount(kind Kind) uint64 {
	if kind >= kindCount {
		return 0
	}
	return b.raised[kind]
}
