// Package navigation drives a multi-page form: it tracks visited pages,
// derives how far the user may jump ahead, and moves between pages only when
// validation allows it. Page events are published on a Bus so steppers and
// remote clients can follow progress; the events unlock step indicators and
// carry no validation authority.
package navigation

import (
	"slices"
	"sync"
)

// EventKind names a page event.
type EventKind string

const (
	EventVisited   EventKind = "visited"
	EventValidated EventKind = "validated"
)

// Event reports that a page was visited or validated.
type Event struct {
	Kind EventKind `json:"kind"`
	Page int       `json:"page"`
}

// Bus fans events out to subscribers in subscription order. Subscribing and
// unsubscribing is safe from any goroutine; handlers run on the emitting
// goroutine.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   []busSub
}

type busSub struct {
	id   int
	kind EventKind
	fn   func(Event)
}

// Subscribe registers fn for every event kind.
func (b *Bus) Subscribe(fn func(Event)) func() {
	return b.subscribe("", fn)
}

// OnVisited registers fn for visited events.
func (b *Bus) OnVisited(fn func(page int)) func() {
	return b.subscribe(EventVisited, func(e Event) { fn(e.Page) })
}

// OnValidated registers fn for validated events.
func (b *Bus) OnValidated(fn func(page int)) func() {
	return b.subscribe(EventValidated, func(e Event) { fn(e.Page) })
}

// Emit delivers e to matching subscribers.
func (b *Bus) Emit(e Event) {
	b.mu.Lock()
	subs := slices.Clone(b.subs)
	b.mu.Unlock()
	for _, sub := range subs {
		if sub.kind == "" || sub.kind == e.Kind {
			sub.fn(e)
		}
	}
}

func (b *Bus) subscribe(kind EventKind, fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, busSub{id: id, kind: kind, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs = slices.DeleteFunc(b.subs, func(s busSub) bool { return s.id == id })
	}
}
