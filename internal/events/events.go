// Package events carries the reservation change feed. Every insert or
// delete publishes a Change so connected sessions re-fetch their
// snapshot; with Redis configured the feed fans out across instances.
package events

import (
	"sync"
	"time"

	"descansos/internal/models"
)

// Change kinds.
const (
	KindCreated = "created"
	KindDeleted = "deleted"
)

// Change is one reservation mutation event.
type Change struct {
	Kind        string             `json:"kind"`
	Reservation models.Reservation `json:"reservation"`
	At          time.Time          `json:"at"`
}

// Bus provides in-process pub/sub for reservation changes.
type Bus struct {
	mu     sync.Mutex
	subs   map[int64]chan Change
	nextID int64
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int64]chan Change)}
}

// Subscribe registers a buffered subscriber channel. The returned id
// releases the subscription via Unsubscribe.
func (b *Bus) Subscribe(buffer int) (int64, <-chan Change) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Change, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber.
func (b *Bus) Unsubscribe(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers the change to all subscribers. Slow subscribers with
// full buffers are skipped; the feed is a refresh hint, not a log.
func (b *Bus) Publish(ev Change) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
