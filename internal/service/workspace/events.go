package workspace

import (
	"sync"

	models "canvasdesk/internal/domain/models/workspace"
)

// EventType names a workspace event.
type EventType string

const (
	// EventSnapshot carries the full snapshot after any state change
	EventSnapshot EventType = "snapshot"
	// EventDegraded fires once when the session falls back to Local
	EventDegraded EventType = "degraded"
	// EventEvicted fires when a canvas's content leaves memory
	EventEvicted EventType = "canvas_evicted"
	// EventRolledBack fires when an optimistic move or reorder was reverted
	EventRolledBack EventType = "rolled_back"
)

// Event is delivered to subscribers.
type Event struct {
	Type     EventType        `json:"type"`
	Snapshot *models.Snapshot `json:"snapshot,omitempty"`
	CanvasID string           `json:"canvas_id,omitempty"`
	Message  string           `json:"message,omitempty"`
}

const subscriberBuffer = 16

// Broker fans events out to subscribers. A slow subscriber loses its oldest
// buffered event rather than blocking the workspace.
type Broker struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewBroker creates an empty broker
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a func that ends the subscription
// and closes the channel.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Publish delivers ev to every subscriber without blocking.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		// Buffer full: drop the oldest event
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close ends all subscriptions.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
