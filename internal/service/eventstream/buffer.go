package eventstream

import (
	"sync"

	mstream "github.com/haowjy/meridian-stream-go"
)

// RingBuffer keeps the last max events of a stream. A session's stream
// lives as long as the session, so the unbounded default buffer would grow
// forever.
type RingBuffer struct {
	mu     sync.RWMutex
	events []mstream.Event
	max    int
}

var _ mstream.Buffer = (*RingBuffer)(nil)

// NewRingBuffer creates a buffer holding at most max events. With max <= 0
// nothing is kept and every resume starts from a fresh snapshot.
func NewRingBuffer(max int) *RingBuffer {
	if max < 0 {
		max = 0
	}
	return &RingBuffer{max: max}
}

func (b *RingBuffer) Add(event mstream.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.max == 0 {
		return
	}
	if len(b.events) == b.max {
		copy(b.events, b.events[1:])
		b.events = b.events[:b.max-1]
	}
	b.events = append(b.events, event)
}

func (b *RingBuffer) GetAll() []mstream.Event {
	return b.Snapshot()
}

// GetSince returns the events after lastEventID, or nil when the id is
// empty, no longer held, or the newest event.
func (b *RingBuffer) GetSince(lastEventID string) []mstream.Event {
	if lastEventID == "" {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i, ev := range b.events {
		if ev.ID != lastEventID {
			continue
		}
		if i+1 == len(b.events) {
			return nil
		}
		out := make([]mstream.Event, len(b.events)-i-1)
		copy(out, b.events[i+1:])
		return out
	}
	return nil
}

func (b *RingBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}

func (b *RingBuffer) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}

func (b *RingBuffer) Snapshot() []mstream.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]mstream.Event, len(b.events))
	copy(out, b.events)
	return out
}
