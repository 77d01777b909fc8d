// Package eventstream carries one workspace's events on a long-lived
// mstream.Stream. Every event gets a sequential id, and the most recent ones
// are kept so a client that reconnects with Last-Event-ID resumes where it
// left off instead of starting over.
package eventstream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mstream "github.com/haowjy/meridian-stream-go"

	"canvasdesk/internal/service/workspace"
)

// clientBuffer is the per-client channel size. A client that falls further
// behind misses events and must resume from its last id.
const clientBuffer = 64

// Source is the event producer a stream forwards.
type Source interface {
	OwnerID() string
	Subscribe() (<-chan workspace.Event, func())
}

// Message is what a client receives: a workspace event and the id to resume
// after it.
type Message struct {
	ID string `json:"id,omitempty"`
	workspace.Event
}

// New creates the stream for src, keyed by its owner. It subscribes right
// away, so nothing published between New and Start is lost; call Start
// before handing the stream to clients. The stream completes when src stops
// publishing and is cancelled with Cancel.
func New(src Source, replay int, logger *slog.Logger) *mstream.Stream {
	if logger == nil {
		logger = slog.Default()
	}
	events, unsubscribe := src.Subscribe()

	work := func(ctx context.Context, send func(mstream.Event)) error {
		defer unsubscribe()
		for {
			select {
			case ev, open := <-events:
				if !open {
					return nil
				}
				data, err := json.Marshal(ev)
				if err != nil {
					logger.Error("failed to marshal workspace event", "type", ev.Type, "error", err)
					continue
				}
				send(mstream.NewEvent(data).WithType(string(ev.Type)))

			case <-ctx.Done():
				return nil
			}
		}
	}

	return mstream.NewStream(src.OwnerID(), work,
		mstream.WithBuffer(NewRingBuffer(replay)),
		mstream.WithBufferSize(clientBuffer),
		mstream.WithEventIDs(true),
	)
}

// Decode turns a stream event back into the message sent to clients.
func Decode(ev mstream.Event) (Message, error) {
	var msg Message
	if err := json.Unmarshal(ev.Data, &msg.Event); err != nil {
		return Message{}, fmt.Errorf("decode %s event: %w", ev.Type, err)
	}
	msg.ID = ev.ID
	return msg, nil
}
