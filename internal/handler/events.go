package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	mstream "github.com/haowjy/meridian-stream-go"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"canvasdesk/internal/allocator"
	"canvasdesk/internal/httputil"
	"canvasdesk/internal/service/eventstream"
	"canvasdesk/internal/service/workspace"
)

// DefaultKeepAliveInterval is how often an idle event stream is pinged.
// 10 seconds is safe for most proxies.
const DefaultKeepAliveInterval = 10 * time.Second

const writeTimeout = 5 * time.Second

// EventsHandler streams workspace events over a websocket
type EventsHandler struct {
	sessions       SessionProvider
	logger         *slog.Logger
	originPatterns []string
	keepAlive      time.Duration
}

// NewEventsHandler creates a new events handler. originPatterns lists the
// hosts allowed to open the stream cross-origin.
func NewEventsHandler(sessions SessionProvider, originPatterns []string, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		sessions:       sessions,
		logger:         logger,
		originPatterns: originPatterns,
		keepAlive:      DefaultKeepAliveInterval,
	}
}

// LastEventIDHeader names the last event a reconnecting client saw.
// Browsers cannot set headers on a websocket dial, so the last_event_id
// query parameter is accepted too.
const LastEventIDHeader = "Last-Event-ID"

// Stream sends the current snapshot, or the events missed since the last
// event id the client saw, then every workspace event until the client goes
// away
// GET /api/workspace/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	s, ok := sessionFor(h.sessions, h.logger, w, r)
	if !ok {
		return
	}
	logger := h.logger.With("owner_id", s.OwnerID)

	lastEventID := r.Header.Get(LastEventIDHeader)
	if lastEventID == "" {
		lastEventID = r.URL.Query().Get("last_event_id")
	}

	// Join before accepting so no event between replay and loop is lost
	clientID := allocator.NewID()
	events := s.Events.AddClient(clientID)
	defer s.Events.RemoveClient(clientID)

	switch s.Events.Status() {
	case mstream.StatusComplete, mstream.StatusCancelled, mstream.StatusError:
		httputil.RespondError(w, http.StatusServiceUnavailable, "workspace closed")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		// Accept has already written the response
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.CloseNow()

	logger.Debug("event stream opened", "client_id", clientID, "last_event_id", lastEventID)

	// Clients never send; CloseRead handles control frames and cancels ctx
	// when the peer closes.
	ctx := conn.CloseRead(r.Context())

	// Events both replayed and already queued on the channel go out once
	seen := make(map[string]struct{})
	replay := s.Events.GetEventsSince(lastEventID)
	if len(replay) == 0 {
		snap := s.Workspace.Snapshot()
		msg := eventstream.Message{Event: workspace.Event{Type: workspace.EventSnapshot, Snapshot: &snap}}
		if err := h.write(ctx, conn, msg); err != nil {
			logger.Debug("event stream closed", "error", err)
			return
		}
	} else {
		logger.Debug("replaying missed events", "count", len(replay))
	}
	for _, ev := range replay {
		seen[ev.ID] = struct{}{}
		if err := h.send(ctx, conn, ev); err != nil {
			logger.Debug("event stream closed", "error", err)
			return
		}
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case ev, open := <-events:
			if !open {
				conn.Close(websocket.StatusGoingAway, "workspace closed")
				return
			}
			if _, dup := seen[ev.ID]; dup {
				continue
			}
			if err := h.send(ctx, conn, ev); err != nil {
				logger.Debug("event stream closed", "error", err)
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warn("keep-alive ping failed, stopping", "error", err)
				return
			}

		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				logger.Debug("event stream closed by client")
			}
			return
		}
	}
}

func (h *EventsHandler) send(ctx context.Context, conn *websocket.Conn, ev mstream.Event) error {
	msg, err := eventstream.Decode(ev)
	if err != nil {
		h.logger.Error("dropping undecodable event", "id", ev.ID, "error", err)
		return nil
	}
	return h.write(ctx, conn, msg)
}

func (h *EventsHandler) write(ctx context.Context, conn *websocket.Conn, msg eventstream.Message) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}

// OriginPatterns turns configured CORS origins into websocket origin host patterns.
func OriginPatterns(corsOrigins []string) []string {
	patterns := make([]string, 0, len(corsOrigins))
	for _, origin := range corsOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, origin)
	}
	return patterns
}
