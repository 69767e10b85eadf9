package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/assetpipe/internal/telemetry"
)

const (
	// EventsPath is the server-sent events endpoint live reload clients subscribe to
	EventsPath = "/__assetpipe/events"
	// ClientPath serves the live reload client script
	ClientPath = "/__assetpipe/client.js"

	EventHello      = "hello"
	EventReload     = "reload"
	EventBuildError = "build-error"

	keepAliveInterval = 30 * time.Second
	clientBuffer      = 8
)

// Event is sent to every connected live reload client.
type Event struct {
	Type    string `json:"type"`
	Hash    string `json:"hash,omitempty"`
	Message string `json:"message,omitempty"`
}

// Hub fans events out to connected clients. Slow clients drop events
// rather than block a broadcast.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]chan Event
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]chan Event)}
}

// Subscribe registers a client and returns its id, event channel and a
// function removing it.
func (h *Hub) Subscribe(ctx context.Context) (string, <-chan Event, func()) {
	id := uuid.NewString()
	ch := make(chan Event, clientBuffer)

	h.mu.Lock()
	h.clients[id] = ch
	h.mu.Unlock()

	telemetry.GetMetrics().ReloadClients.Add(ctx, 1)

	var once sync.Once
	return id, ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, id)
			h.mu.Unlock()
			telemetry.GetMetrics().ReloadClients.Add(ctx, -1)
		})
	}
}

// Broadcast sends the event to every client and returns how many received it.
func (h *Hub) Broadcast(ctx context.Context, event Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for id, ch := range h.clients {
		select {
		case ch <- event:
			sent++
		default:
			zerolog.Ctx(ctx).Warn().Str("client", id).Str("event", event.Type).Msg("Dropped event for slow client")
		}
	}

	if event.Type == EventReload {
		telemetry.GetMetrics().ReloadsTotal.Add(ctx, 1)
	}
	return sent
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP streams events to a client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	// the stream outlives the server's write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	id, events, unsubscribe := h.Subscribe(r.Context())
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, Event{Type: EventHello, Message: id}); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Event stream does not support flushing")
		return
	}

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case event := <-events:
			if err := writeEvent(w, event); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
	return err
}

const clientScript = `(function () {
  if (!window.EventSource) {
    return;
  }
  var source = new EventSource(%q);
  source.addEventListener(%q, function () {
    window.location.reload();
  });
  source.addEventListener(%q, function (e) {
    console.error("[assetpipe] " + JSON.parse(e.data).message);
  });
})();
`

func serveClient(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = fmt.Fprintf(w, clientScript, EventsPath, EventReload, EventBuildError)
}
