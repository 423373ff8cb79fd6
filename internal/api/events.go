package api

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/paulmach/orb/geojson"

	"whatify/pkg/model"
	"whatify/pkg/playback"
	"whatify/pkg/version"
)

// Event is one message pushed to connected map clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Hub fans events out to connected browser clients over WebSocket. It is
// the concrete MapAPI and notification sink: the playback core issues map
// operations and lifecycle events, the hub renders them as JSON pushes and
// the browser map executes them.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan Event
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The map UI is served from this same process
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// HandleEvents upgrades the connection and streams events until the client
// disconnects.
func (h *Hub) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Hub: Upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	c := &client{conn: conn, send: make(chan Event, 64)}
	// Queue the hello before the client is visible to drop/Close; sending
	// after registration could race a shutdown closing the channel.
	c.send <- Event{Type: "hello", Payload: map[string]string{"version": version.Version}}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	slog.Info("Hub: Client connected", "remote", r.RemoteAddr, "clients", n)

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) writeLoop(c *client) {
	for ev := range c.send {
		if err := c.conn.WriteJSON(ev); err != nil {
			slog.Debug("Hub: Write failed, dropping client", "error", err)
			h.drop(c)
			return
		}
	}
}

// readLoop drains (and ignores) client messages so pings and close frames
// are processed.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.drop(c)
	}
}

// Broadcast queues the event for every connected client. Slow clients that
// cannot keep up are disconnected rather than blocking the core.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	var stale []*client
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			stale = append(stale, c)
		}
	}
	h.mu.Unlock()

	for _, c := range stale {
		slog.Warn("Hub: Client too slow, dropping")
		h.drop(c)
	}
}

// --- playback.MapAPI ---

func (h *Hub) Focus(lat, lon, scale float64) {
	h.Broadcast(Event{Type: "map.focus", Payload: map[string]float64{"lat": lat, "lon": lon, "scale": scale}})
}

func (h *Hub) Marker(lat, lon float64, label string, active bool) string {
	id := uuid.New().String()
	h.Broadcast(Event{Type: "map.marker", Payload: map[string]any{
		"id": id, "lat": lat, "lon": lon, "label": label, "active": active,
	}})
	return id
}

func (h *Hub) SetActiveMarker(markerID string) {
	h.Broadcast(Event{Type: "map.activeMarker", Payload: map[string]string{"id": markerID}})
}

func (h *Hub) ShowWaveform(markerID string, on bool) {
	h.Broadcast(Event{Type: "map.waveform", Payload: map[string]any{"id": markerID, "on": on}})
}

func (h *Hub) Link(fromID, toID string, opts playback.LinkOptions) {
	h.Broadcast(Event{Type: "map.link", Payload: map[string]any{
		"from": fromID, "to": toID,
		"fade": opts.Fade, "dashed": opts.Dashed,
		"duration_ms": opts.Duration.Milliseconds(), "mode": opts.Mode,
	}})
}

func (h *Hub) ClearLinks() {
	h.Broadcast(Event{Type: "map.clearLinks"})
}

func (h *Hub) Highlight(fc *geojson.FeatureCollection) {
	h.Broadcast(Event{Type: "map.highlight", Payload: fc})
}

func (h *Hub) Reset(hard bool) {
	h.Broadcast(Event{Type: "map.reset", Payload: map[string]bool{"hard": hard}})
}

// --- playback.Notifier ---

func (h *Hub) PlaybackChanged(snapshot model.PlaybackSnapshot) {
	h.Broadcast(Event{Type: "playback.state", Payload: snapshot})
}

func (h *Hub) NowPlaying(index int, event model.TimelineEvent) {
	h.Broadcast(Event{Type: "playback.nowPlaying", Payload: map[string]any{
		"index": index, "event": event,
	}})
}

// --- genbus.Notifier ---

func (h *Hub) GenerationStarted(prompt string) {
	h.Broadcast(Event{Type: "generation.started", Payload: map[string]string{"prompt": prompt}})
}

func (h *Hub) GenerationReady() {
	h.Broadcast(Event{Type: "generation.ready"})
}

func (h *Hub) GenerationFailed(message string) {
	h.Broadcast(Event{Type: "generation.failed", Payload: map[string]string{"message": message}})
}
