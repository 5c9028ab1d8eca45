package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
)

const (
	writeDeadline = 5 * time.Second
	pongWait      = 60 * time.Second
	pingInterval  = 30 * time.Second
	sendBuffer    = 64
)

// Message is the JSON frame sent to websocket clients.
type Message struct {
	Seq     uint64    `json:"seq"`
	Time    time.Time `json:"time"`
	Event   string    `json:"event"`
	Payload any       `json:"payload,omitempty"`
}

// Hub broadcasts events to connected websocket clients.
type Hub struct {
	clients    map[string]*client
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	done       chan struct{}
	mutex      sync.RWMutex
	seq        atomic.Uint64
	upgrader   gws.Upgrader
	origins    []string
	logger     *slog.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithAllowedOrigins lets browser pages from origins (scheme://host[:port])
// connect in addition to same-origin pages.
func WithAllowedOrigins(origins ...string) HubOption {
	return func(h *Hub) { h.origins = append(h.origins, origins...) }
}

type client struct {
	id      string
	conn    *gws.Conn
	send    chan []byte
	hub     *Hub
	closed  chan struct{}
	closeMu sync.Mutex
}

// NewHub creates a Hub. Run must be started before clients connect.
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		clients:    make(map[string]*client),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		logger:     logger,
	}
	h.upgrader = gws.Upgrader{CheckOrigin: h.checkOrigin}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// checkOrigin admits clients that send no Origin (non-browser), same-origin
// pages and the configured origins.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range h.origins {
		if strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin) {
			return true
		}
	}
	h.logger.Warn("websocket origin rejected", "origin", origin)
	return false
}

// Run is the hub's main loop. It returns when ctx is done, after closing all
// client connections.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c.id] = c
			n := len(h.clients)
			h.mutex.Unlock()
			h.logger.Debug("event client connected", "client", c.id, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c.id)

		case message := <-h.broadcast:
			for _, c := range h.snapshotClients() {
				h.enqueue(c, message)
			}

		case <-ctx.Done():
			for _, c := range h.snapshotClients() {
				h.removeClient(c.id)
			}
			return
		}
	}
}

// Notify implements Notifier. Events are dropped when the broadcast queue is
// full.
func (h *Hub) Notify(event string, payload any) {
	data, err := json.Marshal(Message{
		Seq:     h.seq.Add(1),
		Time:    time.Now().UTC(),
		Event:   event,
		Payload: payload,
	})
	if err != nil {
		h.logger.Error("encoding event", "event", event, "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("event dropped, broadcast queue full", "event", event)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) snapshotClients() []*client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

// enqueue drops the oldest pending frame when a client's buffer is full.
func (h *Hub) enqueue(c *client, payload []byte) {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	select {
	case <-c.closed:
		return
	default:
	}

	select {
	case c.send <- payload:
		return
	default:
	}

	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- payload:
	default:
		h.logger.Warn("event dropped for slow client", "client", c.id)
	}
}

func (h *Hub) removeClient(id string) {
	h.mutex.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	n := len(h.clients)
	h.mutex.Unlock()

	if ok {
		c.close()
		h.logger.Debug("event client disconnected", "client", id, "clients", n)
	}
}

// ServeHTTP upgrades the request to a websocket and streams events to it.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		hub:    h,
		closed: make(chan struct{}),
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump only drains control frames; clients do not send events.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if gws.IsUnexpectedCloseError(err, gws.CloseGoingAway, gws.CloseNormalClosure) {
				c.hub.logger.Debug("websocket read error", "client", c.id, "error", err)
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(gws.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(gws.PingMessage, nil); err != nil {
				return
			}

		case <-c.closed:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			_ = c.conn.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseGoingAway, ""))
			return
		}
	}
}

// close signals writePump to send a close frame and drop the connection.
func (c *client) close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
}
