// Package events broadcasts marketplace activity to websocket subscribers.
package events

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/R3E-Network/ordzaar/internal/app/system"
	"github.com/R3E-Network/ordzaar/pkg/logger"
)

// Event types published by the services.
const (
	ApplicationApproved = "application.approved"
	CollectionCreated   = "collection.created"
	OrdinalMinted       = "ordinal.minted"
	OrdinalListed       = "ordinal.listed"
	OrdinalSold         = "ordinal.sold"
)

// Event is the JSON frame written to subscribers.
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publisher accepts events for delivery.
type Publisher interface {
	Publish(eventType string, data interface{})
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(string, interface{}) {}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientBuffer   = 32
	broadcastQueue = 256
)

type client struct {
	conn *websocket.Conn
	send chan Event
}

var _ system.Service = (*Hub)(nil)
var _ Publisher = (*Hub)(nil)

// Hub fans events out to connected websocket clients. Slow clients whose
// buffer fills up are dropped.
type Hub struct {
	log      *logger.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	events  chan Event
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewHub creates a hub. allowOrigin decides which browser origins may
// subscribe; nil accepts all.
func NewHub(allowOrigin func(origin string) bool, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewDefault("events")
	}
	h := &Hub{
		log:     log,
		clients: make(map[*client]struct{}),
		events:  make(chan Event, broadcastQueue),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowOrigin == nil {
				return true
			}
			return allowOrigin(origin)
		},
	}
	return h
}

func (h *Hub) Name() string { return "events-hub" }

func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.running = true
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case evt := <-h.events:
				h.broadcast(evt)
			}
		}
	}()

	h.log.Info("event hub started")
	return nil
}

func (h *Hub) Stop(ctx context.Context) error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	cancel := h.cancel
	h.running = false
	h.cancel = nil
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	h.log.Info("event hub stopped")
	return nil
}

// Publish queues an event. It never blocks; events are dropped when the
// queue is full.
func (h *Hub) Publish(eventType string, data interface{}) {
	evt := Event{Type: eventType, Data: data, Timestamp: time.Now().UTC()}
	select {
	case h.events <- evt:
	default:
		h.log.WithField("type", eventType).Warn("event queue full; dropping event")
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(evt Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- evt:
		default:
			close(c.send)
			delete(h.clients, c)
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
}

// ServeHTTP upgrades the request to a websocket subscription.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan Event, clientBuffer)}
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards client frames and detects disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
