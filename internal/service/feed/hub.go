// Package feed pushes stored predictions to websocket subscribers.
package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"ChartSignal/internal/domain/models"
	drepo "ChartSignal/internal/domain/repository"
	applogger "ChartSignal/pkg/logger"

	"github.com/gorilla/websocket"
)

// Message is the frame written to subscribers.
type Message struct {
	Type string             `json:"type"`
	Data *models.Prediction `json:"data"`
}

type Config struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	BufferSize   int
}

type Option func(*Config)

func WithPingInterval(d time.Duration) Option { return func(c *Config) { c.PingInterval = d } }
func WithWriteTimeout(d time.Duration) Option { return func(c *Config) { c.WriteTimeout = d } }
func WithBufferSize(n int) Option             { return func(c *Config) { c.BufferSize = n } }

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	userID string
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub tracks connected subscribers and fans predictions out to them.
// A subscriber that connects with ?user_id=X only receives X's predictions.
type Hub struct {
	cfg      Config
	l        *applogger.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

func NewHub(l *applogger.Logger, opts ...Option) *Hub {
	cfg := Config{
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
		BufferSize:   16,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Hub{
		cfg: cfg,
		l:   l,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and serves the subscriber until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.l.Warn("feed: upgrade failed", applogger.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, h.cfg.BufferSize), userID: r.URL.Query().Get("user_id")}
	if !h.register(c) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return
	}
	h.l.Debug("feed: subscriber connected", applogger.String("user_id", c.userID), applogger.Int("subscribers", h.Len()))

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// readPump drains control frames; any read error ends the subscription.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.l.Debug("feed: read error", applogger.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case b, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				h.l.Debug("feed: write failed", applogger.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Broadcast queues p for every matching subscriber. Slow subscribers are dropped.
func (h *Hub) Broadcast(p *models.Prediction) {
	if p == nil {
		return
	}
	b, err := json.Marshal(Message{Type: "prediction", Data: p})
	if err != nil {
		h.l.Error("feed: encode prediction", applogger.Error(err))
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		if c.userID != "" && c.userID != p.UserID {
			continue
		}
		select {
		case c.send <- b:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.l.Warn("feed: dropping slow subscriber", applogger.String("user_id", c.userID))
		h.unregister(c)
	}
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
	return nil
}

var _ drepo.Broadcaster = (*Hub)(nil)
