// Package board pushes the live queue board to connected screens.
package board

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/wolfman30/clinicdesk/internal/clinic"
	"github.com/wolfman30/clinicdesk/internal/observability/metrics"
	"github.com/wolfman30/clinicdesk/internal/reports"
	"github.com/wolfman30/clinicdesk/pkg/logging"
)

const (
	defaultPingInterval = 30 * time.Second
	writeTimeout        = 5 * time.Second
)

// Source is the cache the board renders from.
type Source interface {
	View() *clinic.Dataset
	OnRefresh(fn func(*clinic.Dataset))
}

// Message is what the board sends to a screen.
type Message struct {
	Type  string              `json:"type"` // "board", "ping", "pong", "error"
	Board *reports.QueueBoard `json:"board,omitempty"`
	Text  string              `json:"text,omitempty"`
}

type inbound struct {
	Type string `json:"type"`
}

type Config struct {
	Source Source
	// Today returns the clinic's current date.
	Today func() string
	// Scope returns the clinic a request may see; 0 means all clinics.
	Scope        func(r *http.Request) int64
	PingInterval time.Duration
	Logger       *logging.Logger
	Metrics      *metrics.DeskMetrics
}

// Hub tracks connected screens and rebroadcasts after every refresh.
// Refresh listeners only mark the board dirty; Run does the sending.
type Hub struct {
	source  Source
	today   func() string
	scope   func(r *http.Request) int64
	ping    time.Duration
	logger  *logging.Logger
	metrics *metrics.DeskMetrics

	mu      sync.Mutex
	clients map[*client]struct{}
	latest  *clinic.Dataset
	dirty   chan struct{}
}

type client struct {
	conn     *websocket.Conn
	clinicID int64
	mu       sync.Mutex
}

func (c *client) send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return websocket.JSON.Send(c.conn, msg)
}

func NewHub(cfg Config) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	ping := cfg.PingInterval
	if ping <= 0 {
		ping = defaultPingInterval
	}
	scope := cfg.Scope
	if scope == nil {
		scope = func(*http.Request) int64 { return 0 }
	}
	h := &Hub{
		source:  cfg.Source,
		today:   cfg.Today,
		scope:   scope,
		ping:    ping,
		logger:  logger.Component("board"),
		metrics: cfg.Metrics,
		clients: map[*client]struct{}{},
		dirty:   make(chan struct{}, 1),
	}
	if h.source != nil {
		h.source.OnRefresh(h.Publish)
	}
	return h
}

// Publish records a new snapshot and wakes Run. It never blocks.
func (h *Hub) Publish(d *clinic.Dataset) {
	h.mu.Lock()
	h.latest = d
	h.mu.Unlock()
	select {
	case h.dirty <- struct{}{}:
	default:
	}
}

// Run broadcasts published snapshots until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-h.dirty:
			h.broadcast()
		}
	}
}

// Clients reports the number of connected screens.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) snapshot() *clinic.Dataset {
	h.mu.Lock()
	d := h.latest
	h.mu.Unlock()
	if d == nil && h.source != nil {
		d = h.source.View()
	}
	if d == nil {
		d = &clinic.Dataset{}
	}
	return d
}

func (h *Hub) render(d *clinic.Dataset, clinicID int64) Message {
	b := reports.Board(d, h.today(), clinicID)
	return Message{Type: "board", Board: &b}
}

func (h *Hub) broadcast() {
	d := h.snapshot()
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if err := c.send(h.render(d, c.clinicID)); err != nil {
			h.logger.Debug("board push failed, dropping client", "error", err)
			h.remove(c)
			_ = c.conn.Close()
		}
	}
}

// HandleWebSocket upgrades the request and streams the board.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	clinicID := h.scope(r)
	websocket.Handler(func(conn *websocket.Conn) {
		h.serve(conn, clinicID)
	}).ServeHTTP(w, r)
}

func (h *Hub) serve(conn *websocket.Conn, clinicID int64) {
	c := &client{conn: conn, clinicID: clinicID}
	if err := c.send(h.render(h.snapshot(), clinicID)); err != nil {
		return
	}
	h.add(c)
	defer h.remove(c)

	done := make(chan struct{})
	defer close(done)
	go h.heartbeat(c, done)

	for {
		var msg inbound
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("board connection closed", "clinic_id", clinicID, "error", err)
			return
		}
		switch msg.Type {
		case "ping":
			_ = c.send(Message{Type: "pong"})
		case "refresh":
			_ = c.send(h.render(h.snapshot(), clinicID))
		}
	}
}

func (h *Hub) heartbeat(c *client, done <-chan struct{}) {
	t := time.NewTicker(h.ping)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if err := c.send(Message{Type: "ping"}); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetBoardClients(n)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetBoardClients(n)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.conn.Close()
		delete(h.clients, c)
	}
	h.metrics.SetBoardClients(0)
}
