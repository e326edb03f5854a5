package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ionic/internal/observability"
)

const (
	// DefaultMaxConsoleClients bounds concurrent console sockets.
	DefaultMaxConsoleClients = 4
	// MaxConsoleClientsPerIP bounds console sockets from one address.
	MaxConsoleClientsPerIP = 2

	consoleWriteWait  = 5 * time.Second
	consolePongWait   = 60 * time.Second
	consolePingPeriod = consolePongWait * 9 / 10
	consoleMaxMessage = 1024
	consoleSendBuffer = 64
)

// ConsoleEvent is the envelope written to console sockets.
type ConsoleEvent struct {
	Event string `json:"event"` // "console" or "error"
	Data  string `json:"data"`
}

type consoleClient struct {
	conn *websocket.Conn
	ip   string
	send chan []byte
}

type directMessage struct {
	client *consoleClient
	msg    []byte
}

// ConsoleHub streams console output to websocket clients and submits the
// lines they send as server commands. The clients map is owned by Run.
type ConsoleHub struct {
	game       Game
	log        zerolog.Logger
	upgrader   websocket.Upgrader
	limiter    *SocketLimiter
	maxClients int

	clients    map[*consoleClient]struct{}
	broadcast  chan []byte
	direct     chan directMessage
	register   chan *consoleClient
	unregister chan *consoleClient
	done       chan struct{}
	count      atomic.Int32
}

// NewConsoleHub creates a hub. Nothing runs until Run is called.
func NewConsoleHub(game Game, maxClients int, origins []string, log zerolog.Logger) *ConsoleHub {
	if maxClients <= 0 {
		maxClients = DefaultMaxConsoleClients
	}
	h := &ConsoleHub{
		game:       game,
		log:        log.With().Str("component", "console").Logger(),
		limiter:    NewSocketLimiter(MaxConsoleClientsPerIP),
		maxClients: maxClients,
		clients:    make(map[*consoleClient]struct{}),
		broadcast:  make(chan []byte, 256),
		direct:     make(chan directMessage, 16),
		register:   make(chan *consoleClient),
		unregister: make(chan *consoleClient),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || originAllowed(origin, origins) {
				return true
			}
			h.log.Warn().Str("origin", origin).Msg("console origin rejected")
			observability.RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// Run owns the client set until ctx is cancelled, then closes every socket.
func (h *ConsoleHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.updateCount()
			h.log.Info().Str("ip", c.ip).Int("clients", len(h.clients)).Msg("console client connected")

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.log.Info().Str("ip", c.ip).Int("clients", len(h.clients)).Msg("console client disconnected")
			}

		case m := <-h.direct:
			if _, ok := h.clients[m.client]; ok {
				h.deliver(m.client, m.msg)
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				h.deliver(c, msg)
			}
		}
	}
}

// deliver drops clients that cannot keep up.
func (h *ConsoleHub) deliver(c *consoleClient, msg []byte) {
	select {
	case c.send <- msg:
	default:
		h.log.Warn().Str("ip", c.ip).Msg("console client too slow, dropping")
		h.drop(c)
	}
}

func (h *ConsoleHub) drop(c *consoleClient) {
	delete(h.clients, c)
	close(c.send)
	h.limiter.Release(c.ip)
	h.updateCount()
}

func (h *ConsoleHub) updateCount() {
	h.count.Store(int32(len(h.clients)))
	observability.UpdateConsoleClients(len(h.clients))
}

// Broadcast sends a console line to every client. It never blocks: lines
// are dropped when the hub is backed up.
func (h *ConsoleHub) Broadcast(line string) {
	msg, err := json.Marshal(ConsoleEvent{Event: "console", Data: line})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- msg:
	default:
	}
}

// ClientCount returns the number of registered clients.
func (h *ConsoleHub) ClientCount() int {
	return int(h.count.Load())
}

// HandleConsole upgrades the request and attaches the socket to the hub.
func (h *ConsoleHub) HandleConsole(w http.ResponseWriter, r *http.Request) {
	ip := ClientIP(r)
	if h.ClientCount() >= h.maxClients {
		observability.RecordConnectionRejected("ws_total_limit")
		writeError(w, "too many console clients", http.StatusServiceUnavailable)
		return
	}
	if !h.limiter.Allow(ip) {
		observability.RecordConnectionRejected("ws_limit")
		writeError(w, "too many console clients from your address", http.StatusTooManyRequests)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Str("ip", ip).Msg("console upgrade failed")
		h.limiter.Release(ip)
		return
	}
	c := &consoleClient{conn: ws, ip: ip, send: make(chan []byte, consoleSendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		h.limiter.Release(ip)
		ws.Close()
		return
	}
	go h.writePump(c)
	go h.readPump(c)
}

func (h *ConsoleHub) writePump(c *consoleClient) {
	ticker := time.NewTicker(consolePingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(consoleWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(consoleWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump submits each received line. A frame is either a bare command
// line or {"command": "..."}.
func (h *ConsoleHub) readPump(c *consoleClient) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(consoleMaxMessage)
	c.conn.SetReadDeadline(time.Now().Add(consolePongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(consolePongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug().Err(err).Str("ip", c.ip).Msg("console read")
			}
			return
		}
		line := parseConsoleLine(raw)
		if line == "" {
			continue
		}
		if !h.game.Submit(line) {
			h.reply(c, "command queue is full")
			continue
		}
		h.log.Info().Str("command", line).Str("ip", c.ip).Msg("console command")
	}
}

func (h *ConsoleHub) reply(c *consoleClient, msg string) {
	raw, _ := json.Marshal(ConsoleEvent{Event: "error", Data: msg})
	select {
	case h.direct <- directMessage{client: c, msg: raw}:
	case <-h.done:
	}
}

func parseConsoleLine(raw []byte) string {
	var req commandRequest
	if len(raw) > 0 && raw[0] == '{' && json.Unmarshal(raw, &req) == nil {
		return strings.TrimSpace(req.Command)
	}
	return strings.TrimSpace(string(raw))
}

// originAllowed matches origin against patterns holding at most one '*'.
func originAllowed(origin string, patterns []string) bool {
	for _, p := range patterns {
		if p == "*" || p == origin {
			return true
		}
		prefix, suffix, ok := strings.Cut(p, "*")
		if ok && len(origin) >= len(prefix)+len(suffix) &&
			strings.HasPrefix(origin, prefix) && strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}
