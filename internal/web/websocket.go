package web

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/justinabrahms/piecewalk/internal/board"
	"github.com/justinabrahms/piecewalk/internal/game"
	"github.com/justinabrahms/piecewalk/internal/piece"
)

const (
	UpdateSetup    = "setup"
	UpdateTurn     = "turn"
	UpdateSnapshot = "snapshot"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 256
)

// WebSocket upgrader with reasonable settings
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now, tighten in production
		return true
	},
}

// Update is what watchers receive after the board changes. A snapshot is sent
// once to a watcher that joins a game already in progress.
type Update struct {
	Type      string                        `json:"type"`
	Turn      *game.Turn                    `json:"turn,omitempty"`
	Positions map[piece.Kind]board.Position `json:"positions,omitempty"`
	LastTurn  int                           `json:"last_turn,omitempty"`
}

// Hub maintains active WebSocket connections
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Update
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// Board as relayed so far. Only Run touches these.
	positions map[piece.Kind]board.Position
	lastTurn  int

	mu    sync.RWMutex
	count int
}

// Client represents a WebSocket connection
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	pongs chan []byte // never closed, unlike send
	addr  string
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Update),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		positions:  make(map[piece.Kind]board.Position),
	}
}

// Run is the hub's event loop. Only Run touches the client set.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
		h.setCount(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = true
			h.setCount(len(h.clients))

			log.Info().Str("addr", client.addr).Msg("Watcher connected")

			if len(h.positions) > 0 || h.lastTurn > 0 {
				if message, err := json.Marshal(h.snapshot()); err == nil {
					client.send <- message
				}
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.setCount(len(h.clients))
			}

			log.Info().Str("addr", client.addr).Msg("Watcher disconnected")

		case update := <-h.broadcast:
			h.track(update)

			message, err := json.Marshal(update)
			if err != nil {
				log.Error().Err(err).Msg("Failed to marshal update")
				continue
			}

			for client := range h.clients {
				if !deliver(ctx, client, message) {
					log.Warn().Str("addr", client.addr).Msg("Watcher too slow, dropping it")
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.setCount(len(h.clients))
		}
	}
}

// deliver queues message for client, waiting up to writeWait for room.
func deliver(ctx context.Context, client *Client, message []byte) bool {
	select {
	case client.send <- message:
		return true
	default:
	}

	timer := time.NewTimer(writeWait)
	defer timer.Stop()

	select {
	case client.send <- message:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (h *Hub) track(update Update) {
	switch update.Type {
	case UpdateSetup, UpdateSnapshot:
		h.positions = make(map[piece.Kind]board.Position, len(update.Positions))
		for k, p := range update.Positions {
			h.positions[k] = p
		}
		h.lastTurn = update.LastTurn
	case UpdateTurn:
		if update.Turn != nil {
			h.positions[update.Turn.Kind] = update.Turn.To
			h.lastTurn = update.Turn.Number
		}
	}
}

func (h *Hub) snapshot() Update {
	positions := make(map[piece.Kind]board.Position, len(h.positions))
	for k, p := range h.positions {
		positions[k] = p
	}
	return Update{Type: UpdateSnapshot, Positions: positions, LastTurn: h.lastTurn}
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

// ClientCount returns the number of connected watchers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Broadcast hands an update to Run, blocking until Run takes it. Once the hub
// has stopped the update is discarded.
func (h *Hub) Broadcast(update Update) {
	select {
	case h.broadcast <- update:
	case <-h.done:
	}
}

// TurnObserver adapts the hub to a game observer.
func (h *Hub) TurnObserver() game.Observer {
	return func(t game.Turn) {
		h.Broadcast(Update{Type: UpdateTurn, Turn: &t})
	}
}

// ServeWS upgrades the request and registers the connection as a watcher.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, sendBufferSize),
		pongs: make(chan []byte, 1),
		addr:  r.RemoteAddr,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump handles incoming messages from the WebSocket
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Msg("WebSocket error")
			}
			break
		}

		var msg map[string]interface{}
		if err := json.Unmarshal(message, &msg); err == nil && msg["type"] == "ping" {
			if data, err := json.Marshal(map[string]string{"type": "pong"}); err == nil {
				select {
				case c.pongs <- data:
				default:
				}
			}
		}
	}
}

// writePump handles sending messages to the WebSocket. Queued messages are
// batched into one frame, separated by newlines.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case pong := <-c.pongs:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, pong); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
