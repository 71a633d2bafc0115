// Package feed follows a running game over its websocket feed.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/justinabrahms/piecewalk/internal/web"
)

const (
	DefaultURL = "ws://localhost:8080/ws"

	// Reconnection parameters
	initialReconnectDelay  = 1 * time.Second
	maxReconnectDelay      = 5 * time.Minute
	reconnectBackoffFactor = 2

	// WebSocket parameters
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

// Handler is called for each update, in arrival order.
type Handler func(update web.Update) error

// Client connects to a game server's /ws endpoint and decodes updates.
type Client struct {
	url            string
	conn           *websocket.Conn
	handler        Handler
	logger         zerolog.Logger
	ctx            context.Context
	cancel         context.CancelFunc
	reconnectDelay time.Duration
	dialer         *websocket.Dialer
	header         http.Header

	mu        sync.RWMutex
	connected bool
	lastTurn  int
}

// Option configures the client
type Option func(*Client)

func WithURL(url string) Option {
	return func(c *Client) {
		c.url = url
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Client) {
		c.dialer = dialer
	}
}

// WithInitialReconnectDelay sets the first backoff step.
func WithInitialReconnectDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.reconnectDelay = delay
	}
}

// WithBearerToken sends token on every dial.
func WithBearerToken(token string) Option {
	return func(c *Client) {
		c.header.Set("Authorization", "Bearer "+token)
	}
}

func NewClient(handler Handler, opts ...Option) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	client := &Client{
		url:            DefaultURL,
		handler:        handler,
		logger:         zerolog.Nop(),
		ctx:            ctx,
		cancel:         cancel,
		reconnectDelay: initialReconnectDelay,
		dialer:         websocket.DefaultDialer,
		header:         http.Header{},
	}
	client.header.Set("User-Agent", "piecewalk-feed/1.0")

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Start begins following the feed in the background.
func (c *Client) Start() error {
	go c.run()
	return nil
}

// Stop gracefully shuts down the client
func (c *Client) Stop() error {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// LastTurn is the highest turn number seen so far.
func (c *Client) LastTurn() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastTurn
}

func (c *Client) run() {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			conn, err := c.connect()
			if err != nil {
				c.logger.Error().Err(err).Msg("Failed to connect to feed")
				c.handleReconnect()
				continue
			}

			if err := c.listen(conn); err != nil {
				if c.ctx.Err() != nil {
					return
				}
				c.logger.Error().Err(err).Msg("Error reading feed")
				c.handleReconnect()
				continue
			}
		}
	}
}

func (c *Client) connect() (*websocket.Conn, error) {
	c.logger.Info().Str("url", c.url).Msg("Connecting to feed")

	ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
	defer cancel()

	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		conn.Close()
		return nil, c.ctx.Err()
	}
	c.conn = conn
	c.connected = true
	c.reconnectDelay = initialReconnectDelay
	c.mu.Unlock()

	c.logger.Info().Msg("Connected to feed")
	return conn, nil
}

func (c *Client) listen(conn *websocket.Conn) error {
	go c.pingLoop(conn)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return fmt.Errorf("websocket read error: %w", err)
			}
			return err
		}

		if messageType != websocket.TextMessage {
			continue
		}

		if err := c.processMessage(data); err != nil {
			c.logger.Error().Err(err).Msg("Error processing message")
		}
	}
}

// processMessage handles one frame. The hub batches queued updates into a
// single frame separated by newlines.
func (c *Client) processMessage(data []byte) error {
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		var update web.Update
		if err := json.Unmarshal(line, &update); err != nil {
			return fmt.Errorf("failed to decode update: %w", err)
		}

		switch update.Type {
		case web.UpdateSetup, web.UpdateSnapshot, web.UpdateTurn:
		default:
			// pong and anything newer than this client
			c.logger.Debug().Str("type", update.Type).Msg("Ignoring message")
			continue
		}

		seen := update.LastTurn
		if update.Turn != nil {
			seen = update.Turn.Number
		}
		c.mu.Lock()
		if seen > c.lastTurn {
			c.lastTurn = seen
		}
		c.mu.Unlock()

		if err := c.handler(update); err != nil {
			c.logger.Error().Err(err).Str("type", update.Type).Msg("Update handler error")
		}
	}
	return nil
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeTimeout)); err != nil {
				c.logger.Debug().Err(err).Msg("Ping failed")
				return
			}
		}
	}
}

func (c *Client) handleReconnect() {
	c.mu.Lock()
	c.connected = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	delay := c.reconnectDelay

	// Exponential backoff
	c.reconnectDelay = time.Duration(float64(c.reconnectDelay) * reconnectBackoffFactor)
	if c.reconnectDelay > maxReconnectDelay {
		c.reconnectDelay = maxReconnectDelay
	}
	c.mu.Unlock()

	c.logger.Info().Str("delay", delay.String()).Msg("Waiting before reconnect")

	select {
	case <-time.After(delay):
	case <-c.ctx.Done():
	}
}
