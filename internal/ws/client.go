// Package ws is the websocket transport. Each accepted connection gets a Client
// that feeds decoded frames to the hub and writes whatever the hub queues.
package ws

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/manpreetbhatti/huddle/internal/protocol"
	"github.com/manpreetbhatti/huddle/internal/ratelimit"
	"github.com/manpreetbhatti/huddle/internal/registry"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024

	// A client that keeps flooding after this many dropped events is cut off.
	maxRateViolations = 1000

	upgradesPerSecond = 5
	upgradeBurst      = 20
	upgradeIdleTTL    = 5 * time.Minute
)

// Hub is the part of the hub the transport talks to.
type Hub interface {
	Register(peer registry.Peer) bool
	Unregister(connID string)
	Dispatch(connID string, env protocol.Envelope) bool
}

type Options struct {
	SendBuffer        int
	MessagesPerSecond float64
	MessageBurst      int
}

func DefaultOptions() Options {
	return Options{
		SendBuffer:        256,
		MessagesPerSecond: 100,
		MessageBurst:      200,
	}
}

// Server upgrades HTTP requests to websocket connections.
type Server struct {
	hub      Hub
	log      *slog.Logger
	opts     Options
	upgrader websocket.Upgrader
	upgrades *ratelimit.KeyedLimiters
}

func NewServer(hub Hub, log *slog.Logger, opts Options) *Server {
	return &Server{
		hub:  hub,
		log:  log,
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		upgrades: ratelimit.NewKeyedLimiters(upgradesPerSecond, upgradeBurst, upgradeIdleTTL),
	}
}

// Close stops the upgrade limiter's background sweep.
func (s *Server) Close() {
	s.upgrades.Stop()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !s.upgrades.Allow(host) {
		s.log.Warn("Too many connection attempts", "remote", host)
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("Upgrade failed", "remote", host, "error", err)
		return
	}

	client := &Client{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, s.opts.SendBuffer),
		hub:     s.hub,
		log:     s.log,
		limiter: ratelimit.NewLimiter(s.opts.MessagesPerSecond, s.opts.MessageBurst),
	}
	if !s.hub.Register(client) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Client is one websocket connection. It implements registry.Peer; Send and
// Close are called from the hub's loop.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	hub     Hub
	log     *slog.Logger
	limiter *ratelimit.Limiter

	mu     sync.Mutex
	closed bool
}

func (c *Client) ID() string { return c.id }

func (c *Client) Send(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close stops the write pump after it drains what is already queued.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c.id)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	violations := 0
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Warn("WebSocket read error", "conn", c.id, "error", err)
			}
			return
		}

		if !c.limiter.Allow() {
			violations++
			if violations%100 == 1 {
				c.log.Warn("Rate limit exceeded", "conn", c.id, "violations", violations)
			}
			if violations > maxRateViolations {
				c.log.Warn("Disconnecting client for excessive rate limit violations", "conn", c.id)
				return
			}
			continue
		}

		env, err := protocol.Decode(frame)
		if err != nil {
			c.log.Debug("Ignoring malformed frame", "conn", c.id, "error", err)
			continue
		}
		if !c.hub.Dispatch(c.id, env) {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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
