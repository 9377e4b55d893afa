package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"magicmouse/internal/protocol"
)

// WatchClient follows a pad's event feed, reconnecting with exponential backoff
type WatchClient struct {
	logger zerolog.Logger
	addr   string
	token  string
	send   chan protocol.Message

	// OnMessage is called for every feed message, from the read goroutine
	OnMessage func(msg protocol.Message)

	mu          sync.Mutex
	isConnected bool
}

// NewWatchClient creates a client for the pad API at addr ("host:port")
func NewWatchClient(addr, token string) *WatchClient {
	return &WatchClient{
		logger: log.With().Str("module", "watch").Logger(),
		addr:   addr,
		token:  token,
		send:   make(chan protocol.Message, 16),
	}
}

// Run connects and reads the feed until ctx is cancelled
func (c *WatchClient) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	for {
		if c.connect(ctx) {
			b.Reset()
		}

		// If connect returns, it means we disconnected. Wait a bit and retry.
		wait := b.NextBackOff()
		c.logger.Info().Dur("retry_in", wait).Msg("feed disconnected")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// connect runs one connection. It reports whether the dial succeeded.
func (c *WatchClient) connect(ctx context.Context) bool {
	u := url.URL{Scheme: "ws", Host: c.addr, Path: "/ws"}
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug().Str("url", u.String()).Msg("connecting")
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		c.logger.Debug().Err(err).Msg("connection failed")
		return false
	}

	c.setConnected(true)
	defer c.setConnected(false)
	c.logger.Info().Str("pad", c.addr).Msg("connected")

	connDone := make(chan struct{})
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		c.writePump(conn, connDone)
	}()
	go func() {
		// unblock the read when the caller gives up
		select {
		case <-ctx.Done():
			conn.Close()
		case <-connDone:
		}
	}()

	c.readPump(conn)
	close(connDone)
	conn.Close()
	<-writeDone
	return true
}

func (c *WatchClient) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(1 << 16)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug().Err(err).Msg("read error")
			}
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug().Err(err).Msg("invalid message")
			continue
		}
		if c.OnMessage != nil {
			c.OnMessage(msg)
		}
	}
}

func (c *WatchClient) writePump(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second) // Ping ticker
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				c.logger.Debug().Err(err).Msg("write error")
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

// RequestStatus asks the pad for a fresh status message
func (c *WatchClient) RequestStatus() {
	select {
	case c.send <- protocol.Message{Type: protocol.TypePing}:
	default:
	}
}

func (c *WatchClient) setConnected(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = v
}

// IsConnected returns true if the client is connected to the pad
func (c *WatchClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}
