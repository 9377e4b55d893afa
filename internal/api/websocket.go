package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"magicmouse/internal/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins as this is a local network tool
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSManager handles feed connections and broadcasting
type WSManager struct {
	server     *Server
	clients    map[*WebSocketClient]bool
	clientsMu  sync.Mutex
	broadcast  chan protocol.Message
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	replies    chan reply
	shutdown   chan struct{}
	stopOnce   sync.Once
}

// reply is a message for a single client, queued through the hub so it never
// races with the hub closing the client's send channel.
type reply struct {
	client *WebSocketClient
	data   []byte
}

// WebSocketClient represents a connected watcher
type WebSocketClient struct {
	manager *WSManager
	conn    *websocket.Conn
	send    chan []byte
	ip      string
}

func newWSManager(s *Server) *WSManager {
	return &WSManager{
		server:     s,
		clients:    make(map[*WebSocketClient]bool),
		broadcast:  make(chan protocol.Message, 64),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		replies:    make(chan reply),
		shutdown:   make(chan struct{}),
	}
}

func (m *WSManager) start() {
	logger := m.server.logger
	for {
		select {
		case client := <-m.register:
			m.clientsMu.Lock()
			m.clients[client] = true
			total := len(m.clients)
			m.clientsMu.Unlock()
			logger.Info().Str("remote", client.ip).Int("clients", total).Msg("feed client registered")

		case client := <-m.unregister:
			m.clientsMu.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				close(client.send)
				logger.Info().Str("remote", client.ip).Int("clients", len(m.clients)).Msg("feed client unregistered")
			}
			m.clientsMu.Unlock()

		case message := <-m.broadcast:
			m.broadcastMessage(message)

		case r := <-m.replies:
			m.clientsMu.Lock()
			if m.clients[r.client] {
				select {
				case r.client.send <- r.data:
				default:
				}
			}
			m.clientsMu.Unlock()

		case <-m.shutdown:
			m.clientsMu.Lock()
			for client := range m.clients {
				delete(m.clients, client)
				close(client.send)
			}
			m.clientsMu.Unlock()
			return
		}
	}
}

func (m *WSManager) stop() {
	m.stopOnce.Do(func() { close(m.shutdown) })
}

func (m *WSManager) broadcastMessage(message protocol.Message) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		m.server.logger.Err(err).Msg("failed to marshal broadcast message")
		return
	}

	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()

	for client := range m.clients {
		select {
		case client.send <- jsonMsg:
		default:
			close(client.send)
			delete(m.clients, client)
		}
	}
}

// Broadcast queues a message for every client. It never blocks the caller;
// when the queue is full the message is dropped.
func (m *WSManager) Broadcast(msg protocol.Message) {
	select {
	case m.broadcast <- msg:
	case <-m.shutdown:
	default:
		m.server.logger.Warn().Str("type", string(msg.Type)).Msg("feed queue full, dropping message")
	}
}

// ClientCount returns the number of connected feed clients
func (m *WSManager) ClientCount() int {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	return len(m.clients)
}

func (m *WSManager) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.server.logger.Debug().Err(err).Msg("failed to upgrade connection")
		return
	}

	client := &WebSocketClient{
		manager: m,
		conn:    conn,
		send:    make(chan []byte, 256),
		ip:      r.RemoteAddr,
	}

	// Greet with the current status before any event
	if data, err := client.statusMessage(); err == nil {
		client.send <- data
	}

	select {
	case m.register <- client:
	case <-m.shutdown:
		conn.Close()
		return
	}

	// Start pump goroutines
	go client.writePump()
	go client.readPump()
}

func (c *WebSocketClient) statusMessage() ([]byte, error) {
	return json.Marshal(protocol.Message{
		Type:    protocol.TypeStatus,
		Payload: c.manager.server.source.Status(),
	})
}

// readPump reads watcher requests until the connection closes.
func (c *WebSocketClient) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.shutdown:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.manager.server.logger.Debug().Err(err).Msg("feed read error")
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(50 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketClient) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.manager.server.logger.Debug().Err(err).Msg("invalid feed message")
		return
	}

	switch msg.Type {
	case protocol.TypePing, protocol.TypeStatus:
		data, err := c.statusMessage()
		if err != nil {
			return
		}
		select {
		case c.manager.replies <- reply{client: c, data: data}:
		case <-c.manager.shutdown:
		}
	}
}
