package stream

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/fluhartyml/NightGardDDNS/internal/ddns"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// StreamManager fans agent events out to websocket clients.
type StreamManager struct {
	clients    map[*wsClient]struct{}
	clientsMux sync.RWMutex
}

// gorilla connections allow one concurrent writer
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Global is the manager used by the daemon.
var Global = NewStreamManager()

func NewStreamManager() *StreamManager {
	return &StreamManager{clients: make(map[*wsClient]struct{})}
}

// WsMessage is the envelope of every pushed message.
type WsMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// ConfigMessage is the pushed view of a config change. The token is masked.
type ConfigMessage struct {
	Domain          string `json:"domain"`
	Token           string `json:"token"`
	IntervalSeconds int64  `json:"interval_seconds"`
}

// NewConfigMessage masks cfg for clients.
func NewConfigMessage(cfg ddns.Config) ConfigMessage {
	return ConfigMessage{
		Domain:          cfg.Domain,
		Token:           cfg.MaskedToken(),
		IntervalSeconds: int64(cfg.Interval / time.Second),
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	Subprotocols: []string{"Authorization"},
}

func (m *StreamManager) addClient(c *wsClient) {
	m.clientsMux.Lock()
	defer m.clientsMux.Unlock()
	m.clients[c] = struct{}{}
}

func (m *StreamManager) removeClient(c *wsClient) {
	m.clientsMux.Lock()
	defer m.clientsMux.Unlock()
	delete(m.clients, c)
}

// Broadcast sends message to every client, dropping the ones that fail.
func (m *StreamManager) Broadcast(message WsMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("stream: marshal %s: %v", message.Type, err)
		return
	}

	m.clientsMux.RLock()
	clients := make([]*wsClient, 0, len(m.clients))
	for c := range m.clients {
		clients = append(clients, c)
	}
	m.clientsMux.RUnlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			m.removeClient(c)
			c.conn.Close()
		}
	}
}

// Publish converts an agent event into a stream message and broadcasts it.
func (m *StreamManager) Publish(ev ddns.Event) {
	msg := WsMessage{Type: string(ev.Type), Timestamp: ev.Time}
	switch ev.Type {
	case ddns.EventCycleCompleted:
		msg.Data = gin.H{"state": ev.State, "cycle": ev.Cycle}
	case ddns.EventConfigChanged:
		if ev.Config == nil {
			return
		}
		msg.Data = NewConfigMessage(*ev.Config)
	default:
		msg.Data = ev.State
	}
	m.Broadcast(msg)
}

func (m *StreamManager) ClientCount() int {
	m.clientsMux.RLock()
	defer m.clientsMux.RUnlock()
	return len(m.clients)
}

// Handler upgrades the request and keeps the connection until the client
// leaves. snapshot, when set, is sent right after the connected message.
func (m *StreamManager) Handler(snapshot func() ddns.State) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed: %v", err)
			return
		}
		client := &wsClient{conn: conn}
		defer func() {
			m.removeClient(client)
			conn.Close()
			log.Printf("WebSocket client disconnected, remaining clients: %d", m.ClientCount())
		}()

		if err := client.write(mustJSON(WsMessage{
			Type:      "connected",
			Timestamp: time.Now(),
			Data:      map[string]string{"message": "WebSocket connected successfully"},
		})); err != nil {
			log.Printf("Error writing connected message: %v", err)
			return
		}
		if snapshot != nil {
			if err := client.write(mustJSON(WsMessage{
				Type:      string(ddns.EventStateChanged),
				Timestamp: time.Now(),
				Data:      snapshot(),
			})); err != nil {
				return
			}
		}

		m.addClient(client)
		log.Printf("WebSocket client connected, total clients: %d", m.ClientCount())

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var clientMsg struct {
				Type string `json:"type"`
			}
			if json.Unmarshal(message, &clientMsg) == nil && clientMsg.Type == "ping" {
				if err := client.write(mustJSON(WsMessage{
					Type:      "pong",
					Timestamp: time.Now(),
					Data:      map[string]string{"message": "pong"},
				})); err != nil {
					return
				}
			}
		}
	}
}

func mustJSON(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
