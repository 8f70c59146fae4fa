package syncws

import (
	"encoding/json"
	"log"
	"time"

	websocket "github.com/gofiber/contrib/websocket"

	"github.com/josangl08/Ballers-V3-sub002/internal/calsync"
)

// Hub fans sync lifecycle events out to every connected dashboard client.
// Unlike a chat hub there is no per-user routing: every event is of
// interest to every subscriber.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

type Message struct {
	Type      string          `json:"type"`
	Trigger   string          `json:"trigger,omitempty"`
	Report    *calsync.Report `json:"report,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp string          `json:"timestamp"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 64),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 32),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
		case client := <-h.unregister:
			if _, exists := h.clients[client]; exists {
				delete(h.clients, client)
				close(client.send)
			}
		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// PublishReport queues a finished sync run for delivery. It is safe to
// call from the auto-sync goroutine; a full broadcast queue drops the
// event rather than blocking the sync loop.
func (h *Hub) PublishReport(trigger string, report *calsync.Report, runErr error) {
	message := &Message{
		Type:      "sync_report",
		Trigger:   trigger,
		Report:    report,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if runErr != nil {
		message.Type = "sync_error"
		message.Error = runErr.Error()
	}

	select {
	case h.broadcast <- message:
	default:
		log.Printf("sync hub: broadcast queue full, dropping %s", message.Type)
	}
}

// PublishStarted announces that a sync run has begun.
func (h *Hub) PublishStarted(trigger string) {
	select {
	case h.broadcast <- &Message{
		Type:      "sync_started",
		Trigger:   trigger,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}:
	default:
	}
}

func (h *Hub) deliver(message *Message) {
	encoded, err := json.Marshal(message)
	if err != nil {
		log.Printf("sync hub encode message: %v", err)
		return
	}

	for client := range h.clients {
		select {
		case client.send <- encoded:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// ReadPump consumes the connection until the peer goes away. Inbound
// frames are ignored; the sync stream is one-way.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
