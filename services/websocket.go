package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Clients only send pings, so inbound frames stay small
	maxMessageSize = 4 * 1024

	sendBuffer = 16
)

const (
	EventBoardChanged = "board.changed"
	EventBoardDeleted = "board.deleted"
	EventPing         = "ping"
	EventPong         = "pong"
)

// WebSocketMessage is the standard message format for WebSocket communication
type WebSocketMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// BoardEvent is the payload of board.changed and board.deleted.
type BoardEvent struct {
	BoardID int64 `json:"boardId"`
}

// Notifier receives board events after successful mutations.
type Notifier interface {
	Publish(userID int64, msg WebSocketMessage)
}

type nopNotifier struct{}

func (nopNotifier) Publish(int64, WebSocketMessage) {}

// Client represents a connected WebSocket client
type Client struct {
	ID     string
	UserID int64
	Hub    *Hub
	Conn   *websocket.Conn
	Send   chan []byte
}

func NewClient(hub *Hub, conn *websocket.Conn, userID int64) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Hub:    hub,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
	}
}

// ReadPump reads client frames until the connection fails. Only pings are
// understood; they are answered with a pong to this client alone.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read failed", "client", c.ID, "error", err)
			}
			return
		}

		var msg WebSocketMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			slog.Debug("ignoring malformed websocket message", "client", c.ID, "error", err)
			continue
		}

		if msg.Type != EventPing {
			slog.Debug("ignoring websocket message", "client", c.ID, "type", msg.Type)
			continue
		}

		c.Hub.reply(c, WebSocketMessage{
			Type: EventPong,
			Data: map[string]string{"timestamp": time.Now().Format(time.RFC3339)},
		})
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// one JSON document per frame
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type outbound struct {
	userID  int64
	client  *Client
	payload []byte
}

// Hub tracks the open connections of every user and fans board events out to
// them. All client bookkeeping happens on the Run goroutine.
type Hub struct {
	clients    map[int64]map[*Client]struct{}
	publish    chan outbound
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	connected  prometheus.Gauge
}

// NewHub creates a new hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]struct{}),
		publish:    make(chan outbound, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kanban",
			Name:      "websocket_clients",
			Help:      "Number of open websocket connections.",
		}),
	}
}

// Collector exposes the connected clients gauge for registration.
func (h *Hub) Collector() prometheus.Collector {
	return h.connected
}

// Register adds a client to the hub. It returns false once the hub stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish sends msg to every connection of userID.
func (h *Hub) Publish(userID int64, msg WebSocketMessage) {
	h.enqueue(outbound{userID: userID}, msg)
}

func (h *Hub) reply(client *Client, msg WebSocketMessage) {
	h.enqueue(outbound{userID: client.UserID, client: client}, msg)
}

func (h *Hub) enqueue(out outbound, msg WebSocketMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal websocket message", "type", msg.Type, "error", err)
		return
	}
	out.payload = payload

	select {
	case h.publish <- out:
	case <-h.done:
	}
}

// Run owns the client map until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for _, set := range h.clients {
			for client := range set {
				close(client.Send)
			}
		}
		h.clients = nil
		h.connected.Set(0)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			set, ok := h.clients[client.UserID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.UserID] = set
			}
			set[client] = struct{}{}
			h.connected.Inc()
			slog.Debug("websocket client connected", "client", client.ID, "user", client.UserID)
		case client := <-h.unregister:
			h.remove(client)
		case out := <-h.publish:
			for client := range h.clients[out.userID] {
				if out.client != nil && out.client != client {
					continue
				}
				select {
				case client.Send <- out.payload:
				default:
					slog.Warn("websocket send buffer full, dropping client", "client", client.ID)
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.UserID)
	}
	close(client.Send)
	h.connected.Dec()
	slog.Debug("websocket client disconnected", "client", client.ID, "user", client.UserID)
}
