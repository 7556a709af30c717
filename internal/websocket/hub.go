package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"royalty-admin/internal/apperr"
	"royalty-admin/internal/permission"
	"royalty-admin/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 512
	sendBuffer     = 256
)

// StreamPermission is required to subscribe to admin events.
const StreamPermission = permission.EventsRead

// Authorizer resolves a token subject to its current role, failing with an
// apperr kind when the account may not hold every required permission.
type Authorizer interface {
	Authorize(ctx context.Context, subject string, required ...string) (string, error)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the frame pushed to every listener.
type Message struct {
	Event   string    `json:"event"`
	Payload any       `json:"payload"`
	SentAt  time.Time `json:"sent_at"`
}

// Client represents a single connected WebSocket client
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte
	role string
}

// Hub maintains the set of active clients and broadcasts admin events to them
type Hub struct {
	clients    map[*Client]bool
	Broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex

	// A client that answers no ping within pongWait is dropped.
	pongWait   time.Duration
	pingPeriod time.Duration
}

func NewHub() *Hub {
	return &Hub{
		Broadcast:  make(chan []byte, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
		pongWait:   pongWait,
		pingPeriod: pongWait * 9 / 10,
	}
}

// Run dispatches register, unregister and broadcast events until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Info("websocket client connected", "role", client.role)
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				slog.Info("websocket client disconnected", "role", client.role)
			}
			h.mu.Unlock()
		case message := <-h.Broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Clients reports how many listeners are connected.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish queues an event for broadcast. It never blocks; when the queue is
// full the event is dropped.
func (h *Hub) Publish(event string, payload any) {
	b, err := json.Marshal(Message{Event: event, Payload: payload, SentAt: time.Now().UTC()})
	if err != nil {
		slog.Error("failed to encode websocket event", "event", event, "error", err)
		return
	}
	select {
	case h.Broadcast <- b:
	default:
		slog.Warn("websocket broadcast queue full, dropping event", "event", event)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.Hub.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)

			n := len(c.Send)
			for i := 0; i < n; i++ {
				_, _ = w.Write([]byte{'\n'})
				_, _ = w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only drains the connection; clients never send commands.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		_ = c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	wait := c.Hub.pongWait
	_ = c.Conn.SetReadDeadline(time.Now().Add(wait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(wait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read failed", "error", err)
			}
			break
		}
	}
}

// ServeWs upgrades an authenticated request whose account holds
// StreamPermission. The access token travels in the token query parameter
// since browsers cannot set headers on upgrades.
func ServeWs(hub *Hub, c *gin.Context, tokens *token.Manager, authz Authorizer) {
	raw := c.Query("token")
	if raw == "" {
		slog.Warn("websocket connection rejected: missing token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	claims, err := tokens.Parse(raw)
	if err != nil {
		slog.Warn("websocket connection rejected: invalid token", "error", err)
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	role, err := authz.Authorize(c.Request.Context(), claims.Subject, StreamPermission)
	if err != nil {
		status := apperr.HTTPStatus(apperr.KindOf(err))
		slog.Warn("websocket connection rejected", "subject", claims.Subject, "status", status, "error", err)
		c.AbortWithStatus(status)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	client := &Client{Hub: hub, Conn: conn, Send: make(chan []byte, sendBuffer), role: role}
	select {
	case hub.register <- client:
	case <-hub.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
