package realtime

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hazardwatch/hazardwatch/pkg/logger"
	"github.com/hazardwatch/hazardwatch/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 16 // 64 KiB

	defaultBufferSize = 64
)

// Server-to-client event names.
const (
	EventNewAlert       = "new_alert"
	EventAlertBroadcast = "alert_broadcast"
)

// Client-to-server control actions.
const (
	actionJoinUserRoom  = "join_user_room"
	actionLeaveUserRoom = "leave_user_room"
	actionPing          = "ping"
)

// Message represents a JSON payload delivered to realtime subscribers.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type controlMessage struct {
	Action string `json:"action"`
	UserID string `json:"userId"`
}

// Hub coordinates per-user rooms over persistent WebSocket connections.
// Delivery is at-most-once and best-effort; the notification store is the
// durable fallback clients reconcile against.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*connection]struct{}
	sessions map[*connection]struct{}
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHub constructs a realtime hub.
func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[string]map[*connection]struct{}),
		sessions: make(map[*connection]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Allow same-origin requests and explicit localhost development.
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				originHost := hostWithoutPort(origin)
				requestHost := hostWithoutPort(r.Host)
				return originHost == requestHost || isLoopback(originHost)
			},
		},
		log: logger.WithModule("realtime"),
	}
}

// Serve upgrades the HTTP connection to a WebSocket and registers the session.
// The session starts outside any room; the client must send join_user_room to
// begin receiving targeted events. Multiple sessions per user are supported.
func (h *Hub) Serve(userID string, w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	client := newConnection(h, conn, userID)
	h.register(client)

	go client.writeLoop()
	client.readLoop()
}

// EmitToUser delivers an event to every session currently joined to the
// user's room. Sessions not connected receive nothing; there is no offline
// queue.
func (h *Hub) EmitToUser(userID, event string, payload any) {
	if userID == "" || event == "" {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := h.rooms[roomKey(userID)]
	if len(targets) == 0 {
		return
	}

	message := Message{Event: event, Data: payload}
	for client := range targets {
		h.enqueue(client, message)
	}
}

// BroadcastAll delivers an event to every connected session regardless of
// room membership. Used only for map refresh signals that carry no
// recipient-specific content.
func (h *Hub) BroadcastAll(event string, payload any) {
	if event == "" {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	message := Message{Event: event, Data: payload}
	for client := range h.sessions {
		h.enqueue(client, message)
	}
}

// RoomSessions returns the number of live sessions joined to the user's room.
func (h *Hub) RoomSessions(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomKey(userID)])
}

// ConnectedSessions returns the number of connected sessions across all users.
func (h *Hub) ConnectedSessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) register(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sessions[client] = struct{}{}
	metrics.ConnectedClients.Inc()
}

func (h *Hub) join(client *connection, userID string) {
	// Sessions may only join their own room.
	if userID != client.userID {
		h.log.Warn("ignoring foreign room join",
			zap.String("session_user", client.userID),
			zap.String("requested_user", userID),
		)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	key := roomKey(userID)
	if h.rooms[key] == nil {
		h.rooms[key] = make(map[*connection]struct{})
	}
	h.rooms[key][client] = struct{}{}
}

func (h *Hub) leave(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client)
}

func (h *Hub) leaveLocked(client *connection) {
	key := roomKey(client.userID)
	if room := h.rooms[key]; room != nil {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, key)
		}
	}
}

func (h *Hub) unregister(client *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[client]; !ok {
		return
	}
	delete(h.sessions, client)
	h.leaveLocked(client)
	metrics.ConnectedClients.Dec()
}

func (h *Hub) enqueue(client *connection, message Message) {
	select {
	case client.send <- message:
	default:
		h.log.Warn("dropping backpressured session", zap.String("user", client.userID))
		client.close()
	}
}

type connection struct {
	hub    *Hub
	socket *websocket.Conn
	userID string
	send   chan Message
	once   sync.Once
}

func newConnection(hub *Hub, conn *websocket.Conn, userID string) *connection {
	return &connection{
		hub:    hub,
		socket: conn,
		userID: userID,
		send:   make(chan Message, defaultBufferSize),
	}
}

func (c *connection) readLoop() {
	defer c.close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		_ = c.socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("unexpected close", zap.String("user", c.userID), zap.Error(err))
			}
			break
		}

		if len(payload) == 0 {
			continue
		}

		var ctrl controlMessage
		if err := json.Unmarshal(payload, &ctrl); err != nil {
			c.hub.log.Debug("invalid control payload", zap.String("user", c.userID), zap.Error(err))
			continue
		}

		switch strings.ToLower(strings.TrimSpace(ctrl.Action)) {
		case actionJoinUserRoom:
			c.hub.join(c, strings.TrimSpace(ctrl.UserID))
		case actionLeaveUserRoom:
			c.hub.leave(c)
		case actionPing:
			c.send <- Message{Event: "pong"}
		default:
			c.hub.log.Debug("unsupported control action",
				zap.String("action", ctrl.Action),
				zap.String("user", c.userID),
			)
		}
	}
}

func (c *connection) writeLoop() {
	defer c.close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.socket.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) close() {
	c.once.Do(func() {
		c.hub.unregister(c)
		close(c.send)
		_ = c.socket.Close()
	})
}

func roomKey(userID string) string {
	return "user_" + userID
}

func hostWithoutPort(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}

	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		parsed, err := http.NewRequest(http.MethodGet, host, nil)
		if err == nil {
			return hostWithoutPort(parsed.URL.Host)
		}
	}

	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

func isLoopback(host string) bool {
	ip := net.ParseIP(host)
	if ip != nil {
		return ip.IsLoopback()
	}
	return strings.EqualFold(host, "localhost")
}
