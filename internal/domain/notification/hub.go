package notification

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis channels. Every API instance subscribes to both; the instance id
// filters out echoes of its own publishes so locally-connected clients are
// not written twice.
const (
	userEventsChannel  = "notify:user_events"
	adminEventsChannel = "notify:admin_events"
)

type wireEvent struct {
	UserID           string          `json:"user_id,omitempty"`
	Payload          json.RawMessage `json:"payload"`
	SenderInstanceID string          `json:"sender_instance_id"`
}

// Connection is one WebSocket client.
type Connection struct {
	UserID uuid.UUID
	Admin  bool
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub fans events out to WebSocket clients, using Redis Pub/Sub so a client
// connected to any API instance still receives events produced on another.
// Without Redis it degrades to local-only delivery.
type Hub struct {
	connections map[uuid.UUID]map[*Connection]bool
	admins      map[*Connection]bool

	redis  *redis.Client
	pubsub *redis.PubSub

	mu sync.RWMutex

	register   chan *Connection
	unregister chan *Connection

	ctx    context.Context
	cancel context.CancelFunc

	instanceID string
}

func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		connections: make(map[uuid.UUID]map[*Connection]bool),
		admins:      make(map[*Connection]bool),
		redis:       redisClient,
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		ctx:         ctx,
		cancel:      cancel,
		instanceID:  uuid.NewString(),
	}

	if redisClient != nil {
		h.pubsub = redisClient.Subscribe(ctx, userEventsChannel, adminEventsChannel)
	}

	return h
}

// Run starts the hub (call in goroutine).
func (h *Hub) Run() {
	if h.pubsub != nil {
		go h.runRedisSubscriber()
	}

	for {
		select {
		case <-h.ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			if h.connections[conn.UserID] == nil {
				h.connections[conn.UserID] = make(map[*Connection]bool)
			}
			h.connections[conn.UserID][conn] = true
			if conn.Admin {
				h.admins[conn] = true
			}
			h.mu.Unlock()
			log.Debug().Str("user_id", conn.UserID.String()).Bool("admin", conn.Admin).Msg("WebSocket client connected")

		case conn := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.connections[conn.UserID]; ok {
				if _, exists := conns[conn]; exists {
					delete(conns, conn)
					close(conn.Send)
				}
				if len(conns) == 0 {
					delete(h.connections, conn.UserID)
				}
			}
			delete(h.admins, conn)
			h.mu.Unlock()
			log.Debug().Str("user_id", conn.UserID.String()).Msg("WebSocket client disconnected")
		}
	}
}

func (h *Hub) runRedisSubscriber() {
	ch := h.pubsub.Channel()

	for {
		select {
		case <-h.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event wireEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			if event.SenderInstanceID == h.instanceID {
				continue
			}

			switch msg.Channel {
			case userEventsChannel:
				userID, err := uuid.Parse(event.UserID)
				if err != nil {
					continue
				}
				h.sendLocalToUser(userID, []byte(event.Payload))
			case adminEventsChannel:
				h.sendLocalToAdmins([]byte(event.Payload))
			}
		}
	}
}

// Register adds a connection.
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a connection.
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// SendToUser delivers an event to every connection the user holds, on this
// instance and, via Redis, on every other.
func (h *Hub) SendToUser(userID uuid.UUID, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal notification event")
		return
	}

	h.sendLocalToUser(userID, data)
	h.publish(userEventsChannel, userID.String(), data)
}

// BroadcastToAdmins delivers an event to every connected admin everywhere.
func (h *Hub) BroadcastToAdmins(event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal notification event")
		return
	}

	h.sendLocalToAdmins(data)
	h.publish(adminEventsChannel, "", data)
}

// sendLocalToUser holds the read lock across the iteration: the unregister
// path deletes from this map and closes Send under the write lock, so a
// connection seen here is still open.
func (h *Hub) sendLocalToUser(userID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.connections[userID] {
		select {
		case conn.Send <- data:
		default:
			log.Warn().Str("user_id", userID.String()).Msg("WebSocket send buffer full")
		}
	}
}

func (h *Hub) sendLocalToAdmins(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for conn := range h.admins {
		select {
		case conn.Send <- data:
		default:
			log.Warn().Str("user_id", conn.UserID.String()).Msg("WebSocket send buffer full")
		}
	}
}

func (h *Hub) publish(channel, userID string, data []byte) {
	if h.redis == nil {
		return
	}

	payload, err := json.Marshal(wireEvent{
		UserID:           userID,
		Payload:          data,
		SenderInstanceID: h.instanceID,
	})
	if err != nil {
		return
	}
	if err := h.redis.Publish(h.ctx, channel, payload).Err(); err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("Redis publish failed")
	}
}

// ConnectionCount returns the number of local connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.connections {
		total += len(conns)
	}
	return total
}

// Shutdown gracefully shuts down the hub.
func (h *Hub) Shutdown() {
	h.cancel()
	if h.pubsub != nil {
		h.pubsub.Close()
	}
}
