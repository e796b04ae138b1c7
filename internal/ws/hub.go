package ws

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lifehub-app/notify-engine/internal/service"
)

// Envelope is the wire format in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Hub is the live presence registry: which users hold open connections, and
// through which workspace rooms. A user may hold many connections at once;
// dropping one leaves the others reachable. All mutations go through one
// RWMutex so connect/disconnect and broadcasts never race.
type Hub struct {
	mu         sync.RWMutex
	users      map[uuid.UUID]map[*Client]struct{}
	workspaces map[uuid.UUID]map[*Client]struct{}
	owners     map[*Client]uuid.UUID // reverse index for O(1) teardown

	notifications service.NotificationService
	preferences   service.PreferenceService
	redisClient   *redis.Client

	relayCancel context.CancelFunc
}

func NewHub(notifications service.NotificationService, preferences service.PreferenceService, redisClient *redis.Client) *Hub {
	return &Hub{
		users:         make(map[uuid.UUID]map[*Client]struct{}),
		workspaces:    make(map[uuid.UUID]map[*Client]struct{}),
		owners:        make(map[*Client]uuid.UUID),
		notifications: notifications,
		preferences:   preferences,
		redisClient:   redisClient,
	}
}

// Start launches the cross-instance relay when Redis is configured.
func (h *Hub) Start() {
	if h.redisClient == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	h.relayCancel = cancel
	go h.runRelay(ctx)
}

func (h *Hub) Stop() {
	if h.relayCancel != nil {
		h.relayCancel()
	}

	// Deregister every client before closing its send channel, so a
	// concurrent broadcast can no longer enqueue into a closed channel.
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.owners))
	for c := range h.owners {
		clients = append(clients, c)
	}
	h.users = make(map[uuid.UUID]map[*Client]struct{})
	h.workspaces = make(map[uuid.UUID]map[*Client]struct{})
	h.owners = make(map[*Client]uuid.UUID)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.users[c.userID] == nil {
		h.users[c.userID] = make(map[*Client]struct{})
	}
	h.users[c.userID][c] = struct{}{}
	h.owners[c] = c.userID

	if c.workspaceID != uuid.Nil {
		if h.workspaces[c.workspaceID] == nil {
			h.workspaces[c.workspaceID] = make(map[*Client]struct{})
		}
		h.workspaces[c.workspaceID][c] = struct{}{}
	}

	log.Printf("ws: user %s connected (%d connections)", c.userID, len(h.users[c.userID]))
}

// remove detaches exactly one connection. The user stays present while any
// other connection remains.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userID, ok := h.owners[c]
	if !ok {
		return
	}
	delete(h.owners, c)

	if set := h.users[userID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.users, userID)
		}
	}
	if c.workspaceID != uuid.Nil {
		if set := h.workspaces[c.workspaceID]; set != nil {
			delete(set, c)
			if len(set) == 0 {
				delete(h.workspaces, c.workspaceID)
			}
		}
	}

	log.Printf("ws: user %s dropped a connection (%d left)", userID, len(h.users[userID]))
}

// IsOnline reports whether a user has at least one live connection.
func (h *Hub) IsOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

// SendToUser delivers an event to every live connection of one user.
func (h *Hub) SendToUser(userID uuid.UUID, event string, payload interface{}) {
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		log.Printf("ws: marshal %s: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.users[userID] {
		c.enqueue(data)
	}
}

// SendToWorkspace delivers an event to every connection in a workspace room.
func (h *Hub) SendToWorkspace(workspaceID uuid.UUID, event string, payload interface{}) {
	h.sendToWorkspace(workspaceID, event, payload, nil)
}

func (h *Hub) sendToWorkspace(workspaceID uuid.UUID, event string, payload interface{}, except *Client) {
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		log.Printf("ws: marshal %s: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.workspaces[workspaceID] {
		if c == except {
			continue
		}
		c.enqueue(data)
	}
}

// BroadcastSystem delivers a platform-wide announcement to every connection.
func (h *Hub) BroadcastSystem(event string, payload interface{}) {
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		log.Printf("ws: marshal %s: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.owners {
		c.enqueue(data)
	}
}

func marshalEnvelope(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

// runRelay forwards notifications published by other instances to local
// connections. Channel layout follows the notification service's
// user_notifications:<uuid> convention.
func (h *Hub) runRelay(ctx context.Context) {
	pubsub := h.redisClient.PSubscribe(ctx, "user_notifications:*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			idStr := strings.TrimPrefix(msg.Channel, "user_notifications:")
			userID, err := uuid.Parse(idStr)
			if err != nil {
				continue
			}
			h.SendToUser(userID, service.EventNotificationNew, json.RawMessage(msg.Payload))
		case <-ctx.Done():
			return
		}
	}
}
