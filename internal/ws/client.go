package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lifehub-app/notify-engine/internal/model"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one live connection owned by an authenticated user.
type Client struct {
	hub         *Hub
	userID      uuid.UUID
	workspaceID uuid.UUID
	conn        *websocket.Conn
	send        chan []byte
	closeOnce   sync.Once
}

// Serve upgrades the request and admits the connection to the presence
// registry. The caller must have authenticated the user already.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID, workspaceID uuid.UUID) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &Client{
		hub:         h,
		userID:      userID,
		workspaceID: workspaceID,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
	}

	h.add(client)

	go client.writePump()
	go client.readPump()
	return nil
}

// enqueue is non-blocking: a client whose buffer is full misses the event
// rather than stalling the broadcast.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		log.Printf("ws: user %s send buffer full, dropping event", c.userID)
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws: read error for user %s: %v", c.userID, err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("ws: malformed event from user %s: %v", c.userID, err)
			continue
		}

		if err := c.handleEvent(&env); err != nil {
			log.Printf("ws: event %q from user %s: %v", env.Event, c.userID, err)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Client-originated events are thin pass-throughs to the stores; the hub's
// job is only routing them through the connection-to-user mapping.
func (c *Client) handleEvent(env *Envelope) error {
	switch env.Event {
	case "notification:ack":
		var data struct {
			ID uuid.UUID `json:"id"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return err
		}
		return c.hub.notifications.MarkDelivered(c.userID, data.ID)

	case "notification:read":
		var data struct {
			ID uuid.UUID `json:"id"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return err
		}
		return c.hub.notifications.MarkAsRead(c.userID, data.ID)

	case "notification:read-all":
		_, err := c.hub.notifications.MarkAllAsRead(c.userID, c.workspaceID)
		return err

	case "notification:preferences":
		var prefs model.NotificationPreferences
		if err := json.Unmarshal(env.Data, &prefs); err != nil {
			return err
		}
		_, err := c.hub.preferences.Upsert(c.userID, c.workspaceID, &prefs)
		return err

	case "typing:start", "typing:stop":
		var data struct {
			EntityID uuid.UUID `json:"entity_id"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return err
		}
		c.hub.sendToWorkspace(c.workspaceID, env.Event, map[string]interface{}{
			"user_id":   c.userID,
			"entity_id": data.EntityID,
		}, c)
		return nil

	default:
		log.Printf("ws: unknown event %q from user %s", env.Event, c.userID)
		return nil
	}
}
