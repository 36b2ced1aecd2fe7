package socket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"jsonblog/internal/post/repository"
	"jsonblog/pkg/logger"
)

const (
	SnapshotType       = "SNAPSHOT"        // Full collection sent to a client that just connected
	PresenceUpdateType = "PRESENCE_UPDATE" // Number of connected viewers changed
	PostCreatedType    = "POST_CREATED"
	PostUpdatedType    = "POST_UPDATED"
	PostDeletedType    = "POST_DELETED"
)

type WSMessage struct {
	Type    string          `json:"type"`
	PostID  int             `json:"post_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Presence struct {
	Viewers int       `json:"viewers"`
	At      time.Time `json:"at"`
}

// Hub fans post change events out to every connected websocket client.
type Hub struct {
	Broadcast  chan WSMessage
	Register   chan *Client
	Unregister chan *Client
	store      repository.Store
	clients    map[*Client]bool
	mu         sync.Mutex
	done       chan struct{}
}

func NewHub(store repository.Store) *Hub {
	return &Hub{
		Broadcast:  make(chan WSMessage, 64),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		store:      store,
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
	}
}

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

		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

			// The new client gets the current collection straight from the store.
			posts, err := h.store.List(ctx)
			if err != nil {
				logger.Sugar.Warnf("Sending empty snapshot, posts could not be loaded: %v", err)
			}
			payload, _ := json.Marshal(posts)
			snapshot, _ := json.Marshal(WSMessage{Type: SnapshotType, Payload: payload})
			client.Send <- snapshot

			h.broadcastPresenceUpdate()

		case client := <-h.Unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()

			if ok {
				h.broadcastPresenceUpdate()
			}

		case msg := <-h.Broadcast:
			payload, err := json.Marshal(msg)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
				continue
			}

			h.mu.Lock()
			clientsToSend := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clientsToSend = append(clientsToSend, client)
			}
			h.mu.Unlock()

			for _, client := range clientsToSend {
				select {
				case client.Send <- payload:
				default:
					// A client that cannot keep up is dropped rather than blocking the hub.
					logger.Sugar.Warnf("Client %s's send buffer is full. Dropping it.", client.ID)
					h.drop(client)
				}
			}
		}
	}
}

// Publish queues msg for every connected client. It never blocks: when the
// queue is full the event is dropped and logged.
func (h *Hub) Publish(msg WSMessage) {
	select {
	case h.Broadcast <- msg:
	default:
		logger.Sugar.Warnf("Broadcast queue full, dropping %s event for post %d", msg.Type, msg.PostID)
	}
}

func (h *Hub) register(c *Client) bool {
	select {
	case h.Register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
	}
	h.mu.Unlock()
	client.Conn.Close()
}

func (h *Hub) broadcastPresenceUpdate() {
	h.mu.Lock()
	clientsToSend := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clientsToSend = append(clientsToSend, client)
	}
	h.mu.Unlock()

	if len(clientsToSend) == 0 {
		return
	}

	payload, err := json.Marshal(Presence{Viewers: len(clientsToSend), At: time.Now()})
	if err != nil {
		logger.Sugar.Errorf("Error marshalling presence broadcast: %v", err)
		return
	}
	broadcastPayload, _ := json.Marshal(WSMessage{Type: PresenceUpdateType, Payload: payload})

	for _, client := range clientsToSend {
		select {
		case client.Send <- broadcastPayload:
		default:
			logger.Sugar.Warnf("Client %s's send buffer was full during presence update.", client.ID)
		}
	}
}
