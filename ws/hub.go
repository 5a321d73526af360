package ws

import (
	"sync"

	"github.com/quickchat-app/quickchat/chat"
	"github.com/quickchat-app/quickchat/globals"
	"github.com/quickchat-app/quickchat/types"
)

// Hub holds the live connections and implements the coordinator's Broadcaster
// capability. Room grouping is not duplicated here: the session registry is
// the single source of truth for which connection is in which room.
type Hub struct {
	registry *chat.Registry

	// Registered clients by connection id.
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewHub(registry *chat.Registry) *Hub {
	return &Hub{
		registry: registry,
		clients:  make(map[string]*Client),
	}
}

// Add registers a client with the hub.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.Id] = c
}

// Remove unregisters a client and closes its send channel. Closing happens
// under the write lock so no concurrent deliver can write to a closed
// channel. Safe to call more than once.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.Id]; !ok {
		return
	}
	delete(h.clients, c.Id)
	close(c.send)
}

// NoClients returns the number of clients registered
func (h *Hub) NoClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ToConn delivers an event to a single connection. Delivery to a gone
// connection is a silent no-op.
func (h *Hub) ToConn(connId string, event string, payload interface{}) {
	data, err := types.NewWireMessage(event, payload)
	if err != nil {
		globals.AppLogger.Error("could not marshal wire message", "event", event, "error", err)
		return
	}
	h.deliver(connId, data)
}

// ToRoom delivers an event to every connection currently bound to the room.
func (h *Hub) ToRoom(roomCode string, event string, payload interface{}) {
	h.toRoom(roomCode, "", event, payload)
}

// ToRoomExcept delivers an event to every connection in the room except one,
// typically the originator.
func (h *Hub) ToRoomExcept(roomCode, exceptConn string, event string, payload interface{}) {
	h.toRoom(roomCode, exceptConn, event, payload)
}

func (h *Hub) toRoom(roomCode, exceptConn string, event string, payload interface{}) {
	data, err := types.NewWireMessage(event, payload)
	if err != nil {
		globals.AppLogger.Error("could not marshal wire message", "event", event, "error", err)
		return
	}
	for _, connId := range h.registry.ConnectionsByRoom(roomCode) {
		if connId == exceptConn {
			continue
		}
		h.deliver(connId, data)
	}
}

// deliver enqueues under the read lock, which excludes Remove closing the
// channel mid-send.
func (h *Hub) deliver(connId string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c := h.clients[connId]
	if c == nil {
		return
	}
	select {
	case c.send <- data:
	default:
		// slow consumer, drop rather than block the handler
		globals.AppLogger.Warn("send buffer full, dropping message", "conn", connId)
	}
}
