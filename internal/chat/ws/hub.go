package ws

import (
	"encoding/json"
	"sync"
)

// Client represents a single WebSocket connection with user context.
type Client struct {
	UserID string
	Send   chan []byte
	mu     sync.Mutex
	closed bool
}

func NewClient(userID string) *Client {
	return &Client{
		UserID: userID,
		Send:   make(chan []byte, 256),
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

// TrySend queues the payload without blocking. Sends and Close share the
// client mutex, so a broadcast can never hit a closed channel. Returns
// false when the client is closed or its buffer is full.
func (c *Client) TrySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Room is one chat room per conversation, holding both parties'
// connections.
type Room struct {
	ConversationID string
	clients        map[*Client]struct{}
	mu             sync.RWMutex
}

func NewRoom(conversationID string) *Room {
	return &Room{
		ConversationID: conversationID,
		clients:        make(map[*Client]struct{}),
	}
}

func (r *Room) Join(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c] = struct{}{}
}

func (r *Room) Leave(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, c)
}

func (r *Room) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Broadcast sends the payload to every connection in the room except the
// sender's own. A slow connection gets skipped rather than blocking the
// room.
func (r *Room) Broadcast(from *Client, payload interface{}) {
	data, _ := json.Marshal(payload)
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		if c != from {
			clients = append(clients, c)
		}
	}
	r.mu.RUnlock()
	for _, c := range clients {
		c.TrySend(data)
	}
}

// BroadcastAll sends to every connection in the room, sender included.
// Used by the kafka consumer path where there is no local sender.
func (r *Room) BroadcastAll(payload interface{}) {
	r.Broadcast(nil, payload)
}

// Hub holds all chat rooms by conversation ID.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*Room)}
}

func (h *Hub) GetOrCreateRoom(conversationID string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[conversationID]; ok {
		return r
	}
	r := NewRoom(conversationID)
	h.rooms[conversationID] = r
	return r
}

func (h *Hub) GetRoom(conversationID string) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[conversationID]
}

func (h *Hub) RemoveRoom(conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, conversationID)
}
