// Package live pushes fresh views to websocket clients grouped in rooms.
package live

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/okian/salle/pkg/logger"
	"github.com/okian/salle/pkg/metrics"
)

// LeaderboardRoom receives the club-wide leaderboard.
const LeaderboardRoom = "leaderboard"

// SessionRoom names the room of one training session.
func SessionRoom(sessionID int64) string {
	return "session_" + strconv.FormatInt(sessionID, 10)
}

// Message types.
const (
	TypeSnapshot    = "snapshot"
	TypeLeaderboard = "leaderboard_updated"
	TypeSession     = "session_updated"
)

// Message is the envelope written to clients.
type Message struct {
	Type    string `json:"type"`
	Room    string `json:"room,omitempty"`
	Payload any    `json:"payload"`
}

// Hub tracks clients per room. Run must be running for Register and
// Unregister to complete.
type Hub struct {
	register   chan *Client
	unregister chan *Client

	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
	total int

	logger logger.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithLogger sets the hub logger.
func WithLogger(l logger.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHub creates an idle hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("live")
	}
	return h
}

// Run serialises membership changes until ctx is done, then drops every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.room]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.room] = room
	}
	room[c] = struct{}{}
	h.total++
	metrics.UpdateLiveClients(h.total)
	h.logger.Debug(context.Background(), "client joined",
		logger.String("room", c.room), logger.Int("room_size", len(room)))
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.room]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	c.closeSend()
	h.total--
	if len(room) == 0 {
		delete(h.rooms, c.room)
	}
	metrics.UpdateLiveClients(h.total)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, room := range h.rooms {
		for c := range room {
			c.closeSend()
		}
		delete(h.rooms, name)
	}
	h.total = 0
	metrics.UpdateLiveClients(0)
}

// Clients returns the number of clients in room.
func (h *Hub) Clients(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// HasClients reports whether anyone listens on room.
func (h *Hub) HasClients(room string) bool { return h.Clients(room) > 0 }

// Broadcast sends a message to every client in room. Slow clients whose
// buffer is full miss the message.
func (h *Hub) Broadcast(room, msgType string, payload any) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.rooms[room]
	if !ok {
		return nil
	}
	data, err := json.Marshal(Message{Type: msgType, Room: room, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s message: %w", msgType, err)
	}
	for c := range clients {
		if !c.trySend(data) {
			h.logger.Warn(context.Background(), "client buffer full, message skipped",
				logger.String("room", room))
		}
	}
	metrics.RecordLiveBroadcast(room)
	return nil
}
