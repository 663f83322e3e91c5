package live

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"

	"github.com/okian/salle/pkg/logger"
)

// SnapshotFunc returns the current view for a room, sent right after joining.
type SnapshotFunc func(ctx context.Context, room string) (any, error)

// Handler upgrades requests and registers clients with a hub.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	snapshot SnapshotFunc
}

// NewHandler builds a Handler. An empty allowedOrigins list, or one
// containing "*", accepts every origin.
func NewHandler(h *Hub, allowedOrigins []string, snapshot SnapshotFunc) *Handler {
	return &Handler{
		hub:      h,
		snapshot: snapshot,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
					return true
				}
				return slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// Join upgrades the connection and attaches it to room until it disconnects
// or ctx ends. ctx should outlive the request, normally the server context.
func (h *Handler) Join(ctx context.Context, w http.ResponseWriter, r *http.Request, room string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.logger.Warn(r.Context(), "websocket upgrade failed",
			logger.String("room", room), logger.Error(err))
		return
	}

	c := newClient(h.hub, conn, room)
	if h.snapshot != nil {
		if payload, err := h.snapshot(r.Context(), room); err != nil {
			h.hub.logger.Warn(r.Context(), "initial snapshot failed",
				logger.String("room", room), logger.Error(err))
		} else if data, err := json.Marshal(Message{Type: TypeSnapshot, Room: room, Payload: payload}); err == nil {
			c.send <- data
		}
	}

	select {
	case h.hub.register <- c:
	case <-ctx.Done():
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump(ctx)
}
