package api

import (
	"context"
	"net/http"

	"github.com/okian/salle/internal/adapters/http/live"
)

// Joiner attaches an upgraded connection to a live room.
type Joiner interface {
	Join(ctx context.Context, w http.ResponseWriter, r *http.Request, room string)
}

// LiveHandler serves the websocket rooms.
type LiveHandler struct {
	ctx    context.Context
	joiner Joiner
}

// NewLiveHandler creates a new live handler. ctx outlives every client.
func NewLiveHandler(ctx context.Context, j Joiner) *LiveHandler {
	return &LiveHandler{ctx: ctx, joiner: j}
}

// HandleLeaderboard handles GET /ws/leaderboard.
func (h *LiveHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	h.join(w, r, live.LeaderboardRoom)
}

// HandleSession handles GET /ws/sessions/{sessionID}.
func (h *LiveHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "sessionID")
	if err != nil {
		badRequest(w, err)
		return
	}
	h.join(w, r, live.SessionRoom(id))
}

func (h *LiveHandler) join(w http.ResponseWriter, r *http.Request, room string) {
	if h.joiner == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", nil)
		return
	}
	h.joiner.Join(h.ctx, w, r, room)
}
