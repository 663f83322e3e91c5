package api

import (
	"context"
	"net/http"

	"github.com/okian/salle/internal/app/state"
	"github.com/okian/salle/internal/domain/model"
	"github.com/okian/salle/internal/domain/stats"
)

// ViewDependencies defines the read-side views.
type ViewDependencies interface {
	Leaderboard(ctx context.Context, tf stats.Timeframe, sortBy stats.SortKey, sessionID *int64) []stats.Standing
	Matrix(ctx context.Context, sessionID *int64) stats.Matrix
	State() state.Snapshot
	Refresh(ctx context.Context) (state.Snapshot, error)
}

// ViewHandler handles leaderboard, matrix and state requests.
type ViewHandler struct {
	deps ViewDependencies
}

// NewViewHandler creates a new view handler.
func NewViewHandler(deps ViewDependencies) *ViewHandler {
	return &ViewHandler{deps: deps}
}

// HandleLeaderboard handles GET /api/leaderboard?timeframe=&sort=&session=.
func (h *ViewHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tf, ok := stats.ParseTimeframe(q.Get("timeframe"))
	if !ok {
		writeServiceError(w, model.NewValidationError("timeframe", "unknown timeframe %q", q.Get("timeframe")))
		return
	}
	sortBy, ok := stats.ParseSortKey(q.Get("sort"))
	if !ok {
		writeServiceError(w, model.NewValidationError("sort", "unknown sort %q", q.Get("sort")))
		return
	}
	sessionID, err := queryID(r, "session")
	if err != nil {
		badRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Leaderboard(r.Context(), tf, sortBy, sessionID))
}

// HandleMatrix handles GET /api/matrix?session=.
func (h *ViewHandler) HandleMatrix(w http.ResponseWriter, r *http.Request) {
	sessionID, err := queryID(r, "session")
	if err != nil {
		badRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Matrix(r.Context(), sessionID))
}

// HandleState handles GET /api/state.
func (h *ViewHandler) HandleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.State())
}

// HandleRefresh handles POST /api/state/refresh.
func (h *ViewHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.Refresh(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
