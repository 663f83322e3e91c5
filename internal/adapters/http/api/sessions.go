package api

import (
	"context"
	"net/http"

	service "github.com/okian/salle/internal/app"
	"github.com/okian/salle/internal/domain/model"
)

// SessionDependencies defines the session operations.
type SessionDependencies interface {
	Sessions() []model.Session
	StartSession(ctx context.Context, userID string) (model.Session, error)
	ActiveSession() (model.Session, bool)
	AddSessionFencers(ctx context.Context, fencerIDs []int64) (model.Session, error)
	EndSession(ctx context.Context) (model.Session, error)
	Session(ctx context.Context, id int64) (service.SessionView, error)
}

// SessionHandler handles session requests.
type SessionHandler struct {
	deps SessionDependencies
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

type activeResponse struct {
	Active *model.Session `json:"active"`
}

type membersRequest struct {
	FencerIDs []int64 `json:"fencer_ids"`
}

// HandleList handles GET /api/sessions.
func (h *SessionHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Sessions())
}

// HandleStart handles POST /api/sessions.
func (h *SessionHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	sess, err := h.deps.StartSession(r.Context(), identity(r).Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// HandleActive handles GET /api/sessions/active; active is null when
// no session is running.
func (h *SessionHandler) HandleActive(w http.ResponseWriter, _ *http.Request) {
	var resp activeResponse
	if sess, ok := h.deps.ActiveSession(); ok {
		resp.Active = &sess
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleEnd handles POST /api/sessions/active/end.
func (h *SessionHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	sess, err := h.deps.EndSession(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// HandleAddFencers handles POST /api/sessions/active/fencers.
func (h *SessionHandler) HandleAddFencers(w http.ResponseWriter, r *http.Request) {
	var req membersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	sess, err := h.deps.AddSessionFencers(r.Context(), req.FencerIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// HandleView handles GET /api/sessions/{id}/fencers.
func (h *SessionHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	view, err := h.deps.Session(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
