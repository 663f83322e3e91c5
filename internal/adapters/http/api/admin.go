package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/salle/internal/adapters/auth"
	service "github.com/okian/salle/internal/app"
	"github.com/okian/salle/internal/domain/model"
)

const defaultLogLimit = 100

// AdminDependencies defines the administrator operations.
type AdminDependencies interface {
	AddUser(ctx context.Context, actor auth.Identity, in service.NewUser) (service.AddUserResult, error)
	Users(ctx context.Context, actor auth.Identity) ([]model.AuthorizedUser, error)
	AuthLogs(ctx context.Context, actor auth.Identity, limit int) ([]model.AuthLog, error)
}

// AdminHandler handles user management requests.
type AdminHandler struct {
	deps AdminDependencies
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies) *AdminHandler {
	return &AdminHandler{deps: deps}
}

// HandleListUsers handles GET /api/admin/users.
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.deps.Users(r.Context(), identity(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleAddUser handles POST /api/admin/users.
func (h *AdminHandler) HandleAddUser(w http.ResponseWriter, r *http.Request) {
	var req service.NewUser
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	res, err := h.deps.AddUser(r.Context(), identity(r), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// HandleLogs handles GET /api/admin/logs?limit=N.
func (h *AdminHandler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(w, ErrBadRequest)
			return
		}
		limit = n
	}
	logs, err := h.deps.AuthLogs(r.Context(), identity(r), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
