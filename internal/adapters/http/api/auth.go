package api

import (
	"context"
	"net/http"

	"github.com/okian/salle/internal/adapters/auth"
	"github.com/okian/salle/internal/domain/model"
)

// NameRegistrar stores the signed-in user's name.
type NameRegistrar interface {
	RegisterName(ctx context.Context, actor auth.Identity, first, last string) (model.AuthorizedUser, error)
}

// AuthHandler exposes the auth provider's sign-in flows.
type AuthHandler struct {
	provider auth.Provider
	names    NameRegistrar
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(p auth.Provider, names NameRegistrar) *AuthHandler {
	return &AuthHandler{provider: p, names: names}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type nameRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// HandleMagicLink handles POST /api/auth/magic-link.
func (h *AuthHandler) HandleMagicLink(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if err := h.provider.SignInWithMagicLink(r.Context(), req.Email); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, statusResponse{Status: "sent"})
}

// HandleVerifyMagicLink handles POST /api/auth/magic-link/verify.
func (h *AuthHandler) HandleVerifyMagicLink(w http.ResponseWriter, r *http.Request) {
	h.exchange(w, r, h.provider.VerifyMagicLink)
}

// HandleVerifyInvite handles POST /api/auth/invite/verify.
func (h *AuthHandler) HandleVerifyInvite(w http.ResponseWriter, r *http.Request) {
	h.exchange(w, r, h.provider.VerifyInvite)
}

func (h *AuthHandler) exchange(w http.ResponseWriter, r *http.Request, verify func(context.Context, string) (auth.Session, error)) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	sess, err := verify(r.Context(), req.Token)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// HandleLogin handles POST /api/auth/login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	sess, err := h.provider.SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// HandleSignUp handles POST /api/auth/signup.
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	sess, err := h.provider.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// HandleSession handles GET /api/auth/session.
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())
	writeJSON(w, http.StatusOK, sess)
}

// HandleLogout handles POST /api/auth/logout.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())
	if err := h.provider.SignOut(r.Context(), sess.Token); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRegisterName handles POST /api/auth/register-name.
func (h *AuthHandler) HandleRegisterName(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	u, err := h.names.RegisterName(r.Context(), identity(r), req.FirstName, req.LastName)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
