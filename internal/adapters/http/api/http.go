// Package api serves the club tracker over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/okian/salle/internal/adapters/auth"
	"github.com/okian/salle/internal/adapters/http/live"
	"github.com/okian/salle/internal/adapters/http/swagger"
	service "github.com/okian/salle/internal/app"
	"github.com/okian/salle/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Dependencies wires the router to the service and its collaborators.
type Dependencies struct {
	Service        *service.Service
	Auth           auth.Provider
	Live           *live.Handler
	AllowedOrigins []string
	RequestTimeout time.Duration
	Logger         logger.Logger
}

// NewRouter builds every route. ctx bounds long-lived websocket clients.
func NewRouter(ctx context.Context, deps Dependencies) http.Handler {
	log := deps.Logger
	if log == nil {
		log = logger.Get()
	}
	var joiner Joiner
	if deps.Live != nil {
		joiner = deps.Live
	}
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	var (
		health   = NewHealthHandler()
		stat     = NewStatsHandler(deps.Service)
		authn    = NewAuthHandler(deps.Auth, deps.Service)
		fencers  = NewFencerHandler(deps.Service)
		bouts    = NewBoutHandler(deps.Service)
		sessions = NewSessionHandler(deps.Service)
		views    = NewViewHandler(deps.Service)
		exports  = NewExportHandler(deps.Service)
		admin    = NewAdminHandler(deps.Service)
		ws       = NewLiveHandler(ctx, joiner)
		guard    = NewAuthenticator(deps.Auth)
	)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(RequestLogger(log))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", IdempotencyKeyHeader},
		ExposedHeaders: []string{ReplayedHeader},
		MaxAge:         300,
	}))
	r.Use(MetricsMiddleware)

	r.Get("/healthz", health.HandleHealth)
	r.Get("/stats", stat.HandleStats)
	swagger.Register(r)

	r.Route("/api", func(r chi.Router) {
		if deps.RequestTimeout > 0 {
			r.Use(chimw.Timeout(deps.RequestTimeout))
		}

		r.Post("/auth/magic-link", authn.HandleMagicLink)
		r.Post("/auth/magic-link/verify", authn.HandleVerifyMagicLink)
		r.Post("/auth/login", authn.HandleLogin)
		r.Post("/auth/signup", authn.HandleSignUp)
		r.Post("/auth/invite/verify", authn.HandleVerifyInvite)

		r.Group(func(r chi.Router) {
			r.Use(guard.Require)

			r.Get("/auth/session", authn.HandleSession)
			r.Post("/auth/logout", authn.HandleLogout)
			r.Post("/auth/register-name", authn.HandleRegisterName)

			r.Get("/fencers", fencers.HandleList)
			r.Post("/fencers", fencers.HandleCreate)
			r.Post("/fencers/generate", fencers.HandleGenerate)
			r.Get("/fencers/{id}/detail", fencers.HandleDetail)

			r.Get("/bouts", bouts.HandleList)
			r.Post("/bouts", bouts.HandleRecord)
			r.Get("/bouts/form", bouts.HandleForm)
			r.Post("/bouts/simulate", bouts.HandleSimulate)
			r.Patch("/bouts/{id}", bouts.HandleUpdate)
			r.Delete("/bouts/{id}", bouts.HandleDelete)

			r.Get("/leaderboard", views.HandleLeaderboard)
			r.Get("/matrix", views.HandleMatrix)
			r.Get("/state", views.HandleState)
			r.Post("/state/refresh", views.HandleRefresh)

			r.Get("/sessions", sessions.HandleList)
			r.Post("/sessions", sessions.HandleStart)
			r.Get("/sessions/active", sessions.HandleActive)
			r.Post("/sessions/active/end", sessions.HandleEnd)
			r.Post("/sessions/active/fencers", sessions.HandleAddFencers)
			r.Get("/sessions/{id}/fencers", sessions.HandleView)

			r.Get("/export/fencers.csv", exports.HandleFencersCSV)
			r.Get("/export/bouts.csv", exports.HandleBoutsCSV)
			r.Post("/exports", exports.HandleUpload)

			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Get("/admin/users", admin.HandleListUsers)
				r.Post("/admin/users", admin.HandleAddUser)
				r.Get("/admin/logs", admin.HandleLogs)
			})
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(guard.Require)
		r.Get("/ws/leaderboard", ws.HandleLeaderboard)
		r.Get("/ws/sessions/{sessionID}", ws.HandleSession)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s", ErrBadRequest, name)
	}
	return id, nil
}

// queryID parses an optional positive integer query parameter.
func queryID(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: invalid %s", ErrBadRequest, name)
	}
	return &id, nil
}

func badRequest(w http.ResponseWriter, err error) {
	if !errors.Is(err, ErrBadRequest) {
		err = fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	writeError(w, http.StatusBadRequest, "bad_request", err)
}
