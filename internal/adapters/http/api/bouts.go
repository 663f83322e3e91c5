package api

import (
	"context"
	"net/http"
	"strings"

	service "github.com/okian/salle/internal/app"
	"github.com/okian/salle/internal/domain/model"
	"github.com/okian/salle/internal/domain/recording"
)

// Idempotency headers.
const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"
	maxIdempotencyKey    = 128
)

// BoutDependencies defines the bout operations.
type BoutDependencies interface {
	Bouts(sessionID *int64) []model.Bout
	BoutForm() (recording.Candidate, recording.Rules)
	RecordBout(ctx context.Context, c recording.Candidate, key string) (service.RecordResult, error)
	SimulateBout(ctx context.Context, key string) (service.RecordResult, error)
	UpdateBout(ctx context.Context, id int64, patch model.BoutPatch) (model.Bout, error)
	DeleteBout(ctx context.Context, id int64) error
}

// BoutHandler handles bout requests.
type BoutHandler struct {
	deps BoutDependencies
}

// NewBoutHandler creates a new bout handler.
func NewBoutHandler(deps BoutDependencies) *BoutHandler {
	return &BoutHandler{deps: deps}
}

type formResponse struct {
	Form           recording.Candidate `json:"form"`
	ScoreMin       int                 `json:"score_min"`
	ScoreMax       int                 `json:"score_max"`
	WinningScore   int                 `json:"winning_score"`
	RequireSession bool                `json:"require_session"`
}

// HandleList handles GET /api/bouts?session=<id>.
func (h *BoutHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	sessionID, err := queryID(r, "session")
	if err != nil {
		badRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Bouts(sessionID))
}

// HandleForm handles GET /api/bouts/form.
func (h *BoutHandler) HandleForm(w http.ResponseWriter, _ *http.Request) {
	c, rules := h.deps.BoutForm()
	writeJSON(w, http.StatusOK, formResponse{
		Form:           c,
		ScoreMin:       rules.ScoreMin,
		ScoreMax:       rules.ScoreMax,
		WinningScore:   rules.WinningScore,
		RequireSession: rules.RequireSession,
	})
}

// HandleRecord handles POST /api/bouts. A repeated Idempotency-Key returns
// the first result with 200 instead of 201.
func (h *BoutHandler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	key, err := idempotencyKey(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	var c recording.Candidate
	if err := decodeJSON(w, r, &c); err != nil {
		badRequest(w, err)
		return
	}
	res, err := h.deps.RecordBout(r.Context(), c, key)
	writeRecordResult(w, res, err)
}

// HandleSimulate handles POST /api/bouts/simulate.
func (h *BoutHandler) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	key, err := idempotencyKey(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	res, err := h.deps.SimulateBout(r.Context(), key)
	writeRecordResult(w, res, err)
}

// HandleUpdate handles PATCH /api/bouts/{id}.
func (h *BoutHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	var patch model.BoutPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		badRequest(w, err)
		return
	}
	b, err := h.deps.UpdateBout(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// HandleDelete handles DELETE /api/bouts/{id}.
func (h *BoutHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := h.deps.DeleteBout(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func idempotencyKey(r *http.Request) (string, error) {
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if len(key) > maxIdempotencyKey {
		return "", ErrBadRequest
	}
	return key, nil
}

func writeRecordResult(w http.ResponseWriter, res service.RecordResult, err error) {
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if res.Replayed {
		w.Header().Set(ReplayedHeader, "true")
		writeJSON(w, http.StatusOK, res.Bout)
		return
	}
	writeJSON(w, http.StatusCreated, res.Bout)
}
