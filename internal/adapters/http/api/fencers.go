package api

import (
	"context"
	"net/http"

	"github.com/okian/salle/internal/domain/model"
	"github.com/okian/salle/internal/domain/stats"
)

const maxGenerate = 100

// FencerDependencies defines the roster operations.
type FencerDependencies interface {
	Fencers() []model.Fencer
	RegisterFencer(ctx context.Context, f model.Fencer) (model.Fencer, error)
	GenerateRoster(ctx context.Context, n int) ([]model.Fencer, error)
	FencerDetail(ctx context.Context, id int64) (stats.DetailReport, error)
}

// FencerHandler handles roster requests.
type FencerHandler struct {
	deps FencerDependencies
}

// NewFencerHandler creates a new fencer handler.
func NewFencerHandler(deps FencerDependencies) *FencerHandler {
	return &FencerHandler{deps: deps}
}

type fencerRequest struct {
	Name  string `json:"name"`
	Age   int    `json:"age"`
	Level string `json:"level"`
	Club  string `json:"club,omitempty"`
}

type generateRequest struct {
	Count int `json:"count"`
}

// HandleList handles GET /api/fencers.
func (h *FencerHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Fencers())
}

// HandleCreate handles POST /api/fencers.
func (h *FencerHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req fencerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	level, err := model.ParseLevel(req.Level)
	if err != nil {
		writeServiceError(w, &model.ValidationError{Field: "level", Reason: "please select a level"})
		return
	}
	f, err := h.deps.RegisterFencer(r.Context(), model.Fencer{Name: req.Name, Age: req.Age, Level: level, Club: req.Club})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// HandleGenerate handles POST /api/fencers/generate. An empty body
// generates the default roster size.
func (h *FencerHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			badRequest(w, err)
			return
		}
	}
	if req.Count < 0 || req.Count > maxGenerate {
		writeServiceError(w, model.NewValidationError("count", "count must be between 1 and %d", maxGenerate))
		return
	}
	fs, err := h.deps.GenerateRoster(r.Context(), req.Count)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fs)
}

// HandleDetail handles GET /api/fencers/{id}/detail.
func (h *FencerHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err)
		return
	}
	report, err := h.deps.FencerDetail(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
