package api

import (
	"context"
	"io"
	"net/http"

	"github.com/okian/salle/internal/adapters/export"
)

// ExportDependencies defines the CSV export operations.
type ExportDependencies interface {
	WriteFencersCSV(w io.Writer) error
	WriteBoutsCSV(w io.Writer) error
	Export(ctx context.Context) ([]export.UploadResult, error)
}

// ExportHandler streams CSV files and triggers uploads.
type ExportHandler struct {
	deps ExportDependencies
}

// NewExportHandler creates a new export handler.
func NewExportHandler(deps ExportDependencies) *ExportHandler {
	return &ExportHandler{deps: deps}
}

type uploadResponse struct {
	Files []export.UploadResult `json:"files"`
}

// HandleFencersCSV handles GET /api/export/fencers.csv.
func (h *ExportHandler) HandleFencersCSV(w http.ResponseWriter, _ *http.Request) {
	streamCSV(w, "fencers.csv", h.deps.WriteFencersCSV)
}

// HandleBoutsCSV handles GET /api/export/bouts.csv.
func (h *ExportHandler) HandleBoutsCSV(w http.ResponseWriter, _ *http.Request) {
	streamCSV(w, "bouts.csv", h.deps.WriteBoutsCSV)
}

// HandleUpload handles POST /api/exports.
func (h *ExportHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	files, err := h.deps.Export(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, uploadResponse{Files: files})
}

// streamCSV writes headers first; a failure mid-stream can only truncate.
func streamCSV(w http.ResponseWriter, name string, write func(io.Writer) error) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_ = write(w)
}
