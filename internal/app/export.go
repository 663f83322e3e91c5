package service

import (
	"context"
	"errors"
	"io"

	"github.com/okian/salle/internal/adapters/export"
	"github.com/okian/salle/pkg/logger"
)

// WriteFencersCSV streams the roster as CSV.
func (s *Service) WriteFencersCSV(w io.Writer) error {
	return export.WriteFencers(w, s.state.Snapshot().Fencers)
}

// WriteBoutsCSV streams every bout as CSV, newest first.
func (s *Service) WriteBoutsCSV(w io.Writer) error {
	snap := s.state.Snapshot()
	return export.WriteBouts(w, snap.Bouts, snap.Fencers)
}

// Export uploads both CSV files to object storage.
func (s *Service) Export(ctx context.Context) ([]export.UploadResult, error) {
	if !s.exporter.Enabled() {
		return nil, ErrExportDisabled
	}
	snap := s.state.Snapshot()
	res, err := s.exporter.Export(ctx, snap.Fencers, snap.Bouts, s.now())
	if err != nil {
		if errors.Is(err, export.ErrNotConfigured) {
			return nil, ErrExportDisabled
		}
		return nil, err
	}
	s.logger.Info(ctx, "export uploaded", logger.Int("files", len(res)))
	return res, nil
}
