package service

import (
	"context"
	"strings"

	"github.com/okian/salle/internal/domain/model"
	"github.com/okian/salle/pkg/logger"
	"github.com/okian/salle/pkg/metrics"
)

// Fencers lists registered fencers.
func (s *Service) Fencers() []model.Fencer {
	return s.state.Snapshot().Fencers
}

// RegisterFencer validates and stores a new fencer.
func (s *Service) RegisterFencer(ctx context.Context, f model.Fencer) (model.Fencer, error) {
	f.ID = 0
	f.Name = strings.TrimSpace(f.Name)
	f.Club = strings.TrimSpace(f.Club)
	if err := f.Validate(); err != nil {
		return model.Fencer{}, err
	}
	saved, err := s.state.AddFencers(ctx, []model.Fencer{f})
	if err != nil {
		return model.Fencer{}, err
	}
	metrics.RecordFencersRegistered(1)
	s.logger.Info(ctx, "fencer registered", logger.Int64("fencer_id", saved[0].ID), logger.String("name", saved[0].Name))
	s.notify(ctx, model.ChangeFencerAdded, nil, saved[0].ID)
	return saved[0], nil
}

// GenerateRoster registers n demo fencers; n <= 0 means the default roster size.
func (s *Service) GenerateRoster(ctx context.Context, n int) ([]model.Fencer, error) {
	s.simMu.Lock()
	fs := s.roster.Generate(n)
	s.simMu.Unlock()

	saved, err := s.state.AddFencers(ctx, fs)
	if err != nil {
		return nil, err
	}
	metrics.RecordFencersRegistered(len(saved))
	s.logger.Info(ctx, "demo roster generated", logger.Int("count", len(saved)))
	if len(saved) > 0 {
		s.notify(ctx, model.ChangeFencerAdded, nil, saved[len(saved)-1].ID)
	}
	return saved, nil
}
