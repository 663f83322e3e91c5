package service

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/salle/internal/app/state"
	"github.com/okian/salle/internal/domain/model"
	"github.com/okian/salle/internal/domain/stats"
	"github.com/okian/salle/pkg/metrics"
)

// Leaderboard ranks fencers, optionally inside one session.
func (s *Service) Leaderboard(ctx context.Context, tf stats.Timeframe, sortBy stats.SortKey, sessionID *int64) []stats.Standing {
	return s.leaderboard(ctx, s.state.Snapshot(), tf, sortBy, sessionID)
}

func (s *Service) leaderboard(_ context.Context, snap state.Snapshot, tf stats.Timeframe, sortBy stats.SortKey, sessionID *int64) []stats.Standing {
	start := time.Now()
	defer func() { metrics.RecordAggregationLatency("leaderboard", metrics.Since(start)) }()

	opts := []stats.RankOption{stats.At(s.now())}
	if sessionID != nil {
		opts = append(opts, stats.InSession(*sessionID))
	}
	return stats.RankFencers(snap.Fencers, snap.Bouts, tf, sortBy, opts...)
}

// Matrix builds the head-to-head matrix over every fencer, or over one
// session's members and bouts.
func (s *Service) Matrix(_ context.Context, sessionID *int64) stats.Matrix {
	start := time.Now()
	defer func() { metrics.RecordAggregationLatency("matrix", metrics.Since(start)) }()

	snap := s.state.Snapshot()
	fencers, bouts := snap.Fencers, snap.Bouts
	if sessionID != nil {
		fencers, bouts = snap.SessionFencers(*sessionID), snap.SessionBouts(*sessionID)
	}
	return stats.BuildMatrix(fencers, bouts, stats.WithWinningScore(s.rules.WinningScore))
}

// FencerDetail returns one fencer's statistics.
func (s *Service) FencerDetail(_ context.Context, id int64) (stats.DetailReport, error) {
	start := time.Now()
	defer func() { metrics.RecordAggregationLatency("detail", metrics.Since(start)) }()

	snap := s.state.Snapshot()
	r, ok := stats.FencerDetail(id, snap.Fencers, snap.Bouts)
	if !ok {
		return stats.DetailReport{}, fmt.Errorf("fencer %d: %w", id, ErrNotFound)
	}
	return r, nil
}

// Fencer looks up a registered fencer.
func (s *Service) Fencer(id int64) (model.Fencer, error) {
	f, ok := s.state.Snapshot().Fencer(id)
	if !ok {
		return model.Fencer{}, fmt.Errorf("fencer %d: %w", id, ErrNotFound)
	}
	return f, nil
}
