package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/salle/internal/adapters/http/live"
	"github.com/okian/salle/internal/domain/model"
	"github.com/okian/salle/internal/domain/stats"
)

// LiveSnapshot returns the view a live client sees when joining room.
func (s *Service) LiveSnapshot(ctx context.Context, room string) (any, error) {
	if room == live.LeaderboardRoom {
		return s.Leaderboard(ctx, stats.TimeframeAll, stats.SortWinRate, nil), nil
	}
	var id int64
	if _, err := fmt.Sscanf(room, "session_%d", &id); err != nil {
		return nil, fmt.Errorf("unknown room %q", room)
	}
	return s.Session(ctx, id)
}

// handleChange runs on the worker pool after each confirmed write and pushes
// fresh views to the rooms that care.
func (s *Service) handleChange(ctx context.Context, c model.Change) error {
	if s.broadcaster == nil {
		return nil
	}
	var errs []error
	if s.broadcaster.HasClients(live.LeaderboardRoom) {
		board := s.Leaderboard(ctx, stats.TimeframeAll, stats.SortWinRate, nil)
		errs = append(errs, s.broadcaster.Broadcast(live.LeaderboardRoom, live.TypeLeaderboard, board))
	}
	if c.SessionID != nil {
		room := live.SessionRoom(*c.SessionID)
		if s.broadcaster.HasClients(room) {
			view, err := s.Session(ctx, *c.SessionID)
			switch {
			case errors.Is(err, ErrNotFound):
				// ended and deleted; tell listeners it is gone
				errs = append(errs, s.broadcaster.Broadcast(room, live.TypeSession, nil))
			case err != nil:
				errs = append(errs, err)
			default:
				errs = append(errs, s.broadcaster.Broadcast(room, live.TypeSession, view))
			}
		}
	}
	return errors.Join(errs...)
}
