package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/okian/salle/internal/domain/model"
	"github.com/okian/salle/internal/domain/stats"
	"github.com/okian/salle/pkg/logger"
)

// StartSession opens a temporary session. It is stored only once the first
// fencer joins or the first bout is recorded.
func (s *Service) StartSession(ctx context.Context, userID string) (model.Session, error) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	if _, ok := s.state.Active(); ok {
		return model.Session{}, &model.ValidationError{Field: "session", Reason: model.MsgAlreadyActive}
	}
	sess := model.NewSession(s.now(), userID)
	s.state.SetActive(&sess)
	s.logger.Info(ctx, "session started", logger.Int64("session_id", sess.ID), logger.String("by", userID))
	s.notify(ctx, model.ChangeSessionChange, &sess.ID, sess.ID)
	return sess, nil
}

// ActiveSession returns the open session, if any.
func (s *Service) ActiveSession() (model.Session, bool) {
	return s.state.Active()
}

// persistActive stores a temporary active session. Callers hold sessionMu.
func (s *Service) persistActive(ctx context.Context) (model.Session, error) {
	active, ok := s.state.Active()
	if !ok {
		return model.Session{}, &model.NoActiveSessionError{}
	}
	if !active.Temporary {
		return active, nil
	}
	saved, err := s.state.SaveSession(ctx, active)
	if err != nil {
		return model.Session{}, err
	}
	s.state.SetActive(&saved)
	s.logger.Info(ctx, "session persisted", logger.Int64("session_id", saved.ID))
	return saved, nil
}

// AddSessionFencers adds registered fencers to the active session.
func (s *Service) AddSessionFencers(ctx context.Context, fencerIDs []int64) (model.Session, error) {
	if len(fencerIDs) == 0 {
		return model.Session{}, &model.ValidationError{Field: "fencer_ids", Reason: "please select at least one fencer"}
	}
	snap := s.state.Snapshot()
	for _, id := range fencerIDs {
		if !snap.Known(id) {
			return model.Session{}, model.NewValidationError("fencer_ids", "unknown fencer %d", id)
		}
	}

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()
	sess, err := s.persistActive(ctx)
	if err != nil {
		return model.Session{}, err
	}
	if err := s.state.AddMembers(ctx, sess.ID, fencerIDs); err != nil {
		return model.Session{}, err
	}
	sess, _ = s.state.Active()
	s.notify(ctx, model.ChangeSessionChange, &sess.ID, sess.ID)
	return sess, nil
}

// EndSession closes the active session. A stored session nobody joined is
// deleted; a temporary one is simply dropped.
func (s *Service) EndSession(ctx context.Context) (model.Session, error) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	active, ok := s.state.Active()
	if !ok {
		return model.Session{}, &model.NoActiveSessionError{}
	}
	switch {
	case active.Temporary:
		s.state.SetActive(nil)
	case len(s.state.Snapshot().Members[active.ID]) == 0:
		if err := s.state.DeleteSession(ctx, active.ID); err != nil {
			return model.Session{}, err
		}
	default:
		s.state.SetActive(nil)
	}
	s.logger.Info(ctx, "session ended", logger.Int64("session_id", active.ID))
	s.notify(ctx, model.ChangeSessionChange, &active.ID, active.ID)
	return active, nil
}

// Sessions lists stored sessions newest first.
func (s *Service) Sessions() []model.Session {
	return s.state.Snapshot().Sessions
}

// SessionView is one session with its fencers, bouts and standings.
type SessionView struct {
	Session     model.Session    `json:"session"`
	Fencers     []model.Fencer   `json:"fencers"`
	Bouts       []model.Bout     `json:"bouts"`
	Leaderboard []stats.Standing `json:"leaderboard"`
}

// Session returns a stored or the active session's view.
func (s *Service) Session(ctx context.Context, id int64) (SessionView, error) {
	snap := s.state.Snapshot()
	i := slices.IndexFunc(snap.Sessions, func(x model.Session) bool { return x.ID == id })
	var sess model.Session
	switch {
	case i >= 0:
		sess = snap.Sessions[i]
	case snap.Active != nil && snap.Active.ID == id:
		sess = *snap.Active
	default:
		return SessionView{}, fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	return SessionView{
		Session:     sess,
		Fencers:     snap.SessionFencers(id),
		Bouts:       snap.SessionBouts(id),
		Leaderboard: s.leaderboard(ctx, snap, stats.TimeframeAll, stats.SortWinRate, &id),
	}, nil
}
