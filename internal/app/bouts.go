package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/salle/internal/domain/dedupe"
	"github.com/okian/salle/internal/domain/model"
	"github.com/okian/salle/internal/domain/recording"
	"github.com/okian/salle/pkg/logger"
	"github.com/okian/salle/pkg/metrics"
)

// Bout sources for metrics.
const (
	SourceForm      = "form"
	SourceSimulated = "simulated"
)

// RecordResult is a stored bout and whether it was replayed from an
// earlier request with the same idempotency key.
type RecordResult struct {
	Bout     model.Bout `json:"bout"`
	Replayed bool       `json:"replayed"`
}

// BoutForm returns a blank candidate with the rules the form must respect.
func (s *Service) BoutForm() (recording.Candidate, recording.Rules) {
	return recording.Blank(s.now()), s.rules
}

// Bouts lists bouts newest first, optionally only one session's.
func (s *Service) Bouts(sessionID *int64) []model.Bout {
	snap := s.state.Snapshot()
	if sessionID != nil {
		return snap.SessionBouts(*sessionID)
	}
	return snap.Bouts
}

// RecordBout validates and stores a bout. A non-empty key makes retries
// return the first result instead of storing a duplicate.
func (s *Service) RecordBout(ctx context.Context, c recording.Candidate, key string) (RecordResult, error) {
	return s.idempotent(ctx, key, func() (model.Bout, error) {
		return s.record(ctx, c, SourceForm)
	})
}

// SimulateBout records a random bout between two eligible fencers: the
// active session's members when there are at least two, otherwise everyone.
func (s *Service) SimulateBout(ctx context.Context, key string) (RecordResult, error) {
	return s.idempotent(ctx, key, func() (model.Bout, error) {
		snap := s.state.Snapshot()
		eligible := snap.Fencers
		if snap.Active != nil {
			if members := snap.SessionFencers(snap.Active.ID); len(members) >= 2 {
				eligible = members
			}
		}
		s.simMu.Lock()
		c, err := s.simulator.Simulate(eligible, s.now())
		s.simMu.Unlock()
		if err != nil {
			metrics.RecordBoutRejected("not_enough_fencers")
			return model.Bout{}, &model.ValidationError{Field: "fencers", Reason: err.Error()}
		}
		return s.record(ctx, c, SourceSimulated)
	})
}

func (s *Service) idempotent(ctx context.Context, key string, write func() (model.Bout, error)) (RecordResult, error) {
	if key == "" {
		b, err := write()
		return RecordResult{Bout: b}, err
	}

	id, st := s.deduper.Reserve(ctx, key)
	switch st {
	case dedupe.Replay:
		metrics.RecordIdempotentReplay()
		b, err := s.bout(ctx, id)
		if err != nil {
			return RecordResult{}, err
		}
		return RecordResult{Bout: b, Replayed: true}, nil
	case dedupe.InFlight:
		return RecordResult{}, ErrInFlight
	}

	b, err := write()
	if err != nil {
		s.deduper.Unrecord(ctx, key)
		return RecordResult{}, err
	}
	s.deduper.Complete(ctx, key, b.ID)
	return RecordResult{Bout: b}, nil
}

func (s *Service) bout(ctx context.Context, id int64) (model.Bout, error) {
	if b, ok := s.state.Snapshot().Bout(id); ok {
		return b, nil
	}
	b, err := s.store.GetBout(ctx, id)
	if err != nil {
		return model.Bout{}, model.Remote(fmt.Sprintf("get bout %d", id), err)
	}
	return b, nil
}

func (s *Service) record(ctx context.Context, c recording.Candidate, source string) (model.Bout, error) {
	snap := s.state.Snapshot()
	b, err := s.validator.Draft(c, snap.Active, snap.Known, s.now())
	if err != nil {
		metrics.RecordBoutRejected(rejectReason(err))
		return model.Bout{}, err
	}

	if b.SessionID != nil {
		s.sessionMu.Lock()
		defer s.sessionMu.Unlock()
		sess, err := s.persistActive(ctx)
		if err != nil {
			return model.Bout{}, err
		}
		if sess.ID != *b.SessionID {
			// the session ended while the bout was being validated
			return model.Bout{}, &model.NoActiveSessionError{}
		}
	}

	saved, err := s.state.AddBout(ctx, b)
	if err != nil {
		metrics.RecordBoutRejected("store")
		return model.Bout{}, err
	}
	if saved.SessionID != nil {
		if err := s.state.AddMembers(ctx, *saved.SessionID, []int64{saved.Fencer1ID, saved.Fencer2ID}); err != nil {
			s.logger.Warn(ctx, "bout stored but session membership failed",
				logger.Int64("bout_id", saved.ID), logger.Error(err))
		}
	}

	metrics.RecordBoutRecorded(source)
	s.logger.Info(ctx, "bout recorded",
		logger.Int64("bout_id", saved.ID),
		logger.String("source", source),
		logger.Int64("fencer1_id", saved.Fencer1ID),
		logger.Int64("fencer2_id", saved.Fencer2ID),
		logger.Int("score1", saved.Score1),
		logger.Int("score2", saved.Score2),
	)
	s.notify(ctx, model.ChangeBoutRecorded, saved.SessionID, saved.ID)
	return saved, nil
}

func rejectReason(err error) string {
	var nas *model.NoActiveSessionError
	var ve *model.ValidationError
	switch {
	case errors.As(err, &nas):
		return "no_session"
	case errors.As(err, &ve):
		if ve.Reason == model.MsgSameFencer {
			return "same_fencer"
		}
		if ve.Field == "" {
			return "invalid"
		}
		return ve.Field
	default:
		return "other"
	}
}

// UpdateBout edits scores or notes.
func (s *Service) UpdateBout(ctx context.Context, id int64, patch model.BoutPatch) (model.Bout, error) {
	if err := s.validator.ValidatePatch(patch); err != nil {
		return model.Bout{}, err
	}
	b, err := s.state.UpdateBout(ctx, id, patch)
	if err != nil {
		return model.Bout{}, err
	}
	metrics.RecordBoutUpdated()
	s.notify(ctx, model.ChangeBoutUpdated, b.SessionID, b.ID)
	return b, nil
}

// DeleteBout removes a bout.
func (s *Service) DeleteBout(ctx context.Context, id int64) error {
	old, _ := s.state.Snapshot().Bout(id)
	if err := s.state.DeleteBout(ctx, id); err != nil {
		return err
	}
	metrics.RecordBoutDeleted()
	s.notify(ctx, model.ChangeBoutDeleted, old.SessionID, id)
	return nil
}
