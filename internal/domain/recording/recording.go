// Package recording validates candidate bouts before they reach the record store.
package recording

import (
	"errors"
	"time"

	"github.com/okian/salle/internal/domain/model"
)

// ErrNotEnoughFencers is returned by Simulate with fewer than two eligible fencers.
var ErrNotEnoughFencers = errors.New("need at least 2 registered fencers")

// Rules bound what a bout may look like.
type Rules struct {
	ScoreMin       int
	ScoreMax       int
	WinningScore   int
	RequireSession bool
}

// DefaultRules are the five-touch rules.
func DefaultRules() Rules {
	return Rules{ScoreMin: 0, ScoreMax: 5, WinningScore: 5, RequireSession: true}
}

// Candidate is bout form input.
type Candidate struct {
	Fencer1ID int64     `json:"fencer1_id"`
	Fencer2ID int64     `json:"fencer2_id"`
	Score1    int       `json:"score1"`
	Score2    int       `json:"score2"`
	Notes     string    `json:"notes,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Blank returns a reset form with a fresh timestamp.
func Blank(now time.Time) Candidate {
	return Candidate{Timestamp: now}
}

// Validator checks candidates against Rules and a fencer lookup.
type Validator struct {
	rules Rules
}

// NewValidator builds a Validator.
func NewValidator(r Rules) *Validator {
	return &Validator{rules: r}
}

// Rules returns the configured rules.
func (v *Validator) Rules() Rules { return v.rules }

// Validate rejects the candidate without side effects. known reports whether a
// fencer id is registered; nil skips that check. active is the current session.
func (v *Validator) Validate(c Candidate, active *model.Session, known func(int64) bool) error {
	switch {
	case c.Fencer1ID == 0:
		return &model.ValidationError{Field: "fencer1_id", Reason: "please select the first fencer"}
	case c.Fencer2ID == 0:
		return &model.ValidationError{Field: "fencer2_id", Reason: "please select the second fencer"}
	case c.Fencer1ID == c.Fencer2ID:
		return &model.ValidationError{Field: "fencer2_id", Reason: model.MsgSameFencer}
	}
	if err := v.ValidateScore("score1", c.Score1); err != nil {
		return err
	}
	if err := v.ValidateScore("score2", c.Score2); err != nil {
		return err
	}
	if known != nil {
		if !known(c.Fencer1ID) {
			return model.NewValidationError("fencer1_id", "unknown fencer %d", c.Fencer1ID)
		}
		if !known(c.Fencer2ID) {
			return model.NewValidationError("fencer2_id", "unknown fencer %d", c.Fencer2ID)
		}
	}
	if v.rules.RequireSession && active == nil {
		return &model.NoActiveSessionError{}
	}
	return nil
}

// ValidateScore checks one score against the configured bounds.
func (v *Validator) ValidateScore(field string, score int) error {
	if score < v.rules.ScoreMin || score > v.rules.ScoreMax {
		return model.NewValidationError(field, "score must be between %d and %d", v.rules.ScoreMin, v.rules.ScoreMax)
	}
	return nil
}

// ValidatePatch checks an edit to an existing bout.
func (v *Validator) ValidatePatch(p model.BoutPatch) error {
	if p.Empty() {
		return &model.ValidationError{Reason: "nothing to update"}
	}
	if p.Score1 != nil {
		if err := v.ValidateScore("score1", *p.Score1); err != nil {
			return err
		}
	}
	if p.Score2 != nil {
		if err := v.ValidateScore("score2", *p.Score2); err != nil {
			return err
		}
	}
	return nil
}

// Draft validates c and builds the bout to persist. A zero timestamp becomes now.
func (v *Validator) Draft(c Candidate, active *model.Session, known func(int64) bool, now time.Time) (model.Bout, error) {
	if err := v.Validate(c, active, known); err != nil {
		return model.Bout{}, err
	}
	b := model.Bout{
		Fencer1ID: c.Fencer1ID,
		Fencer2ID: c.Fencer2ID,
		Score1:    c.Score1,
		Score2:    c.Score2,
		Notes:     c.Notes,
		Timestamp: c.Timestamp,
	}
	if b.Timestamp.IsZero() {
		b.Timestamp = now
	}
	if active != nil {
		id := active.ID
		b.SessionID = &id
	}
	return b, nil
}
