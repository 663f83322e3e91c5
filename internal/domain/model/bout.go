package model

import "time"

// Outcome of a bout from one fencer's point of view.
type Outcome string

// Outcomes.
const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeDraw Outcome = "draw"
)

// Bout is a single recorded match between two fencers.
type Bout struct {
	ID        int64     `json:"id"`
	Fencer1ID int64     `json:"fencer1_id"`
	Fencer2ID int64     `json:"fencer2_id"`
	Score1    int       `json:"score1"`
	Score2    int       `json:"score2"`
	Notes     string    `json:"notes,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	SessionID *int64    `json:"session_id,omitempty"`

	Tentative bool `json:"tentative,omitempty"`
}

// Involves reports whether the fencer fought in the bout.
func (b Bout) Involves(fencerID int64) bool {
	return b.Fencer1ID == fencerID || b.Fencer2ID == fencerID
}

// Side returns the fencer's score, the opponent's score and the opponent id.
// ok is false when the fencer did not fight in the bout.
func (b Bout) Side(fencerID int64) (own, opponent int, opponentID int64, ok bool) {
	switch fencerID {
	case b.Fencer1ID:
		return b.Score1, b.Score2, b.Fencer2ID, true
	case b.Fencer2ID:
		return b.Score2, b.Score1, b.Fencer1ID, true
	}
	return 0, 0, 0, false
}

// OutcomeFor classifies the bout for one fencer. Equal scores are a draw.
func (b Bout) OutcomeFor(fencerID int64) Outcome {
	own, opp, _, _ := b.Side(fencerID)
	switch {
	case own > opp:
		return OutcomeWin
	case own < opp:
		return OutcomeLoss
	}
	return OutcomeDraw
}

// WinnerID returns the winning fencer, or false on a draw.
func (b Bout) WinnerID() (int64, bool) {
	switch {
	case b.Score1 > b.Score2:
		return b.Fencer1ID, true
	case b.Score2 > b.Score1:
		return b.Fencer2ID, true
	}
	return 0, false
}

// InSession reports whether the bout belongs to the session.
func (b Bout) InSession(sessionID int64) bool {
	return b.SessionID != nil && *b.SessionID == sessionID
}

// BoutPatch carries the editable bout fields. Nil fields are left unchanged.
type BoutPatch struct {
	Score1 *int    `json:"score1,omitempty"`
	Score2 *int    `json:"score2,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

// Apply returns a copy of b with the patch applied.
func (p BoutPatch) Apply(b Bout) Bout {
	if p.Score1 != nil {
		b.Score1 = *p.Score1
	}
	if p.Score2 != nil {
		b.Score2 = *p.Score2
	}
	if p.Notes != nil {
		b.Notes = *p.Notes
	}
	return b
}

// Empty reports whether the patch changes nothing.
func (p BoutPatch) Empty() bool {
	return p.Score1 == nil && p.Score2 == nil && p.Notes == nil
}
