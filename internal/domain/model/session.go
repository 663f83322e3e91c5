package model

import "time"

// SessionNameLayout formats the human-readable session label.
const SessionNameLayout = "January 2, 2006 at 03:04 PM"

// Session is a bounded practice or competition event.
type Session struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	StudentCount int       `json:"student_count"`

	// Temporary sessions exist only in memory until the first fencer or bout.
	Temporary bool `json:"temporary,omitempty"`
}

// NewSession builds a temporary session started at now by userID.
func NewSession(now time.Time, userID string) Session {
	return Session{
		ID:        now.UnixMilli(),
		Name:      now.Format(SessionNameLayout),
		CreatedBy: userID,
		CreatedAt: now,
		Temporary: true,
	}
}

// Membership links a fencer to a session.
type Membership struct {
	SessionID int64 `json:"session_id"`
	FencerID  int64 `json:"fencer_id"`
}
