package state

import (
	"slices"
	"time"

	"github.com/okian/salle/internal/domain/model"
)

// Snapshot is a point-in-time copy; callers may read it freely.
type Snapshot struct {
	Fencers  []model.Fencer    `json:"fencers"`
	Bouts    []model.Bout      `json:"bouts"`
	Sessions []model.Session   `json:"sessions"`
	Members  map[int64][]int64 `json:"members"`
	Active   *model.Session    `json:"active_session"`
	Phase    Phase             `json:"phase"`
	Loading  bool              `json:"loading"`
	LoadedAt time.Time         `json:"loaded_at,omitzero"`
	Error    string            `json:"error,omitempty"`
}

// Fencer looks a fencer up by id.
func (s Snapshot) Fencer(id int64) (model.Fencer, bool) {
	i := slices.IndexFunc(s.Fencers, func(f model.Fencer) bool { return f.ID == id })
	if i < 0 {
		return model.Fencer{}, false
	}
	return s.Fencers[i], true
}

// Known reports whether id is a registered fencer.
func (s Snapshot) Known(id int64) bool {
	_, ok := s.Fencer(id)
	return ok
}

// Bout looks a bout up by id.
func (s Snapshot) Bout(id int64) (model.Bout, bool) {
	i := slices.IndexFunc(s.Bouts, func(b model.Bout) bool { return b.ID == id })
	if i < 0 {
		return model.Bout{}, false
	}
	return s.Bouts[i], true
}

// SessionBouts returns the bouts of one session, newest first.
func (s Snapshot) SessionBouts(sessionID int64) []model.Bout {
	out := make([]model.Bout, 0)
	for _, b := range s.Bouts {
		if b.InSession(sessionID) {
			out = append(out, b)
		}
	}
	return out
}

// SessionFencers returns the members of one session.
func (s Snapshot) SessionFencers(sessionID int64) []model.Fencer {
	out := make([]model.Fencer, 0, len(s.Members[sessionID]))
	for _, id := range s.Members[sessionID] {
		if f, ok := s.Fencer(id); ok {
			out = append(out, f)
		}
	}
	return out
}
