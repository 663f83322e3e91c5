package state

import (
	"cmp"
	"slices"

	"github.com/okian/salle/internal/domain/model"
)

// data is the in-memory copy of the record store. Every change goes
// through a mutation so it can be replayed over a concurrent reload.
type data struct {
	fencers  []model.Fencer  // id ascending
	bouts    []model.Bout    // newest first
	sessions []model.Session // newest first
	members  map[int64][]int64
	active   *model.Session
}

type mutation func(*data)

func newestFirst(a, b model.Bout) int {
	if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}

func upsertBout(b model.Bout) mutation {
	return func(d *data) {
		d.bouts = slices.DeleteFunc(d.bouts, func(x model.Bout) bool { return x.ID == b.ID })
		i, _ := slices.BinarySearchFunc(d.bouts, b, newestFirst)
		d.bouts = slices.Insert(d.bouts, i, b)
	}
}

func removeBout(id int64) mutation {
	return func(d *data) {
		d.bouts = slices.DeleteFunc(d.bouts, func(x model.Bout) bool { return x.ID == id })
	}
}

// confirmBout swaps a tentative record for the stored one.
func confirmBout(tempID int64, b model.Bout) mutation {
	return func(d *data) {
		removeBout(tempID)(d)
		upsertBout(b)(d)
	}
}

func addFencers(fs []model.Fencer) mutation {
	return func(d *data) {
		for _, f := range fs {
			i, found := slices.BinarySearchFunc(d.fencers, f.ID, func(x model.Fencer, id int64) int {
				return cmp.Compare(x.ID, id)
			})
			if found {
				d.fencers[i] = f
				continue
			}
			d.fencers = slices.Insert(d.fencers, i, f)
		}
	}
}

func upsertSession(s model.Session) mutation {
	return func(d *data) {
		s.StudentCount = len(d.members[s.ID])
		d.sessions = slices.DeleteFunc(d.sessions, func(x model.Session) bool { return x.ID == s.ID })
		i, _ := slices.BinarySearchFunc(d.sessions, s, func(a, b model.Session) int {
			if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(b.ID, a.ID)
		})
		d.sessions = slices.Insert(d.sessions, i, s)
	}
}

func removeSession(id int64) mutation {
	return func(d *data) {
		d.sessions = slices.DeleteFunc(d.sessions, func(x model.Session) bool { return x.ID == id })
		delete(d.members, id)
		if d.active != nil && d.active.ID == id {
			d.active = nil
		}
	}
}

func addMembers(sessionID int64, fencerIDs []int64) mutation {
	return func(d *data) {
		if d.members == nil {
			d.members = make(map[int64][]int64)
		}
		ids := d.members[sessionID]
		for _, id := range fencerIDs {
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
		slices.Sort(ids)
		d.members[sessionID] = ids
		for i := range d.sessions {
			if d.sessions[i].ID == sessionID {
				d.sessions[i].StudentCount = len(ids)
			}
		}
		if d.active != nil && d.active.ID == sessionID {
			d.active.StudentCount = len(ids)
		}
	}
}

func setActive(s *model.Session) mutation {
	return func(d *data) {
		if s == nil {
			d.active = nil
			return
		}
		cp := *s
		cp.StudentCount = len(d.members[cp.ID])
		d.active = &cp
	}
}

func (d *data) clone() data {
	out := data{
		fencers:  slices.Clone(d.fencers),
		bouts:    slices.Clone(d.bouts),
		sessions: slices.Clone(d.sessions),
		members:  make(map[int64][]int64, len(d.members)),
	}
	for k, v := range d.members {
		out.members[k] = slices.Clone(v)
	}
	if d.active != nil {
		a := *d.active
		out.active = &a
	}
	return out
}

func membersOf(ms []model.Membership) map[int64][]int64 {
	out := make(map[int64][]int64)
	for _, m := range ms {
		out[m.SessionID] = append(out[m.SessionID], m.FencerID)
	}
	for k := range out {
		slices.Sort(out[k])
	}
	return out
}
