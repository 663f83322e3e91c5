package model

import "time"

// ChangeKind names what a write touched.
type ChangeKind string

// Change kinds.
const (
	ChangeBoutRecorded  ChangeKind = "bout_recorded"
	ChangeBoutUpdated   ChangeKind = "bout_updated"
	ChangeBoutDeleted   ChangeKind = "bout_deleted"
	ChangeFencerAdded   ChangeKind = "fencer_added"
	ChangeSessionChange ChangeKind = "session_changed"
	ChangeRefreshed     ChangeKind = "refreshed"
)

// Change is a notification emitted after a confirmed write.
// Workers consume it to push fresh views to live clients.
type Change struct {
	ID        string     // unique id, used for logging
	Kind      ChangeKind // what changed
	SessionID *int64     // session the write belongs to, if any
	EntityID  int64      // bout or fencer id
	At        time.Time  // when the write was confirmed
}
