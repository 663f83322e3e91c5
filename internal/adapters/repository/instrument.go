package repository

import (
	"context"
	"time"

	"github.com/okian/salle/internal/domain/model"
	"github.com/okian/salle/pkg/metrics"
)

// Instrumented bounds every call with a timeout and records its latency.
type Instrumented struct {
	next    Store
	timeout time.Duration
}

var _ Store = (*Instrumented)(nil)

// Instrument wraps next. A non-positive timeout leaves deadlines to the caller.
func Instrument(next Store, timeout time.Duration) *Instrumented {
	return &Instrumented{next: next, timeout: timeout}
}

func call[T any](ctx context.Context, s *Instrumented, op string, fn func(context.Context) (T, error)) (T, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	v, err := fn(ctx)
	metrics.RecordRecordStoreCall(op, metrics.Since(start), err != nil)
	return v, err
}

func exec(ctx context.Context, s *Instrumented, op string, fn func(context.Context) error) error {
	_, err := call(ctx, s, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (s *Instrumented) Ping(ctx context.Context) error {
	return exec(ctx, s, "ping", s.next.Ping)
}

func (s *Instrumented) Close() error { return s.next.Close() }

func (s *Instrumented) ListFencers(ctx context.Context) ([]model.Fencer, error) {
	return call(ctx, s, "list_fencers", s.next.ListFencers)
}

func (s *Instrumented) GetFencer(ctx context.Context, id int64) (model.Fencer, error) {
	return call(ctx, s, "get_fencer", func(ctx context.Context) (model.Fencer, error) {
		return s.next.GetFencer(ctx, id)
	})
}

func (s *Instrumented) InsertFencers(ctx context.Context, fencers []model.Fencer) ([]model.Fencer, error) {
	return call(ctx, s, "insert_fencers", func(ctx context.Context) ([]model.Fencer, error) {
		return s.next.InsertFencers(ctx, fencers)
	})
}

func (s *Instrumented) ListBouts(ctx context.Context, filter BoutFilter) ([]model.Bout, error) {
	return call(ctx, s, "list_bouts", func(ctx context.Context) ([]model.Bout, error) {
		return s.next.ListBouts(ctx, filter)
	})
}

func (s *Instrumented) GetBout(ctx context.Context, id int64) (model.Bout, error) {
	return call(ctx, s, "get_bout", func(ctx context.Context) (model.Bout, error) {
		return s.next.GetBout(ctx, id)
	})
}

func (s *Instrumented) InsertBout(ctx context.Context, b model.Bout) (model.Bout, error) {
	return call(ctx, s, "insert_bout", func(ctx context.Context) (model.Bout, error) {
		return s.next.InsertBout(ctx, b)
	})
}

func (s *Instrumented) UpdateBout(ctx context.Context, id int64, patch model.BoutPatch) (model.Bout, error) {
	return call(ctx, s, "update_bout", func(ctx context.Context) (model.Bout, error) {
		return s.next.UpdateBout(ctx, id, patch)
	})
}

func (s *Instrumented) DeleteBout(ctx context.Context, id int64) error {
	return exec(ctx, s, "delete_bout", func(ctx context.Context) error {
		return s.next.DeleteBout(ctx, id)
	})
}

func (s *Instrumented) ListSessions(ctx context.Context) ([]model.Session, error) {
	return call(ctx, s, "list_sessions", s.next.ListSessions)
}

func (s *Instrumented) GetSession(ctx context.Context, id int64) (model.Session, error) {
	return call(ctx, s, "get_session", func(ctx context.Context) (model.Session, error) {
		return s.next.GetSession(ctx, id)
	})
}

func (s *Instrumented) InsertSession(ctx context.Context, ss model.Session) (model.Session, error) {
	return call(ctx, s, "insert_session", func(ctx context.Context) (model.Session, error) {
		return s.next.InsertSession(ctx, ss)
	})
}

func (s *Instrumented) DeleteSession(ctx context.Context, id int64) error {
	return exec(ctx, s, "delete_session", func(ctx context.Context) error {
		return s.next.DeleteSession(ctx, id)
	})
}

func (s *Instrumented) ListMemberships(ctx context.Context, sessionID *int64) ([]model.Membership, error) {
	return call(ctx, s, "list_memberships", func(ctx context.Context) ([]model.Membership, error) {
		return s.next.ListMemberships(ctx, sessionID)
	})
}

func (s *Instrumented) AddMembers(ctx context.Context, sessionID int64, fencerIDs []int64) error {
	return exec(ctx, s, "add_members", func(ctx context.Context) error {
		return s.next.AddMembers(ctx, sessionID, fencerIDs)
	})
}

func (s *Instrumented) ListUsers(ctx context.Context) ([]model.AuthorizedUser, error) {
	return call(ctx, s, "list_users", s.next.ListUsers)
}

func (s *Instrumented) GetUserByEmail(ctx context.Context, email string) (model.AuthorizedUser, error) {
	return call(ctx, s, "get_user", func(ctx context.Context) (model.AuthorizedUser, error) {
		return s.next.GetUserByEmail(ctx, email)
	})
}

func (s *Instrumented) GetUserByInviteHash(ctx context.Context, hash string) (model.AuthorizedUser, error) {
	return call(ctx, s, "get_user_by_invite", func(ctx context.Context) (model.AuthorizedUser, error) {
		return s.next.GetUserByInviteHash(ctx, hash)
	})
}

func (s *Instrumented) InsertUser(ctx context.Context, u model.AuthorizedUser) (model.AuthorizedUser, error) {
	return call(ctx, s, "insert_user", func(ctx context.Context) (model.AuthorizedUser, error) {
		return s.next.InsertUser(ctx, u)
	})
}

func (s *Instrumented) UpdateUser(ctx context.Context, u model.AuthorizedUser) error {
	return exec(ctx, s, "update_user", func(ctx context.Context) error {
		return s.next.UpdateUser(ctx, u)
	})
}

func (s *Instrumented) InsertAuthLog(ctx context.Context, l model.AuthLog) (model.AuthLog, error) {
	return call(ctx, s, "insert_auth_log", func(ctx context.Context) (model.AuthLog, error) {
		return s.next.InsertAuthLog(ctx, l)
	})
}

func (s *Instrumented) ListAuthLogs(ctx context.Context, limit int) ([]model.AuthLog, error) {
	return call(ctx, s, "list_auth_logs", func(ctx context.Context) ([]model.AuthLog, error) {
		return s.next.ListAuthLogs(ctx, limit)
	})
}
