// Package repository is the record store: typed per-table access to fencers,
// bouts, sessions, session membership, authorized users and audit logs.
package repository

import (
	"context"
	"time"

	"github.com/okian/salle/internal/domain/model"
)

// BoutFilter narrows ListBouts. Zero fields match everything.
type BoutFilter struct {
	SessionID *int64
	FencerID  int64
	Since     time.Time
}

// FencerStore manages the fencers table. Fencers are never deleted.
type FencerStore interface {
	ListFencers(ctx context.Context) ([]model.Fencer, error)
	GetFencer(ctx context.Context, id int64) (model.Fencer, error)
	// InsertFencers stores all rows atomically and returns them with ids.
	InsertFencers(ctx context.Context, fencers []model.Fencer) ([]model.Fencer, error)
}

// BoutStore manages the bouts table.
type BoutStore interface {
	// ListBouts returns bouts newest first.
	ListBouts(ctx context.Context, filter BoutFilter) ([]model.Bout, error)
	GetBout(ctx context.Context, id int64) (model.Bout, error)
	// InsertBout returns ErrReferenced when a fencer or session does not exist.
	InsertBout(ctx context.Context, b model.Bout) (model.Bout, error)
	UpdateBout(ctx context.Context, id int64, patch model.BoutPatch) (model.Bout, error)
	DeleteBout(ctx context.Context, id int64) error
}

// SessionStore manages sessions and session_fencers.
type SessionStore interface {
	// ListSessions returns sessions newest first with derived student counts.
	ListSessions(ctx context.Context) ([]model.Session, error)
	GetSession(ctx context.Context, id int64) (model.Session, error)
	// InsertSession keeps the caller's id.
	InsertSession(ctx context.Context, s model.Session) (model.Session, error)
	// DeleteSession returns ErrReferenced while bouts or members point at it.
	DeleteSession(ctx context.Context, id int64) error
	// ListMemberships returns every membership, or one session's when sessionID is set.
	ListMemberships(ctx context.Context, sessionID *int64) ([]model.Membership, error)
	// AddMembers is idempotent per (session, fencer) pair.
	AddMembers(ctx context.Context, sessionID int64, fencerIDs []int64) error
}

// UserStore manages authorized_users.
type UserStore interface {
	// ListUsers returns users newest first.
	ListUsers(ctx context.Context) ([]model.AuthorizedUser, error)
	GetUserByEmail(ctx context.Context, email string) (model.AuthorizedUser, error)
	GetUserByInviteHash(ctx context.Context, hash string) (model.AuthorizedUser, error)
	// InsertUser returns ErrConflict when the email exists.
	InsertUser(ctx context.Context, u model.AuthorizedUser) (model.AuthorizedUser, error)
	// UpdateUser writes names, admin flag, password hash and invite fields.
	UpdateUser(ctx context.Context, u model.AuthorizedUser) error
}

// AuditStore manages auth_logs.
type AuditStore interface {
	InsertAuthLog(ctx context.Context, l model.AuthLog) (model.AuthLog, error)
	// ListAuthLogs returns up to limit entries newest first; limit <= 0 means all.
	ListAuthLogs(ctx context.Context, limit int) ([]model.AuthLog, error)
}

// Store is the whole record store.
type Store interface {
	FencerStore
	BoutStore
	SessionStore
	UserStore
	AuditStore

	Ping(ctx context.Context) error
	Close() error
}
