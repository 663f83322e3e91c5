package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/okian/salle/internal/domain/model"
)

// MemStore is an in-process Store with the same constraints as the SQL
// schema. It backs development runs and tests.
type MemStore struct {
	mu       sync.RWMutex
	now      func() time.Time
	fencers  map[int64]model.Fencer
	bouts    map[int64]model.Bout
	sessions map[int64]model.Session
	members  map[model.Membership]struct{}
	users    map[int64]model.AuthorizedUser
	logs     []model.AuthLog
	nextID   map[string]int64
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty store.
func NewMemStore(opts ...Option) *MemStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemStore{
		now:      o.now,
		fencers:  make(map[int64]model.Fencer),
		bouts:    make(map[int64]model.Bout),
		sessions: make(map[int64]model.Session),
		members:  make(map[model.Membership]struct{}),
		users:    make(map[int64]model.AuthorizedUser),
		nextID:   make(map[string]int64),
	}
}

func (m *MemStore) id(table string) int64 {
	m.nextID[table]++
	return m.nextID[table]
}

func (m *MemStore) Ping(ctx context.Context) error { return ctx.Err() }
func (m *MemStore) Close() error                   { return nil }

func (m *MemStore) ListFencers(ctx context.Context) ([]model.Fencer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Fencer, 0, len(m.fencers))
	for _, f := range m.fencers {
		out = append(out, f)
	}
	slices.SortFunc(out, func(a, b model.Fencer) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *MemStore) GetFencer(ctx context.Context, id int64) (model.Fencer, error) {
	if err := ctx.Err(); err != nil {
		return model.Fencer{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.fencers[id]
	if !ok {
		return model.Fencer{}, fmt.Errorf("get fencer %d: %w", id, ErrNotFound)
	}
	return f, nil
}

func (m *MemStore) InsertFencers(ctx context.Context, fencers []model.Fencer) ([]model.Fencer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.Fencer, 0, len(fencers))
	for _, f := range fencers {
		f.ID = m.id("fencers")
		f.Tentative = false
		m.fencers[f.ID] = f
		out = append(out, f)
	}
	return out, nil
}

func (m *MemStore) ListBouts(ctx context.Context, filter BoutFilter) ([]model.Bout, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Bout, 0, len(m.bouts))
	for _, b := range m.bouts {
		if filter.SessionID != nil && !b.InSession(*filter.SessionID) {
			continue
		}
		if filter.FencerID != 0 && !b.Involves(filter.FencerID) {
			continue
		}
		if !filter.Since.IsZero() && b.Timestamp.Before(filter.Since) {
			continue
		}
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b model.Bout) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (m *MemStore) GetBout(ctx context.Context, id int64) (model.Bout, error) {
	if err := ctx.Err(); err != nil {
		return model.Bout{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	b, ok := m.bouts[id]
	if !ok {
		return model.Bout{}, fmt.Errorf("get bout %d: %w", id, ErrNotFound)
	}
	return b, nil
}

func (m *MemStore) InsertBout(ctx context.Context, b model.Bout) (model.Bout, error) {
	if err := ctx.Err(); err != nil {
		return model.Bout{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.fencers[b.Fencer1ID]; !ok {
		return model.Bout{}, fmt.Errorf("insert bout: fencer %d: %w", b.Fencer1ID, ErrReferenced)
	}
	if _, ok := m.fencers[b.Fencer2ID]; !ok {
		return model.Bout{}, fmt.Errorf("insert bout: fencer %d: %w", b.Fencer2ID, ErrReferenced)
	}
	if b.SessionID != nil {
		if _, ok := m.sessions[*b.SessionID]; !ok {
			return model.Bout{}, fmt.Errorf("insert bout: session %d: %w", *b.SessionID, ErrReferenced)
		}
		sid := *b.SessionID
		b.SessionID = &sid
	}
	b.ID = m.id("bouts")
	b.Tentative = false
	b.Timestamp = b.Timestamp.UTC()
	m.bouts[b.ID] = b
	return b, nil
}

func (m *MemStore) UpdateBout(ctx context.Context, id int64, patch model.BoutPatch) (model.Bout, error) {
	if err := ctx.Err(); err != nil {
		return model.Bout{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bouts[id]
	if !ok {
		return model.Bout{}, fmt.Errorf("update bout %d: %w", id, ErrNotFound)
	}
	b = patch.Apply(b)
	m.bouts[id] = b
	return b, nil
}

func (m *MemStore) DeleteBout(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bouts[id]; !ok {
		return fmt.Errorf("delete bout %d: %w", id, ErrNotFound)
	}
	delete(m.bouts, id)
	return nil
}

func (m *MemStore) withCount(s model.Session) model.Session {
	s.StudentCount = 0
	for mem := range m.members {
		if mem.SessionID == s.ID {
			s.StudentCount++
		}
	}
	s.Temporary = false
	return s
}

func (m *MemStore) ListSessions(ctx context.Context) ([]model.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, m.withCount(s))
	}
	slices.SortFunc(out, func(a, b model.Session) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (m *MemStore) GetSession(ctx context.Context, id int64) (model.Session, error) {
	if err := ctx.Err(); err != nil {
		return model.Session{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return model.Session{}, fmt.Errorf("get session %d: %w", id, ErrNotFound)
	}
	return m.withCount(s), nil
}

func (m *MemStore) InsertSession(ctx context.Context, s model.Session) (model.Session, error) {
	if err := ctx.Err(); err != nil {
		return model.Session{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID]; ok {
		return model.Session{}, fmt.Errorf("insert session %d: %w", s.ID, ErrConflict)
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.now()
	}
	s.CreatedAt = s.CreatedAt.UTC()
	m.sessions[s.ID] = s
	return m.withCount(s), nil
}

func (m *MemStore) DeleteSession(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("delete session %d: %w", id, ErrNotFound)
	}
	for _, b := range m.bouts {
		if b.InSession(id) {
			return fmt.Errorf("delete session %d: bout %d: %w", id, b.ID, ErrReferenced)
		}
	}
	for mem := range m.members {
		if mem.SessionID == id {
			return fmt.Errorf("delete session %d: fencer %d: %w", id, mem.FencerID, ErrReferenced)
		}
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemStore) ListMemberships(ctx context.Context, sessionID *int64) ([]model.Membership, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []model.Membership{}
	for mem := range m.members {
		if sessionID != nil && mem.SessionID != *sessionID {
			continue
		}
		out = append(out, mem)
	}
	slices.SortFunc(out, func(a, b model.Membership) int {
		if c := cmp.Compare(a.SessionID, b.SessionID); c != 0 {
			return c
		}
		return cmp.Compare(a.FencerID, b.FencerID)
	})
	return out, nil
}

func (m *MemStore) AddMembers(ctx context.Context, sessionID int64, fencerIDs []int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return fmt.Errorf("add members: session %d: %w", sessionID, ErrReferenced)
	}
	for _, fid := range fencerIDs {
		if _, ok := m.fencers[fid]; !ok {
			return fmt.Errorf("add members: fencer %d: %w", fid, ErrReferenced)
		}
	}
	for _, fid := range fencerIDs {
		m.members[model.Membership{SessionID: sessionID, FencerID: fid}] = struct{}{}
	}
	return nil
}

func (m *MemStore) ListUsers(ctx context.Context) ([]model.AuthorizedUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.AuthorizedUser, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b model.AuthorizedUser) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (m *MemStore) findUser(match func(model.AuthorizedUser) bool) (model.AuthorizedUser, bool) {
	for _, u := range m.users {
		if match(u) {
			return u, true
		}
	}
	return model.AuthorizedUser{}, false
}

func (m *MemStore) GetUserByEmail(ctx context.Context, email string) (model.AuthorizedUser, error) {
	if err := ctx.Err(); err != nil {
		return model.AuthorizedUser{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	email = model.NormalizeEmail(email)
	u, ok := m.findUser(func(u model.AuthorizedUser) bool { return u.Email == email })
	if !ok {
		return model.AuthorizedUser{}, fmt.Errorf("get user %q: %w", email, ErrNotFound)
	}
	return u, nil
}

func (m *MemStore) GetUserByInviteHash(ctx context.Context, hash string) (model.AuthorizedUser, error) {
	if err := ctx.Err(); err != nil {
		return model.AuthorizedUser{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.findUser(func(u model.AuthorizedUser) bool { return hash != "" && u.InviteTokenHash == hash })
	if !ok {
		return model.AuthorizedUser{}, fmt.Errorf("get user by invite: %w", ErrNotFound)
	}
	return u, nil
}

func (m *MemStore) InsertUser(ctx context.Context, u model.AuthorizedUser) (model.AuthorizedUser, error) {
	if err := ctx.Err(); err != nil {
		return model.AuthorizedUser{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	u.Email = model.NormalizeEmail(u.Email)
	if _, dup := m.findUser(func(x model.AuthorizedUser) bool { return x.Email == u.Email }); dup {
		return model.AuthorizedUser{}, fmt.Errorf("insert user %q: %w", u.Email, ErrConflict)
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = m.now()
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.ID = m.id("authorized_users")
	m.users[u.ID] = u
	return u, nil
}

func (m *MemStore) UpdateUser(ctx context.Context, u model.AuthorizedUser) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.users[u.ID]
	if !ok {
		return fmt.Errorf("update user %d: %w", u.ID, ErrNotFound)
	}
	cur.FirstName = u.FirstName
	cur.LastName = u.LastName
	cur.IsAdmin = u.IsAdmin
	cur.PasswordHash = u.PasswordHash
	cur.InviteTokenHash = u.InviteTokenHash
	cur.InviteExpiresAt = u.InviteExpiresAt
	m.users[u.ID] = cur
	return nil
}

func (m *MemStore) InsertAuthLog(ctx context.Context, l model.AuthLog) (model.AuthLog, error) {
	if err := ctx.Err(); err != nil {
		return model.AuthLog{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if l.CreatedAt.IsZero() {
		l.CreatedAt = m.now()
	}
	l.CreatedAt = l.CreatedAt.UTC()
	l.ID = m.id("auth_logs")
	m.logs = append(m.logs, l)
	return l, nil
}

func (m *MemStore) ListAuthLogs(ctx context.Context, limit int) ([]model.AuthLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := slices.Clone(m.logs)
	slices.SortFunc(out, func(a, b model.AuthLog) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []model.AuthLog{}
	}
	return out, nil
}
