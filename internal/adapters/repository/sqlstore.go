package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/salle/internal/domain/model"
)

// SQLStore implements Store over database/sql for postgres and sqlite.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

var _ Store = (*SQLStore)(nil)

// OpenPostgres connects to dsn, verifies it and applies the schema.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*SQLStore, error) {
	return open(ctx, postgresDialect, dsn, opts...)
}

// OpenSQLite opens the database file at path and applies the schema.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	return open(ctx, sqliteDialect, sqliteDSN(path), opts...)
}

func open(ctx context.Context, d dialect, dsn string, opts ...Option) (*SQLStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.name, err)
	}
	db.SetMaxOpenConns(o.maxOpenConns)
	db.SetMaxIdleConns(o.maxIdleConns)
	db.SetConnMaxLifetime(o.connMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, o.pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s within %v: %w", d.name, o.pingTimeout, err)
	}
	if err := migrate(ctx, db, d.schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLStore{db: db, dialect: d, now: o.now}, nil
}

// Ping checks connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the pool.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(q), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(q), args...)
}

// fail classifies driver errors and maps missing rows to ErrNotFound.
func (s *SQLStore) fail(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, s.dialect.classify(err))
}

// --- fencers ---

const fencerColumns = `id, name, age, level, club`

func scanFencer(sc interface{ Scan(...any) error }) (model.Fencer, error) {
	var f model.Fencer
	var level string
	if err := sc.Scan(&f.ID, &f.Name, &f.Age, &level, &f.Club); err != nil {
		return model.Fencer{}, err
	}
	f.Level = model.Level(level)
	return f, nil
}

func (s *SQLStore) ListFencers(ctx context.Context) ([]model.Fencer, error) {
	rows, err := s.query(ctx, `SELECT `+fencerColumns+` FROM fencers ORDER BY id`)
	if err != nil {
		return nil, s.fail("list fencers", err)
	}
	defer rows.Close()

	out := []model.Fencer{}
	for rows.Next() {
		f, err := scanFencer(rows)
		if err != nil {
			return nil, s.fail("scan fencer", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list fencers", err)
	}
	return out, nil
}

func (s *SQLStore) GetFencer(ctx context.Context, id int64) (model.Fencer, error) {
	f, err := scanFencer(s.queryRow(ctx, `SELECT `+fencerColumns+` FROM fencers WHERE id = ?`, id))
	if err != nil {
		return model.Fencer{}, s.fail("get fencer", err)
	}
	return f, nil
}

func (s *SQLStore) InsertFencers(ctx context.Context, fencers []model.Fencer) ([]model.Fencer, error) {
	if len(fencers) == 0 {
		return []model.Fencer{}, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, s.fail("insert fencers", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := s.dialect.rebind(`INSERT INTO fencers (name, age, level, club) VALUES (?, ?, ?, ?) RETURNING ` + fencerColumns)
	out := make([]model.Fencer, 0, len(fencers))
	for _, f := range fencers {
		saved, err := scanFencer(tx.QueryRowContext(ctx, q, f.Name, f.Age, string(f.Level), f.Club))
		if err != nil {
			return nil, s.fail("insert fencer", err)
		}
		out = append(out, saved)
	}
	if err := tx.Commit(); err != nil {
		return nil, s.fail("commit fencers", err)
	}
	return out, nil
}

// --- bouts ---

const boutColumns = `id, fencer1_id, fencer2_id, score1, score2, notes, "timestamp", session_id`

func scanBout(sc interface{ Scan(...any) error }) (model.Bout, error) {
	var b model.Bout
	var ts dbTime
	var session sql.NullInt64
	if err := sc.Scan(&b.ID, &b.Fencer1ID, &b.Fencer2ID, &b.Score1, &b.Score2, &b.Notes, &ts, &session); err != nil {
		return model.Bout{}, err
	}
	b.Timestamp = ts.Time
	if session.Valid {
		id := session.Int64
		b.SessionID = &id
	}
	return b, nil
}

func (s *SQLStore) ListBouts(ctx context.Context, filter BoutFilter) ([]model.Bout, error) {
	var where []string
	var args []any
	if filter.SessionID != nil {
		where = append(where, "session_id = ?")
		args = append(args, *filter.SessionID)
	}
	if filter.FencerID != 0 {
		where = append(where, "(fencer1_id = ? OR fencer2_id = ?)")
		args = append(args, filter.FencerID, filter.FencerID)
	}
	if !filter.Since.IsZero() {
		where = append(where, `"timestamp" >= ?`)
		args = append(args, s.dialect.timeArg(filter.Since))
	}
	q := `SELECT ` + boutColumns + ` FROM bouts`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY "timestamp" DESC, id DESC`

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, s.fail("list bouts", err)
	}
	defer rows.Close()

	out := []model.Bout{}
	for rows.Next() {
		b, err := scanBout(rows)
		if err != nil {
			return nil, s.fail("scan bout", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list bouts", err)
	}
	return out, nil
}

func (s *SQLStore) GetBout(ctx context.Context, id int64) (model.Bout, error) {
	b, err := scanBout(s.queryRow(ctx, `SELECT `+boutColumns+` FROM bouts WHERE id = ?`, id))
	if err != nil {
		return model.Bout{}, s.fail("get bout", err)
	}
	return b, nil
}

func (s *SQLStore) InsertBout(ctx context.Context, b model.Bout) (model.Bout, error) {
	saved, err := scanBout(s.queryRow(ctx,
		`INSERT INTO bouts (fencer1_id, fencer2_id, score1, score2, notes, "timestamp", session_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING `+boutColumns,
		b.Fencer1ID, b.Fencer2ID, b.Score1, b.Score2, b.Notes, s.dialect.timeArg(b.Timestamp), nullInt64(b.SessionID),
	))
	if err != nil {
		return model.Bout{}, s.fail("insert bout", err)
	}
	return saved, nil
}

func (s *SQLStore) UpdateBout(ctx context.Context, id int64, patch model.BoutPatch) (model.Bout, error) {
	var sets []string
	var args []any
	if patch.Score1 != nil {
		sets = append(sets, "score1 = ?")
		args = append(args, *patch.Score1)
	}
	if patch.Score2 != nil {
		sets = append(sets, "score2 = ?")
		args = append(args, *patch.Score2)
	}
	if patch.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *patch.Notes)
	}
	if len(sets) == 0 {
		return s.GetBout(ctx, id)
	}
	args = append(args, id)
	b, err := scanBout(s.queryRow(ctx,
		`UPDATE bouts SET `+strings.Join(sets, ", ")+` WHERE id = ? RETURNING `+boutColumns, args...))
	if err != nil {
		return model.Bout{}, s.fail("update bout", err)
	}
	return b, nil
}

func (s *SQLStore) DeleteBout(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM bouts WHERE id = ?`), id)
	if err != nil {
		return s.fail("delete bout", err)
	}
	return checkAffected("delete bout", res)
}

func checkAffected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: check affected rows: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// --- sessions ---

const sessionSelect = `SELECT s.id, s.name, s.created_by, s.created_at, COUNT(sf.fencer_id)
	FROM sessions s
	LEFT JOIN session_fencers sf ON sf.session_id = s.id`

const sessionGroup = ` GROUP BY s.id, s.name, s.created_by, s.created_at`

func scanSession(sc interface{ Scan(...any) error }) (model.Session, error) {
	var ss model.Session
	var created dbTime
	if err := sc.Scan(&ss.ID, &ss.Name, &ss.CreatedBy, &created, &ss.StudentCount); err != nil {
		return model.Session{}, err
	}
	ss.CreatedAt = created.Time
	return ss, nil
}

func (s *SQLStore) ListSessions(ctx context.Context) ([]model.Session, error) {
	rows, err := s.query(ctx, sessionSelect+sessionGroup+` ORDER BY s.created_at DESC, s.id DESC`)
	if err != nil {
		return nil, s.fail("list sessions", err)
	}
	defer rows.Close()

	out := []model.Session{}
	for rows.Next() {
		ss, err := scanSession(rows)
		if err != nil {
			return nil, s.fail("scan session", err)
		}
		out = append(out, ss)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list sessions", err)
	}
	return out, nil
}

func (s *SQLStore) GetSession(ctx context.Context, id int64) (model.Session, error) {
	ss, err := scanSession(s.queryRow(ctx, sessionSelect+` WHERE s.id = ?`+sessionGroup, id))
	if err != nil {
		return model.Session{}, s.fail("get session", err)
	}
	return ss, nil
}

func (s *SQLStore) InsertSession(ctx context.Context, ss model.Session) (model.Session, error) {
	if ss.CreatedAt.IsZero() {
		ss.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		s.dialect.rebind(`INSERT INTO sessions (id, name, created_by, created_at) VALUES (?, ?, ?, ?)`),
		ss.ID, ss.Name, ss.CreatedBy, s.dialect.timeArg(ss.CreatedAt))
	if err != nil {
		return model.Session{}, s.fail("insert session", err)
	}
	return s.GetSession(ctx, ss.ID)
}

func (s *SQLStore) DeleteSession(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM sessions WHERE id = ?`), id)
	if err != nil {
		return s.fail("delete session", err)
	}
	return checkAffected("delete session", res)
}

func (s *SQLStore) ListMemberships(ctx context.Context, sessionID *int64) ([]model.Membership, error) {
	q := `SELECT session_id, fencer_id FROM session_fencers`
	var args []any
	if sessionID != nil {
		q += ` WHERE session_id = ?`
		args = append(args, *sessionID)
	}
	q += ` ORDER BY session_id, fencer_id`

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, s.fail("list memberships", err)
	}
	defer rows.Close()

	out := []model.Membership{}
	for rows.Next() {
		var m model.Membership
		if err := rows.Scan(&m.SessionID, &m.FencerID); err != nil {
			return nil, s.fail("scan membership", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list memberships", err)
	}
	return out, nil
}

func (s *SQLStore) AddMembers(ctx context.Context, sessionID int64, fencerIDs []int64) error {
	if len(fencerIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail("add members", err)
	}
	defer func() { _ = tx.Rollback() }()

	q := s.dialect.rebind(`INSERT INTO session_fencers (session_id, fencer_id) VALUES (?, ?) ON CONFLICT DO NOTHING`)
	for _, fid := range fencerIDs {
		if _, err := tx.ExecContext(ctx, q, sessionID, fid); err != nil {
			return s.fail("add member", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return s.fail("commit members", err)
	}
	return nil
}

// --- authorized users ---

const userColumns = `id, email, first_name, last_name, is_admin, password_hash, invite_token_hash, invite_expires_at, added_by, created_at`

func scanUser(sc interface{ Scan(...any) error }) (model.AuthorizedUser, error) {
	var u model.AuthorizedUser
	var expires, created dbTime
	if err := sc.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.IsAdmin, &u.PasswordHash,
		&u.InviteTokenHash, &expires, &u.AddedBy, &created); err != nil {
		return model.AuthorizedUser{}, err
	}
	u.InviteExpiresAt = expires.ptr()
	u.CreatedAt = created.Time
	return u, nil
}

func (s *SQLStore) listUsers(ctx context.Context, where string, args ...any) ([]model.AuthorizedUser, error) {
	rows, err := s.query(ctx, `SELECT `+userColumns+` FROM authorized_users`+where+` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, s.fail("list users", err)
	}
	defer rows.Close()

	out := []model.AuthorizedUser{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, s.fail("scan user", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list users", err)
	}
	return out, nil
}

func (s *SQLStore) ListUsers(ctx context.Context) ([]model.AuthorizedUser, error) {
	return s.listUsers(ctx, "")
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (model.AuthorizedUser, error) {
	u, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM authorized_users WHERE email = ?`, model.NormalizeEmail(email)))
	if err != nil {
		return model.AuthorizedUser{}, s.fail("get user", err)
	}
	return u, nil
}

func (s *SQLStore) GetUserByInviteHash(ctx context.Context, hash string) (model.AuthorizedUser, error) {
	if hash == "" {
		return model.AuthorizedUser{}, fmt.Errorf("get user by invite: %w", ErrNotFound)
	}
	u, err := scanUser(s.queryRow(ctx, `SELECT `+userColumns+` FROM authorized_users WHERE invite_token_hash = ?`, hash))
	if err != nil {
		return model.AuthorizedUser{}, s.fail("get user by invite", err)
	}
	return u, nil
}

func (s *SQLStore) InsertUser(ctx context.Context, u model.AuthorizedUser) (model.AuthorizedUser, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	saved, err := scanUser(s.queryRow(ctx,
		`INSERT INTO authorized_users (email, first_name, last_name, is_admin, password_hash, invite_token_hash, invite_expires_at, added_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING `+userColumns,
		model.NormalizeEmail(u.Email), u.FirstName, u.LastName, u.IsAdmin, u.PasswordHash,
		u.InviteTokenHash, s.dialect.nullTimeArg(u.InviteExpiresAt), u.AddedBy, s.dialect.timeArg(u.CreatedAt),
	))
	if err != nil {
		return model.AuthorizedUser{}, s.fail("insert user", err)
	}
	return saved, nil
}

func (s *SQLStore) UpdateUser(ctx context.Context, u model.AuthorizedUser) error {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(
		`UPDATE authorized_users
		 SET first_name = ?, last_name = ?, is_admin = ?, password_hash = ?, invite_token_hash = ?, invite_expires_at = ?
		 WHERE id = ?`),
		u.FirstName, u.LastName, u.IsAdmin, u.PasswordHash, u.InviteTokenHash, s.dialect.nullTimeArg(u.InviteExpiresAt), u.ID)
	if err != nil {
		return s.fail("update user", err)
	}
	return checkAffected("update user", res)
}

// --- auth logs ---

func (s *SQLStore) InsertAuthLog(ctx context.Context, l model.AuthLog) (model.AuthLog, error) {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = s.now()
	}
	var created dbTime
	err := s.queryRow(ctx,
		`INSERT INTO auth_logs (action, target_email, performed_by, created_at) VALUES (?, ?, ?, ?) RETURNING id, created_at`,
		l.Action, l.TargetEmail, l.PerformedBy, s.dialect.timeArg(l.CreatedAt),
	).Scan(&l.ID, &created)
	if err != nil {
		return model.AuthLog{}, s.fail("insert auth log", err)
	}
	l.CreatedAt = created.Time
	return l, nil
}

func (s *SQLStore) ListAuthLogs(ctx context.Context, limit int) ([]model.AuthLog, error) {
	q := `SELECT id, action, target_email, performed_by, created_at FROM auth_logs ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, s.fail("list auth logs", err)
	}
	defer rows.Close()

	out := []model.AuthLog{}
	for rows.Next() {
		var l model.AuthLog
		var created dbTime
		if err := rows.Scan(&l.ID, &l.Action, &l.TargetEmail, &l.PerformedBy, &created); err != nil {
			return nil, s.fail("scan auth log", err)
		}
		l.CreatedAt = created.Time
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("list auth logs", err)
	}
	return out, nil
}
