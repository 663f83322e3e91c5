// Package state holds the in-memory copy of club data that views are
// computed from, and routes writes through the record store.
package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/salle/internal/adapters/repository"
	"github.com/okian/salle/internal/domain/model"
	"github.com/okian/salle/pkg/logger"
	"github.com/okian/salle/pkg/metrics"
)

// Repo is the part of the record store the state store reads and writes.
type Repo interface {
	repository.FencerStore
	repository.BoutStore
	repository.SessionStore
}

// Store owns fencers, bouts, sessions and memberships between loads.
type Store struct {
	repo Repo

	mu       sync.RWMutex
	d        data
	phase    Phase
	pending  int // loads and blocking writes in flight
	loads    int
	journal  []mutation
	nextTemp int64
	loadedAt time.Time
	lastErr  string
	closed   bool

	optimistic bool
	logger     logger.Logger
	now        func() time.Time
}

// New creates an idle store. Call Load before serving views.
func New(repo Repo, opts ...Option) *Store {
	s := &Store{
		repo:     repo,
		d:        data{members: make(map[int64][]int64)},
		nextTemp: -1,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("state")
	}
	metrics.UpdateStatePhase(int(Idle))
	return s
}

// Optimistic reports whether bout writes are applied before confirmation.
func (s *Store) Optimistic() bool { return s.optimistic }

// Load fetches every table in parallel and replaces the local copy. Writes
// that land while the fetch is running are replayed on top of the result.
func (s *Store) Load(ctx context.Context) (err error) {
	start := time.Now()
	mark, err := s.beginLoad()
	if err != nil {
		return err
	}
	defer func() {
		s.endLoad(err)
		outcome := "ok"
		if err != nil {
			outcome = "failed"
		}
		metrics.RecordStateRefresh(outcome, metrics.Since(start))
	}()

	var (
		fencers  []model.Fencer
		bouts    []model.Bout
		sessions []model.Session
		members  []model.Membership
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		fencers, err = s.repo.ListFencers(gctx)
		return wrap("load fencers", err)
	})
	g.Go(func() (err error) {
		bouts, err = s.repo.ListBouts(gctx, repository.BoutFilter{})
		return wrap("load bouts", err)
	})
	g.Go(func() (err error) {
		sessions, err = s.repo.ListSessions(gctx)
		return wrap("load sessions", err)
	})
	g.Go(func() (err error) {
		members, err = s.repo.ListMemberships(gctx, nil)
		return wrap("load memberships", err)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := data{
		fencers:  fencers,
		bouts:    bouts,
		sessions: sessions,
		members:  membersOf(members),
		active:   s.d.active,
	}
	for _, m := range s.journal[mark:] {
		m(&next)
	}
	s.d = next
	s.loadedAt = s.now()
	s.observeLocked()
	return nil
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return model.Remote(op, err)
}

func (s *Store) beginLoad() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	s.pending++
	s.loads++
	s.phase = Loading
	metrics.UpdateStatePhase(int(Loading))
	return len(s.journal), nil
}

// endLoad always clears the loading flag, whatever the outcome.
func (s *Store) endLoad(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending--
	s.loads--
	if s.loads == 0 {
		s.journal = nil
	}
	if err != nil {
		s.phase = Failed
		s.lastErr = err.Error()
		s.logger.Error(context.Background(), "state load failed", logger.Error(err))
	} else {
		s.phase = Ready
		s.lastErr = ""
	}
	metrics.UpdateStatePhase(int(s.phase))
}

// busy raises the loading flag for a blocking write.
func (s *Store) busy() (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	s.pending++
	return func() {
		s.mu.Lock()
		s.pending--
		s.mu.Unlock()
	}, nil
}

func (s *Store) mutate(ms ...mutation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutateLocked(ms...)
}

func (s *Store) mutateLocked(ms ...mutation) {
	for _, m := range ms {
		m(&s.d)
		if s.loads > 0 {
			s.journal = append(s.journal, m)
		}
	}
	s.observeLocked()
}

func (s *Store) observeLocked() {
	metrics.UpdateStateSizes(len(s.d.fencers), len(s.d.bouts), len(s.d.sessions))
}

// tentative reserves a negative id and applies b locally.
func (s *Store) tentative(b model.Bout) (model.Bout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Bout{}, ErrClosed
	}
	b.ID = s.nextTemp
	s.nextTemp--
	b.Tentative = true
	s.mutateLocked(upsertBout(b))
	return b, nil
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *Store) localBout(id int64) (model.Bout, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.d.bouts {
		if b.ID == id {
			return b, true
		}
	}
	return model.Bout{}, false
}

// AddBout stores b. In optimistic mode a tentative copy is visible at once
// and replaced or rolled back when the record store answers.
func (s *Store) AddBout(ctx context.Context, b model.Bout) (model.Bout, error) {
	if !s.optimistic {
		done, err := s.busy()
		if err != nil {
			return model.Bout{}, err
		}
		defer done()
		saved, err := s.repo.InsertBout(ctx, b)
		if err != nil {
			return model.Bout{}, model.Remote("insert bout", err)
		}
		s.mutate(upsertBout(saved))
		return saved, nil
	}

	tmp, err := s.tentative(b)
	if err != nil {
		return model.Bout{}, err
	}
	saved, err := s.repo.InsertBout(ctx, b)
	if err != nil {
		s.mutate(removeBout(tmp.ID))
		metrics.RecordStateRollback()
		s.logger.Warn(ctx, "bout rolled back", logger.Int64("temp_id", tmp.ID), logger.Error(err))
		return model.Bout{}, model.Remote("insert bout", err)
	}
	s.mutate(confirmBout(tmp.ID, saved))
	return saved, nil
}

// UpdateBout applies patch to bout id.
func (s *Store) UpdateBout(ctx context.Context, id int64, patch model.BoutPatch) (model.Bout, error) {
	if err := s.checkOpen(); err != nil {
		return model.Bout{}, err
	}
	old, known := s.localBout(id)
	if s.optimistic && known {
		s.mutate(upsertBout(patch.Apply(old)))
	} else {
		done, err := s.busy()
		if err != nil {
			return model.Bout{}, err
		}
		defer done()
	}

	saved, err := s.repo.UpdateBout(ctx, id, patch)
	if err != nil {
		if s.optimistic && known {
			s.mutate(upsertBout(old))
			metrics.RecordStateRollback()
		}
		return model.Bout{}, model.Remote(fmt.Sprintf("update bout %d", id), err)
	}
	s.mutate(upsertBout(saved))
	return saved, nil
}

// DeleteBout removes bout id.
func (s *Store) DeleteBout(ctx context.Context, id int64) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	old, known := s.localBout(id)
	if s.optimistic && known {
		s.mutate(removeBout(id))
	} else {
		done, err := s.busy()
		if err != nil {
			return err
		}
		defer done()
	}

	if err := s.repo.DeleteBout(ctx, id); err != nil {
		if s.optimistic && known {
			s.mutate(upsertBout(old))
			metrics.RecordStateRollback()
		}
		return model.Remote(fmt.Sprintf("delete bout %d", id), err)
	}
	s.mutate(removeBout(id))
	return nil
}

// AddFencers registers fencers and returns them with ids.
func (s *Store) AddFencers(ctx context.Context, fs []model.Fencer) ([]model.Fencer, error) {
	done, err := s.busy()
	if err != nil {
		return nil, err
	}
	defer done()
	saved, err := s.repo.InsertFencers(ctx, fs)
	if err != nil {
		return nil, model.Remote("insert fencers", err)
	}
	s.mutate(addFencers(saved))
	return saved, nil
}

// SaveSession persists a session.
func (s *Store) SaveSession(ctx context.Context, sess model.Session) (model.Session, error) {
	done, err := s.busy()
	if err != nil {
		return model.Session{}, err
	}
	defer done()
	saved, err := s.repo.InsertSession(ctx, sess)
	if err != nil {
		return model.Session{}, model.Remote("insert session", err)
	}
	saved.Temporary = false
	s.mutate(upsertSession(saved))
	return saved, nil
}

// DeleteSession removes a persisted session and its memberships locally.
func (s *Store) DeleteSession(ctx context.Context, id int64) error {
	done, err := s.busy()
	if err != nil {
		return err
	}
	defer done()
	if err := s.repo.DeleteSession(ctx, id); err != nil {
		return model.Remote(fmt.Sprintf("delete session %d", id), err)
	}
	s.mutate(removeSession(id))
	return nil
}

// AddMembers records that fencers took part in a session.
func (s *Store) AddMembers(ctx context.Context, sessionID int64, fencerIDs []int64) error {
	done, err := s.busy()
	if err != nil {
		return err
	}
	defer done()
	if err := s.repo.AddMembers(ctx, sessionID, fencerIDs); err != nil {
		return model.Remote("add session members", err)
	}
	s.mutate(addMembers(sessionID, fencerIDs))
	return nil
}

// SetActive replaces the active session; nil clears it.
func (s *Store) SetActive(sess *model.Session) {
	s.mutate(setActive(sess))
}

// Active returns a copy of the active session.
func (s *Store) Active() (model.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.d.active == nil {
		return model.Session{}, false
	}
	return *s.d.active, true
}

// Phase returns the load phase.
func (s *Store) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Loading reports whether a load or a blocking write is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending > 0
}

// Snapshot returns an immutable copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d := s.d.clone()
	return Snapshot{
		Fencers:  d.fencers,
		Bouts:    d.bouts,
		Sessions: d.sessions,
		Members:  d.members,
		Active:   d.active,
		Phase:    s.phase,
		Loading:  s.pending > 0,
		LoadedAt: s.loadedAt,
		Error:    s.lastErr,
	}
}

// Close rejects further loads and writes. Snapshots stay readable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
