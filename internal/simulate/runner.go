package simulate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/salle/pkg/logger"
)

// progressEvery controls how often submit progress is logged.
const progressEvery = 100

// Runner drives one simulation against a server.
type Runner struct {
	cfg    Config
	client *client
	log    logger.Logger

	accepted atomic.Int64
	replays  atomic.Int64
	mismatch atomic.Int64
	failed   atomic.Int64
	sent     atomic.Int64
}

// NewRunner returns a runner for cfg.
func NewRunner(cfg Config, log logger.Logger) *Runner {
	if log == nil {
		log = logger.Get()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Runner{
		cfg:    cfg,
		client: newClient(cfg.BaseURL, cfg.Timeout),
		log:    log.Named("simulate"),
	}
}

// Run signs in, ensures a session, submits bouts concurrently and checks
// the session leaderboard against the accepted count.
func (r *Runner) Run(ctx context.Context) (*Stats, error) {
	st := &Stats{StartTime: time.Now()}

	if err := r.checkHealth(ctx); err != nil {
		return nil, err
	}
	if err := r.client.login(ctx, r.cfg.Email, r.cfg.Password); err != nil {
		return nil, fmt.Errorf("login as %s: %w", r.cfg.Email, err)
	}

	sess, err := r.ensureSession(ctx)
	if err != nil {
		return nil, err
	}
	if st.MatchesBefore, err = r.sessionMatches(ctx, sess); err != nil {
		return nil, err
	}

	if r.cfg.Fencers > 0 {
		var added []struct {
			ID int64 `json:"id"`
		}
		if _, err := r.client.do(ctx, http.MethodPost, "/api/fencers/generate", map[string]int{"count": r.cfg.Fencers}, &added, nil); err != nil {
			return nil, fmt.Errorf("register roster: %w", err)
		}
		st.FencersRegistered = len(added)
		r.log.Info(ctx, "roster registered", logger.Int("fencers", len(added)))
	}

	if err := r.submit(ctx); err != nil {
		return nil, err
	}

	// Re-read so a session stored by the first bout is no longer temporary.
	if sess, err = r.ensureSession(ctx); err != nil {
		return nil, err
	}
	if _, err := r.client.do(ctx, http.MethodPost, "/api/state/refresh", nil, nil, nil); err != nil {
		return nil, fmt.Errorf("refresh state: %w", err)
	}
	if st.MatchesAfter, err = r.sessionMatches(ctx, sess); err != nil {
		return nil, err
	}

	st.SessionID = sess.ID
	st.BoutsSubmitted = int(r.sent.Load())
	st.BoutsAccepted = int(r.accepted.Load())
	st.Replays = int(r.replays.Load())
	st.ReplayMismatches = int(r.mismatch.Load())
	st.Failed = int(r.failed.Load())
	st.EndTime = time.Now()
	st.Duration = st.EndTime.Sub(st.StartTime)
	return st, nil
}

func (r *Runner) checkHealth(ctx context.Context) error {
	if _, err := r.client.do(ctx, http.MethodGet, "/healthz", nil, nil, nil); err != nil {
		return fmt.Errorf("service not healthy at %s: %w", r.cfg.BaseURL, err)
	}
	return nil
}

// ensureSession returns the active session, starting one if none is open.
func (r *Runner) ensureSession(ctx context.Context) (Session, error) {
	var active struct {
		Active *Session `json:"active"`
	}
	if _, err := r.client.do(ctx, http.MethodGet, "/api/sessions/active", nil, &active, nil); err != nil {
		return Session{}, fmt.Errorf("active session: %w", err)
	}
	if active.Active != nil {
		return *active.Active, nil
	}
	var sess Session
	if _, err := r.client.do(ctx, http.MethodPost, "/api/sessions", nil, &sess, nil); err != nil {
		return Session{}, fmt.Errorf("start session: %w", err)
	}
	r.log.Info(ctx, "session started", logger.Int64("session_id", sess.ID))
	return sess, nil
}

func (r *Runner) leaderboard(ctx context.Context, sessionID int64) ([]Standing, error) {
	var rows []Standing
	path := fmt.Sprintf("/api/leaderboard?session=%d", sessionID)
	if _, err := r.client.do(ctx, http.MethodGet, path, nil, &rows, nil); err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return rows, nil
}

// sessionMatches sums the per-fencer match counts of a session leaderboard.
// A temporary session has no stored bouts yet.
func (r *Runner) sessionMatches(ctx context.Context, sess Session) (int, error) {
	if sess.Temporary {
		return 0, nil
	}
	rows, err := r.leaderboard(ctx, sess.ID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, s := range rows {
		total += s.Matches
	}
	return total, nil
}

// submit fires cfg.Bouts simulated bouts across cfg.Workers goroutines.
// Each key is resent cfg.Retries times and must replay the same bout.
func (r *Runner) submit(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)

	for i := 0; i < r.cfg.Bouts; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r.one(gctx, uuid.NewString())
			if n := r.sent.Add(1); n%progressEvery == 0 {
				r.log.Info(gctx, "progress",
					logger.Int64("sent", n),
					logger.Int64("accepted", r.accepted.Load()),
					logger.Int64("failed", r.failed.Load()))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (r *Runner) one(ctx context.Context, key string) {
	first, replayed, err := r.client.simulate(ctx, key)
	if err != nil {
		r.failed.Add(1)
		if r.cfg.Verbose {
			r.log.Warn(ctx, "bout rejected", logger.String("key", key), logger.Error(err))
		}
		return
	}
	if replayed {
		// A fresh key never replays.
		r.mismatch.Add(1)
	}
	r.accepted.Add(1)
	if r.cfg.Verbose {
		r.log.Debug(ctx, "bout accepted",
			logger.String("key", key),
			logger.Int64("fencer1", first.Fencer1ID),
			logger.Int64("fencer2", first.Fencer2ID))
	}

	for range r.cfg.Retries {
		again, replayed, err := r.client.simulate(ctx, key)
		var apiErr *apiError
		switch {
		case errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict:
			r.replays.Add(1)
		case err != nil:
			r.failed.Add(1)
		case !replayed || !sameBout(first, again):
			r.mismatch.Add(1)
		default:
			r.replays.Add(1)
		}
	}
}

// sameBout compares what a replay must preserve. Ids are skipped since a
// tentative id is swapped for the stored one.
func sameBout(a, b Bout) bool {
	return a.Fencer1ID == b.Fencer1ID && a.Fencer2ID == b.Fencer2ID &&
		a.Score1 == b.Score1 && a.Score2 == b.Score2
}
