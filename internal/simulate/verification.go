package simulate

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/salle/pkg/logger"
)

// ErrMismatch is returned when the leaderboard disagrees with the run.
var ErrMismatch = errors.New("leaderboard mismatch")

// Verify checks that every accepted bout added exactly two matches to the
// session leaderboard and that no replay returned a different bout.
func Verify(st *Stats) error {
	var errs []error
	if got, want := st.MatchesAfter-st.MatchesBefore, 2*st.BoutsAccepted; got != want {
		errs = append(errs, fmt.Errorf("%w: session matches grew by %d, want %d", ErrMismatch, got, want))
	}
	if st.ReplayMismatches > 0 {
		errs = append(errs, fmt.Errorf("%w: %d idempotent sends did not replay the first bout", ErrMismatch, st.ReplayMismatches))
	}
	return errors.Join(errs...)
}

// VerifyStandings checks per-row invariants of a leaderboard.
func VerifyStandings(rows []Standing) error {
	for i, s := range rows {
		if s.Wins > s.Matches {
			return fmt.Errorf("%w: %s has %d wins in %d matches", ErrMismatch, s.Name, s.Wins, s.Matches)
		}
		if i > 0 && s.Rank < rows[i-1].Rank {
			return fmt.Errorf("%w: rank %d follows rank %d", ErrMismatch, s.Rank, rows[i-1].Rank)
		}
	}
	return nil
}

// Standings fetches the session leaderboard and checks its rows.
func (r *Runner) Standings(ctx context.Context, sessionID int64) error {
	rows, err := r.leaderboard(ctx, sessionID)
	if err != nil {
		return err
	}
	return VerifyStandings(rows)
}

// Display logs the run summary.
func Display(ctx context.Context, log logger.Logger, st *Stats) {
	rate := 0.0
	if secs := st.Duration.Seconds(); secs > 0 {
		rate = float64(st.BoutsAccepted) / secs
	}
	log.Info(ctx, "simulation finished",
		logger.Int64("session_id", st.SessionID),
		logger.Int("fencers_registered", st.FencersRegistered),
		logger.Int("submitted", st.BoutsSubmitted),
		logger.Int("accepted", st.BoutsAccepted),
		logger.Int("failed", st.Failed),
		logger.Int("replays", st.Replays),
		logger.Int("matches_before", st.MatchesBefore),
		logger.Int("matches_after", st.MatchesAfter),
		logger.Duration("duration", st.Duration),
		logger.Float64("bouts_per_sec", rate))
}
