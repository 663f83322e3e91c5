package stats

import (
	"math"
	"slices"
	"time"

	"github.com/okian/salle/internal/domain/model"
)

// Timeframe limits which bouts count toward a leaderboard.
type Timeframe string

// Timeframes.
const (
	TimeframeAll   Timeframe = "all"
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
)

// SortKey selects the leaderboard ordering.
type SortKey string

// Sort keys.
const (
	SortWinRate   SortKey = "winRate"
	SortWins      SortKey = "wins"
	SortAvgPoints SortKey = "avgPoints"
)

// ParseTimeframe returns TimeframeAll for an empty string.
func ParseTimeframe(s string) (Timeframe, bool) {
	switch Timeframe(s) {
	case "", TimeframeAll:
		return TimeframeAll, true
	case TimeframeWeek, TimeframeMonth:
		return Timeframe(s), true
	}
	return "", false
}

// ParseSortKey returns SortWinRate for an empty string.
func ParseSortKey(s string) (SortKey, bool) {
	switch SortKey(s) {
	case "", SortWinRate:
		return SortWinRate, true
	case SortWins, SortAvgPoints:
		return SortKey(s), true
	}
	return "", false
}

// Standing is one leaderboard row.
type Standing struct {
	Rank        int         `json:"rank"`
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Level       model.Level `json:"level"`
	Matches     int         `json:"matches"`
	Wins        int         `json:"wins"`
	WinRate     float64     `json:"win_rate"`
	AvgPoints   float64     `json:"avg_points"`
	TotalPoints int         `json:"total_points"`
	Podium      bool        `json:"podium"`
}

type rankConfig struct {
	now       time.Time
	sessionID *int64
}

// RankOption configures RankFencers.
type RankOption func(*rankConfig)

// InSession restricts the leaderboard to bouts of one session.
func InSession(id int64) RankOption {
	return func(c *rankConfig) { c.sessionID = &id }
}

// At fixes the reference time for week/month windows.
func At(now time.Time) RankOption {
	return func(c *rankConfig) { c.now = now }
}

const podiumSize = 3

// RankFencers ranks fencers by sortBy over bouts inside timeframe.
// Fencers without matches are left out when the view is scoped by time or session.
func RankFencers(fencers []model.Fencer, bouts []model.Bout, timeframe Timeframe, sortBy SortKey, opts ...RankOption) []Standing {
	cfg := rankConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.now.IsZero() {
		cfg.now = time.Now()
	}
	scoped := timeframe != TimeframeAll || cfg.sessionID != nil

	type tally struct{ matches, wins, points int }
	tallies := make(map[int64]*tally, len(fencers))
	for _, f := range fencers {
		tallies[f.ID] = &tally{}
	}

	for _, b := range bouts {
		if cfg.sessionID != nil && !b.InSession(*cfg.sessionID) {
			continue
		}
		if !withinTimeframe(b.Timestamp, cfg.now, timeframe) {
			continue
		}
		if t, ok := tallies[b.Fencer1ID]; ok {
			t.matches++
			t.points += b.Score1
			if b.Score1 > b.Score2 {
				t.wins++
			}
		}
		if t, ok := tallies[b.Fencer2ID]; ok && b.Fencer2ID != b.Fencer1ID {
			t.matches++
			t.points += b.Score2
			if b.Score2 > b.Score1 {
				t.wins++
			}
		}
	}

	out := make([]Standing, 0, len(fencers))
	seen := make(map[int64]bool, len(fencers))
	for _, f := range fencers {
		if seen[f.ID] {
			continue
		}
		seen[f.ID] = true
		t := tallies[f.ID]
		if scoped && t.matches == 0 {
			continue
		}
		out = append(out, Standing{
			ID:          f.ID,
			Name:        f.Name,
			Level:       f.Level,
			Matches:     t.matches,
			Wins:        t.wins,
			WinRate:     percent(t.wins, t.matches),
			AvgPoints:   mean(t.points, t.matches),
			TotalPoints: t.points,
		})
	}

	slices.SortStableFunc(out, func(a, b Standing) int {
		switch sortBy {
		case SortWins:
			return b.Wins - a.Wins
		case SortAvgPoints:
			return cmpDesc(a.AvgPoints, b.AvgPoints)
		default:
			if c := cmpDesc(a.WinRate, b.WinRate); c != 0 {
				return c
			}
			return cmpDesc(a.AvgPoints, b.AvgPoints)
		}
	})

	for i := range out {
		out[i].Rank = i + 1
		out[i].Podium = i < podiumSize
	}
	return out
}

func cmpDesc(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}

// withinTimeframe compares whole days by absolute distance from now,
// so a bout 6d1h ago counts as 7 days.
func withinTimeframe(ts, now time.Time, tf Timeframe) bool {
	var limit int
	switch tf {
	case TimeframeWeek:
		limit = 7
	case TimeframeMonth:
		limit = 30
	default:
		return true
	}
	diff := now.Sub(ts)
	if diff < 0 {
		diff = -diff
	}
	days := int(math.Ceil(diff.Hours() / 24))
	return days <= limit
}
