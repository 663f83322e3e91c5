package stats

import (
	"cmp"
	"encoding/json"
	"iter"
	"slices"
	"time"

	"github.com/okian/salle/internal/domain/model"
)

const recentFormSize = 5

// LevelStat is the record against opponents of one level.
type LevelStat struct {
	Level   model.Level `json:"level"`
	Total   int         `json:"total"`
	Wins    int         `json:"wins"`
	WinRate float64     `json:"win_rate"`
}

// TrendPoint is one bout from the selected fencer's point of view.
type TrendPoint struct {
	BoutID        int64         `json:"bout_id"`
	BoutNumber    int           `json:"bout_number"` // 1-based, chronological
	Score         int           `json:"score"`
	OpponentScore int           `json:"opponent_score"`
	PointDiff     int           `json:"point_diff"`
	Won           bool          `json:"won"`
	Outcome       model.Outcome `json:"outcome"`
	Date          time.Time     `json:"date"`
	OpponentID    int64         `json:"opponent_id"`
	Opponent      string        `json:"opponent"`
}

// DetailReport is the deep-dive view for one fencer.
type DetailReport struct {
	Fencer            model.Fencer
	Matches           int
	Wins              int
	Losses            int
	Draws             int
	WinRate           float64
	AvgPointsScored   float64
	AvgPointsConceded float64
	ByLevel           []LevelStat
	// Recent lists the fencer's bouts most recent first.
	Recent []model.Bout
	// Chronological lists the same bouts oldest first.
	Chronological []model.Bout
	// RecentForm holds up to five win flags, most recent first.
	RecentForm []bool

	points []TrendPoint
}

// FencerDetail builds the report for fencerID. ok is false when the fencer
// is not in fencers.
func FencerDetail(fencerID int64, fencers []model.Fencer, bouts []model.Bout) (DetailReport, bool) {
	idx := model.IndexFencers(fencers)
	f, ok := idx[fencerID]
	if !ok {
		return DetailReport{}, false
	}

	var chrono []model.Bout
	for _, b := range bouts {
		if b.Involves(fencerID) && b.Fencer1ID != b.Fencer2ID {
			chrono = append(chrono, b)
		}
	}
	slices.SortStableFunc(chrono, func(a, b model.Bout) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	r := DetailReport{
		Fencer:        f,
		Matches:       len(chrono),
		Chronological: chrono,
		Recent:        make([]model.Bout, len(chrono)),
		points:        make([]TrendPoint, 0, len(chrono)),
	}
	for i, b := range chrono {
		r.Recent[len(chrono)-1-i] = b
	}

	levels := make(map[model.Level]*LevelStat)
	var scored, conceded int
	for i, b := range chrono {
		own, opp, oppID, _ := b.Side(fencerID)
		outcome := b.OutcomeFor(fencerID)
		scored += own
		conceded += opp

		switch outcome {
		case model.OutcomeWin:
			r.Wins++
		case model.OutcomeLoss:
			r.Losses++
		default:
			r.Draws++
		}

		if opponent, known := idx[oppID]; known {
			ls, ok := levels[opponent.Level]
			if !ok {
				ls = &LevelStat{Level: opponent.Level}
				levels[opponent.Level] = ls
			}
			ls.Total++
			if outcome == model.OutcomeWin {
				ls.Wins++
			}
		}

		r.points = append(r.points, TrendPoint{
			BoutID:        b.ID,
			BoutNumber:    i + 1,
			Score:         own,
			OpponentScore: opp,
			PointDiff:     own - opp,
			Won:           outcome == model.OutcomeWin,
			Outcome:       outcome,
			Date:          b.Timestamp,
			OpponentID:    oppID,
			Opponent:      idx.Name(oppID),
		})
	}

	r.WinRate = percent(r.Wins, r.Matches)
	r.AvgPointsScored = mean(scored, r.Matches)
	r.AvgPointsConceded = mean(conceded, r.Matches)

	for _, lvl := range model.Levels {
		if ls, ok := levels[lvl]; ok {
			ls.WinRate = percent(ls.Wins, ls.Total)
			r.ByLevel = append(r.ByLevel, *ls)
			delete(levels, lvl)
		}
	}
	// levels outside the known enum, from legacy rows
	extra := make([]model.Level, 0, len(levels))
	for lvl := range levels {
		extra = append(extra, lvl)
	}
	slices.Sort(extra)
	for _, lvl := range extra {
		ls := levels[lvl]
		ls.WinRate = percent(ls.Wins, ls.Total)
		r.ByLevel = append(r.ByLevel, *ls)
	}

	n := min(recentFormSize, len(r.points))
	r.RecentForm = make([]bool, 0, n)
	for i := len(r.points) - 1; i >= len(r.points)-n; i-- {
		r.RecentForm = append(r.RecentForm, r.points[i].Won)
	}
	return r, true
}

// Series yields trend points in chronological order. It can be ranged over
// any number of times.
func (r DetailReport) Series() iter.Seq[TrendPoint] {
	return func(yield func(TrendPoint) bool) {
		for _, p := range r.points {
			if !yield(p) {
				return
			}
		}
	}
}

// History yields trend points most recent first.
func (r DetailReport) History() iter.Seq[TrendPoint] {
	return func(yield func(TrendPoint) bool) {
		for i := len(r.points) - 1; i >= 0; i-- {
			if !yield(r.points[i]) {
				return
			}
		}
	}
}

// MarshalJSON flattens the report with its series and history.
func (r DetailReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Fencer            model.Fencer `json:"fencer"`
		Matches           int          `json:"matches"`
		Wins              int          `json:"wins"`
		Losses            int          `json:"losses"`
		Draws             int          `json:"draws"`
		WinRate           float64      `json:"win_rate"`
		AvgPointsScored   float64      `json:"avg_points_scored"`
		AvgPointsConceded float64      `json:"avg_points_conceded"`
		ByLevel           []LevelStat  `json:"by_level"`
		RecentForm        []bool       `json:"recent_form"`
		Recent            []model.Bout `json:"recent"`
		Series            []TrendPoint `json:"series"`
		History           []TrendPoint `json:"history"`
	}{
		Fencer:            r.Fencer,
		Matches:           r.Matches,
		Wins:              r.Wins,
		Losses:            r.Losses,
		Draws:             r.Draws,
		WinRate:           r.WinRate,
		AvgPointsScored:   r.AvgPointsScored,
		AvgPointsConceded: r.AvgPointsConceded,
		ByLevel:           nonNil(r.ByLevel),
		RecentForm:        r.RecentForm,
		Recent:            nonNil(r.Recent),
		Series:            nonNil(slices.Collect(r.Series())),
		History:           nonNil(slices.Collect(r.History())),
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
