package stats_test

import (
	"encoding/json"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/okian/salle/internal/domain/model"
	"github.com/okian/salle/internal/domain/stats"
	. "github.com/smartystreets/goconvey/convey"
)

var now = time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)

func fencers() []model.Fencer {
	return []model.Fencer{
		{ID: 1, Name: "A", Age: 20, Level: model.LevelBeginner},
		{ID: 2, Name: "B", Age: 21, Level: model.LevelAdvanced},
		{ID: 3, Name: "C", Age: 22, Level: model.LevelIntermediate},
	}
}

func bout(id, f1, f2 int64, s1, s2 int, ago time.Duration) model.Bout {
	return model.Bout{ID: id, Fencer1ID: f1, Fencer2ID: f2, Score1: s1, Score2: s2, Timestamp: now.Add(-ago)}
}

func TestBuildMatrix(t *testing.T) {
	Convey("Given one 5-3 bout between two fencers", t, func() {
		fs := fencers()[:2]
		bs := []model.Bout{bout(10, 1, 2, 5, 3, time.Hour)}
		m := stats.BuildMatrix(fs, bs)

		Convey("Then cells hold directional points and shared bout counts", func() {
			c12, ok := m.Cell(1, 2)
			So(ok, ShouldBeTrue)
			So(c12.PointsScored, ShouldEqual, 5)
			So(c12.TotalBouts, ShouldEqual, 1)

			c21, ok := m.Cell(2, 1)
			So(ok, ShouldBeTrue)
			So(c21.PointsScored, ShouldEqual, 3)
			So(c21.TotalBouts, ShouldEqual, 1)
		})

		Convey("Then the diagonal is not applicable", func() {
			_, ok := m.Cell(1, 1)
			So(ok, ShouldBeFalse)
			_, ok = m.Cell(1, 99)
			So(ok, ShouldBeFalse)
		})

		Convey("Then JSON renders null on the diagonal", func() {
			raw, err := json.Marshal(m)
			So(err, ShouldBeNil)
			var decoded map[string]map[string]*stats.Cell
			So(json.Unmarshal(raw, &decoded), ShouldBeNil)
			So(decoded["1"]["1"], ShouldBeNil)
			So(decoded["1"]["2"].PointsScored, ShouldEqual, 5)
		})
	})

	Convey("Given a mixed bout set", t, func() {
		fs := fencers()
		bs := []model.Bout{
			bout(1, 1, 2, 5, 3, time.Hour),
			bout(2, 2, 1, 5, 4, 2*time.Hour),
			bout(3, 3, 1, 2, 2, 3*time.Hour),
			bout(4, 1, 42, 5, 0, 4*time.Hour), // outside the fencer set
		}
		m := stats.BuildMatrix(fs, bs, stats.WithWinningScore(5))

		Convey("Then total bouts are symmetric for every pair", func() {
			for _, a := range m.Fencers() {
				for _, b := range m.Fencers() {
					if a == b {
						continue
					}
					ab, _ := m.Cell(a, b)
					ba, _ := m.Cell(b, a)
					So(ab.TotalBouts, ShouldEqual, ba.TotalBouts)
				}
			}
		})

		Convey("Then bouts with unknown fencers are skipped", func() {
			c, _ := m.Cell(1, 2)
			So(c.TotalBouts, ShouldEqual, 2)
			So(c.PointsScored, ShouldEqual, 9)
		})

		Convey("Then victories need the winning score and a strict lead", func() {
			c12, _ := m.Cell(1, 2)
			c21, _ := m.Cell(2, 1)
			c13, _ := m.Cell(1, 3)
			So(c12.Victories, ShouldEqual, 1)
			So(c21.Victories, ShouldEqual, 1)
			So(c13.Victories, ShouldEqual, 0)
		})

		Convey("Then building twice yields the same matrix", func() {
			again := stats.BuildMatrix(fs, bs, stats.WithWinningScore(5))
			a, _ := json.Marshal(m)
			b, _ := json.Marshal(again)
			So(string(a), ShouldEqual, string(b))
		})
	})

	Convey("Given no fencers", t, func() {
		m := stats.BuildMatrix(nil, []model.Bout{bout(1, 1, 2, 5, 0, 0)})
		So(m.Len(), ShouldEqual, 0)
		raw, err := json.Marshal(m)
		So(err, ShouldBeNil)
		So(string(raw), ShouldEqual, "{}")
	})
}

func TestRankFencers(t *testing.T) {
	Convey("Given one 5-3 bout between two fencers", t, func() {
		fs := fencers()[:2]
		bs := []model.Bout{bout(10, 1, 2, 5, 3, time.Hour)}
		got := stats.RankFencers(fs, bs, stats.TimeframeAll, stats.SortWinRate, stats.At(now))

		So(got, ShouldHaveLength, 2)
		So(got[0].ID, ShouldEqual, 1)
		So(got[0].Wins, ShouldEqual, 1)
		So(got[0].Matches, ShouldEqual, 1)
		So(got[0].WinRate, ShouldEqual, 100.0)
		So(got[0].Rank, ShouldEqual, 1)
		So(got[0].Podium, ShouldBeTrue)
		So(got[1].ID, ShouldEqual, 2)
		So(got[1].Wins, ShouldEqual, 0)
		So(got[1].Matches, ShouldEqual, 1)
		So(got[1].WinRate, ShouldEqual, 0.0)
	})

	Convey("Given a fencer with no bouts", t, func() {
		fs := fencers()
		bs := []model.Bout{bout(10, 1, 2, 5, 3, time.Hour)}

		Convey("Then the unscoped view reports zero stats, not NaN", func() {
			got := stats.RankFencers(fs, bs, stats.TimeframeAll, stats.SortAvgPoints, stats.At(now))
			So(got, ShouldHaveLength, 3)
			c := got[2]
			So(c.ID, ShouldEqual, 3)
			So(c.WinRate, ShouldEqual, 0.0)
			So(c.AvgPoints, ShouldEqual, 0.0)
			So(math.IsNaN(c.WinRate), ShouldBeFalse)
		})

		Convey("Then scoped views leave the fencer out", func() {
			got := stats.RankFencers(fs, bs, stats.TimeframeWeek, stats.SortWinRate, stats.At(now))
			So(got, ShouldHaveLength, 2)
		})
	})

	Convey("Given bouts 6 and 8 days old", t, func() {
		fs := fencers()[:2]
		bs := []model.Bout{
			bout(1, 1, 2, 5, 1, 6*24*time.Hour),
			bout(2, 2, 1, 5, 1, 8*24*time.Hour),
		}

		Convey("Then the week view only counts the 6-day-old bout", func() {
			got := stats.RankFencers(fs, bs, stats.TimeframeWeek, stats.SortWinRate, stats.At(now))
			So(got, ShouldHaveLength, 2)
			So(got[0].ID, ShouldEqual, 1)
			So(got[0].Matches, ShouldEqual, 1)
			So(got[0].Wins, ShouldEqual, 1)
		})

		Convey("Then the month view counts both", func() {
			got := stats.RankFencers(fs, bs, stats.TimeframeMonth, stats.SortWinRate, stats.At(now))
			So(got[0].Matches, ShouldEqual, 2)
		})

		Convey("Then a bout in the future is measured by absolute distance", func() {
			future := bout(3, 1, 2, 5, 0, -10*24*time.Hour)
			got := stats.RankFencers(fs, []model.Bout{future}, stats.TimeframeWeek, stats.SortWinRate, stats.At(now))
			So(got, ShouldBeEmpty)
		})
	})

	Convey("Given tied win rates", t, func() {
		fs := []model.Fencer{{ID: 1, Name: "Low"}, {ID: 2, Name: "High"}, {ID: 3, Name: "X"}, {ID: 4, Name: "Y"}}
		bs := []model.Bout{
			bout(1, 1, 3, 3, 2, time.Hour),
			bout(2, 2, 4, 5, 0, time.Hour),
		}
		got := stats.RankFencers(fs, bs, stats.TimeframeAll, stats.SortWinRate, stats.At(now))

		Convey("Then average points break the tie", func() {
			So(got[0].ID, ShouldEqual, 2)
			So(got[1].ID, ShouldEqual, 1)
			So(got[2].Podium, ShouldBeTrue)
			So(got[3].Podium, ShouldBeFalse)
		})

		Convey("Then sorting by wins keeps input order on ties", func() {
			byWins := stats.RankFencers(fs, bs, stats.TimeframeAll, stats.SortWins, stats.At(now))
			So(byWins[0].ID, ShouldEqual, 1)
			So(byWins[1].ID, ShouldEqual, 2)
		})

		Convey("Then ranking is idempotent", func() {
			So(stats.RankFencers(fs, bs, stats.TimeframeAll, stats.SortWinRate, stats.At(now)), ShouldResemble, got)
		})
	})

	Convey("Given a session filter", t, func() {
		sid := int64(77)
		fs := fencers()
		in := bout(1, 1, 2, 5, 4, time.Hour)
		in.SessionID = &sid
		out := bout(2, 3, 1, 5, 0, time.Hour)
		got := stats.RankFencers(fs, []model.Bout{in, out}, stats.TimeframeAll, stats.SortWinRate, stats.At(now), stats.InSession(sid))

		So(got, ShouldHaveLength, 2)
		So(got[0].ID, ShouldEqual, 1)
		So(got[0].AvgPoints, ShouldEqual, 5.0)
		So(got[1].AvgPoints, ShouldEqual, 4.0)
	})

	Convey("Given rates that need rounding", t, func() {
		fs := fencers()
		bs := []model.Bout{
			bout(1, 1, 2, 5, 3, time.Hour),
			bout(2, 1, 2, 2, 5, time.Hour),
			bout(3, 1, 3, 4, 4, time.Hour),
		}
		got := stats.RankFencers(fs, bs, stats.TimeframeAll, stats.SortWinRate, stats.At(now))
		var a stats.Standing
		for _, s := range got {
			if s.ID == 1 {
				a = s
			}
		}
		So(a.WinRate, ShouldEqual, 33.3)
		So(a.AvgPoints, ShouldEqual, 3.7)
		So(a.TotalPoints, ShouldEqual, 11)
	})

	Convey("Given timeframe and sort key strings", t, func() {
		tf, ok := stats.ParseTimeframe("")
		So(ok, ShouldBeTrue)
		So(tf, ShouldEqual, stats.TimeframeAll)
		_, ok = stats.ParseTimeframe("year")
		So(ok, ShouldBeFalse)
		sk, ok := stats.ParseSortKey("avgPoints")
		So(ok, ShouldBeTrue)
		So(sk, ShouldEqual, stats.SortAvgPoints)
		_, ok = stats.ParseSortKey("losses")
		So(ok, ShouldBeFalse)
	})
}

func TestFencerDetail(t *testing.T) {
	Convey("Given chronological win, loss, win", t, func() {
		fs := fencers()
		bs := []model.Bout{
			bout(3, 3, 1, 4, 5, 1*time.Hour),
			bout(1, 1, 2, 5, 2, 3*time.Hour),
			bout(2, 2, 1, 5, 1, 2*time.Hour),
		}
		r, ok := stats.FencerDetail(1, fs, bs)
		So(ok, ShouldBeTrue)

		Convey("Then recent form is most recent first", func() {
			So(r.RecentForm, ShouldResemble, []bool{true, false, true})
		})

		Convey("Then both orderings are available", func() {
			So(r.Chronological[0].ID, ShouldEqual, 1)
			So(r.Chronological[2].ID, ShouldEqual, 3)
			So(r.Recent[0].ID, ShouldEqual, 3)
			So(r.Recent[2].ID, ShouldEqual, 1)
		})

		Convey("Then summary figures are point-of-view adjusted", func() {
			So(r.Matches, ShouldEqual, 3)
			So(r.Wins, ShouldEqual, 2)
			So(r.Losses, ShouldEqual, 1)
			So(r.WinRate, ShouldEqual, 66.7)
			So(r.AvgPointsScored, ShouldEqual, 3.7)
			So(r.AvgPointsConceded, ShouldEqual, 3.7)
		})

		Convey("Then the series is chronological and restartable", func() {
			first := slices.Collect(r.Series())
			second := slices.Collect(r.Series())
			So(first, ShouldResemble, second)
			So(first, ShouldHaveLength, 3)
			So(first[0].BoutNumber, ShouldEqual, 1)
			So(first[0].PointDiff, ShouldEqual, 3)
			So(first[0].Opponent, ShouldEqual, "B")
			So(first[1].Won, ShouldBeFalse)
			So(first[1].OpponentScore, ShouldEqual, 5)

			history := slices.Collect(r.History())
			So(history[0].BoutNumber, ShouldEqual, 3)
			So(history[2].BoutNumber, ShouldEqual, 1)
		})

		Convey("Then the level breakdown groups by opponent level", func() {
			So(r.ByLevel, ShouldResemble, []stats.LevelStat{
				{Level: model.LevelIntermediate, Total: 1, Wins: 1, WinRate: 100},
				{Level: model.LevelAdvanced, Total: 2, Wins: 1, WinRate: 50},
			})
		})

		Convey("Then stopping an iteration early is honored", func() {
			n := 0
			for range r.Series() {
				n++
				break
			}
			So(n, ShouldEqual, 1)
		})
	})

	Convey("Given more than five bouts and draws", t, func() {
		fs := fencers()
		var bs []model.Bout
		for i := range 7 {
			bs = append(bs, bout(int64(i+1), 1, 2, 5, 3, time.Duration(10-i)*time.Hour))
		}
		bs = append(bs, bout(8, 1, 2, 3, 3, time.Minute))
		r, _ := stats.FencerDetail(1, fs, bs)

		So(r.RecentForm, ShouldResemble, []bool{false, true, true, true, true})
		So(r.Draws, ShouldEqual, 1)
		So(r.Matches, ShouldEqual, 8)
		So(r.Wins+r.Losses+r.Draws, ShouldEqual, r.Matches)
	})

	Convey("Given an orphaned opponent", t, func() {
		fs := fencers()[:1]
		r, ok := stats.FencerDetail(1, fs, []model.Bout{bout(1, 1, 9, 5, 1, time.Hour)})
		So(ok, ShouldBeTrue)
		points := slices.Collect(r.Series())
		So(points[0].Opponent, ShouldEqual, model.UnknownFencerName)
		So(r.ByLevel, ShouldBeEmpty)
	})

	Convey("Given a fencer without bouts", t, func() {
		r, ok := stats.FencerDetail(3, fencers(), nil)
		So(ok, ShouldBeTrue)
		So(r.WinRate, ShouldEqual, 0.0)
		So(r.AvgPointsScored, ShouldEqual, 0.0)
		So(r.RecentForm, ShouldBeEmpty)

		raw, err := json.Marshal(r)
		So(err, ShouldBeNil)
		So(string(raw), ShouldContainSubstring, `"series":[]`)
	})

	Convey("Given an unknown fencer id", t, func() {
		_, ok := stats.FencerDetail(99, fencers(), nil)
		So(ok, ShouldBeFalse)
	})
}
