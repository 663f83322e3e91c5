package simulate_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/salle/internal/adapters/auth"
	"github.com/okian/salle/internal/adapters/http/api"
	"github.com/okian/salle/internal/adapters/repository"
	service "github.com/okian/salle/internal/app"
	"github.com/okian/salle/internal/simulate"
	"github.com/okian/salle/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

const (
	email    = "coach@club.test"
	password = "parry-riposte"
)

func newServer(ctx context.Context) (*httptest.Server, func()) {
	store := repository.NewMemStore()
	provider, err := auth.NewLocal(auth.Config{Secret: "test-secret", BaseURL: "http://club.test"}, store,
		auth.WithBcryptCost(4), auth.WithLogger(logger.Nop()))
	So(err, ShouldBeNil)

	svc := service.New(store,
		service.WithAuth(provider),
		service.WithLogger(logger.Nop()),
		service.WithWorkerCount(2),
		service.WithRefreshInterval(time.Hour),
	)
	So(svc.Start(ctx), ShouldBeNil)
	So(svc.BootstrapAdmin(ctx, email, password), ShouldBeNil)

	srv := httptest.NewServer(api.NewRouter(ctx, api.Dependencies{
		Service: svc,
		Auth:    provider,
		Logger:  logger.Nop(),
	}))
	return srv, func() {
		srv.Close()
		svc.Stop()
	}
}

func TestRun(t *testing.T) {
	Convey("Given a running club server", t, func() {
		ctx := context.Background()
		srv, stop := newServer(ctx)
		defer stop()

		cfg := simulate.Config{
			BaseURL:  srv.URL,
			Email:    email,
			Password: password,
			Fencers:  8,
			Bouts:    40,
			Workers:  4,
			Retries:  1,
			Timeout:  5 * time.Second,
		}

		Convey("When the simulator runs", func() {
			r := simulate.NewRunner(cfg, logger.Nop())
			st, err := r.Run(ctx)
			So(err, ShouldBeNil)

			Convey("Then every bout is accepted once and replayed once", func() {
				So(st.FencersRegistered, ShouldEqual, 8)
				So(st.BoutsSubmitted, ShouldEqual, 40)
				So(st.BoutsAccepted, ShouldEqual, 40)
				So(st.Failed, ShouldEqual, 0)
				So(st.Replays, ShouldEqual, 40)
				So(st.ReplayMismatches, ShouldEqual, 0)
			})

			Convey("And the session leaderboard counts two matches per bout", func() {
				So(st.SessionID, ShouldBeGreaterThan, 0)
				So(st.MatchesBefore, ShouldEqual, 0)
				So(st.MatchesAfter, ShouldEqual, 80)
				So(simulate.Verify(st), ShouldBeNil)
				So(r.Standings(ctx, st.SessionID), ShouldBeNil)
			})

			Convey("And a second run continues the same session", func() {
				cfg.Fencers = 0
				cfg.Bouts = 10
				again, err := simulate.NewRunner(cfg, logger.Nop()).Run(ctx)
				So(err, ShouldBeNil)
				So(again.SessionID, ShouldEqual, st.SessionID)
				So(again.MatchesBefore, ShouldEqual, 80)
				So(again.MatchesAfter, ShouldEqual, 100)
				So(simulate.Verify(again), ShouldBeNil)
			})
		})

		Convey("When the credentials are wrong", func() {
			cfg.Password = "wrong-password"
			_, err := simulate.NewRunner(cfg, logger.Nop()).Run(ctx)

			Convey("Then the run stops at login", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "login")
			})
		})
	})

	Convey("Given no server", t, func() {
		cfg := simulate.Config{BaseURL: "http://127.0.0.1:1", Bouts: 1, Timeout: time.Second}

		Convey("Then the health check fails", func() {
			_, err := simulate.NewRunner(cfg, logger.Nop()).Run(context.Background())
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "not healthy")
		})
	})
}

func TestVerify(t *testing.T) {
	Convey("Given run statistics", t, func() {
		st := &simulate.Stats{BoutsAccepted: 5, MatchesBefore: 4, MatchesAfter: 14}

		Convey("Then matching totals pass", func() {
			So(simulate.Verify(st), ShouldBeNil)
		})

		Convey("Then a missing bout fails", func() {
			st.MatchesAfter = 12
			err := simulate.Verify(st)
			So(errors.Is(err, simulate.ErrMismatch), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "grew by 8, want 10")
		})

		Convey("Then a replay mismatch fails", func() {
			st.ReplayMismatches = 2
			So(errors.Is(simulate.Verify(st), simulate.ErrMismatch), ShouldBeTrue)
		})
	})

	Convey("Given leaderboard rows", t, func() {
		rows := []simulate.Standing{
			{Rank: 1, Name: "Ada", Matches: 4, Wins: 3},
			{Rank: 2, Name: "Bea", Matches: 4, Wins: 1},
		}
		So(simulate.VerifyStandings(rows), ShouldBeNil)

		Convey("Then more wins than matches fails", func() {
			rows[1].Wins = 5
			So(errors.Is(simulate.VerifyStandings(rows), simulate.ErrMismatch), ShouldBeTrue)
		})

		Convey("Then out of order ranks fail", func() {
			rows[1].Rank = 0
			So(simulate.VerifyStandings(rows), ShouldNotBeNil)
		})
	})
}

func TestReport(t *testing.T) {
	Convey("Given a finished run", t, func() {
		path := filepath.Join(t.TempDir(), "report.json")
		st := &simulate.Stats{SessionID: 3, BoutsAccepted: 2, MatchesAfter: 3}

		Convey("When the report is saved with a failure", func() {
			So(simulate.SaveReport(path, st, simulate.Verify(st)), ShouldBeNil)

			Convey("Then it records the failure", func() {
				b, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				var got map[string]any
				So(json.Unmarshal(b, &got), ShouldBeNil)
				So(got["passed"], ShouldEqual, false)
				So(got["session_id"], ShouldEqual, float64(3))
				So(got["error"], ShouldContainSubstring, "leaderboard mismatch")
			})
		})

		Convey("Then the default path is timestamped", func() {
			at := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
			So(simulate.DefaultReportPath(at), ShouldEqual, "simulate_20261017_093000.json")
		})

		Convey("Then help names every flag", func() {
			var buf bytes.Buffer
			simulate.ShowHelp(&buf)
			for _, flag := range []string{"-url", "-bouts", "-workers", "-retries", "-report"} {
				So(buf.String(), ShouldContainSubstring, flag)
			}
		})
	})
}
