package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/salle/internal/adapters/auth"
	"github.com/okian/salle/internal/adapters/http/api"
	"github.com/okian/salle/internal/adapters/repository"
	service "github.com/okian/salle/internal/app"
	"github.com/okian/salle/internal/domain/model"
	"github.com/okian/salle/internal/domain/stats"
	"github.com/okian/salle/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

const (
	adminEmail    = "coach@club.test"
	adminPassword = "parry-riposte"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

type harness struct {
	srv   *httptest.Server
	svc   *service.Service
	token string
}

func newHarness() *harness {
	ctx := context.Background()
	store := repository.NewMemStore()
	provider, err := auth.NewLocal(auth.Config{Secret: "test-secret", BaseURL: "http://club.test"}, store,
		auth.WithBcryptCost(4), auth.WithLogger(logger.Nop()))
	So(err, ShouldBeNil)

	svc := service.New(store,
		service.WithAuth(provider),
		service.WithLogger(logger.Nop()),
		service.WithWorkerCount(1),
		service.WithRefreshInterval(time.Hour),
	)
	So(svc.Start(ctx), ShouldBeNil)
	So(svc.BootstrapAdmin(ctx, adminEmail, adminPassword), ShouldBeNil)

	h := &harness{
		svc: svc,
		srv: httptest.NewServer(api.NewRouter(ctx, api.Dependencies{
			Service: svc,
			Auth:    provider,
			Logger:  logger.Nop(),
		})),
	}
	h.token = h.login(adminEmail, adminPassword)
	return h
}

func (h *harness) close() {
	h.srv.Close()
	h.svc.Stop()
}

func (h *harness) login(email, password string) string {
	var sess auth.Session
	resp := h.call(http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password}, nil)
	So(resp.StatusCode, ShouldEqual, http.StatusOK)
	decode(resp, &sess)
	So(sess.Token, ShouldNotBeEmpty)
	return sess.Token
}

// call sends body as JSON with an optional bearer token and extra headers.
func (h *harness) call(method, path, token string, body any, headers map[string]string) *http.Response {
	var r io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		So(err, ShouldBeNil)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, r)
	So(err, ShouldBeNil)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	So(err, ShouldBeNil)
	return resp
}

func (h *harness) do(method, path string, body any) *http.Response {
	return h.call(method, path, h.token, body, nil)
}

func decode(resp *http.Response, v any) {
	defer resp.Body.Close()
	So(json.NewDecoder(resp.Body).Decode(v), ShouldBeNil)
}

func readError(resp *http.Response) errorBody {
	var e errorBody
	decode(resp, &e)
	return e
}

func (h *harness) addFencer(name string) model.Fencer {
	var f model.Fencer
	resp := h.do(http.MethodPost, "/api/fencers", map[string]any{"name": name, "age": 21, "level": "intermediate"})
	So(resp.StatusCode, ShouldEqual, http.StatusCreated)
	decode(resp, &f)
	return f
}

func TestPublicRoutes(t *testing.T) {
	Convey("Given a running API", t, func() {
		h := newHarness()
		defer h.close()

		Convey("/healthz serves metrics without a token", func() {
			resp := h.call(http.MethodGet, "/healthz", "", nil, nil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})

		Convey("/stats reports the service counters", func() {
			var st map[string]any
			resp := h.call(http.MethodGet, "/stats", "", nil, nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			decode(resp, &st)
			So(st["started"], ShouldEqual, true)
			So(st["phase"], ShouldEqual, "ready")
		})

		Convey("/openapi.yaml serves the API document", func() {
			resp := h.call(http.MethodGet, "/openapi.yaml", "", nil, nil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
		})

		Convey("unknown routes answer with a JSON 404", func() {
			resp := h.call(http.MethodGet, "/nope", "", nil, nil)
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			So(readError(resp).Code, ShouldEqual, "not_found")
		})
	})
}

func TestAuthRoutes(t *testing.T) {
	Convey("Given a running API", t, func() {
		h := newHarness()
		defer h.close()

		Convey("protected routes reject missing and forged tokens", func() {
			resp := h.call(http.MethodGet, "/api/fencers", "", nil, nil)
			So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
			So(readError(resp).Code, ShouldEqual, "unauthorized")

			resp = h.call(http.MethodGet, "/api/fencers", "not-a-token", nil, nil)
			So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
			resp.Body.Close()
		})

		Convey("a wrong password is rejected", func() {
			resp := h.call(http.MethodPost, "/api/auth/login", "", map[string]string{"email": adminEmail, "password": "wrong-password"}, nil)
			So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
			So(readError(resp).Message, ShouldEqual, auth.ErrInvalidCredentials.Error())
		})

		Convey("a magic link is refused for unknown emails", func() {
			resp := h.call(http.MethodPost, "/api/auth/magic-link", "", map[string]string{"email": "stranger@club.test"}, nil)
			So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
			So(readError(resp).Message, ShouldEqual, model.MsgNotAuthorized)
		})

		Convey("a magic link is sent to authorized emails", func() {
			resp := h.call(http.MethodPost, "/api/auth/magic-link", "", map[string]string{"email": adminEmail}, nil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusAccepted)
		})

		Convey("the session route returns the signed-in admin", func() {
			var sess auth.Session
			resp := h.do(http.MethodGet, "/api/auth/session", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			decode(resp, &sess)
			So(sess.User.Email, ShouldEqual, adminEmail)
			So(sess.User.IsAdmin, ShouldBeTrue)
		})

		Convey("registering a name updates the session identity", func() {
			resp := h.do(http.MethodPost, "/api/auth/register-name", map[string]string{"first_name": "Aldo", "last_name": "Nadi"})
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			resp.Body.Close()

			var sess auth.Session
			resp = h.do(http.MethodGet, "/api/auth/session", nil)
			decode(resp, &sess)
			So(sess.User.Registered, ShouldBeTrue)
			So(sess.User.DisplayName(), ShouldEqual, "Aldo Nadi")
		})

		Convey("a blank last name is a validation error", func() {
			resp := h.do(http.MethodPost, "/api/auth/register-name", map[string]string{"first_name": "Aldo"})
			So(resp.StatusCode, ShouldEqual, http.StatusUnprocessableEntity)
			So(readError(resp).Field, ShouldEqual, "last_name")
		})

		Convey("logging out revokes the token", func() {
			resp := h.do(http.MethodPost, "/api/auth/logout", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusNoContent)
			resp.Body.Close()

			resp = h.do(http.MethodGet, "/api/fencers", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusUnauthorized)
			resp.Body.Close()
		})
	})
}

func TestFencerRoutes(t *testing.T) {
	Convey("Given a running API", t, func() {
		h := newHarness()
		defer h.close()

		Convey("a registered fencer is listed", func() {
			f := h.addFencer("Valentina Vezzali")
			So(f.ID, ShouldBeGreaterThan, 0)
			So(f.Level, ShouldEqual, model.LevelIntermediate)

			var fs []model.Fencer
			resp := h.do(http.MethodGet, "/api/fencers", nil)
			decode(resp, &fs)
			So(fs, ShouldHaveLength, 1)
			So(fs[0].Name, ShouldEqual, "Valentina Vezzali")
		})

		Convey("an unknown level is rejected with its field", func() {
			resp := h.do(http.MethodPost, "/api/fencers", map[string]any{"name": "X", "age": 20, "level": "grandmaster"})
			So(resp.StatusCode, ShouldEqual, http.StatusUnprocessableEntity)
			So(readError(resp).Field, ShouldEqual, "level")
		})

		Convey("malformed JSON is a bad request", func() {
			req, _ := http.NewRequest(http.MethodPost, h.srv.URL+"/api/fencers", strings.NewReader("{"))
			req.Header.Set("Authorization", "Bearer "+h.token)
			resp, err := http.DefaultClient.Do(req)
			So(err, ShouldBeNil)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			So(readError(resp).Code, ShouldEqual, "bad_request")
		})

		Convey("a demo roster is generated", func() {
			var fs []model.Fencer
			resp := h.do(http.MethodPost, "/api/fencers/generate", map[string]int{"count": 4})
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)
			decode(resp, &fs)
			So(fs, ShouldHaveLength, 4)

			resp = h.do(http.MethodPost, "/api/fencers/generate", map[string]int{"count": 1000})
			So(resp.StatusCode, ShouldEqual, http.StatusUnprocessableEntity)
			resp.Body.Close()
		})

		Convey("the detail of an unknown fencer is 404", func() {
			resp := h.do(http.MethodGet, "/api/fencers/999/detail", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			resp.Body.Close()
		})
	})
}

func TestBoutRoutes(t *testing.T) {
	Convey("Given two fencers", t, func() {
		h := newHarness()
		defer h.close()
		a := h.addFencer("A")
		b := h.addFencer("B")
		bout := map[string]any{"fencer1_id": a.ID, "fencer2_id": b.ID, "score1": 5, "score2": 3}

		Convey("recording without a session is refused", func() {
			resp := h.do(http.MethodPost, "/api/bouts", bout)
			So(resp.StatusCode, ShouldEqual, http.StatusUnprocessableEntity)
			So(readError(resp).Message, ShouldEqual, model.MsgNoActiveSession)
		})

		Convey("with an active session", func() {
			resp := h.do(http.MethodPost, "/api/sessions", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)
			resp.Body.Close()

			Convey("a second session cannot start", func() {
				resp := h.do(http.MethodPost, "/api/sessions", nil)
				So(resp.StatusCode, ShouldEqual, http.StatusUnprocessableEntity)
				So(readError(resp).Message, ShouldEqual, model.MsgAlreadyActive)
			})

			Convey("the same fencer on both sides is refused", func() {
				resp := h.do(http.MethodPost, "/api/bouts", map[string]any{"fencer1_id": a.ID, "fencer2_id": a.ID, "score1": 5, "score2": 3})
				So(resp.StatusCode, ShouldEqual, http.StatusUnprocessableEntity)
				e := readError(resp)
				So(e.Field, ShouldEqual, "fencer2_id")
				So(e.Message, ShouldEqual, model.MsgSameFencer)
			})

			Convey("a retried request with one idempotency key stores one bout", func() {
				key := map[string]string{api.IdempotencyKeyHeader: "bout-1"}
				var first, second model.Bout

				resp := h.call(http.MethodPost, "/api/bouts", h.token, bout, key)
				So(resp.StatusCode, ShouldEqual, http.StatusCreated)
				decode(resp, &first)

				resp = h.call(http.MethodPost, "/api/bouts", h.token, bout, key)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(resp.Header.Get(api.ReplayedHeader), ShouldEqual, "true")
				decode(resp, &second)

				So(second.ID, ShouldEqual, first.ID)
				So(h.svc.Bouts(nil), ShouldHaveLength, 1)
			})

			Convey("a recorded bout feeds the views", func() {
				var stored model.Bout
				resp := h.do(http.MethodPost, "/api/bouts", bout)
				So(resp.StatusCode, ShouldEqual, http.StatusCreated)
				decode(resp, &stored)
				So(stored.SessionID, ShouldNotBeNil)

				var board []stats.Standing
				resp = h.do(http.MethodGet, "/api/leaderboard?sort=wins", nil)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				decode(resp, &board)
				So(board, ShouldHaveLength, 2)
				So(board[0].ID, ShouldEqual, a.ID)
				So(board[0].Wins, ShouldEqual, 1)

				resp = h.do(http.MethodGet, "/api/leaderboard?session="+strconv.FormatInt(*stored.SessionID, 10), nil)
				decode(resp, &board)
				So(board, ShouldHaveLength, 2)

				resp = h.do(http.MethodGet, "/api/matrix", nil)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				resp.Body.Close()

				resp = h.do(http.MethodGet, "/api/fencers/"+strconv.FormatInt(a.ID, 10)+"/detail", nil)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				resp.Body.Close()

				var view service.SessionView
				resp = h.do(http.MethodGet, "/api/sessions/"+strconv.FormatInt(*stored.SessionID, 10)+"/fencers", nil)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				decode(resp, &view)
				So(view.Fencers, ShouldHaveLength, 2)
				So(view.Bouts, ShouldHaveLength, 1)

				Convey("and can be edited then deleted", func() {
					path := "/api/bouts/" + strconv.FormatInt(stored.ID, 10)
					var edited model.Bout
					resp := h.do(http.MethodPatch, path, map[string]int{"score1": 4})
					So(resp.StatusCode, ShouldEqual, http.StatusOK)
					decode(resp, &edited)
					So(edited.Score1, ShouldEqual, 4)

					resp = h.do(http.MethodPatch, path, map[string]int{"score2": 99})
					So(resp.StatusCode, ShouldEqual, http.StatusUnprocessableEntity)
					resp.Body.Close()

					resp = h.do(http.MethodDelete, path, nil)
					So(resp.StatusCode, ShouldEqual, http.StatusNoContent)
					resp.Body.Close()

					resp = h.do(http.MethodDelete, path, nil)
					So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
					resp.Body.Close()
				})
			})

			Convey("a simulated bout is recorded in the session", func() {
				var sim model.Bout
				resp := h.do(http.MethodPost, "/api/bouts/simulate", nil)
				So(resp.StatusCode, ShouldEqual, http.StatusCreated)
				decode(resp, &sim)
				So(sim.SessionID, ShouldNotBeNil)
				So(sim.Fencer1ID, ShouldNotEqual, sim.Fencer2ID)
			})

			Convey("ending the session clears the active one", func() {
				resp := h.do(http.MethodPost, "/api/sessions/active/fencers", map[string][]int64{"fencer_ids": {a.ID, b.ID}})
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				resp.Body.Close()

				resp = h.do(http.MethodPost, "/api/sessions/active/end", nil)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				resp.Body.Close()

				var active struct {
					Active *model.Session `json:"active"`
				}
				resp = h.do(http.MethodGet, "/api/sessions/active", nil)
				decode(resp, &active)
				So(active.Active, ShouldBeNil)

				var sessions []model.Session
				resp = h.do(http.MethodGet, "/api/sessions", nil)
				decode(resp, &sessions)
				So(sessions, ShouldHaveLength, 1)
			})
		})

		Convey("the form carries the score rules", func() {
			var form map[string]any
			resp := h.do(http.MethodGet, "/api/bouts/form", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			decode(resp, &form)
			So(form["score_max"], ShouldEqual, float64(5))
			So(form["winning_score"], ShouldEqual, float64(5))
		})

		Convey("an unknown timeframe is rejected", func() {
			resp := h.do(http.MethodGet, "/api/leaderboard?timeframe=decade", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusUnprocessableEntity)
			So(readError(resp).Field, ShouldEqual, "timeframe")
		})

		Convey("a non-numeric bout id is a bad request", func() {
			resp := h.do(http.MethodDelete, "/api/bouts/abc", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			resp.Body.Close()
		})
	})
}

func TestExportRoutes(t *testing.T) {
	Convey("Given a registered fencer", t, func() {
		h := newHarness()
		defer h.close()
		h.addFencer("Edoardo Mangiarotti")

		Convey("the roster streams as CSV", func() {
			resp := h.do(http.MethodGet, "/api/export/fencers.csv", nil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			So(resp.Header.Get("Content-Type"), ShouldStartWith, "text/csv")
			body, err := io.ReadAll(resp.Body)
			So(err, ShouldBeNil)
			So(string(body), ShouldStartWith, "id,name,age,level,club\n")
			So(string(body), ShouldContainSubstring, "Edoardo Mangiarotti")
		})

		Convey("uploads are unavailable without storage", func() {
			resp := h.do(http.MethodPost, "/api/exports", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusServiceUnavailable)
			So(readError(resp).Message, ShouldEqual, service.ErrExportDisabled.Error())
		})
	})
}

func TestAdminRoutes(t *testing.T) {
	Convey("Given a signed-in admin", t, func() {
		h := newHarness()
		defer h.close()

		Convey("adding a user authorizes and invites them once", func() {
			var res service.AddUserResult
			resp := h.do(http.MethodPost, "/api/admin/users", map[string]string{"email": "Parent@Club.test"})
			So(resp.StatusCode, ShouldEqual, http.StatusCreated)
			decode(resp, &res)
			So(res.User.Email, ShouldEqual, "parent@club.test")
			So(res.Invited, ShouldBeTrue)

			resp = h.do(http.MethodPost, "/api/admin/users", map[string]string{"email": "parent@club.test"})
			So(resp.StatusCode, ShouldEqual, http.StatusConflict)
			So(readError(resp).Message, ShouldEqual, model.MsgAlreadyInvited)

			var logs []model.AuthLog
			resp = h.do(http.MethodGet, "/api/admin/logs", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			decode(resp, &logs)
			So(logs, ShouldNotBeEmpty)
			So(logs[0].Action, ShouldEqual, model.ActionAddUser)
			So(logs[0].PerformedBy, ShouldEqual, adminEmail)

			Convey("and the new user is not an admin", func() {
				var sess auth.Session
				resp := h.call(http.MethodPost, "/api/auth/signup", "", map[string]string{"email": "parent@club.test", "password": "en-garde-123"}, nil)
				So(resp.StatusCode, ShouldEqual, http.StatusCreated)
				decode(resp, &sess)

				resp = h.call(http.MethodGet, "/api/admin/users", sess.Token, nil, nil)
				So(resp.StatusCode, ShouldEqual, http.StatusForbidden)
				So(readError(resp).Code, ShouldEqual, "forbidden")

				resp = h.call(http.MethodGet, "/api/fencers", sess.Token, nil, nil)
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				resp.Body.Close()
			})
		})

		Convey("a short password is rejected at signup", func() {
			resp := h.call(http.MethodPost, "/api/auth/signup", "", map[string]string{"email": adminEmail, "password": "short"}, nil)
			So(resp.StatusCode, ShouldEqual, http.StatusUnprocessableEntity)
			resp.Body.Close()
		})

		Convey("the user list includes the admin", func() {
			var users []model.AuthorizedUser
			resp := h.do(http.MethodGet, "/api/admin/users", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			decode(resp, &users)
			So(users, ShouldHaveLength, 1)
			So(users[0].IsAdmin, ShouldBeTrue)
		})

		Convey("an invalid log limit is a bad request", func() {
			resp := h.do(http.MethodGet, "/api/admin/logs?limit=zero", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			resp.Body.Close()
		})
	})
}

func TestStateRoutes(t *testing.T) {
	Convey("Given a running API", t, func() {
		h := newHarness()
		defer h.close()
		h.addFencer("A")

		Convey("the snapshot and a refresh agree", func() {
			var before, after struct {
				Fencers []model.Fencer `json:"fencers"`
				Phase   string         `json:"phase"`
			}
			resp := h.do(http.MethodGet, "/api/state", nil)
			decode(resp, &before)
			resp = h.do(http.MethodPost, "/api/state/refresh", nil)
			So(resp.StatusCode, ShouldEqual, http.StatusOK)
			decode(resp, &after)

			So(before.Fencers, ShouldHaveLength, 1)
			So(after.Fencers, ShouldHaveLength, 1)
			So(after.Phase, ShouldEqual, "ready")
		})
	})
}
