package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/salle/internal/adapters/repository"
	"github.com/okian/salle/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var epoch = time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

// storeContract runs the same behavioral checks against any Store.
func storeContract(t *testing.T, name string, open func(t *testing.T) repository.Store) {
	ctx := context.Background()

	Convey("Given an empty "+name+" store", t, func() {
		s := open(t)
		Reset(func() { _ = s.Close() })
		So(s.Ping(ctx), ShouldBeNil)

		fencers, err := s.InsertFencers(ctx, []model.Fencer{
			{Name: "Alex Smith", Age: 20, Level: model.LevelBeginner, Club: "Blue Blades"},
			{Name: "Sam Jones", Age: 22, Level: model.LevelAdvanced},
			{Name: "Riley Davis", Age: 18, Level: model.LevelIntermediate},
		})
		So(err, ShouldBeNil)
		So(fencers, ShouldHaveLength, 3)
		a, b, c := fencers[0], fencers[1], fencers[2]

		Convey("Then fencers get ids and list in id order", func() {
			So(a.ID, ShouldBeGreaterThan, 0)
			So(b.ID, ShouldBeGreaterThan, a.ID)

			all, err := s.ListFencers(ctx)
			So(err, ShouldBeNil)
			So(all, ShouldResemble, fencers)

			got, err := s.GetFencer(ctx, a.ID)
			So(err, ShouldBeNil)
			So(got.Club, ShouldEqual, "Blue Blades")

			_, err = s.GetFencer(ctx, 9999)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When bouts are recorded", func() {
			first, err := s.InsertBout(ctx, model.Bout{Fencer1ID: a.ID, Fencer2ID: b.ID, Score1: 5, Score2: 3, Notes: "close", Timestamp: epoch})
			So(err, ShouldBeNil)
			second, err := s.InsertBout(ctx, model.Bout{Fencer1ID: b.ID, Fencer2ID: c.ID, Score1: 2, Score2: 5, Timestamp: epoch.Add(time.Hour)})
			So(err, ShouldBeNil)

			Convey("Then they list newest first with timestamps intact", func() {
				bouts, err := s.ListBouts(ctx, repository.BoutFilter{})
				So(err, ShouldBeNil)
				So(bouts, ShouldHaveLength, 2)
				So(bouts[0].ID, ShouldEqual, second.ID)
				So(bouts[1].Timestamp.Equal(epoch), ShouldBeTrue)
				So(bouts[1].Notes, ShouldEqual, "close")
				So(bouts[1].SessionID, ShouldBeNil)
			})

			Convey("Then filters narrow the list", func() {
				byFencer, err := s.ListBouts(ctx, repository.BoutFilter{FencerID: a.ID})
				So(err, ShouldBeNil)
				So(byFencer, ShouldHaveLength, 1)

				since, err := s.ListBouts(ctx, repository.BoutFilter{Since: epoch.Add(30 * time.Minute)})
				So(err, ShouldBeNil)
				So(since, ShouldHaveLength, 1)
				So(since[0].ID, ShouldEqual, second.ID)
			})

			Convey("Then scores and notes can be edited", func() {
				got, err := s.UpdateBout(ctx, first.ID, model.BoutPatch{Score2: ptr(4), Notes: ptr("very close")})
				So(err, ShouldBeNil)
				So(got.Score1, ShouldEqual, 5)
				So(got.Score2, ShouldEqual, 4)
				So(got.Notes, ShouldEqual, "very close")

				_, err = s.UpdateBout(ctx, 9999, model.BoutPatch{Score1: ptr(1)})
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("Then a bout can be deleted once", func() {
				So(s.DeleteBout(ctx, first.ID), ShouldBeNil)
				err := s.DeleteBout(ctx, first.ID)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				_, err = s.GetBout(ctx, first.ID)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When a bout references an unknown fencer", func() {
			_, err := s.InsertBout(ctx, model.Bout{Fencer1ID: a.ID, Fencer2ID: 9999, Score1: 5, Timestamp: epoch})

			Convey("Then the reference is rejected", func() {
				So(errors.Is(err, repository.ErrReferenced), ShouldBeTrue)
			})
		})

		Convey("When a session is created", func() {
			sess, err := s.InsertSession(ctx, model.Session{ID: epoch.UnixMilli(), Name: "May 1", CreatedBy: "coach", CreatedAt: epoch})
			So(err, ShouldBeNil)
			So(sess.StudentCount, ShouldEqual, 0)
			So(sess.Temporary, ShouldBeFalse)

			Convey("Then members are counted and added idempotently", func() {
				So(s.AddMembers(ctx, sess.ID, []int64{a.ID, b.ID}), ShouldBeNil)
				So(s.AddMembers(ctx, sess.ID, []int64{b.ID}), ShouldBeNil)

				got, err := s.GetSession(ctx, sess.ID)
				So(err, ShouldBeNil)
				So(got.StudentCount, ShouldEqual, 2)

				members, err := s.ListMemberships(ctx, &sess.ID)
				So(err, ShouldBeNil)
				So(members, ShouldResemble, []model.Membership{
					{SessionID: sess.ID, FencerID: a.ID},
					{SessionID: sess.ID, FencerID: b.ID},
				})
			})

			Convey("Then sessions list newest first", func() {
				later, err := s.InsertSession(ctx, model.Session{ID: sess.ID + 1, Name: "later", CreatedBy: "coach", CreatedAt: epoch.Add(time.Hour)})
				So(err, ShouldBeNil)
				all, err := s.ListSessions(ctx)
				So(err, ShouldBeNil)
				So(all, ShouldHaveLength, 2)
				So(all[0].ID, ShouldEqual, later.ID)
				So(all[1].CreatedAt.Equal(epoch), ShouldBeTrue)
			})

			Convey("Then a duplicate id conflicts", func() {
				_, err := s.InsertSession(ctx, sess)
				So(errors.Is(err, repository.ErrConflict), ShouldBeTrue)
			})

			Convey("Then a session with bouts cannot be deleted", func() {
				_, err := s.InsertBout(ctx, model.Bout{Fencer1ID: a.ID, Fencer2ID: b.ID, Score1: 5, Timestamp: epoch, SessionID: &sess.ID})
				So(err, ShouldBeNil)

				err = s.DeleteSession(ctx, sess.ID)
				So(errors.Is(err, repository.ErrReferenced), ShouldBeTrue)

				inSession, err := s.ListBouts(ctx, repository.BoutFilter{SessionID: &sess.ID})
				So(err, ShouldBeNil)
				So(inSession, ShouldHaveLength, 1)
				So(*inSession[0].SessionID, ShouldEqual, sess.ID)
			})

			Convey("Then an empty session can be deleted", func() {
				So(s.DeleteSession(ctx, sess.ID), ShouldBeNil)
				_, err := s.GetSession(ctx, sess.ID)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When users are authorized", func() {
			expires := epoch.Add(48 * time.Hour)
			u, err := s.InsertUser(ctx, model.AuthorizedUser{Email: "Coach@Club.Example", IsAdmin: true, AddedBy: "root", CreatedAt: epoch, InviteTokenHash: "abc", InviteExpiresAt: &expires})
			So(err, ShouldBeNil)
			So(u.Email, ShouldEqual, "coach@club.example")
			_, err = s.InsertUser(ctx, model.AuthorizedUser{Email: "bob@club.example", CreatedAt: epoch.Add(time.Minute)})
			So(err, ShouldBeNil)

			Convey("Then emails are unique", func() {
				_, err := s.InsertUser(ctx, model.AuthorizedUser{Email: "coach@club.example"})
				So(errors.Is(err, repository.ErrConflict), ShouldBeTrue)
			})

			Convey("Then lookups by email and invite work", func() {
				got, err := s.GetUserByEmail(ctx, "COACH@club.example")
				So(err, ShouldBeNil)
				So(got.IsAdmin, ShouldBeTrue)
				So(got.InviteExpiresAt.Equal(expires), ShouldBeTrue)

				byInvite, err := s.GetUserByInviteHash(ctx, "abc")
				So(err, ShouldBeNil)
				So(byInvite.ID, ShouldEqual, u.ID)

				_, err = s.GetUserByInviteHash(ctx, "")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("Then updates persist", func() {
				u.FirstName, u.LastName = "Ana", "Lee"
				u.InviteTokenHash = ""
				u.InviteExpiresAt = nil
				u.PasswordHash = "hash"
				So(s.UpdateUser(ctx, u), ShouldBeNil)

				got, err := s.GetUserByEmail(ctx, u.Email)
				So(err, ShouldBeNil)
				So(got.DisplayName(), ShouldEqual, "Ana Lee")
				So(got.InviteExpiresAt, ShouldBeNil)
				So(got.PasswordHash, ShouldEqual, "hash")

				So(errors.Is(s.UpdateUser(ctx, model.AuthorizedUser{ID: 9999}), repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("Then users list newest first", func() {
				all, err := s.ListUsers(ctx)
				So(err, ShouldBeNil)
				So(all, ShouldHaveLength, 2)
				So(all[0].Email, ShouldEqual, "bob@club.example")
			})
		})

		Convey("When auth logs are appended", func() {
			for i := range 3 {
				_, err := s.InsertAuthLog(ctx, model.AuthLog{Action: model.ActionAddUser, TargetEmail: "x@club.example", PerformedBy: "coach", CreatedAt: epoch.Add(time.Duration(i) * time.Minute)})
				So(err, ShouldBeNil)
			}

			Convey("Then they list newest first with an optional limit", func() {
				all, err := s.ListAuthLogs(ctx, 0)
				So(err, ShouldBeNil)
				So(all, ShouldHaveLength, 3)
				So(all[0].CreatedAt.Equal(epoch.Add(2*time.Minute)), ShouldBeTrue)

				two, err := s.ListAuthLogs(ctx, 2)
				So(err, ShouldBeNil)
				So(two, ShouldHaveLength, 2)
			})
		})
	})
}

func TestMemStore(t *testing.T) {
	storeContract(t, "memory", func(*testing.T) repository.Store {
		return repository.NewMemStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	storeContract(t, "sqlite", func(t *testing.T) repository.Store {
		path := filepath.Join(t.TempDir(), "salle.db")
		s, err := repository.OpenSQLite(context.Background(), path, repository.WithPool(1, 1, time.Minute))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		return s
	})
}

func TestInstrumented(t *testing.T) {
	storeContract(t, "instrumented", func(*testing.T) repository.Store {
		return repository.Instrument(repository.NewMemStore(), time.Second)
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	Convey("Given the store factory", t, func() {
		Convey("When the driver is memory", func() {
			s, err := repository.Open(ctx, repository.DriverMemory, "")
			So(err, ShouldBeNil)
			So(s.Close(), ShouldBeNil)
		})

		Convey("When the driver is sqlite", func() {
			s, err := repository.Open(ctx, repository.DriverSQLite, filepath.Join(t.TempDir(), "open.db"))
			So(err, ShouldBeNil)
			So(s.Ping(ctx), ShouldBeNil)
			So(s.Close(), ShouldBeNil)
		})

		Convey("When the sqlite path is empty", func() {
			_, err := repository.Open(ctx, repository.DriverSQLite, " ")
			So(err, ShouldNotBeNil)
		})

		Convey("When the driver is unknown", func() {
			_, err := repository.Open(ctx, "mongo", "")
			So(errors.Is(err, repository.ErrUnknownDriver), ShouldBeTrue)
		})
	})

	Convey("Given a cancelled context", t, func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := repository.NewMemStore().ListFencers(cctx)
		So(errors.Is(err, context.Canceled), ShouldBeTrue)
	})
}
