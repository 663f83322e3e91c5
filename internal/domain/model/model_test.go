package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/salle/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestBout(t *testing.T) {
	convey.Convey("Given a bout between fencers 1 and 2", t, func() {
		b := model.Bout{ID: 10, Fencer1ID: 1, Fencer2ID: 2, Score1: 5, Score2: 3}

		convey.Convey("Then sides are resolved per fencer", func() {
			own, opp, oppID, ok := b.Side(2)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(own, convey.ShouldEqual, 3)
			convey.So(opp, convey.ShouldEqual, 5)
			convey.So(oppID, convey.ShouldEqual, 1)

			_, _, _, ok = b.Side(3)
			convey.So(ok, convey.ShouldBeFalse)
			convey.So(b.Involves(3), convey.ShouldBeFalse)
		})

		convey.Convey("Then outcomes follow the strictly greater score", func() {
			convey.So(b.OutcomeFor(1), convey.ShouldEqual, model.OutcomeWin)
			convey.So(b.OutcomeFor(2), convey.ShouldEqual, model.OutcomeLoss)
			id, ok := b.WinnerID()
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(id, convey.ShouldEqual, 1)
		})

		convey.Convey("When scores are equal", func() {
			b.Score2 = 5
			convey.So(b.OutcomeFor(1), convey.ShouldEqual, model.OutcomeDraw)
			_, ok := b.WinnerID()
			convey.So(ok, convey.ShouldBeFalse)
		})

		convey.Convey("When a patch is applied", func() {
			score := 4
			notes := "close"
			p := model.BoutPatch{Score2: &score, Notes: &notes}
			got := p.Apply(b)
			convey.So(got.Score1, convey.ShouldEqual, 5)
			convey.So(got.Score2, convey.ShouldEqual, 4)
			convey.So(got.Notes, convey.ShouldEqual, "close")
			convey.So(b.Score2, convey.ShouldEqual, 3)
			convey.So(p.Empty(), convey.ShouldBeFalse)
			convey.So(model.BoutPatch{}.Empty(), convey.ShouldBeTrue)
		})

		convey.Convey("Then session membership is checked by id", func() {
			convey.So(b.InSession(7), convey.ShouldBeFalse)
			sid := int64(7)
			b.SessionID = &sid
			convey.So(b.InSession(7), convey.ShouldBeTrue)
		})
	})
}

func TestFencer(t *testing.T) {
	convey.Convey("Given fencer input", t, func() {
		convey.Convey("Then levels parse case-insensitively", func() {
			l, err := model.ParseLevel(" advanced ")
			convey.So(err, convey.ShouldBeNil)
			convey.So(l, convey.ShouldEqual, model.LevelAdvanced)
			_, err = model.ParseLevel("expert")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("Then validation rejects missing fields", func() {
			convey.So(model.Fencer{Name: "A", Age: 20, Level: model.LevelBeginner}.Validate(), convey.ShouldBeNil)
			err := model.Fencer{Age: 20, Level: model.LevelBeginner}.Validate()
			convey.So(errors.Is(err, model.ErrValidation), convey.ShouldBeTrue)
			convey.So(model.Fencer{Name: "A", Level: model.LevelBeginner}.Validate(), convey.ShouldNotBeNil)
			convey.So(model.Fencer{Name: "A", Age: 20, Level: "Pro"}.Validate(), convey.ShouldNotBeNil)
		})

		convey.Convey("Then unknown ids render as Unknown Fencer", func() {
			idx := model.IndexFencers([]model.Fencer{{ID: 1, Name: "A"}})
			convey.So(idx.Name(1), convey.ShouldEqual, "A")
			convey.So(idx.Name(9), convey.ShouldEqual, model.UnknownFencerName)
		})
	})
}

func TestSessionAndUser(t *testing.T) {
	convey.Convey("Given a new session", t, func() {
		now := time.Date(2024, time.March, 5, 14, 7, 0, 0, time.UTC)
		s := model.NewSession(now, "coach")

		convey.So(s.ID, convey.ShouldEqual, now.UnixMilli())
		convey.So(s.Name, convey.ShouldEqual, "March 5, 2024 at 02:07 PM")
		convey.So(s.Temporary, convey.ShouldBeTrue)
		convey.So(s.CreatedBy, convey.ShouldEqual, "coach")
	})

	convey.Convey("Given an authorized user", t, func() {
		u := model.AuthorizedUser{Email: "coach@club.example"}
		convey.So(u.Registered(), convey.ShouldBeFalse)
		convey.So(u.DisplayName(), convey.ShouldEqual, "coach@club.example")
		u.FirstName, u.LastName = "Ana", "Lee"
		convey.So(u.DisplayName(), convey.ShouldEqual, "Ana Lee")
		convey.So(model.NormalizeEmail("  Coach@Club.Example "), convey.ShouldEqual, "coach@club.example")
	})
}

func TestErrors(t *testing.T) {
	convey.Convey("Given domain errors", t, func() {
		convey.Convey("Then validation kinds match ErrValidation", func() {
			var err error = &model.ValidationError{Field: "fencer2_id", Reason: model.MsgSameFencer}
			convey.So(errors.Is(err, model.ErrValidation), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldEqual, "fencer2_id: please select different fencers")
			convey.So(errors.Is(&model.NoActiveSessionError{}, model.ErrValidation), convey.ShouldBeTrue)
		})

		convey.Convey("Then remote errors concatenate the underlying message", func() {
			cause := errors.New("connection refused")
			err := model.Remote("insert bout", cause)
			convey.So(err.Error(), convey.ShouldEqual, "insert bout: connection refused")
			convey.So(errors.Is(err, cause), convey.ShouldBeTrue)
			convey.So(errors.Is(err, model.ErrValidation), convey.ShouldBeFalse)
			convey.So(model.Remote("outer", err), convey.ShouldEqual, err)
			convey.So(model.Remote("noop", nil), convey.ShouldBeNil)
		})
	})
}
