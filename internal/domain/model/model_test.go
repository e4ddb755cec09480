package model_test

import (
	"math"
	"testing"
	"time"

	"github.com/okian/fulbito/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestPlayer(t *testing.T) {
	convey.Convey("Given a Player", t, func() {
		convey.Convey("When no rating is set", func() {
			p := model.Player{ID: 1, Name: "Tano"}

			convey.Convey("Then the rating is not valid", func() {
				convey.So(p.HasValidRating(), convey.ShouldBeFalse)
				convey.So(p.RatingValue(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When a finite rating is set", func() {
			p := model.Player{ID: 1, Name: "Tano"}.Rated(7.5)

			convey.Convey("Then it is valid and readable", func() {
				convey.So(p.HasValidRating(), convey.ShouldBeTrue)
				convey.So(p.RatingValue(), convey.ShouldEqual, 7.5)
			})
		})

		convey.Convey("When the rating is NaN or infinite", func() {
			convey.So(model.Player{}.Rated(math.NaN()).HasValidRating(), convey.ShouldBeFalse)
			convey.So(model.Player{}.Rated(math.Inf(1)).HasValidRating(), convey.ShouldBeFalse)
			convey.So(model.Player{}.Rated(math.Inf(-1)).HasValidRating(), convey.ShouldBeFalse)
		})

		convey.Convey("When Rated is applied to a copy", func() {
			base := model.Player{ID: 2}
			rated := base.Rated(3)

			convey.Convey("Then the original is untouched", func() {
				convey.So(base.Rating, convey.ShouldBeNil)
				convey.So(*rated.Rating, convey.ShouldEqual, 3)
			})
		})
	})
}

func TestMatch(t *testing.T) {
	convey.Convey("Given matches with different scores", t, func() {
		now := time.Now()

		convey.So(model.Match{PlayedAt: now, ScoreA: 3, ScoreB: 1}.Winner(), convey.ShouldEqual, model.SideA)
		convey.So(model.Match{PlayedAt: now, ScoreA: 0, ScoreB: 2}.Winner(), convey.ShouldEqual, model.SideB)
		convey.So(model.Match{PlayedAt: now, ScoreA: 2, ScoreB: 2}.Winner(), convey.ShouldEqual, model.Side(""))
	})

	convey.Convey("Given side strings", t, func() {
		s, err := model.ParseSide(" b ")
		convey.So(err, convey.ShouldBeNil)
		convey.So(s, convey.ShouldEqual, model.SideB)

		_, err = model.ParseSide("C")
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestJobStatus(t *testing.T) {
	convey.Convey("Given job statuses", t, func() {
		convey.So(model.JobPending.Terminal(), convey.ShouldBeFalse)
		convey.So(model.JobRunning.Terminal(), convey.ShouldBeFalse)
		convey.So(model.JobDone.Terminal(), convey.ShouldBeTrue)
		convey.So(model.JobFailed.Terminal(), convey.ShouldBeTrue)
		convey.So(model.JobCancelled.Terminal(), convey.ShouldBeTrue)
	})
}
