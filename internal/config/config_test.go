package config_test

import (
	"errors"
	"runtime"
	"testing"

	"github.com/okian/fulbito/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1_024)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.MaxCombinations, convey.ShouldEqual, 50_000)
			convey.So(cfg.TeamSizes, convey.ShouldResemble, []int{5, 6, 8, 11})
			convey.So(cfg.TopN, convey.ShouldEqual, 3)
			convey.So(cfg.MinDuoGames, convey.ShouldEqual, 5)
			convey.So(cfg.DBDriver, convey.ShouldEqual, "sqlite")
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a config with defaults", t, func() {
		cfg := config.New()

		convey.Convey("When top_n is zero", func() {
			cfg.TopN = 0
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "top_n")
		})

		convey.Convey("When team_sizes is empty", func() {
			cfg.TeamSizes = nil
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When a team size cannot fit a 64-player mask", func() {
			cfg.TeamSizes = []int{5, 33}
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(err.Error(), convey.ShouldContainSubstring, "33")
		})

		convey.Convey("When the db driver is unknown", func() {
			cfg.DBDriver = "mysql"
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When the ceiling is disabled", func() {
			cfg.MaxCombinations = 0
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
