package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/fulbito/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1_024)
				convey.So(cfg.MaxCombinations, convey.ShouldEqual, 50_000)
				convey.So(cfg.TeamSizes, convey.ShouldResemble, []int{5, 6, 8, 11})
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("FULBITO_ADDR", ":8080")
			_ = os.Setenv("FULBITO_QUEUE_SIZE", "64")
			_ = os.Setenv("FULBITO_WORKER_COUNT", "2")
			_ = os.Setenv("FULBITO_MAX_COMBINATIONS", "1000")
			_ = os.Setenv("FULBITO_TEAM_SIZES", "2,5,7")
			_ = os.Setenv("FULBITO_TOP_N", "5")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 2)
				convey.So(cfg.MaxCombinations, convey.ShouldEqual, 1000)
				convey.So(cfg.TeamSizes, convey.ShouldResemble, []int{2, 5, 7})
				convey.So(cfg.TopN, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
queue_size: 300
worker_count: 24
team_sizes: [5, 11]
min_duo_games: 3
db_driver: pgx
db_dsn: postgres://fulbito@localhost/fulbito
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("FULBITO_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 300)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 24)
				convey.So(cfg.TeamSizes, convey.ShouldResemble, []int{5, 11})
				convey.So(cfg.MinDuoGames, convey.ShouldEqual, 3)
				convey.So(cfg.DBDriver, convey.ShouldEqual, "pgx")
				convey.So(cfg.TopN, convey.ShouldEqual, 3) // default
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
queue_size: 300
worker_count: 24
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("FULBITO_CONFIG", tmpFile)
			_ = os.Setenv("FULBITO_ADDR", ":8080")
			_ = os.Setenv("FULBITO_WORKER_COUNT", "32")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 300)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 32)
			})
		})

		convey.Convey("When a .env file is present", func() {
			envFile := createTempFile("fulbito-*.env", "FULBITO_TOP_N=4\nFULBITO_MIN_DUO_GAMES=2\n")
			defer func() { _ = os.Remove(envFile) }()

			_ = os.Setenv("FULBITO_ENV_FILE", envFile)
			_ = os.Setenv("FULBITO_TOP_N", "7") // already set, wins over the file
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then unset variables are taken from it", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.MinDuoGames, convey.ShouldEqual, 2)
				convey.So(cfg.TopN, convey.ShouldEqual, 7)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("FULBITO_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("FULBITO_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("FULBITO_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("FULBITO_QUEUE_SIZE", "invalid")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the team sizes env list holds an out of range size", func() {
			_ = os.Setenv("FULBITO_TEAM_SIZES", "5,40")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation rejects it", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"FULBITO_CONFIG",
		"FULBITO_ENV_FILE",
		"FULBITO_ADDR",
		"FULBITO_QUEUE_SIZE",
		"FULBITO_WORKER_COUNT",
		"FULBITO_MAX_COMBINATIONS",
		"FULBITO_TEAM_SIZES",
		"FULBITO_TOP_N",
		"FULBITO_MIN_DUO_GAMES",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	return createTempFile("fulbito-config-*.yaml", content)
}

func createTempFile(pattern, content string) string {
	tmpFile, err := os.CreateTemp("", pattern)
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
