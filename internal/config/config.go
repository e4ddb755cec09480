// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config holding every default.
// - Load(ctx) layers file, .env and environment values on top of New().
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"slices"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory balance job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of balance workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the idempotency key cache for match saves.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxCombinations caps the combinations enumerated per balance run.
	// Zero or negative disables the ceiling.
	MaxCombinations int `koanf:"max_combinations"`

	// TeamSizes lists the supported players-per-team values.
	TeamSizes []int `koanf:"team_sizes"`

	// TopN is the number of options returned when a request omits it.
	TopN int `koanf:"top_n"`

	// JobTTLSeconds is how long finished balance jobs remain retrievable.
	JobTTLSeconds int `koanf:"job_ttl_seconds"`

	// MinDuoGames is the default games-together threshold for duo stats.
	MinDuoGames int `koanf:"min_duo_games"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// DBDriver is "sqlite" or "pgx"; DBDSN is passed to sqlx.Open.
	DBDriver string `koanf:"db_driver"`
	DBDSN    string `koanf:"db_dsn"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		QueueSize:           1_024,
		WorkerCount:         runtime.NumCPU(),
		DedupeSize:          10_000,
		MaxCombinations:     50_000,
		TeamSizes:           []int{5, 6, 8, 11},
		TopN:                3,
		JobTTLSeconds:       600,
		MinDuoGames:         5,
		MaxLeaderboardLimit: 100,
		DBDriver:            "sqlite",
		DBDSN:               "file:fulbito.db?_pragma=foreign_keys(1)",
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.TopN < 1:
		return fmt.Errorf("%w: top_n must be >= 1", ErrInvalidConfig)
	case len(c.TeamSizes) == 0:
		return fmt.Errorf("%w: team_sizes must not be empty", ErrInvalidConfig)
	case !slices.Contains([]string{"sqlite", "pgx"}, c.DBDriver):
		return fmt.Errorf("%w: unsupported db_driver %q", ErrInvalidConfig, c.DBDriver)
	}
	for _, k := range c.TeamSizes {
		// a 64-bit membership mask holds at most 2*32 players
		if k < 1 || k > 32 {
			return fmt.Errorf("%w: team size %d out of range 1..32", ErrInvalidConfig, k)
		}
	}
	return nil
}
