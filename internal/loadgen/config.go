// Package loadgen drives a running fulbito API with random rosters and
// checks every returned split against the balancing invariants.
package loadgen

import (
	"errors"
	"time"
)

// Default load test settings.
const (
	DefaultRequests     = 200
	DefaultTopN         = 3
	DefaultTimeout      = 30 * time.Second
	DefaultPollInterval = 20 * time.Millisecond
	DefaultRatingScale  = 10.0
)

// Sentinel errors.
var (
	ErrUnhealthy    = errors.New("service unhealthy")
	ErrVerification = errors.New("result verification failed")
	ErrUnexpected   = errors.New("unexpected response")
)

// Config holds configuration for a load test run.
type Config struct {
	BaseURL      string        // Base URL of the service
	Requests     int           // Number of balance jobs to submit
	Workers      int           // Number of concurrent clients
	TeamSizes    []int         // Team sizes drawn at random per roster
	TopN         int           // Options requested per job
	Timeout      time.Duration // HTTP request timeout
	PollInterval time.Duration // Delay between job status polls
	SaveMatches  bool          // Store each best split as a match, replaying it once
	OutputFile   string        // Optional JSON dump of generated requests
	Seed         uint64        // Generator seed; zero picks one from the clock
	Verbose      bool          // Log every job outcome
}

// Stats holds run statistics.
type Stats struct {
	Generated   int
	Submitted   int
	Rejected    int // 429 backpressure
	Failed      int
	Completed   int
	Partial     int
	Verified    int
	Violations  int
	MatchesSent int
	Duplicates  int
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Requests <= 0 {
		out.Requests = DefaultRequests
	}
	if out.Workers <= 0 {
		out.Workers = 1
	}
	if len(out.TeamSizes) == 0 {
		out.TeamSizes = []int{5}
	}
	if out.TopN <= 0 {
		out.TopN = DefaultTopN
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.PollInterval <= 0 {
		out.PollInterval = DefaultPollInterval
	}
	if out.Seed == 0 {
		out.Seed = uint64(time.Now().UnixNano())
	}
	return out
}
