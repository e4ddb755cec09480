package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/okian/fulbito/internal/loadgen"
	texttable "github.com/syohex/go-texttable"
)

const defaultTestTimeout = 10 * time.Minute

// LoadTestCmd drives a running server with random rosters.
type LoadTestCmd struct {
	URL         string        `long:"url"          env:"FULBITO_URL" default:"http://localhost:9080" description:"base URL of the service"`
	Requests    int           `long:"requests"     default:"200"                                   description:"number of balance jobs"`
	Workers     int           `long:"workers"                                                      description:"concurrent clients (default: NumCPU)"`
	TeamSizes   []int         `long:"team-size"                                                    description:"team sizes to draw from (repeatable, default 5)"`
	Top         int           `long:"top"          default:"3"                                     description:"options requested per job"`
	Timeout     time.Duration `long:"timeout"      default:"30s"                                   description:"HTTP request timeout"`
	Deadline    time.Duration `long:"deadline"     default:"10m"                                   description:"overall test deadline"`
	SaveMatches bool          `long:"save-matches"                                                 description:"store each best split as a match and replay it"`
	Output      string        `long:"output"                                                       description:"write generated requests to this JSON file"`
	Seed        uint64        `long:"seed"                                                         description:"generator seed (default: clock)"`
	Verbose     bool          `long:"verbose"      short:"v"                                       description:"log every verified job"`

	out io.Writer
}

// Execute runs the command.
func (c *LoadTestCmd) Execute([]string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deadline := c.Deadline
	if deadline <= 0 {
		deadline = defaultTestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	stats, err := loadgen.Run(ctx, &loadgen.Config{
		BaseURL:     c.URL,
		Requests:    c.Requests,
		Workers:     workers,
		TeamSizes:   c.TeamSizes,
		TopN:        c.Top,
		Timeout:     c.Timeout,
		SaveMatches: c.SaveMatches,
		OutputFile:  c.Output,
		Seed:        c.Seed,
		Verbose:     c.Verbose,
	})
	if stats != nil {
		out := c.out
		if out == nil {
			out = os.Stdout
		}
		_, _ = io.WriteString(out, renderStats(stats))
	}
	return err
}

func renderStats(s *loadgen.Stats) string {
	tbl := &texttable.TextTable{}
	_ = tbl.SetHeader("Metric", "Value")
	rows := []struct {
		name  string
		value int
	}{
		{"generated", s.Generated},
		{"submitted", s.Submitted},
		{"rejected (429)", s.Rejected},
		{"failed", s.Failed},
		{"completed", s.Completed},
		{"partial", s.Partial},
		{"verified", s.Verified},
		{"violations", s.Violations},
		{"matches saved", s.MatchesSent},
		{"replays deduplicated", s.Duplicates},
	}
	for _, r := range rows {
		_ = tbl.AddRow(r.name, strconv.Itoa(r.value))
	}
	_ = tbl.AddRow("duration", s.Duration.Round(time.Millisecond).String())
	return fmt.Sprintf("%s\n", tbl.Draw())
}
