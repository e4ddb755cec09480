package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/okian/fulbito/internal/domain/balance"
	"github.com/okian/fulbito/internal/domain/model"
	"github.com/okian/fulbito/internal/domain/types"
	texttable "github.com/syohex/go-texttable"
)

// BalanceCmd balances a roster file without a server.
type BalanceCmd struct {
	Roster          string `long:"roster"           short:"r" required:"true"  description:"YAML or JSON roster file"`
	TeamSize        int    `long:"team-size"        short:"k"                  description:"players per team (default: team_size from the file, else half the roster)"`
	Top             int    `long:"top"              short:"n"                  description:"number of options to print (default: top_n from the file, else 3)"`
	MaxCombinations int    `long:"max-combinations" default:"50000"            description:"combination ceiling, 0 for unlimited"`
	TeamSizes       []int  `long:"team-sizes"       description:"accepted team sizes (repeatable)"`
	JSON            bool   `long:"json"             description:"print the result as JSON"`

	out io.Writer
}

type rosterPlayer struct {
	ID     int64    `koanf:"id"`
	Name   string   `koanf:"name"`
	Rating *float64 `koanf:"rating"`
}

type rosterFile struct {
	TeamSize int            `koanf:"team_size"`
	TopN     int            `koanf:"top_n"`
	Players  []rosterPlayer `koanf:"players"`
}

// Execute runs the command.
func (c *BalanceCmd) Execute([]string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return c.run(ctx)
}

func (c *BalanceCmd) run(ctx context.Context) error {
	out := c.out
	if out == nil {
		out = os.Stdout
	}

	rf, err := loadRoster(c.Roster)
	if err != nil {
		return err
	}
	roster := rf.players()

	teamSize := firstPositive(c.TeamSize, rf.TeamSize, len(roster)/2)
	topN := firstPositive(c.Top, rf.TopN, balance.DefaultTopN)

	opts := []balance.Option{balance.WithMaxCombinations(c.MaxCombinations)}
	if len(c.TeamSizes) > 0 {
		opts = append(opts, balance.WithTeamSizes(c.TeamSizes...))
	}
	res, err := balance.New(opts...).Balance(ctx, balance.Request{Roster: roster, TeamSize: teamSize, TopN: topN})
	if err != nil {
		return fmt.Errorf("balance: %w", err)
	}

	if c.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(types.FromResult(res))
	}
	_, err = io.WriteString(out, renderSplits(res))
	return err
}

// loadRoster reads a roster file. YAML is a superset of JSON so both
// formats go through the same parser.
func loadRoster(path string) (rosterFile, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return rosterFile{}, fmt.Errorf("load roster %s: %w", path, err)
	}
	var rf rosterFile
	if err := k.UnmarshalWithConf("", &rf, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return rosterFile{}, fmt.Errorf("parse roster %s: %w", path, err)
	}
	if len(rf.Players) == 0 {
		return rosterFile{}, fmt.Errorf("roster %s has no players", path)
	}
	return rf, nil
}

// players converts file entries, numbering players without an id by position.
func (rf rosterFile) players() []model.Player {
	out := make([]model.Player, len(rf.Players))
	for i, p := range rf.Players {
		id := p.ID
		if id == 0 {
			id = int64(i + 1)
		}
		name := p.Name
		if name == "" {
			name = "#" + strconv.FormatInt(id, 10)
		}
		out[i] = model.Player{ID: id, Name: name, Rating: p.Rating}
	}
	return out
}

func renderSplits(res balance.Result) string {
	tbl := &texttable.TextTable{}
	_ = tbl.SetHeader("#", "Team A", "Sum A", "Team B", "Sum B", "Diff")
	for i, s := range res.Splits {
		_ = tbl.AddRow(
			strconv.Itoa(i+1),
			names(s.TeamA),
			formatRating(s.SumA),
			names(s.TeamB),
			formatRating(s.SumB),
			formatRating(s.Diff),
		)
	}

	var b strings.Builder
	b.WriteString(tbl.Draw())
	b.WriteString("\n")
	fmt.Fprintf(&b, "examined %d combinations, %d unique splits\n", res.Examined, res.Unique)
	if res.Partial {
		b.WriteString("combination ceiling reached: results may be incomplete\n")
	}
	return b.String()
}

func names(team []model.Player) string {
	out := make([]string, len(team))
	for i, p := range team {
		out[i] = p.Name
	}
	return strings.Join(out, ", ")
}

func formatRating(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
