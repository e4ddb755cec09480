package loadgen

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/okian/fulbito/internal/domain/types"
)

// Generator produces random players and rosters from a seeded source.
// It is not safe for concurrent use.
type Generator struct {
	rng    *rand.Rand
	nextID int64
}

// NewGenerator creates a generator; equal seeds yield equal output.
func NewGenerator(seed uint64) *Generator {
	return &Generator{
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		nextID: 1,
	}
}

// Rating returns a rating in (0, DefaultRatingScale] with one decimal.
func (g *Generator) Rating() float64 {
	r := math.Round((0.1+g.rng.Float64()*(DefaultRatingScale-0.1))*10) / 10
	return min(r, DefaultRatingScale)
}

// Player returns a new rated player with a fresh ID.
func (g *Generator) Player() types.Player {
	id := g.nextID
	g.nextID++
	r := g.Rating()
	return types.Player{ID: id, Name: fmt.Sprintf("player-%d", id), Rating: &r}
}

// Request builds a balance request for a random team size. Players come
// from pool when it is large enough, otherwise they are generated.
func (g *Generator) Request(teamSizes []int, topN int, pool []types.Player) types.BalanceRequest {
	k := teamSizes[g.rng.IntN(len(teamSizes))]
	n := 2 * k

	var players []types.Player
	if len(pool) >= n {
		players = make([]types.Player, n)
		for i, j := range g.rng.Perm(len(pool))[:n] {
			players[i] = pool[j]
		}
	} else {
		players = make([]types.Player, n)
		for i := range players {
			players[i] = g.Player()
		}
	}
	return types.BalanceRequest{Players: players, TeamSize: k, TopN: topN}
}

// Score returns a plausible final score for a saved match.
func (g *Generator) Score() (a, b int) {
	return g.rng.IntN(8), g.rng.IntN(8)
}
