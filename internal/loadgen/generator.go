package loadgen

import (
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// categories are the tier labels players are spread over.
var categories = []string{"8va", "7ma", "6ta", "5ta", "4ta", "3ra", "2da", "1ra"}

// Generator builds players and match results from a seeded source.
type Generator struct {
	rng *rand.Rand
	ids *rand.Rand
}

// NewGenerator returns a generator; equal seeds produce equal output.
func NewGenerator(seed uint64) *Generator {
	return &Generator{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		ids: rand.New(rand.NewPCG(seed+1, seed)),
	}
}

// rngReader adapts a seeded source to io.Reader.
type rngReader struct{ r *rand.Rand }

func (r rngReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r.r.UintN(256))
	}
	return len(p), nil
}

// uuid returns a version 4 UUID drawn from the seeded id source.
func (g *Generator) uuid() string {
	id, err := uuid.NewRandomFromReader(rngReader{g.ids})
	if err != nil {
		// rngReader never fails
		return uuid.NewString()
	}
	return id.String()
}

// Players returns n players with random starting categories, mostly in the
// middle tiers.
func (g *Generator) Players(n int) []PlayerRequest {
	out := make([]PlayerRequest, n)
	for i := range out {
		// sum of two dice keeps the tails thin
		tier := (g.rng.IntN(len(categories)) + g.rng.IntN(len(categories))) / 2
		out[i] = PlayerRequest{
			ID:          "lg-" + g.uuid(),
			DisplayName: "Load Player " + strconv.Itoa(i+1),
			IsGhost:     g.rng.IntN(5) == 0,
			Category:    categories[tier],
		}
	}
	return out
}

// Matches returns n results between random foursomes of players, played one
// minute apart and ending at end. A share of dupRate repeats an earlier
// submission verbatim, key included.
func (g *Generator) Matches(players []PlayerRequest, n int, dupRate float64, end time.Time) []MatchRequest {
	out := make([]MatchRequest, 0, n)
	start := end.Add(-time.Duration(n) * time.Minute)
	for i := 0; i < n; i++ {
		if len(out) > 0 && g.rng.Float64() < dupRate {
			out = append(out, out[g.rng.IntN(len(out))])
			continue
		}
		pick := g.rng.Perm(len(players))[:4]
		winner := 1 + g.rng.IntN(2)
		out = append(out, MatchRequest{
			Key:        g.uuid(),
			PlayedAt:   start.Add(time.Duration(i) * time.Minute).UTC().Truncate(time.Second),
			Team1:      [2]string{players[pick[0]].ID, players[pick[1]].ID},
			Team2:      [2]string{players[pick[2]].ID, players[pick[3]].ID},
			Sets:       g.sets(winner),
			WinnerTeam: winner,
		})
	}
	return out
}

// sets returns a best-of-three score won by winner.
func (g *Generator) sets(winner int) []SetScore {
	won := func() SetScore {
		if g.rng.IntN(6) == 0 {
			return SetScore{Team1: 7, Team2: 6, Tiebreak: true}
		}
		return SetScore{Team1: 6, Team2: g.rng.IntN(5)}
	}
	lost := func() SetScore {
		s := won()
		s.Team1, s.Team2 = s.Team2, s.Team1
		return s
	}

	sets := []SetScore{won(), won()}
	if g.rng.IntN(3) == 0 {
		sets = []SetScore{won(), lost(), won()}
	}
	if winner == 2 {
		for i := range sets {
			sets[i].Team1, sets[i].Team2 = sets[i].Team2, sets[i].Team1
		}
	}
	return sets
}
