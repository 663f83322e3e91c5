// Package roster generates demo fencers.
package roster

import (
	"math/rand/v2"

	"github.com/okian/salle/internal/domain/model"
)

// DefaultCount is how many fencers Generate creates when asked for none.
const DefaultCount = 10

const (
	minAge = 15
	maxAge = 29
)

//nolint:gochecknoglobals // fixed name pools
var (
	firstNames = []string{"Alex", "Jordan", "Taylor", "Morgan", "Casey", "Riley", "Sam", "Drew", "Avery", "Quinn"}
	lastNames  = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis", "Rodriguez", "Martinez"}
	clubs      = []string{"Salle Green", "Blue Blades", "Red Fencers", "Gold Club", "Silver Academy"}
)

// Generator builds random fencers.
type Generator struct {
	rng *rand.Rand
}

// New returns a Generator. A zero seed draws a random one.
func New(seed uint64) *Generator {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Generator{rng: rand.New(rand.NewPCG(seed, ^seed))}
}

// Generate returns n unsaved fencers (ids are zero). n <= 0 means DefaultCount.
func (g *Generator) Generate(n int) []model.Fencer {
	if n <= 0 {
		n = DefaultCount
	}
	out := make([]model.Fencer, n)
	for i := range out {
		out[i] = model.Fencer{
			Name:  firstNames[g.rng.IntN(len(firstNames))] + " " + lastNames[g.rng.IntN(len(lastNames))],
			Age:   minAge + g.rng.IntN(maxAge-minAge+1),
			Level: model.Levels[g.rng.IntN(len(model.Levels))],
			Club:  clubs[g.rng.IntN(len(clubs))],
		}
	}
	return out
}
