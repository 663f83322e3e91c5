package recording

import (
	"math/rand/v2"
	"time"

	"github.com/okian/salle/internal/domain/model"
)

var simulatedNotes = []string{ //nolint:gochecknoglobals // fixed templates
	"Great footwork",
	"Excellent defense",
	"Strong attacks",
	"Close match",
	"Good technique",
	"Needs work on parries",
	"Impressive speed",
	"Solid performance",
}

// Simulator produces random but valid candidates.
type Simulator struct {
	rules Rules
	rng   *rand.Rand
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithSeed makes the simulator deterministic.
func WithSeed(seed uint64) SimulatorOption {
	return func(s *Simulator) { s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// NewSimulator builds a Simulator for the given rules.
func NewSimulator(r Rules, opts ...SimulatorOption) *Simulator {
	s := &Simulator{rules: r}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// Simulate picks two distinct eligible fencers and a plausible score line.
// The result must still go through Validator.Draft. Not safe for concurrent use.
func (s *Simulator) Simulate(eligible []model.Fencer, now time.Time) (Candidate, error) {
	if len(eligible) < 2 {
		return Candidate{}, ErrNotEnoughFencers
	}
	i := s.rng.IntN(len(eligible))
	j := s.rng.IntN(len(eligible) - 1)
	if j >= i {
		j++
	}

	lo := min(s.rules.WinningScore, s.rules.ScoreMax)
	lo = max(lo, s.rules.ScoreMin+1)
	winner := lo + s.rng.IntN(s.rules.ScoreMax-lo+1)
	loser := s.rules.ScoreMin + s.rng.IntN(winner-s.rules.ScoreMin)

	c := Candidate{
		Fencer1ID: eligible[i].ID,
		Fencer2ID: eligible[j].ID,
		Score1:    winner,
		Score2:    loser,
		Notes:     simulatedNotes[s.rng.IntN(len(simulatedNotes))],
		Timestamp: now,
	}
	if s.rng.IntN(2) == 1 {
		c.Score1, c.Score2 = c.Score2, c.Score1
	}
	return c, nil
}
