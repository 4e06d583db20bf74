package exam

import (
	"math/rand/v2"
	"time"
)

// RandomSource supplies uniform indices in [0, bound).
type RandomSource interface {
	NextIndex(bound int) int
}

type randSource struct {
	r *rand.Rand
}

func (s *randSource) NextIndex(bound int) int {
	return s.r.IntN(bound)
}

// NewRandomSource returns a source seeded from the clock.
func NewRandomSource() RandomSource {
	seed := uint64(time.Now().UnixNano())
	return NewSeededSource(seed)
}

// NewSeededSource returns a deterministic source; equal seeds yield equal
// sequences.
func NewSeededSource(seed uint64) RandomSource {
	return &randSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// pick draws n distinct questions from bank in random order using a partial
// Fisher-Yates shuffle over a copy of the bank.
func pick(bank Bank, n int, rnd RandomSource) []Question {
	pool := make([]Question, len(bank))
	copy(pool, bank)

	for i := 0; i < n; i++ {
		j := i + rnd.NextIndex(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}

	out := make([]Question, n)
	copy(out, pool[:n])
	for i := range out {
		out[i].Options = append([]string(nil), out[i].Options...)
	}
	return out
}
