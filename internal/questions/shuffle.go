package questions

import (
	"math/rand/v2"
	"sync"
)

// Shuffler supplies the random indices for Shuffle. *rand.Rand satisfies it.
type Shuffler interface {
	IntN(n int) int
}

type defaultShuffler struct{}

func (defaultShuffler) IntN(n int) int { return rand.IntN(n) }

// lockedRand serializes access to a *rand.Rand, which is not safe for
// concurrent use.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// WithRand makes the generator draw its randomness from r, typically a
// seeded source in tests.
func WithRand(r *rand.Rand) Option {
	return WithShuffler(&lockedRand{r: r})
}

// Shuffle returns a uniformly random permutation of xs using Fisher–Yates.
// xs is not modified. A nil s uses the global source.
func Shuffle[T any](s Shuffler, xs []T) []T {
	if s == nil {
		s = defaultShuffler{}
	}
	out := make([]T, len(xs))
	copy(out, xs)
	for i := len(out) - 1; i > 0; i-- {
		j := s.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
