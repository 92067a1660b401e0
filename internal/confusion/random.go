// Package confusion implements the text distortion rules: the pattern
// rewriter that answers questions with double negatives, the randomized
// English and Malayalam transforms, and the dispatcher that chooses between
// them.
//
// Every component is a pure function of its input plus an injected [Random]
// source. Rule tables and connector lists are built once by the caller and
// never mutated afterwards, so a single [Dispatcher] may be shared freely.
package confusion

import (
	"math/rand/v2"
	"sync"
)

// Random is the source of randomness used by all transforms.
type Random interface {
	// Float64 returns a uniform value in [0.0, 1.0).
	Float64() float64

	// IntN returns a uniform value in [0, n). n must be > 0.
	IntN(n int) int
}

// lockedRand is a [Random] backed by math/rand/v2 that is safe for concurrent use.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRandom returns a [Random] seeded with seed. A zero seed picks a random one.
func NewRandom(seed uint64) Random {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// chance reports whether a trial with probability p succeeds.
func chance(rnd Random, p float64) bool {
	return rnd.Float64() < p
}

// choose returns a uniformly chosen element of items. items must not be empty.
func choose[T any](rnd Random, items []T) T {
	return items[rnd.IntN(len(items))]
}

// shuffle permutes items in place (Fisher-Yates).
func shuffle[T any](rnd Random, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := rnd.IntN(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}
