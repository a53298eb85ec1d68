package persona

import (
	"math/rand"
	"sync"
	"time"
)

// Rand is the randomness the engine branches on. Tests substitute a
// deterministic source to pin branch selection.
type Rand interface {
	// Float64 returns a value in [0,1).
	Float64() float64
	// Intn returns a value in [0,n). n > 0.
	Intn(n int) int
}

// lockedRand makes a *rand.Rand safe for use from the scheduler and
// request goroutines at once.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand returns a goroutine-safe Rand seeded from seed.
// A zero seed uses the current time.
func NewRand(seed int64) Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// chance reports whether a draw from r falls below p.
func chance(r Rand, p float64) bool {
	return r.Float64() < p
}

// pick returns a uniformly random element of items. items must be non-empty.
func pick[T any](r Rand, items []T) T {
	return items[r.Intn(len(items))]
}
