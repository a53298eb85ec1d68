package persona

import (
	"sync"
	"time"
)

// scriptedRand replays fixed draws. When a script runs out Float64 returns
// miss and Intn returns 0, so unscripted branches never fire.
type scriptedRand struct {
	mu     sync.Mutex
	floats []float64
	ints   []int
	miss   float64
}

func neverRand() *scriptedRand { return &scriptedRand{miss: 0.999} }

func alwaysRand() *scriptedRand { return &scriptedRand{miss: 0} }

func (s *scriptedRand) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.floats) == 0 {
		return s.miss
	}
	f := s.floats[0]
	s.floats = s.floats[1:]
	return f
}

func (s *scriptedRand) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ints) == 0 {
		return 0
	}
	i := s.ints[0]
	s.ints = s.ints[1:]
	return i % n
}

// noon is a fixed daytime instant so the night rule stays quiet.
var noon = time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)

func newTestEngine(r Rand, opts ...Option) *Engine {
	opts = append([]Option{WithRand(r), WithClock(func() time.Time { return noon })}, opts...)
	return New(DefaultConfig(), opts...)
}

func countKind(msgs []ProactiveMessage, kind string) int {
	n := 0
	for _, m := range msgs {
		if m.Kind == kind {
			n++
		}
	}
	return n
}
