package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// minSweepAt is the bucket count below which idle buckets are never swept.
const minSweepAt = 1024

// userLimiter keeps one token bucket per user. Buckets that have refilled
// completely are indistinguishable from new ones and get dropped once the
// map grows past sweepAt.
type userLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
	sweepAt  int
	now      func() time.Time
}

func newUserLimiter(perMinute float64, burst int) *userLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &userLimiter{
		limit:    rate.Limit(perMinute / 60),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
		sweepAt:  minSweepAt,
		now:      time.Now,
	}
}

// Allow reports whether userID may make a request now. A nil limiter
// allows everything.
func (l *userLimiter) Allow(userID string) bool {
	if l == nil {
		return true
	}
	now := l.now()

	l.mu.Lock()
	lim, ok := l.limiters[userID]
	if !ok {
		if len(l.limiters) >= l.sweepAt {
			l.sweep(now)
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[userID] = lim
	}
	l.mu.Unlock()
	return lim.AllowN(now, 1)
}

// sweep drops full buckets and resizes the threshold so sweeps stay
// amortized. Caller holds l.mu.
func (l *userLimiter) sweep(now time.Time) {
	for id, lim := range l.limiters {
		if lim.TokensAt(now) >= float64(l.burst) {
			delete(l.limiters, id)
		}
	}
	l.sweepAt = max(minSweepAt, 2*len(l.limiters))
}

// Len returns the number of live buckets.
func (l *userLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
