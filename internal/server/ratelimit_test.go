package server

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUserLimiterDisabled(t *testing.T) {
	l := newUserLimiter(0, 5)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("u1"))
	}
}

func TestUserLimiterPerUser(t *testing.T) {
	l := newUserLimiter(60, 2)
	now := time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("u1"))
	assert.True(t, l.Allow("u1"))
	assert.False(t, l.Allow("u1"))
	assert.True(t, l.Allow("u2"), "buckets are independent")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("u1"), "one token refills per second")
}

func TestUserLimiterEvictsIdleBuckets(t *testing.T) {
	l := newUserLimiter(60, 1)
	now := time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < minSweepAt; i++ {
		l.Allow(fmt.Sprintf("idle-%d", i))
	}
	assert.Equal(t, minSweepAt, l.Len())

	// Everyone refills; a new user triggers the sweep.
	now = now.Add(time.Minute)
	l.Allow("busy")
	assert.Equal(t, 1, l.Len())

	// A drained bucket survives a sweep.
	l.sweepAt = 1
	l.Allow("another")
	assert.Equal(t, 2, l.Len(), "busy and another are both still drained")
	assert.False(t, l.Allow("busy"))
}
