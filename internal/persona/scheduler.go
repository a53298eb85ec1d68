package persona

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/lazypower/companion/internal/metrics"
)

// SweepReport counts what one sweep did.
type SweepReport struct {
	Users     int
	FollowUps int
	Vanished  int
	Recalls   int
	Pruned    int
}

// Sweep runs one engagement pass over every known user. Each user is
// checked and updated under its own lock; no lock is held across users.
func (e *Engine) Sweep(now time.Time) SweepReport {
	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	var rep SweepReport
	cutoff := now.Add(-e.cfg.Retention)
	for _, id := range e.users.IDs() {
		u := e.users.Lookup(id)
		if u == nil {
			continue
		}
		rep.Users++

		u.mu.Lock()
		queued, pruned := e.sweepUser(u, now, cutoff)
		u.mu.Unlock()

		rep.Pruned += pruned
		for _, m := range queued {
			switch m.Kind {
			case KindFollowUp:
				rep.FollowUps++
			case KindVanish:
				rep.Vanished++
			case KindRecall:
				rep.Recalls++
			}
		}
		e.notify(id, queued)
	}

	if rep.Pruned > 0 {
		metrics.MemoriesPruned.Add(float64(rep.Pruned))
	}
	if rep.FollowUps+rep.Vanished+rep.Recalls+rep.Pruned > 0 {
		e.markDirty()
	}
	return rep
}

// sweepUser performs the per-user checks. Each check queues at most one
// message. Caller holds u.mu.
func (e *Engine) sweepUser(u *UserState, now, cutoff time.Time) ([]ProactiveMessage, int) {
	var queued []ProactiveMessage
	enqueue := func(m ProactiveMessage) {
		m.CreatedAt = now
		u.enqueue(m)
		queued = append(queued, m)
	}

	// Plan follow-up: the earliest due event; later ones wait for the next tick.
	if i := earliestDue(u.planned, now); i >= 0 {
		ev := u.planned[i]
		u.planned = append(u.planned[:i:i], u.planned[i+1:]...)
		enqueue(ProactiveMessage{Text: followUpText(ev.Description), Kind: KindFollowUp, Mood: u.Mood})
		u.increaseBond(DefaultBondIncrease)
	}

	// Vanish detection fires once per absence episode.
	if !u.Vanished && now.Sub(u.LastActiveAt) > e.cfg.VanishThreshold {
		u.Vanished = true
		u.Mood = MoodMissing
		u.decreaseBond(1)
		enqueue(ProactiveMessage{Text: vanishText, Kind: KindVanish, Mood: u.Mood})
	}

	if chance(e.rng, e.cfg.RecallProb) {
		if mem := u.memories.PickForRecall(e.rng, e.cfg.RecallDurableBias); mem != nil {
			enqueue(ProactiveMessage{Text: recallText(mem.Text), Kind: KindRecall, Mood: u.Mood, MemoryID: mem.ID})
		}
	}

	return queued, u.memories.Prune(cutoff)
}

func earliestDue(events []PlannedEvent, now time.Time) int {
	idx := -1
	for i, ev := range events {
		if ev.DueAt.After(now) {
			continue
		}
		if idx < 0 || ev.DueAt.Before(events[idx].DueAt) {
			idx = i
		}
	}
	return idx
}

// Scheduler drives periodic jobs on a cron runner. Overlapping runs of the
// same job are skipped and panics are recovered and logged.
type Scheduler struct {
	cron   *cron.Cron
	engine *Engine
}

// NewScheduler creates a scheduler that sweeps e every interval.
func NewScheduler(e *Engine, interval time.Duration) (*Scheduler, error) {
	logger := cron.PrintfLogger(&log.Logger)
	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		)),
		engine: e,
	}
	err := s.Every(interval, "sweep", func() {
		rep := e.Sweep(e.now())
		log.Debug().
			Int("users", rep.Users).
			Int("follow_ups", rep.FollowUps).
			Int("vanished", rep.Vanished).
			Int("recalls", rep.Recalls).
			Int("pruned", rep.Pruned).
			Msg("engagement sweep")
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Every schedules fn to run every interval.
func (s *Scheduler) Every(interval time.Duration, name string, fn func()) error {
	if interval < time.Second {
		return fmt.Errorf("schedule %s: interval %s is below one second", name, interval)
	}
	if _, err := s.cron.AddFunc("@every "+interval.String(), fn); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
