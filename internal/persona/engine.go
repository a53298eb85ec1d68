package persona

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lazypower/companion/internal/metrics"
)

var (
	ErrEmptyUser = errors.New("userId is required")
	ErrEmptyText = errors.New("text is required")
	ErrTooLong   = errors.New("text is too long")
)

// MaxTextLen bounds a single message or memory, in bytes.
const MaxTextLen = 4000

// Validate checks the inputs every message-bearing operation needs.
func Validate(userID, text string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrEmptyUser
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if len(text) > MaxTextLen {
		return ErrTooLong
	}
	return nil
}

// EnqueueHook observes proactive messages as they are queued. It is called
// after the owning user's lock is released and must not block.
type EnqueueHook func(userID string, msgs []ProactiveMessage)

// Engine is the memory and engagement core. It performs no network I/O;
// transports call into it and drain its outbound queues.
type Engine struct {
	cfg   Config
	rng   Rand
	now   func() time.Time
	users *Registry
	moods *MoodClassifier
	hook  EnqueueHook
	dirty atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source branches draw from.
func WithRand(r Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithClock sets the clock used when an operation has no explicit time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithEnqueueHook registers fn to observe queued proactive messages.
func WithEnqueueHook(fn EnqueueHook) Option {
	return func(e *Engine) { e.hook = fn }
}

// New creates an engine. Zero fields of cfg take their defaults.
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:   cfg.withDefaults(),
		rng:   NewRand(0),
		now:   time.Now,
		users: NewRegistry(),
	}
	for _, o := range opts {
		o(e)
	}
	e.moods = NewMoodClassifier(e.cfg, e.rng)
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Users exposes the registry for iteration.
func (e *Engine) Users() *Registry { return e.users }

func (e *Engine) markDirty() { e.dirty.Store(true) }

// TakeDirty reports whether state changed since the last call and resets
// the flag.
func (e *Engine) TakeDirty() bool { return e.dirty.Swap(false) }

// MarkDirty flags state for the next flush, e.g. after a failed save.
func (e *Engine) MarkDirty() { e.markDirty() }

// notify forwards msgs to the hook, if any. Caller must not hold a user lock.
func (e *Engine) notify(userID string, msgs []ProactiveMessage) {
	if len(msgs) == 0 {
		return
	}
	for _, m := range msgs {
		metrics.ProactiveEnqueued.WithLabelValues(m.Kind).Inc()
	}
	if e.hook != nil {
		e.hook(userID, msgs)
	}
}

// withUser runs fn under userID's lock, creating the user if needed.
func (e *Engine) withUser(userID string, fn func(u *UserState)) {
	u := e.users.Get(userID, e.now())
	metrics.KnownUsers.Set(float64(e.users.Len()))
	u.mu.Lock()
	defer u.mu.Unlock()
	fn(u)
}

// recordSmart stores text as a memory, promoting it straight to durable if
// it is emotionally strong, repeated, or wins the random draw. The repeat
// count is taken before the new memory is stored. Text already held as
// durable stays durable-only. Caller holds u.mu.
func (e *Engine) recordSmart(u *UserState, text string, score float64, mood Mood, now time.Time) (Memory, bool) {
	mem := NewMemory(u.ID, text, score, mood, now)
	repeats := u.memories.RepeatCount(text)
	promote := score >= e.cfg.StrongSalience ||
		repeats >= e.cfg.RepeatThreshold ||
		u.memories.hasDurable(normalizeText(text)) ||
		chance(e.rng, e.cfg.RandomPromoteProb)

	if promote {
		if u.memories.Promote(mem) {
			metrics.MemoriesRecorded.WithLabelValues("durable").Inc()
		}
		return mem, true
	}
	u.memories.AddEphemeral(mem)
	metrics.MemoriesRecorded.WithLabelValues("ephemeral").Inc()
	return mem, false
}

// RecordSmart records text for userID and reports whether it went durable.
func (e *Engine) RecordSmart(userID, text string, score float64, mood Mood) (mem Memory, durable bool) {
	e.withUser(userID, func(u *UserState) {
		mem, durable = e.recordSmart(u, text, score, mood, e.now())
	})
	e.markDirty()
	return mem, durable
}

// Promote moves an ephemeral memory to durable. It reports false if no
// ephemeral memory with memoryID exists.
func (e *Engine) Promote(userID, memoryID string) (Memory, bool) {
	var (
		mem   Memory
		found bool
	)
	e.withUser(userID, func(u *UserState) {
		mem, found = u.memories.FindEphemeral(memoryID)
		if found {
			u.memories.Promote(mem)
		}
	})
	if found {
		e.markDirty()
	}
	return mem, found
}

// ForceRemember stores text directly as durable, scored like any message.
func (e *Engine) ForceRemember(userID, text string) Memory {
	var mem Memory
	e.withUser(userID, func(u *UserState) {
		mem = NewMemory(userID, text, EmotionScore(text), u.Mood, e.now())
		if u.memories.Promote(mem) {
			metrics.MemoriesRecorded.WithLabelValues("durable").Inc()
		}
	})
	e.markDirty()
	return mem
}

// DeleteMemory removes a memory from either collection. Unknown IDs are a
// no-op reported as false.
func (e *Engine) DeleteMemory(userID, memoryID string) bool {
	u := e.users.Lookup(userID)
	if u == nil {
		return false
	}
	u.mu.Lock()
	removed := u.memories.Delete(memoryID)
	u.mu.Unlock()
	if removed {
		e.markDirty()
	}
	return removed
}

// Prune drops ephemeral memories older than retention across all users.
// A non-positive retention uses the configured default.
func (e *Engine) Prune(now time.Time, retention time.Duration) int {
	if retention <= 0 {
		retention = e.cfg.Retention
	}
	cutoff := now.Add(-retention)
	total := 0
	for _, id := range e.users.IDs() {
		u := e.users.Lookup(id)
		if u == nil {
			continue
		}
		u.mu.Lock()
		total += u.memories.Prune(cutoff)
		u.mu.Unlock()
	}
	if total > 0 {
		metrics.MemoriesPruned.Add(float64(total))
		e.markDirty()
	}
	return total
}

// PickForRecall chooses a memory to bring up, or nil if the user has none.
func (e *Engine) PickForRecall(userID string) *Memory {
	u := e.users.Lookup(userID)
	if u == nil {
		return nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.memories.PickForRecall(e.rng, e.cfg.RecallDurableBias)
}

// RelevantRecent returns up to limit memories for reply context.
func (e *Engine) RelevantRecent(userID string, limit int) []Memory {
	u := e.users.Lookup(userID)
	if u == nil {
		return []Memory{}
	}
	if limit <= 0 {
		limit = e.cfg.RelevantLimit
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.memories.RelevantRecent(limit)
}

// MemoryList is a user's memories split by collection.
type MemoryList struct {
	Durable   []Memory `json:"durable"`
	Ephemeral []Memory `json:"ephemeral"`
}

// ListMemories returns copies of both collections.
func (e *Engine) ListMemories(userID string) MemoryList {
	u := e.users.Lookup(userID)
	if u == nil {
		return MemoryList{Durable: []Memory{}, Ephemeral: []Memory{}}
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return MemoryList{
		Durable:   nonNil(u.memories.Durable()),
		Ephemeral: nonNil(u.memories.Ephemeral()),
	}
}

// Poll drains the user's proactive queue. Each message is returned by
// exactly one Poll.
func (e *Engine) Poll(userID string) []ProactiveMessage {
	u := e.users.Lookup(userID)
	if u == nil {
		return []ProactiveMessage{}
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.drain()
}

// AppendReply records the persona's reply in short-term history.
func (e *Engine) AppendReply(userID, text string) {
	e.withUser(userID, func(u *UserState) {
		u.pushHistory(Turn{Role: RoleAssistant, Content: text}, e.cfg.ShortTermMax)
	})
}

// History returns a copy of the short-term history, oldest first.
func (e *Engine) History(userID string) []Turn {
	u := e.users.Lookup(userID)
	if u == nil {
		return []Turn{}
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]Turn{}, u.history...)
}

// Planned returns the user's pending planned events.
func (e *Engine) Planned(userID string) []PlannedEvent {
	u := e.users.Lookup(userID)
	if u == nil {
		return []PlannedEvent{}
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]PlannedEvent{}, u.planned...)
}

// DayLog returns the user's recent day-log entries, oldest first.
func (e *Engine) DayLog(userID string) []DayLogEntry {
	u := e.users.Lookup(userID)
	if u == nil {
		return []DayLogEntry{}
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]DayLogEntry{}, u.dayLog...)
}

// Status returns a snapshot of the user's state, creating the user if
// needed.
func (e *Engine) Status(userID string) Status {
	var st Status
	e.withUser(userID, func(u *UserState) { st = u.status() })
	return st
}

// Settings returns the user's settings, creating the user if needed.
func (e *Engine) Settings(userID string) Settings {
	var s Settings
	e.withUser(userID, func(u *UserState) { s = copySettings(u.Settings) })
	return s
}

// SettingsPatch is a partial settings update; nil fields are left alone.
type SettingsPatch struct {
	Personality *PersonalityPatch `json:"personality,omitempty"`
	OptIn       *OptInPatch       `json:"opt_in,omitempty"`
	SpecialDays []string          `json:"special_days,omitempty"`
}

// PersonalityPatch updates individual sliders.
type PersonalityPatch struct {
	Playfulness *float64 `json:"playfulness,omitempty"`
	Romantic    *float64 `json:"romantic,omitempty"`
	Talkative   *float64 `json:"talkative,omitempty"`
	Caring      *float64 `json:"caring,omitempty"`
}

// OptInPatch updates individual switches.
type OptInPatch struct {
	Proactive *bool `json:"proactive,omitempty"`
	Voice     *bool `json:"voice,omitempty"`
}

// UpdateSettings merges p into the user's settings and returns the result.
// Slider values are clamped to [0,1].
func (e *Engine) UpdateSettings(userID string, p SettingsPatch) Settings {
	var s Settings
	e.withUser(userID, func(u *UserState) {
		u.Settings = mergeSettings(u.Settings, p)
		s = copySettings(u.Settings)
	})
	e.markDirty()
	return s
}

func mergeSettings(s Settings, p SettingsPatch) Settings {
	if pp := p.Personality; pp != nil {
		setIf(&s.Personality.Playfulness, pp.Playfulness)
		setIf(&s.Personality.Romantic, pp.Romantic)
		setIf(&s.Personality.Talkative, pp.Talkative)
		setIf(&s.Personality.Caring, pp.Caring)
		s.Personality = s.Personality.clamped()
	}
	if op := p.OptIn; op != nil {
		setIf(&s.OptIn.Proactive, op.Proactive)
		setIf(&s.OptIn.Voice, op.Voice)
	}
	if p.SpecialDays != nil {
		s.SpecialDays = append([]string{}, p.SpecialDays...)
	}
	return s
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func copySettings(s Settings) Settings {
	s.SpecialDays = append([]string{}, s.SpecialDays...)
	return s
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
