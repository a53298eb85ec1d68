package persona

import (
	"strings"
	"time"

	"github.com/lazypower/companion/internal/metrics"
)

// Directive asks the reply generator to bring up a memory unprompted.
type Directive struct {
	MemoryID    string `json:"memory_id"`
	Instruction string `json:"instruction"`
}

// ReplyContext is everything the reply generator needs after a message has
// been applied to the user's state.
type ReplyContext struct {
	UserID      string        `json:"user_id"`
	Message     string        `json:"message"`
	Mood        Mood          `json:"mood"`
	MoodRule    string        `json:"mood_rule,omitempty"`
	Bond        int           `json:"bond"`
	Fight       Fight         `json:"fight"`
	Settings    Settings      `json:"settings"`
	Memory      Memory        `json:"memory"`
	Durable     bool          `json:"durable"`
	Relevant    []Memory      `json:"relevant"`
	Directive   *Directive    `json:"directive,omitempty"`
	History     []Turn        `json:"history"`
	Planned     *PlannedEvent `json:"planned,omitempty"`
	Suggestion  string        `json:"suggestion,omitempty"`
	TypingUntil time.Time     `json:"typing_until"`
	Score       float64       `json:"emotion_score"`
	// Queued is the user's pending proactive queue after this message,
	// read under the same lock. Poll still drains it.
	Queued []ProactiveMessage `json:"queued"`
}

// HandleMessage applies one inbound user message to the user's state and
// returns the context for generating a reply. All of it happens under the
// user's lock; queued proactive messages are handed to the hook afterwards.
func (e *Engine) HandleMessage(userID, text string, now time.Time) ReplyContext {
	var (
		rc     ReplyContext
		queued []ProactiveMessage
	)
	u := e.users.Get(userID, now)
	metrics.KnownUsers.Set(float64(e.users.Len()))
	u.mu.Lock()
	rc, queued = e.handle(u, text, now)
	u.mu.Unlock()

	metrics.MessagesHandled.Inc()
	e.markDirty()
	e.notify(userID, queued)
	return rc
}

func (e *Engine) handle(u *UserState, text string, now time.Time) (ReplyContext, []ProactiveMessage) {
	var queued []ProactiveMessage
	enqueue := func(m ProactiveMessage) {
		m.CreatedAt = now
		u.enqueue(m)
		queued = append(queued, m)
	}

	if u.Vanished {
		u.Vanished = false
		enqueue(ProactiveMessage{Text: welcomeBackText, Kind: KindWelcomeBack, Mood: u.Mood})
		u.increaseBond(DefaultBondIncrease)
	}

	u.pushHistory(Turn{Role: RoleUser, Content: text}, e.cfg.ShortTermMax)

	lower := strings.ToLower(text)
	if kw, ok := containsAny(lower, dayKeywords); ok {
		u.logDay(DayLogEntry{Keyword: kw, At: now, Detail: text}, e.cfg.DayLogMax)
	}

	// The absence rule compares against the previous activity, so the
	// timestamp moves only after classification.
	fired := e.moods.updateMood(u, text, now)
	u.LastActiveAt = now

	score := EmotionScore(text)
	mem, durable := e.recordSmart(u, text, score, u.Mood, now)

	if score >= e.cfg.BondRewardScore {
		u.increaseBond(DefaultBondIncrease)
	}
	if _, hostile := containsAny(lower, hostilityMarkers); hostile {
		u.decreaseBond(DefaultBondDecrease)
		since := now
		u.Fight = Fight{Active: true, Since: &since}
	}

	relevant := u.memories.RelevantRecent(e.cfg.RelevantLimit)

	var directive *Directive
	if len(relevant) > 0 && chance(e.rng, e.cfg.ProactiveAskProb) {
		target := pick(e.rng, relevant)
		directive = &Directive{
			MemoryID:    target.ID,
			Instruction: askDirective(target.Text, target.Mood),
		}
	}

	var planned *PlannedEvent
	if _, ok := containsAny(lower, planKeywords); ok {
		ev := PlannedEvent{Description: text, DueAt: now.Add(e.cfg.PlanDelay)}
		u.planned = append(u.planned, ev)
		u.logDay(DayLogEntry{Keyword: "plan", At: now, Detail: text}, e.cfg.DayLogMax)
		planned = &ev
	}

	var suggestion string
	if u.Settings.OptIn.Proactive && chance(e.rng, e.cfg.SuggestionProb) {
		suggestion = pick(e.rng, suggestionsFor(u.Mood))
		enqueue(ProactiveMessage{Text: suggestion, Kind: KindSuggestion, Mood: u.Mood})
	}

	u.TypingUntil = now.Add(typingDelay(e.rng, u.Bond))

	return ReplyContext{
		UserID:      u.ID,
		Message:     text,
		Mood:        u.Mood,
		MoodRule:    fired,
		Bond:        u.Bond,
		Fight:       u.Fight,
		Settings:    copySettings(u.Settings),
		Memory:      mem,
		Durable:     durable,
		Relevant:    relevant,
		Directive:   directive,
		History:     append([]Turn{}, u.history...),
		Planned:     planned,
		Suggestion:  suggestion,
		TypingUntil: u.TypingUntil,
		Score:       score,
		Queued:      append([]ProactiveMessage{}, u.outbound...),
	}, queued
}

// typingDelay simulates composition time. Closer users get quicker replies.
func typingDelay(rng Rand, bond int) time.Duration {
	ms := 800 + rng.Intn(1200) + (bondMax-bond)*4
	return time.Duration(ms) * time.Millisecond
}
