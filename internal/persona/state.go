package persona

import (
	"sync"
	"time"
)

// Mood is the persona's discrete mood label for one user.
type Mood string

const (
	MoodHappy      Mood = "happy"
	MoodRomantic   Mood = "romantic"
	MoodPlayful    Mood = "playful"
	MoodLazy       Mood = "lazy"
	MoodSupportive Mood = "supportive"
	MoodCurious    Mood = "curious"
	MoodChill      Mood = "chill"
	MoodMissing    Mood = "missing"
)

// Roles in short-term history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one entry of short-term conversational history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Kinds of proactive message.
const (
	KindWelcomeBack = "welcomeBack"
	KindVanish      = "vanish"
	KindFollowUp    = "followUp"
	KindRecall      = "recall"
	KindSuggestion  = "activitySuggestion"
)

// ProactiveMessage is a system-initiated message awaiting delivery.
type ProactiveMessage struct {
	Text      string    `json:"text"`
	Kind      string    `json:"type"`
	Mood      Mood      `json:"mood,omitempty"`
	MemoryID  string    `json:"memory_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// PlannedEvent is an activity the user declared, awaiting a follow-up.
type PlannedEvent struct {
	Description string    `json:"description"`
	DueAt       time.Time `json:"due_at"`
}

// Fight marks an adversarial interaction.
type Fight struct {
	Active bool       `json:"active"`
	Since  *time.Time `json:"since"`
}

// DayLogEntry records a notable keyword from the user's day.
type DayLogEntry struct {
	Keyword string    `json:"keyword"`
	At      time.Time `json:"at"`
	Detail  string    `json:"detail"`
}

// Personality sliders, each in [0,1].
type Personality struct {
	Playfulness float64 `json:"playfulness"`
	Romantic    float64 `json:"romantic"`
	Talkative   float64 `json:"talkative"`
	Caring      float64 `json:"caring"`
}

// OptIn holds per-user feature switches.
type OptIn struct {
	Proactive bool `json:"proactive"`
	Voice     bool `json:"voice"`
}

// Settings are the user-configurable parts of a UserState.
type Settings struct {
	Personality Personality `json:"personality"`
	OptIn       OptIn       `json:"opt_in"`
	SpecialDays []string    `json:"special_days"`
}

// DefaultSettings returns the settings a new user starts with.
func DefaultSettings() Settings {
	return Settings{
		Personality: Personality{Playfulness: 0.6, Romantic: 0.7, Talkative: 0.6, Caring: 0.8},
		OptIn:       OptIn{Proactive: true, Voice: false},
		SpecialDays: []string{},
	}
}

func (p Personality) clamped() Personality {
	return Personality{
		Playfulness: clamp(p.Playfulness, 0, 1),
		Romantic:    clamp(p.Romantic, 0, 1),
		Talkative:   clamp(p.Talkative, 0, 1),
		Caring:      clamp(p.Caring, 0, 1),
	}
}

// UserState is everything the engine knows about one user. All fields are
// guarded by mu; callers outside the package only ever see copies.
type UserState struct {
	mu sync.Mutex

	ID           string
	Mood         Mood
	Bond         int
	LastActiveAt time.Time
	Vanished     bool
	Fight        Fight
	TypingUntil  time.Time
	Settings     Settings

	history  []Turn
	outbound []ProactiveMessage
	planned  []PlannedEvent
	dayLog   []DayLogEntry
	memories Memories
}

func newUserState(id string, now time.Time) *UserState {
	return &UserState{
		ID:           id,
		Mood:         MoodHappy,
		LastActiveAt: now,
		Settings:     DefaultSettings(),
		memories:     Memories{userID: id},
	}
}

// pushHistory appends a turn, evicting the oldest beyond max.
func (u *UserState) pushHistory(t Turn, max int) {
	u.history = append(u.history, t)
	if over := len(u.history) - max; over > 0 {
		u.history = append(u.history[:0:0], u.history[over:]...)
	}
}

func (u *UserState) logDay(e DayLogEntry, max int) {
	u.dayLog = append(u.dayLog, e)
	if over := len(u.dayLog) - max; over > 0 {
		u.dayLog = append(u.dayLog[:0:0], u.dayLog[over:]...)
	}
}

func (u *UserState) enqueue(m ProactiveMessage) {
	u.outbound = append(u.outbound, m)
}

// drain swaps the outbound queue out and leaves it empty.
func (u *UserState) drain() []ProactiveMessage {
	q := u.outbound
	u.outbound = nil
	if q == nil {
		q = []ProactiveMessage{}
	}
	return q
}

// Status is a read-only view of a user for status endpoints.
type Status struct {
	UserID       string    `json:"user_id"`
	Mood         Mood      `json:"mood"`
	Bond         int       `json:"bond"`
	Fight        Fight     `json:"fight"`
	Vanished     bool      `json:"vanished"`
	TypingUntil  time.Time `json:"typing_until"`
	LastActiveAt time.Time `json:"last_active"`
	Pending      int       `json:"pending"`
	Planned      int       `json:"planned"`
}

func (u *UserState) status() Status {
	return Status{
		UserID:       u.ID,
		Mood:         u.Mood,
		Bond:         u.Bond,
		Fight:        u.Fight,
		Vanished:     u.Vanished,
		TypingUntil:  u.TypingUntil,
		LastActiveAt: u.LastActiveAt,
		Pending:      len(u.outbound),
		Planned:      len(u.planned),
	}
}
