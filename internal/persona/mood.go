package persona

import (
	"strings"
	"time"
)

// moodTrigger maps a mood to the phrases that switch to it.
type moodTrigger struct {
	mood    Mood
	phrases []string
}

// moodTriggers is evaluated top to bottom; the first mood with a matching
// phrase wins. Romantic is ahead of happy so that "love you" is not
// swallowed by the bare "love" trigger.
var moodTriggers = []moodTrigger{
	{MoodRomantic, []string{"miss you", "love you", "date", "kiss", "romantic"}},
	{MoodHappy, []string{"good", "great", "fun", "love", "awesome", "yay", "nice"}},
	{MoodPlayful, []string{"game", "funny", "joke", "movie", "play", "silly"}},
	{MoodLazy, []string{"tired", "sleep", "bored", "rest", "nap"}},
	{MoodSupportive, []string{"sad", "upset", "angry", "bad day", "stress", "stressed"}},
	{MoodCurious, []string{"why", "how", "what", "tell me", "explain", "learn"}},
}

// swingPalette is the set a random mood swing draws from.
var swingPalette = []Mood{MoodHappy, MoodPlayful, MoodRomantic, MoodCurious, MoodChill, MoodSupportive}

// MoodInput is what mood rules look at.
type MoodInput struct {
	Text         string // lower-cased message
	Now          time.Time
	LastActiveAt time.Time
	Bond         int
}

// MoodRule is one named step of the mood cascade. Apply returns the new
// mood and whether the rule fired. A Final rule that fires stops the cascade.
type MoodRule struct {
	Name  string
	Final bool
	Apply func(in MoodInput) (Mood, bool)
}

// MoodClassifier derives a user's mood from an ordered list of rules.
type MoodClassifier struct {
	rules []MoodRule
}

// NewMoodClassifier builds the standard cascade:
//
//  1. keyword-trigger (final)
//  2. night-romance
//  3. absence-missing
//  4. random-swing
//
// Later rules overwrite earlier ones, so the swing can clobber 2 and 3.
func NewMoodClassifier(cfg Config, rng Rand) *MoodClassifier {
	cfg = cfg.withDefaults()
	return &MoodClassifier{rules: []MoodRule{
		{
			Name:  "keyword-trigger",
			Final: true,
			Apply: func(in MoodInput) (Mood, bool) {
				return triggeredMood(in.Text)
			},
		},
		{
			Name: "night-romance",
			Apply: func(in MoodInput) (Mood, bool) {
				if !isNight(in.Now) {
					return "", false
				}
				return MoodRomantic, chance(rng, cfg.NightRomanceProb)
			},
		},
		{
			Name: "absence-missing",
			Apply: func(in MoodInput) (Mood, bool) {
				if in.Now.Sub(in.LastActiveAt) <= cfg.VanishThreshold {
					return "", false
				}
				return MoodMissing, chance(rng, cfg.MissingProb)
			},
		},
		{
			Name: "random-swing",
			Apply: func(in MoodInput) (Mood, bool) {
				p := cfg.SwingBaseProb + float64(in.Bond)/cfg.SwingBondScale
				if !chance(rng, p) {
					return "", false
				}
				return pick(rng, swingPalette), true
			},
		},
	}}
}

// Rules returns the cascade in evaluation order.
func (c *MoodClassifier) Rules() []MoodRule {
	return c.rules
}

// Classify runs the cascade and returns the resulting mood, or current if
// no rule fired. fired names the last rule that changed the result.
func (c *MoodClassifier) Classify(current Mood, in MoodInput) (mood Mood, fired string) {
	in.Text = strings.ToLower(in.Text)
	mood = current
	for _, r := range c.rules {
		m, ok := r.Apply(in)
		if !ok {
			continue
		}
		mood, fired = m, r.Name
		if r.Final {
			break
		}
	}
	return mood, fired
}

// updateMood applies the cascade to u. Caller holds u.mu.
func (c *MoodClassifier) updateMood(u *UserState, text string, now time.Time) string {
	m, fired := c.Classify(u.Mood, MoodInput{
		Text:         text,
		Now:          now,
		LastActiveAt: u.LastActiveAt,
		Bond:         u.Bond,
	})
	u.Mood = m
	return fired
}

func triggeredMood(lower string) (Mood, bool) {
	for _, t := range moodTriggers {
		if _, ok := containsAny(lower, t.phrases); ok {
			return t.mood, true
		}
	}
	return "", false
}

// isNight reports whether now falls in [21:00, 06:00) local to now's zone.
func isNight(now time.Time) bool {
	h := now.Hour()
	return h >= 21 || h < 6
}
