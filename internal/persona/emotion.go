package persona

import "strings"

// Keyword tiers for emotional salience. Each keyword counts at most once
// per tier; tiers are additive.
var (
	strongEmotionWords = []string{"love", "miss", "hate", "forever", "always", "never", "depressed", "suicidal", "heart"}
	mediumEmotionWords = []string{"happy", "sad", "excited", "angry", "stress", "stressed", "bored", "lonely", "cry"}
	weakEmotionWords   = []string{"like", "enjoy", "prefer", "wish", "want", "plan", "remember", "think"}
)

const (
	strongEmotionWeight = 0.6
	mediumEmotionWeight = 0.25
	weakEmotionWeight   = 0.08
)

// EmotionScore rates the emotional salience of text in [0,1].
// Matching is a case-insensitive substring test, so "lovely" hits "love".
func EmotionScore(text string) float64 {
	t := strings.ToLower(text)
	if t == "" {
		return 0
	}

	var s float64
	s += tierScore(t, strongEmotionWords, strongEmotionWeight)
	s += tierScore(t, mediumEmotionWords, mediumEmotionWeight)
	s += tierScore(t, weakEmotionWords, weakEmotionWeight)
	return clamp(s, 0, 1)
}

func tierScore(lower string, words []string, weight float64) float64 {
	var s float64
	for _, w := range words {
		if strings.Contains(lower, w) {
			s += weight
		}
	}
	return s
}

// containsAny reports whether lower contains any of the phrases.
func containsAny(lower string, phrases []string) (string, bool) {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	return "", false
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
