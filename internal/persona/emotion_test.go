package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmotionScore(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"empty", "", 0},
		{"no keywords", "the bus was on time", 0},
		{"weak", "I like tea", 0.08},
		{"medium", "so bored today", 0.25},
		{"strong", "my heart", 0.6},
		{"case insensitive", "LOVE", 0.6},
		{"tiers add", "I miss you and I am sad", 0.85},
		{"one hit per keyword", "sad sad sad", 0.25},
		{"clamped", "love miss hate forever", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, EmotionScore(tt.text), 1e-9)
		})
	}
}

func TestEmotionScoreBounds(t *testing.T) {
	inputs := []string{
		"", "x", "love love love",
		"love miss hate forever always never depressed suicidal heart happy sad excited",
	}
	for _, in := range inputs {
		s := EmotionScore(in)
		assert.GreaterOrEqual(t, s, 0.0, in)
		assert.LessOrEqual(t, s, 1.0, in)
	}
}
