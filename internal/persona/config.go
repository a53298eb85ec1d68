package persona

import "time"

// Config holds the engine's tunables. Zero values are replaced by the
// defaults in DefaultConfig when passed to New.
type Config struct {
	ShortTermMax    int
	DayLogMax       int
	VanishThreshold time.Duration
	Retention       time.Duration
	PlanDelay       time.Duration

	// Salience
	RepeatThreshold   int
	RandomPromoteProb float64
	StrongSalience    float64
	BondRewardScore   float64

	// Mood
	NightRomanceProb float64
	MissingProb      float64
	SwingBaseProb    float64
	SwingBondScale   float64

	// Engagement
	RecallProb        float64
	RecallDurableBias float64
	ProactiveAskProb  float64
	SuggestionProb    float64
	RelevantLimit     int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		ShortTermMax:      35,
		DayLogMax:         50,
		VanishThreshold:   30 * time.Minute,
		Retention:         7 * 24 * time.Hour,
		PlanDelay:         4 * time.Hour,
		RepeatThreshold:   2,
		RandomPromoteProb: 0.12,
		StrongSalience:    0.6,
		BondRewardScore:   0.5,
		NightRomanceProb:  0.25,
		MissingProb:       0.4,
		SwingBaseProb:     0.05,
		SwingBondScale:    400,
		RecallProb:        0.02,
		RecallDurableBias: 0.75,
		ProactiveAskProb:  0.4,
		SuggestionProb:    0.25,
		RelevantLimit:     4,
	}
}

// withDefaults fills zero-valued fields from DefaultConfig. For
// probabilities zero means unset and a negative value disables the branch.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ShortTermMax <= 0 {
		c.ShortTermMax = d.ShortTermMax
	}
	if c.DayLogMax <= 0 {
		c.DayLogMax = d.DayLogMax
	}
	if c.VanishThreshold <= 0 {
		c.VanishThreshold = d.VanishThreshold
	}
	if c.Retention <= 0 {
		c.Retention = d.Retention
	}
	if c.PlanDelay <= 0 {
		c.PlanDelay = d.PlanDelay
	}
	if c.RepeatThreshold <= 0 {
		c.RepeatThreshold = d.RepeatThreshold
	}
	if c.StrongSalience <= 0 {
		c.StrongSalience = d.StrongSalience
	}
	if c.BondRewardScore <= 0 {
		c.BondRewardScore = d.BondRewardScore
	}
	if c.SwingBondScale <= 0 {
		c.SwingBondScale = d.SwingBondScale
	}
	if c.RelevantLimit <= 0 {
		c.RelevantLimit = d.RelevantLimit
	}
	c.RandomPromoteProb = probOrDefault(c.RandomPromoteProb, d.RandomPromoteProb)
	c.NightRomanceProb = probOrDefault(c.NightRomanceProb, d.NightRomanceProb)
	c.MissingProb = probOrDefault(c.MissingProb, d.MissingProb)
	c.SwingBaseProb = probOrDefault(c.SwingBaseProb, d.SwingBaseProb)
	c.RecallProb = probOrDefault(c.RecallProb, d.RecallProb)
	c.RecallDurableBias = probOrDefault(c.RecallDurableBias, d.RecallDurableBias)
	c.ProactiveAskProb = probOrDefault(c.ProactiveAskProb, d.ProactiveAskProb)
	c.SuggestionProb = probOrDefault(c.SuggestionProb, d.SuggestionProb)
	return c
}

// probOrDefault treats 0 as "unset" and a negative value as "disabled".
func probOrDefault(p, def float64) float64 {
	switch {
	case p < 0:
		return 0
	case p == 0:
		return def
	default:
		return clamp(p, 0, 1)
	}
}
