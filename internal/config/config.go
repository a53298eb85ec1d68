package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/lazypower/companion/internal/persona"
)

// Config holds all companion configuration. Every field can be set from the
// environment with the COMPANION_ prefix.
type Config struct {
	Server    ServerConfig    `envPrefix:"SERVER_"`
	Database  DatabaseConfig  `envPrefix:"DB_"`
	LLM       LLMConfig       `envPrefix:"LLM_"`
	Engine    EngineConfig    `envPrefix:"ENGINE_"`
	Redis     RedisConfig     `envPrefix:"REDIS_"`
	Logging   LoggingConfig   `envPrefix:"LOG_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_"`
}

type ServerConfig struct {
	Bind string `env:"BIND"`
	Port int    `env:"PORT"`
}

type DatabaseConfig struct {
	Path string `env:"PATH"` // empty resolves via store.DefaultDBPath()
}

type LLMConfig struct {
	Provider     string        `env:"PROVIDER"` // "openai", "anthropic", "ollama", "mock", "none"
	Model        string        `env:"MODEL"`
	PersonaName  string        `env:"PERSONA_NAME"`
	Timeout      time.Duration `env:"TIMEOUT"`
	MaxTokens    int           `env:"MAX_TOKENS"`
	OpenAIKey    string        `env:"OPENAI_KEY"`
	OpenAIURL    string        `env:"OPENAI_URL"`
	AnthropicKey string        `env:"ANTHROPIC_KEY"`
	OllamaURL    string        `env:"OLLAMA_URL"`
}

// EngineConfig mirrors persona.Config plus the timers that drive it.
type EngineConfig struct {
	Seed          int64         `env:"SEED"`
	TickInterval  time.Duration `env:"TICK_INTERVAL"`
	FlushInterval time.Duration `env:"FLUSH_INTERVAL"`

	ShortTermMax      int           `env:"SHORT_TERM_MAX"`
	DayLogMax         int           `env:"DAY_LOG_MAX"`
	VanishThreshold   time.Duration `env:"VANISH_THRESHOLD"`
	Retention         time.Duration `env:"RETENTION"`
	PlanDelay         time.Duration `env:"PLAN_DELAY"`
	RepeatThreshold   int           `env:"REPEAT_THRESHOLD"`
	RandomPromoteProb float64       `env:"RANDOM_PROMOTE_PROB"`
	StrongSalience    float64       `env:"STRONG_SALIENCE"`
	BondRewardScore   float64       `env:"BOND_REWARD_SCORE"`
	NightRomanceProb  float64       `env:"NIGHT_ROMANCE_PROB"`
	MissingProb       float64       `env:"MISSING_PROB"`
	SwingBaseProb     float64       `env:"SWING_BASE_PROB"`
	SwingBondScale    float64       `env:"SWING_BOND_SCALE"`
	RecallProb        float64       `env:"RECALL_PROB"`
	RecallDurableBias float64       `env:"RECALL_DURABLE_BIAS"`
	ProactiveAskProb  float64       `env:"PROACTIVE_ASK_PROB"`
	SuggestionProb    float64       `env:"SUGGESTION_PROB"`
	RelevantLimit     int           `env:"RELEVANT_LIMIT"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR"` // empty disables proactive fan-out
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB"`
	Channel  string `env:"CHANNEL"`
}

type LoggingConfig struct {
	Level  string `env:"LEVEL"`
	Pretty bool   `env:"PRETTY"`
}

type RateLimitConfig struct {
	PerMinute float64 `env:"PER_MINUTE"` // chat requests per user; 0 disables
	Burst     int     `env:"BURST"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	d := persona.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 3000,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			PersonaName: "Aastha",
			Timeout:     30 * time.Second,
			MaxTokens:   300,
			OpenAIURL:   "https://api.openai.com/v1",
			OllamaURL:   "http://localhost:11434",
		},
		Engine: EngineConfig{
			TickInterval:      time.Minute,
			FlushInterval:     5 * time.Minute,
			ShortTermMax:      d.ShortTermMax,
			DayLogMax:         d.DayLogMax,
			VanishThreshold:   d.VanishThreshold,
			Retention:         d.Retention,
			PlanDelay:         d.PlanDelay,
			RepeatThreshold:   d.RepeatThreshold,
			RandomPromoteProb: d.RandomPromoteProb,
			StrongSalience:    d.StrongSalience,
			BondRewardScore:   d.BondRewardScore,
			NightRomanceProb:  d.NightRomanceProb,
			MissingProb:       d.MissingProb,
			SwingBaseProb:     d.SwingBaseProb,
			SwingBondScale:    d.SwingBondScale,
			RecallProb:        d.RecallProb,
			RecallDurableBias: d.RecallDurableBias,
			ProactiveAskProb:  d.ProactiveAskProb,
			SuggestionProb:    d.SuggestionProb,
			RelevantLimit:     d.RelevantLimit,
		},
		Redis: RedisConfig{
			Channel: "companion:proactive",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			PerMinute: 30,
			Burst:     5,
		},
	}
}

// Load reads an optional .env file and then overlays COMPANION_* environment
// variables on top of Default().
func Load(dotenvPaths ...string) (Config, error) {
	if err := godotenv.Load(dotenvPaths...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv overlays COMPANION_* environment variables on top of Default().
func FromEnv() (Config, error) {
	cfg := Default()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "COMPANION_"}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Engine.TickInterval < time.Second {
		return fmt.Errorf("tick interval %s is below one second", c.Engine.TickInterval)
	}
	if c.Engine.FlushInterval < time.Second {
		return fmt.Errorf("flush interval %s is below one second", c.Engine.FlushInterval)
	}
	if c.RateLimit.PerMinute < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// Persona converts the engine section into the core's tunables.
func (c *Config) Persona() persona.Config {
	e := c.Engine
	return persona.Config{
		ShortTermMax:      e.ShortTermMax,
		DayLogMax:         e.DayLogMax,
		VanishThreshold:   e.VanishThreshold,
		Retention:         e.Retention,
		PlanDelay:         e.PlanDelay,
		RepeatThreshold:   e.RepeatThreshold,
		RandomPromoteProb: e.RandomPromoteProb,
		StrongSalience:    e.StrongSalience,
		BondRewardScore:   e.BondRewardScore,
		NightRomanceProb:  e.NightRomanceProb,
		MissingProb:       e.MissingProb,
		SwingBaseProb:     e.SwingBaseProb,
		SwingBondScale:    e.SwingBondScale,
		RecallProb:        e.RecallProb,
		RecallDurableBias: e.RecallDurableBias,
		ProactiveAskProb:  e.ProactiveAskProb,
		SuggestionProb:    e.SuggestionProb,
		RelevantLimit:     e.RelevantLimit,
	}
}
