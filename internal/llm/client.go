package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/lazypower/companion/internal/config"
)

// Roles for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn sent to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a chat completion request. System messages may appear
// anywhere in Messages; providers without inline system turns hoist them.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Client is the interface for LLM providers.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Response holds the result of an LLM completion.
type Response struct {
	Content    string
	Provider   string
	TokensUsed int
}

// NewClient creates an LLM client based on the config provider setting.
// Provider "none" returns a nil client; replies then always use the
// local template.
func NewClient(cfg config.LLMConfig) (Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	switch cfg.Provider {
	case "none", "":
		return nil, nil
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("openai provider requires COMPANION_LLM_OPENAI_KEY")
		}
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		url := cfg.OpenAIURL
		if url == "" {
			url = "https://api.openai.com/v1"
		}
		return NewOpenAI(url, cfg.OpenAIKey, model, timeout), nil
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("anthropic provider requires COMPANION_LLM_ANTHROPIC_KEY")
		}
		model := cfg.Model
		if model == "" {
			model = "claude-haiku-4-5-20251001"
		}
		return NewAnthropic(cfg.AnthropicKey, model, timeout), nil
	case "ollama":
		url := cfg.OllamaURL
		if url == "" {
			url = "http://localhost:11434"
		}
		model := cfg.Model
		if model == "" {
			model = "llama3.2"
		}
		return NewOllama(url, model, timeout), nil
	case "mock":
		return &MockClient{Response: &Response{Content: "I'm right here with you ❤️", Provider: "mock"}}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}
