package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lazypower/companion/internal/config"
	"github.com/lazypower/companion/internal/persona"
)

func TestNewClientOpenAI(t *testing.T) {
	cfg := config.LLMConfig{Provider: "openai", OpenAIKey: "sk-test"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*OpenAI); !ok {
		t.Errorf("expected *OpenAI, got %T", client)
	}
}

func TestNewClientOpenAIMissingKey(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Provider: "openai"})
	if err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestNewClientAnthropic(t *testing.T) {
	cfg := config.LLMConfig{Provider: "anthropic", AnthropicKey: "test-key"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*Anthropic); !ok {
		t.Errorf("expected *Anthropic, got %T", client)
	}
}

func TestNewClientAnthropicMissingKey(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Provider: "anthropic"})
	if err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestNewClientOllama(t *testing.T) {
	client, err := NewClient(config.LLMConfig{Provider: "ollama", Model: "llama3.2"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*Ollama); !ok {
		t.Errorf("expected *Ollama, got %T", client)
	}
}

func TestNewClientNone(t *testing.T) {
	client, err := NewClient(config.LLMConfig{Provider: "none"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client != nil {
		t.Errorf("expected nil client, got %T", client)
	}
}

func TestNewClientUnknown(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Provider: "gpt"})
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		var body struct {
			Model    string    `json:"model"`
			Messages []Message `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if body.Model != "gpt-test" || len(body.Messages) != 2 {
			t.Errorf("body = %+v", body)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"  hey you  "}}],"usage":{"total_tokens":12}}`))
	}))
	defer srv.Close()

	c := NewOpenAI(srv.URL+"/v1/", "sk-test", "gpt-test", 5*time.Second)
	resp, err := c.Complete(context.Background(), Request{Messages: []Message{
		{Role: RoleSystem, Content: "be nice"},
		{Role: RoleUser, Content: "hi"},
	}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "hey you" || resp.TokensUsed != 12 || resp.Provider != "openai" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestOpenAIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewOpenAI(srv.URL, "k", "m", 5*time.Second)
	_, err := c.Complete(context.Background(), Request{})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Errorf("err = %v, want status 429", err)
	}
}

func TestAnthropicHoistsSystem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			System   string    `json:"system"`
			Messages []Message `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if body.System != "one\n\ntwo" {
			t.Errorf("system = %q", body.System)
		}
		if len(body.Messages) != 1 || body.Messages[0].Role != RoleUser {
			t.Errorf("messages = %+v", body.Messages)
		}
		w.Write([]byte(`{"content":[{"text":"hello"}],"usage":{"input_tokens":3,"output_tokens":2}}`))
	}))
	defer srv.Close()

	c := NewAnthropic("key", "claude", 5*time.Second)
	c.endpoint = srv.URL
	resp, err := c.Complete(context.Background(), Request{Messages: []Message{
		{Role: RoleSystem, Content: "one"},
		{Role: RoleSystem, Content: "two"},
		{Role: RoleUser, Content: "hi"},
	}})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "hello" || resp.TokensUsed != 5 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestOllamaComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"message":{"role":"assistant","content":"hi there"},"prompt_eval_count":4,"eval_count":3}`))
	}))
	defer srv.Close()

	resp, err := NewOllama(srv.URL, "llama", 5*time.Second).Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "hi there" || resp.TokensUsed != 7 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestReplyRequestLayout(t *testing.T) {
	rc := persona.ReplyContext{
		Message:  "how was your day?",
		Mood:     persona.MoodCurious,
		Settings: persona.DefaultSettings(),
		Relevant: []persona.Memory{{Text: "we baked bread", Mood: persona.MoodHappy}},
		Directive: &persona.Directive{
			Instruction: `Proactively ask about this event: "we baked bread".`,
		},
		History: []persona.Turn{
			{Role: persona.RoleAssistant, Content: "morning!"},
			{Role: persona.RoleUser, Content: "how was your day?"},
		},
	}

	req := ReplyRequest("Aastha", rc)
	if len(req.Messages) != 5 {
		t.Fatalf("len = %d, want 5: %+v", len(req.Messages), req.Messages)
	}
	if !strings.Contains(req.Messages[0].Content, "You are Aastha") ||
		!strings.Contains(req.Messages[0].Content, "playful, romantic, caring") ||
		!strings.Contains(req.Messages[0].Content, "curious") {
		t.Errorf("persona prompt = %q", req.Messages[0].Content)
	}
	if !strings.Contains(req.Messages[1].Content, "1. we baked bread (mood:happy)") {
		t.Errorf("memory prompt = %q", req.Messages[1].Content)
	}
	if req.Messages[2].Role != RoleSystem || !strings.Contains(req.Messages[2].Content, "Proactively ask") {
		t.Errorf("directive = %+v", req.Messages[2])
	}
	if last := req.Messages[4]; last.Role != RoleUser || last.Content != "how was your day?" {
		t.Errorf("last = %+v", last)
	}
	if req.MaxTokens != replyMaxTokens || req.Temperature != replyTemperature {
		t.Errorf("params = %d/%v", req.MaxTokens, req.Temperature)
	}
}

func TestMemoryPromptEmpty(t *testing.T) {
	if got := MemoryPrompt(nil); !strings.Contains(got, "No relevant long-term memories found.") {
		t.Errorf("MemoryPrompt(nil) = %q", got)
	}
}

func TestResponderFallback(t *testing.T) {
	rc := persona.ReplyContext{UserID: "u1", Mood: persona.MoodSupportive}

	tests := []struct {
		name   string
		client Client
	}{
		{"nil client", nil},
		{"error", &MockClient{Err: errors.New("boom")}},
		{"empty", &MockClient{Response: &Response{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewResponder(tt.client, "", time.Second).Reply(context.Background(), rc)
			if !got.Fallback || got.Text != Fallback(persona.MoodSupportive) {
				t.Errorf("Reply = %+v", got)
			}
		})
	}
}

func TestResponderUsesClient(t *testing.T) {
	mock := &MockClient{Response: &Response{Content: "hi ❤️", Provider: "mock"}}
	got := NewResponder(mock, "Aastha", time.Second).Reply(context.Background(), persona.ReplyContext{Message: "hi"})
	if got.Fallback || got.Text != "hi ❤️" || got.Provider != "mock" {
		t.Errorf("Reply = %+v", got)
	}
	if mock.CallCount() != 1 {
		t.Errorf("calls = %d, want 1", mock.CallCount())
	}
}

func TestFallbackUnknownMood(t *testing.T) {
	if got := Fallback(persona.MoodChill); got != FallbackText {
		t.Errorf("Fallback(chill) = %q", got)
	}
}
