package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/lazypower/companion/internal/persona"
)

const (
	defaultServerURL = "http://127.0.0.1:3000"
	httpTimeout      = 30 * time.Second
)

// Client talks to the companion server.
type Client struct {
	http      *http.Client
	serverURL string
}

// New creates a client for serverURL. An empty serverURL uses
// COMPANION_URL, falling back to http://127.0.0.1:3000.
func New(serverURL string) *Client {
	if serverURL == "" {
		serverURL = os.Getenv("COMPANION_URL")
	}
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: serverURL,
	}
}

// ChatResponse is the server's answer to one chat message.
type ChatResponse struct {
	Reply        string                     `json:"reply"`
	Provider     string                     `json:"provider"`
	Fallback     bool                       `json:"fallback"`
	Mood         persona.Mood               `json:"mood"`
	Bond         int                        `json:"bond"`
	TypingUntil  time.Time                  `json:"typing_until"`
	UsedMemories []persona.Memory           `json:"used_memories"`
	Durable      bool                       `json:"durable"`
	Directive    *persona.Directive         `json:"directive"`
	Planned      *persona.PlannedEvent      `json:"planned"`
	Suggestion   string                     `json:"suggestion"`
	Queued       []persona.ProactiveMessage `json:"queued"`
}

// Chat sends a message as userID.
func (c *Client) Chat(ctx context.Context, userID, message string, persist bool) (*ChatResponse, error) {
	body := map[string]any{"user_id": userID, "message": message, "persist_memory": persist}
	var resp ChatResponse
	if err := c.post(ctx, "/api/chat", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Poll drains userID's proactive queue.
func (c *Client) Poll(ctx context.Context, userID string) ([]persona.ProactiveMessage, error) {
	var resp struct {
		Queued []persona.ProactiveMessage `json:"queued"`
	}
	if err := c.get(ctx, "/api/poll?user_id="+url.QueryEscape(userID), &resp); err != nil {
		return nil, err
	}
	return resp.Queued, nil
}

// Memories lists userID's memories.
func (c *Client) Memories(ctx context.Context, userID string) (*persona.MemoryList, error) {
	var list persona.MemoryList
	if err := c.get(ctx, "/api/memories/"+url.PathEscape(userID), &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Remember stores text as a durable memory.
func (c *Client) Remember(ctx context.Context, userID, text string) (*persona.Memory, error) {
	var resp struct {
		Memory persona.Memory `json:"memory"`
	}
	if err := c.post(ctx, "/api/remember", map[string]string{"user_id": userID, "text": text}, &resp); err != nil {
		return nil, err
	}
	return &resp.Memory, nil
}

// Forget deletes a memory. It reports whether anything was removed.
func (c *Client) Forget(ctx context.Context, userID, memoryID string) (bool, error) {
	var resp struct {
		Removed bool `json:"removed"`
	}
	err := c.post(ctx, "/api/memories/delete", map[string]string{"user_id": userID, "memory_id": memoryID}, &resp)
	return resp.Removed, err
}

// Status returns userID's relationship status.
func (c *Client) Status(ctx context.Context, userID string) (*persona.Status, error) {
	var resp struct {
		Status persona.Status `json:"status"`
	}
	if err := c.get(ctx, "/api/status?user_id="+url.QueryEscape(userID), &resp); err != nil {
		return nil, err
	}
	return &resp.Status, nil
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+path, nil)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s %s: status %d: %s", req.Method, path, resp.StatusCode, e.Error)
		}
		return fmt.Errorf("%s %s: status %d: %s", req.Method, path, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response %s: %w", path, err)
	}
	return nil
}
