package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUsesEnv(t *testing.T) {
	t.Setenv("COMPANION_URL", "http://example.test:9999")
	assert.Equal(t, "http://example.test:9999", New("").serverURL)
	assert.Equal(t, "http://other:1", New("http://other:1").serverURL)

	t.Setenv("COMPANION_URL", "")
	assert.Equal(t, defaultServerURL, New("").serverURL)
}

func TestChat(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			return
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if body["user_id"] != "u1" || body["message"] != "hi" || body["persist_memory"] != true {
			t.Errorf("body = %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"reply":"hey!","provider":"mock","mood":"happy","bond":3,"queued":[{"text":"Let's play a game!","type":"suggestion"}]}`))
	}))
	defer ts.Close()

	resp, err := New(ts.URL).Chat(context.Background(), "u1", "hi", true)
	require.NoError(t, err)
	assert.Equal(t, "hey!", resp.Reply)
	assert.Equal(t, "happy", string(resp.Mood))
	assert.Equal(t, 3, resp.Bond)
	require.Len(t, resp.Queued, 1)
	assert.Equal(t, "suggestion", resp.Queued[0].Kind)
}

func TestPollAndStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/poll", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("user_id"); got != "a b" {
			t.Errorf("user_id = %q", got)
		}
		w.Write([]byte(`{"queued":[{"text":"where did you go?","type":"vanish"}]}`))
	})
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":{"user_id":"a b","mood":"missing","bond":7,"vanished":true},"typing":false}`))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := New(ts.URL)
	msgs, err := c.Poll(context.Background(), "a b")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "vanish", msgs[0].Kind)

	st, err := c.Status(context.Background(), "a b")
	require.NoError(t, err)
	assert.Equal(t, 7, st.Bond)
	assert.True(t, st.Vanished)
}

func TestErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"slow down a little"}`))
	}))
	defer ts.Close()

	_, err := New(ts.URL).Chat(context.Background(), "u1", "hi", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "slow down a little")
}

func TestHealthy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	c := New(ts.URL)
	assert.True(t, c.Healthy(context.Background()))

	ts.Close()
	assert.False(t, c.Healthy(context.Background()))
}
