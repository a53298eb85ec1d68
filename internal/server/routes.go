package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/companion/internal/persona"
)

const avatarBaseURL = "https://via.placeholder.com/128.png?text="

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID        string `json:"user_id"`
		Message       string `json:"message"`
		PersistMemory bool   `json:"persist_memory"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := persona.Validate(req.UserID, req.Message); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	if !s.limiter.Allow(req.UserID) {
		writeError(w, http.StatusTooManyRequests, "slow down a little")
		return
	}

	res := s.converse(r.Context(), req.UserID, req.Message, req.PersistMemory)
	rc := res.Context

	writeJSON(w, http.StatusOK, map[string]any{
		"reply":         res.Reply.Text,
		"provider":      res.Reply.Provider,
		"fallback":      res.Reply.Fallback,
		"mood":          rc.Mood,
		"bond":          rc.Bond,
		"typing_until":  rc.TypingUntil,
		"used_memories": rc.Relevant,
		"memory":        rc.Memory,
		"durable":       rc.Durable || res.Remember != nil,
		"directive":     rc.Directive,
		"planned":       rc.Planned,
		"suggestion":    rc.Suggestion,
		"queued":        rc.Queued,
	})
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r.URL.Query().Get("user_id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"queued": s.engine.Poll(userID),
	})
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, chi.URLParam(r, "userID"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.engine.ListMemories(userID))
}

type memoryRef struct {
	UserID   string `json:"user_id"`
	MemoryID string `json:"memory_id"`
}

func decodeMemoryRef(w http.ResponseWriter, r *http.Request) (memoryRef, bool) {
	var ref memoryRef
	if err := json.NewDecoder(r.Body).Decode(&ref); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return ref, false
	}
	if strings.TrimSpace(ref.UserID) == "" || strings.TrimSpace(ref.MemoryID) == "" {
		writeError(w, http.StatusBadRequest, "user_id and memory_id required")
		return ref, false
	}
	return ref, true
}

func (s *Server) handleMarkMemory(w http.ResponseWriter, r *http.Request) {
	ref, ok := decodeMemoryRef(w, r)
	if !ok {
		return
	}
	mem, found := s.engine.Promote(ref.UserID, ref.MemoryID)
	if !found {
		writeError(w, http.StatusNotFound, "memory not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "memory": mem})
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	ref, ok := decodeMemoryRef(w, r)
	if !ok {
		return
	}
	removed := s.engine.DeleteMemory(ref.UserID, ref.MemoryID)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "removed": removed})
}

func (s *Server) handleRemember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Text   string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := persona.Validate(req.UserID, req.Text); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	mem := s.engine.ForceRemember(req.UserID, req.Text)
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "memory": mem})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r.URL.Query().Get("user_id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Settings(userID))
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string                `json:"user_id"`
		Settings persona.SettingsPatch `json:"settings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	userID, ok := requireUser(w, req.UserID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"settings": s.engine.UpdateSettings(userID, req.Settings),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r.URL.Query().Get("user_id"))
	if !ok {
		return
	}
	st := s.engine.Status(userID)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": st,
		"typing": time.Now().Before(st.TypingUntil),
	})
}

func (s *Server) handleAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r.URL.Query().Get("user_id"))
	if !ok {
		return
	}
	mood := s.engine.Status(userID).Mood
	writeJSON(w, http.StatusOK, map[string]any{
		"mood":       mood,
		"avatar_url": avatarBaseURL + url.QueryEscape(string(mood)),
	})
}

func requireUser(w http.ResponseWriter, userID string) (string, bool) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return "", false
	}
	return userID, true
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, persona.ErrEmptyUser):
		return "user_id required"
	case errors.Is(err, persona.ErrEmptyText):
		return "message required"
	case errors.Is(err, persona.ErrTooLong):
		return "message too long"
	default:
		return err.Error()
	}
}
