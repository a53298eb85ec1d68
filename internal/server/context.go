package server

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lazypower/companion/internal/llm"
	"github.com/lazypower/companion/internal/persona"
)

// chatResult is what a chat turn produced.
type chatResult struct {
	Context  persona.ReplyContext
	Reply    llm.Reply
	Remember *persona.Memory
}

// converse runs one chat turn: the engine applies the message, the
// responder writes the reply, and the reply goes back into history. The
// engine's state updates stand even if the reply falls back.
func (s *Server) converse(ctx context.Context, userID, message string, persist bool) chatResult {
	rc := s.engine.HandleMessage(userID, message, time.Now())

	var res chatResult
	res.Context = rc
	if persist {
		m := s.engine.ForceRemember(userID, message)
		res.Remember = &m
	}

	res.Reply = s.responder.Reply(ctx, rc)
	s.engine.AppendReply(userID, res.Reply.Text)

	log.Debug().
		Str("user_id", userID).
		Str("mood", string(rc.Mood)).
		Str("mood_rule", rc.MoodRule).
		Int("bond", rc.Bond).
		Bool("durable", rc.Durable).
		Bool("fallback", res.Reply.Fallback).
		Msg("chat turn")
	return res
}
