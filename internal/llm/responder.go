package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lazypower/companion/internal/metrics"
	"github.com/lazypower/companion/internal/persona"
)

// FallbackText is used when no mood-specific fallback exists.
const FallbackText = "Sorry, I couldn't think of a reply right now."

var fallbackByMood = map[persona.Mood]string{
	persona.MoodHappy:      "Hehe, you always make me smile 😊 Tell me more?",
	persona.MoodRomantic:   "You make my heart skip a little ❤️ Tell me more?",
	persona.MoodPlayful:    "Ooh, I like where this is going 😏 Go on!",
	persona.MoodLazy:       "Mmm, I'm feeling cozy today 😴 Tell me more?",
	persona.MoodSupportive: "I'm here for you, always. Want to talk about it? ❤️",
	persona.MoodCurious:    "Ooh, interesting! What happened next?",
	persona.MoodMissing:    "I missed you so much 🥺 How have you been?",
}

// Fallback returns the local reply for mood.
func Fallback(mood persona.Mood) string {
	if s, ok := fallbackByMood[mood]; ok {
		return s
	}
	return FallbackText
}

// Reply is a generated reply and where it came from.
type Reply struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
	Fallback bool   `json:"fallback"`
}

// Responder produces reply text for a handled message. It never fails:
// provider errors degrade to the local template.
type Responder struct {
	client  Client
	name    string
	timeout time.Duration
}

// NewResponder creates a responder. client may be nil.
func NewResponder(client Client, name string, timeout time.Duration) *Responder {
	if name == "" {
		name = "Aastha"
	}
	return &Responder{client: client, name: name, timeout: timeout}
}

// Reply asks the provider for a reply to rc.
func (r *Responder) Reply(ctx context.Context, rc persona.ReplyContext) Reply {
	if r.client == nil {
		return Reply{Text: Fallback(rc.Mood), Provider: "template", Fallback: true}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	resp, err := r.client.Complete(ctx, ReplyRequest(r.name, rc))
	if err != nil || resp == nil || resp.Content == "" {
		metrics.ReplyFallbacks.Inc()
		log.Warn().Err(err).Str("user_id", rc.UserID).Msg("reply generation failed, using fallback")
		return Reply{Text: Fallback(rc.Mood), Provider: "template", Fallback: true}
	}
	return Reply{Text: resp.Content, Provider: resp.Provider}
}
