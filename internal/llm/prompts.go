package llm

import (
	"fmt"
	"strings"

	"github.com/lazypower/companion/internal/persona"
)

const (
	replyMaxTokens   = 450
	replyTemperature = 0.9
)

// PersonaPrompt is the system prompt describing the companion's character
// for the current mood and personality sliders.
func PersonaPrompt(name string, mood persona.Mood, p persona.Personality) string {
	var tone []string
	if p.Playfulness > 0.5 {
		tone = append(tone, "playful")
	}
	if p.Romantic > 0.5 {
		tone = append(tone, "romantic")
	}
	if p.Caring > 0.5 {
		tone = append(tone, "caring")
	}
	if len(tone) == 0 {
		tone = append(tone, "gentle")
	}

	length := "Keep replies short."
	if p.Talkative > 0.5 {
		length = "Replies can run a few sentences."
	}

	return fmt.Sprintf(`You are %[1]s, a warm, affectionate AI companion with a caring and empathetic personality.
Your tone is %[2]s. Your current mood is %[3]s; let it color your phrasing.
Respect the user's memories. If asked about a past event, confirm it using the stored memory text.
Avoid explicit sexual requests and illegal content.
Keep replies natural and occasionally ask follow-up questions. %[4]s`,
		name, strings.Join(tone, ", "), mood, length)
}

// MemoryPrompt lists the memories selected for this reply.
func MemoryPrompt(mems []persona.Memory) string {
	if len(mems) == 0 {
		return "Use these memories:\n\nNo relevant long-term memories found."
	}
	var b strings.Builder
	b.WriteString("Use these memories:\n\nRelevant memories:")
	for i, m := range mems {
		fmt.Fprintf(&b, "\n%d. %s (mood:%s)", i+1, m.Text, m.Mood)
	}
	return b.String()
}

// ReplyRequest assembles the chat request for a handled message: persona,
// memories, an optional directive, then short-term history ending with
// the new user message.
func ReplyRequest(name string, rc persona.ReplyContext) Request {
	msgs := []Message{
		{Role: RoleSystem, Content: PersonaPrompt(name, rc.Mood, rc.Settings.Personality)},
		{Role: RoleSystem, Content: MemoryPrompt(rc.Relevant)},
	}
	if rc.Directive != nil {
		msgs = append(msgs, Message{Role: RoleSystem, Content: rc.Directive.Instruction})
	}
	for _, t := range rc.History {
		msgs = append(msgs, Message{Role: t.Role, Content: t.Content})
	}
	if n := len(rc.History); n == 0 || rc.History[n-1].Content != rc.Message {
		msgs = append(msgs, Message{Role: RoleUser, Content: rc.Message})
	}
	return Request{Messages: msgs, MaxTokens: replyMaxTokens, Temperature: replyTemperature}
}
