package persona

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, Validate("", "hi"), ErrEmptyUser)
	assert.ErrorIs(t, Validate("  ", "hi"), ErrEmptyUser)
	assert.ErrorIs(t, Validate("u1", ""), ErrEmptyText)
	assert.ErrorIs(t, Validate("u1", " \n"), ErrEmptyText)
	assert.ErrorIs(t, Validate("u1", strings.Repeat("a", MaxTextLen+1)), ErrTooLong)
	assert.NoError(t, Validate("u1", "hi"))
}

func TestHandleMessageStrongEmotionGoesDurable(t *testing.T) {
	e := newTestEngine(neverRand())

	ctx := e.HandleMessage("u1", "I love you, I miss you so much", noon)

	assert.Equal(t, MoodRomantic, ctx.Mood)
	assert.Equal(t, "keyword-trigger", ctx.MoodRule)
	assert.GreaterOrEqual(t, ctx.Score, 0.6)
	assert.True(t, ctx.Durable)
	assert.Equal(t, 1, ctx.Bond, "salient message rewards the bond")

	list := e.ListMemories("u1")
	require.Len(t, list.Durable, 1)
	assert.Empty(t, list.Ephemeral)
	assert.Equal(t, MoodRomantic, list.Durable[0].Mood)
}

func TestHandleMessagePlanFollowUp(t *testing.T) {
	e := newTestEngine(neverRand())

	ctx := e.HandleMessage("u1", "let's watch a movie tonight", noon)
	require.NotNil(t, ctx.Planned)
	assert.Equal(t, noon.Add(4*time.Hour), ctx.Planned.DueAt)
	require.Len(t, e.Planned("u1"), 1)

	e.Sweep(noon.Add(3 * time.Hour))
	assert.Zero(t, countKind(e.Poll("u1"), KindFollowUp), "not due yet")

	e.Sweep(noon.Add(4*time.Hour + time.Minute))
	msgs := e.Poll("u1")
	require.Equal(t, 1, countKind(msgs, KindFollowUp))
	for _, m := range msgs {
		if m.Kind == KindFollowUp {
			assert.Contains(t, m.Text, "watch a movie tonight")
		}
	}
	assert.Empty(t, e.Planned("u1"))

	e.Sweep(noon.Add(5 * time.Hour))
	assert.Zero(t, countKind(e.Poll("u1"), KindFollowUp), "processed exactly once")
}

func TestHandleMessageVanishAndReturn(t *testing.T) {
	e := newTestEngine(neverRand())
	e.IncreaseBond("u1", 5)
	e.HandleMessage("u1", "hi", noon)

	e.Sweep(noon.Add(29 * time.Minute))
	assert.False(t, e.Status("u1").Vanished)

	e.Sweep(noon.Add(31 * time.Minute))
	st := e.Status("u1")
	assert.True(t, st.Vanished)
	assert.Equal(t, MoodMissing, st.Mood)
	assert.Equal(t, 4, st.Bond)

	e.Sweep(noon.Add(45 * time.Minute))
	msgs := e.Poll("u1")
	require.Len(t, msgs, 1, "vanish fires once per absence")
	assert.Equal(t, KindVanish, msgs[0].Kind)

	ctx := e.HandleMessage("u1", "hi", noon.Add(50*time.Minute))
	assert.Equal(t, 5, ctx.Bond)
	assert.False(t, e.Status("u1").Vanished)

	msgs = e.Poll("u1")
	require.Len(t, msgs, 1)
	assert.Equal(t, KindWelcomeBack, msgs[0].Kind)
}

func TestDeleteUnknownMemoryIsNoop(t *testing.T) {
	e := newTestEngine(neverRand())
	e.HandleMessage("u1", "I love pancakes", noon)
	e.HandleMessage("u1", "just a note", noon)
	before := e.ListMemories("u1")

	assert.False(t, e.DeleteMemory("u1", "does-not-exist"))
	assert.False(t, e.DeleteMemory("nobody", "does-not-exist"))
	assert.Equal(t, before, e.ListMemories("u1"))
}

func TestHandleMessageHostility(t *testing.T) {
	e := newTestEngine(neverRand())
	e.IncreaseBond("u1", 3)

	ctx := e.HandleMessage("u1", "stop talking to me", noon)
	assert.Equal(t, 1, ctx.Bond)
	assert.True(t, ctx.Fight.Active)
	require.NotNil(t, ctx.Fight.Since)
	assert.Equal(t, noon, *ctx.Fight.Since)
}

func TestHandleMessageSuggestion(t *testing.T) {
	// Draws: swing, random promote, proactive ask, suggestion.
	r := &scriptedRand{floats: []float64{0.999, 0.999, 0.999, 0.1}, ints: []int{1}, miss: 0.999}
	var hooked []ProactiveMessage
	e := newTestEngine(r, WithEnqueueHook(func(_ string, msgs []ProactiveMessage) {
		hooked = append(hooked, msgs...)
	}))

	ctx := e.HandleMessage("u1", "ok", noon)
	assert.Equal(t, "Let's listen to some music!", ctx.Suggestion)
	require.Len(t, ctx.Queued, 1)
	assert.Equal(t, KindSuggestion, ctx.Queued[0].Kind)
	assert.Equal(t, ctx.Suggestion, ctx.Queued[0].Text)

	msgs := e.Poll("u1")
	require.Len(t, msgs, 1)
	assert.Equal(t, KindSuggestion, msgs[0].Kind)
	assert.Equal(t, msgs, hooked)
}

func TestHandleMessageSuggestionOptOut(t *testing.T) {
	e := newTestEngine(alwaysRand())
	off := false
	e.UpdateSettings("u1", SettingsPatch{OptIn: &OptInPatch{Proactive: &off}})

	ctx := e.HandleMessage("u1", "ok", noon)
	assert.Empty(t, ctx.Suggestion)
	assert.Zero(t, countKind(e.Poll("u1"), KindSuggestion))
}

func TestHandleMessageDirective(t *testing.T) {
	// Draws: swing, random promote, proactive ask.
	r := &scriptedRand{floats: []float64{0.999, 0.999, 0.1}, miss: 0.999}
	e := newTestEngine(r)

	ctx := e.HandleMessage("u1", "we went hiking", noon)
	require.NotNil(t, ctx.Directive)
	assert.Equal(t, ctx.Memory.ID, ctx.Directive.MemoryID)
	assert.Contains(t, ctx.Directive.Instruction, "we went hiking")
	require.Len(t, ctx.Relevant, 1)
}

func TestHandleMessageTypingDelay(t *testing.T) {
	r := &scriptedRand{ints: []int{500}, miss: 0.999}
	e := newTestEngine(r)

	ctx := e.HandleMessage("u1", "ok", noon)
	assert.Equal(t, noon.Add(1700*time.Millisecond), ctx.TypingUntil)
	assert.Equal(t, ctx.TypingUntil, e.Status("u1").TypingUntil)
}

func TestHandleMessageDayLog(t *testing.T) {
	e := newTestEngine(neverRand())
	e.HandleMessage("u1", "so tired after work", noon)

	var kws []string
	for _, d := range e.DayLog("u1") {
		kws = append(kws, d.Keyword)
	}
	assert.Equal(t, []string{"tired"}, kws, "only the first matching keyword is logged")
}

func TestHandleMessagePlanLogsDay(t *testing.T) {
	e := newTestEngine(neverRand())
	ctx := e.HandleMessage("u1", "let's cook dinner", noon)
	require.NotNil(t, ctx.Planned)

	entries := e.DayLog("u1")
	require.Len(t, entries, 1)
	assert.Equal(t, "plan", entries[0].Keyword)
	assert.Equal(t, "let's cook dinner", entries[0].Detail)
	assert.Equal(t, noon, entries[0].At)
}

func TestHandleMessageQueuedIncludesEarlierMessages(t *testing.T) {
	e := newTestEngine(neverRand())
	e.HandleMessage("u1", "hi", noon)
	e.Sweep(noon.Add(time.Hour))

	ctx := e.HandleMessage("u1", "back again", noon.Add(2*time.Hour))
	var kinds []string
	for _, m := range ctx.Queued {
		kinds = append(kinds, m.Kind)
	}
	assert.Equal(t, []string{KindVanish, KindWelcomeBack}, kinds)

	assert.Len(t, e.Poll("u1"), 2, "queue is still drained by poll")
	assert.Empty(t, e.HandleMessage("u1", "again", noon.Add(3*time.Hour)).Queued)
}

func TestHistoryAndReply(t *testing.T) {
	e := newTestEngine(neverRand())
	ctx := e.HandleMessage("u1", "hello there", noon)
	require.Len(t, ctx.History, 1)

	e.AppendReply("u1", "hi!")
	assert.Equal(t, []Turn{
		{Role: RoleUser, Content: "hello there"},
		{Role: RoleAssistant, Content: "hi!"},
	}, e.History("u1"))
}

func TestHistoryEviction(t *testing.T) {
	u := newUserState("u1", noon)
	for i := 0; i < 40; i++ {
		u.pushHistory(Turn{Role: RoleUser, Content: string(rune('A' + i))}, 35)
	}
	require.Len(t, u.history, 35)
	assert.Equal(t, string(rune('A'+5)), u.history[0].Content)
	assert.Equal(t, string(rune('A'+39)), u.history[34].Content)
	for i := 1; i < len(u.history); i++ {
		assert.Less(t, u.history[i-1].Content, u.history[i].Content)
	}
}

func TestSettingsMerge(t *testing.T) {
	e := newTestEngine(neverRand())
	assert.Equal(t, DefaultSettings(), e.Settings("u1"))

	hi, lo := 1.7, 0.2
	voice := true
	got := e.UpdateSettings("u1", SettingsPatch{
		Personality: &PersonalityPatch{Playfulness: &hi, Caring: &lo},
		OptIn:       &OptInPatch{Voice: &voice},
		SpecialDays: []string{"2025-02-14"},
	})

	assert.Equal(t, 1.0, got.Personality.Playfulness)
	assert.Equal(t, 0.2, got.Personality.Caring)
	assert.Equal(t, 0.7, got.Personality.Romantic, "untouched slider keeps its value")
	assert.True(t, got.OptIn.Proactive)
	assert.True(t, got.OptIn.Voice)
	assert.Equal(t, []string{"2025-02-14"}, got.SpecialDays)
	assert.Equal(t, got, e.Settings("u1"))
}
