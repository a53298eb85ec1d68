package persona

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// recentPerCollection caps how many memories each collection contributes
// to the reply context before truncation.
const recentPerCollection = 6

// Memory is a recorded utterance. Only its collection membership changes
// after creation.
type Memory struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Text         string    `json:"text"`
	Mood         Mood      `json:"mood"`
	EmotionScore float64   `json:"emotion_score"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewMemory builds a memory with a fresh time-ordered ID.
func NewMemory(userID, text string, score float64, mood Mood, now time.Time) Memory {
	if mood == "" {
		mood = "neutral"
	}
	return Memory{
		ID:           newMemoryID(now),
		UserID:       userID,
		Text:         text,
		Mood:         mood,
		EmotionScore: clamp(score, 0, 1),
		CreatedAt:    now,
	}
}

// newMemoryID returns a UUIDv7, falling back to a random v4 with a
// millisecond prefix if the v7 generator fails.
func newMemoryID(now time.Time) string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString())
}

// normalizeText is the key used for duplicate detection.
func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Memories holds one user's ephemeral and durable collections, oldest
// first. A normalized text lives in at most one collection.
type Memories struct {
	userID    string
	ephemeral []Memory
	durable   []Memory
}

// Ephemeral returns a copy of the ephemeral collection.
func (m *Memories) Ephemeral() []Memory {
	return append([]Memory(nil), m.ephemeral...)
}

// Durable returns a copy of the durable collection.
func (m *Memories) Durable() []Memory {
	return append([]Memory(nil), m.durable...)
}

// Len is the total number of memories across both collections.
func (m *Memories) Len() int {
	return len(m.ephemeral) + len(m.durable)
}

// RepeatCount counts prior memories in either collection whose normalized
// text equals text's.
func (m *Memories) RepeatCount(text string) int {
	key := normalizeText(text)
	n := 0
	for _, mem := range m.ephemeral {
		if normalizeText(mem.Text) == key {
			n++
		}
	}
	for _, mem := range m.durable {
		if normalizeText(mem.Text) == key {
			n++
		}
	}
	return n
}

// Promote moves mem into the durable collection. The insert is skipped if
// a durable duplicate exists; ephemeral duplicates are always removed.
// It reports whether a durable entry was added.
func (m *Memories) Promote(mem Memory) bool {
	key := normalizeText(mem.Text)

	inserted := false
	if !m.hasDurable(key) {
		m.durable = append(m.durable, mem)
		inserted = true
	}

	kept := m.ephemeral[:0]
	for _, e := range m.ephemeral {
		if normalizeText(e.Text) != key {
			kept = append(kept, e)
		}
	}
	clear(m.ephemeral[len(kept):])
	m.ephemeral = kept
	return inserted
}

func (m *Memories) hasDurable(key string) bool {
	for _, d := range m.durable {
		if normalizeText(d.Text) == key {
			return true
		}
	}
	return false
}

// AddEphemeral appends mem to the ephemeral collection.
func (m *Memories) AddEphemeral(mem Memory) {
	m.ephemeral = append(m.ephemeral, mem)
}

// FindEphemeral returns the ephemeral memory with id, if any.
func (m *Memories) FindEphemeral(id string) (Memory, bool) {
	for _, e := range m.ephemeral {
		if e.ID == id {
			return e, true
		}
	}
	return Memory{}, false
}

// Delete removes the memory with id from whichever collection holds it.
// It reports whether anything was removed.
func (m *Memories) Delete(id string) bool {
	var removed bool
	m.ephemeral, removed = removeByID(m.ephemeral, id)
	if removed {
		return true
	}
	m.durable, removed = removeByID(m.durable, id)
	return removed
}

func removeByID(list []Memory, id string) ([]Memory, bool) {
	for i, mem := range list {
		if mem.ID == id {
			return append(list[:i:i], list[i+1:]...), true
		}
	}
	return list, false
}

// Prune drops ephemeral memories created before cutoff. Durable memories
// are never pruned. It returns the number removed.
func (m *Memories) Prune(cutoff time.Time) int {
	kept := m.ephemeral[:0]
	for _, e := range m.ephemeral {
		if !e.CreatedAt.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	n := len(m.ephemeral) - len(kept)
	clear(m.ephemeral[len(kept):])
	m.ephemeral = kept
	return n
}

// PickForRecall chooses a memory to bring up unprompted, preferring durable
// ones with probability durableBias. It returns nil if there are none.
func (m *Memories) PickForRecall(rng Rand, durableBias float64) *Memory {
	if len(m.durable) > 0 && chance(rng, durableBias) {
		mem := pick(rng, m.durable)
		return &mem
	}
	if len(m.ephemeral) > 0 {
		mem := pick(rng, m.ephemeral)
		return &mem
	}
	if len(m.durable) > 0 {
		mem := pick(rng, m.durable)
		return &mem
	}
	return nil
}

// RelevantRecent returns up to limit memories for reply context: the newest
// durable ones first, then the newest ephemeral ones.
func (m *Memories) RelevantRecent(limit int) []Memory {
	out := make([]Memory, 0, 2*recentPerCollection)
	out = appendNewest(out, m.durable, recentPerCollection)
	out = appendNewest(out, m.ephemeral, recentPerCollection)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func appendNewest(dst, src []Memory, n int) []Memory {
	for i := len(src) - 1; i >= 0 && n > 0; i-- {
		dst = append(dst, src[i])
		n--
	}
	return dst
}
