package persona

import "time"

// Snapshot is the persisted form of one user's state. Short-term history,
// the outbound queue and the day log are process-local and not included.
type Snapshot struct {
	UserID       string         `json:"user_id"`
	Mood         Mood           `json:"mood"`
	Bond         int            `json:"bond"`
	LastActiveAt time.Time      `json:"last_active"`
	Vanished     bool           `json:"vanished"`
	Fight        Fight          `json:"fight"`
	Settings     Settings       `json:"settings"`
	Planned      []PlannedEvent `json:"planned"`
	Durable      []Memory       `json:"durable"`
	Ephemeral    []Memory       `json:"ephemeral"`
}

// Export copies every user's persistent state. Users are locked one at a
// time, so the result is per-user consistent.
func (e *Engine) Export() []Snapshot {
	ids := e.users.IDs()
	out := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		u := e.users.Lookup(id)
		if u == nil {
			continue
		}
		u.mu.Lock()
		out = append(out, Snapshot{
			UserID:       u.ID,
			Mood:         u.Mood,
			Bond:         u.Bond,
			LastActiveAt: u.LastActiveAt,
			Vanished:     u.Vanished,
			Fight:        u.Fight,
			Settings:     copySettings(u.Settings),
			Planned:      append([]PlannedEvent{}, u.planned...),
			Durable:      u.memories.Durable(),
			Ephemeral:    u.memories.Ephemeral(),
		})
		u.mu.Unlock()
	}
	return out
}

// Restore replaces the state of every user named in snaps. Values are
// normalized on the way in: bond and sliders are clamped, an empty mood
// becomes happy, and duplicate durable texts collapse to the first.
func (e *Engine) Restore(snaps []Snapshot) {
	for _, s := range snaps {
		if s.UserID == "" {
			continue
		}
		u := newUserState(s.UserID, s.LastActiveAt)
		if s.Mood != "" {
			u.Mood = s.Mood
		}
		u.Bond = clampBond(s.Bond)
		u.Vanished = s.Vanished
		u.Fight = s.Fight
		u.Settings = normalizeSettings(s.Settings)
		u.planned = append([]PlannedEvent{}, s.Planned...)
		for _, m := range s.Durable {
			u.memories.Promote(m)
		}
		for _, m := range s.Ephemeral {
			if !u.memories.hasDurable(normalizeText(m.Text)) {
				u.memories.AddEphemeral(m)
			}
		}
		e.users.put(u)
	}
}

func normalizeSettings(s Settings) Settings {
	if s.Personality == (Personality{}) && s.OptIn == (OptIn{}) && len(s.SpecialDays) == 0 {
		return DefaultSettings()
	}
	s.Personality = s.Personality.clamped()
	return copySettings(s)
}
