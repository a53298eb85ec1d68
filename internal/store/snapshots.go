package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lazypower/companion/internal/persona"
)

const (
	collectionEphemeral = "ephemeral"
	collectionDurable   = "durable"
)

// SaveSnapshots writes each user's state in one transaction. A user's
// memories are replaced wholesale, so deletions and prunes carry over.
// Users missing from snaps are left untouched.
func (db *DB) SaveSnapshots(snaps []persona.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	now := time.Now().UnixMilli()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	for _, s := range snaps {
		if err := saveUser(tx, s, now); err != nil {
			return fmt.Errorf("save user %s: %w", s.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func saveUser(tx *sql.Tx, s persona.Snapshot, now int64) error {
	planned, err := json.Marshal(nonNilPlanned(s.Planned))
	if err != nil {
		return fmt.Errorf("marshal planned: %w", err)
	}
	var fightSince *int64
	if s.Fight.Since != nil {
		ms := s.Fight.Since.UnixMilli()
		fightSince = &ms
	}

	_, err = tx.Exec(`
		INSERT INTO users (user_id, mood, bond, last_active, vanished, fight_active, fight_since, planned, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			mood = excluded.mood,
			bond = excluded.bond,
			last_active = excluded.last_active,
			vanished = excluded.vanished,
			fight_active = excluded.fight_active,
			fight_since = excluded.fight_since,
			planned = excluded.planned,
			updated_at = excluded.updated_at
	`, s.UserID, string(s.Mood), s.Bond, s.LastActiveAt.UnixMilli(), s.Vanished,
		s.Fight.Active, fightSince, string(planned), now)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	days := s.Settings.SpecialDays
	if days == nil {
		days = []string{}
	}
	specialDays, err := json.Marshal(days)
	if err != nil {
		return fmt.Errorf("marshal special days: %w", err)
	}
	p := s.Settings.Personality
	_, err = tx.Exec(`
		INSERT INTO user_settings (user_id, playfulness, romantic, talkative, caring, opt_proactive, opt_voice, special_days, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			playfulness = excluded.playfulness,
			romantic = excluded.romantic,
			talkative = excluded.talkative,
			caring = excluded.caring,
			opt_proactive = excluded.opt_proactive,
			opt_voice = excluded.opt_voice,
			special_days = excluded.special_days,
			updated_at = excluded.updated_at
	`, s.UserID, p.Playfulness, p.Romantic, p.Talkative, p.Caring,
		s.Settings.OptIn.Proactive, s.Settings.OptIn.Voice, string(specialDays), now)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM memories WHERE user_id = ?", s.UserID); err != nil {
		return fmt.Errorf("clear memories: %w", err)
	}
	insert, err := tx.Prepare(`
		INSERT INTO memories (id, user_id, text, mood, emotion_score, collection, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare memory insert: %w", err)
	}
	defer insert.Close()

	write := func(ms []persona.Memory, collection string) error {
		for _, m := range ms {
			if _, err := insert.Exec(m.ID, s.UserID, m.Text, string(m.Mood), m.EmotionScore, collection, m.CreatedAt.UnixMilli()); err != nil {
				return fmt.Errorf("insert memory %s: %w", m.ID, err)
			}
		}
		return nil
	}
	if err := write(s.Durable, collectionDurable); err != nil {
		return err
	}
	return write(s.Ephemeral, collectionEphemeral)
}

// LoadSnapshots reads every stored user, ordered by user ID, with memories
// oldest first.
func (db *DB) LoadSnapshots() ([]persona.Snapshot, error) {
	snaps, index, err := db.loadUsers()
	if err != nil {
		return nil, err
	}
	if err := db.loadSettings(snaps, index); err != nil {
		return nil, err
	}
	if err := db.loadMemories(snaps, index); err != nil {
		return nil, err
	}
	return snaps, nil
}

func (db *DB) loadUsers() ([]persona.Snapshot, map[string]int, error) {
	rows, err := db.Query(`
		SELECT user_id, mood, bond, last_active, vanished, fight_active, fight_since, planned
		FROM users ORDER BY user_id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load users: %w", err)
	}
	defer rows.Close()

	var snaps []persona.Snapshot
	index := make(map[string]int)
	for rows.Next() {
		var (
			s          persona.Snapshot
			mood       string
			lastActive int64
			fightSince *int64
			planned    string
		)
		if err := rows.Scan(&s.UserID, &mood, &s.Bond, &lastActive, &s.Vanished, &s.Fight.Active, &fightSince, &planned); err != nil {
			return nil, nil, fmt.Errorf("scan user: %w", err)
		}
		s.Mood = persona.Mood(mood)
		s.LastActiveAt = time.UnixMilli(lastActive).UTC()
		if fightSince != nil {
			t := time.UnixMilli(*fightSince).UTC()
			s.Fight.Since = &t
		}
		if err := json.Unmarshal([]byte(planned), &s.Planned); err != nil {
			return nil, nil, fmt.Errorf("decode planned for %s: %w", s.UserID, err)
		}
		s.Durable = []persona.Memory{}
		s.Ephemeral = []persona.Memory{}
		index[s.UserID] = len(snaps)
		snaps = append(snaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate users: %w", err)
	}
	return snaps, index, nil
}

func (db *DB) loadSettings(snaps []persona.Snapshot, index map[string]int) error {
	rows, err := db.Query(`
		SELECT user_id, playfulness, romantic, talkative, caring, opt_proactive, opt_voice, special_days
		FROM user_settings
	`)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID string
			st     persona.Settings
			days   string
		)
		p := &st.Personality
		if err := rows.Scan(&userID, &p.Playfulness, &p.Romantic, &p.Talkative, &p.Caring,
			&st.OptIn.Proactive, &st.OptIn.Voice, &days); err != nil {
			return fmt.Errorf("scan settings: %w", err)
		}
		if err := json.Unmarshal([]byte(days), &st.SpecialDays); err != nil {
			return fmt.Errorf("decode special days for %s: %w", userID, err)
		}
		if i, ok := index[userID]; ok {
			snaps[i].Settings = st
		}
	}
	return rows.Err()
}

func (db *DB) loadMemories(snaps []persona.Snapshot, index map[string]int) error {
	rows, err := db.Query(`
		SELECT id, user_id, text, mood, emotion_score, collection, created_at
		FROM memories ORDER BY created_at, rowid
	`)
	if err != nil {
		return fmt.Errorf("load memories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m          persona.Memory
			mood       string
			collection string
			createdAt  int64
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Text, &mood, &m.EmotionScore, &collection, &createdAt); err != nil {
			return fmt.Errorf("scan memory: %w", err)
		}
		m.Mood = persona.Mood(mood)
		m.CreatedAt = time.UnixMilli(createdAt).UTC()

		i, ok := index[m.UserID]
		if !ok {
			continue
		}
		if collection == collectionDurable {
			snaps[i].Durable = append(snaps[i].Durable, m)
		} else {
			snaps[i].Ephemeral = append(snaps[i].Ephemeral, m)
		}
	}
	return rows.Err()
}

// MemoryCounts returns the number of stored memories per collection.
func (db *DB) MemoryCounts() (durable, ephemeral int, err error) {
	err = db.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN collection = 'durable' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN collection = 'ephemeral' THEN 1 ELSE 0 END), 0)
		FROM memories
	`).Scan(&durable, &ephemeral)
	if err != nil {
		return 0, 0, fmt.Errorf("count memories: %w", err)
	}
	return durable, ephemeral, nil
}

func nonNilPlanned(p []persona.PlannedEvent) []persona.PlannedEvent {
	if p == nil {
		return []persona.PlannedEvent{}
	}
	return p
}
