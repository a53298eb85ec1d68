package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "users: per-user relationship state",
		SQL: `
CREATE TABLE users (
    user_id        TEXT PRIMARY KEY,
    mood           TEXT NOT NULL DEFAULT 'happy',
    bond           INTEGER NOT NULL DEFAULT 0 CHECK (bond BETWEEN 0 AND 100),
    last_active    INTEGER NOT NULL,
    vanished       INTEGER NOT NULL DEFAULT 0,
    fight_active   INTEGER NOT NULL DEFAULT 0,
    fight_since    INTEGER,
    planned        TEXT NOT NULL DEFAULT '[]',
    updated_at     INTEGER NOT NULL
);

CREATE INDEX idx_users_last_active ON users(last_active DESC);
`,
	},
	{
		Version:     2,
		Description: "memories: ephemeral and durable utterances",
		SQL: `
CREATE TABLE memories (
    id             TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL,
    text           TEXT NOT NULL,
    mood           TEXT NOT NULL,
    emotion_score  REAL NOT NULL DEFAULT 0,
    collection     TEXT NOT NULL CHECK (collection IN ('ephemeral', 'durable')),
    created_at     INTEGER NOT NULL,

    FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE
);

CREATE INDEX idx_memories_user    ON memories(user_id, collection, created_at);
CREATE INDEX idx_memories_created ON memories(created_at);
`,
	},
	{
		Version:     3,
		Description: "user_settings: personality sliders and opt-ins",
		SQL: `
CREATE TABLE user_settings (
    user_id        TEXT PRIMARY KEY,
    playfulness    REAL NOT NULL CHECK (playfulness BETWEEN 0 AND 1),
    romantic       REAL NOT NULL CHECK (romantic BETWEEN 0 AND 1),
    talkative      REAL NOT NULL CHECK (talkative BETWEEN 0 AND 1),
    caring         REAL NOT NULL CHECK (caring BETWEEN 0 AND 1),
    opt_proactive  INTEGER NOT NULL DEFAULT 1,
    opt_voice      INTEGER NOT NULL DEFAULT 0,
    special_days   TEXT NOT NULL DEFAULT '[]',
    updated_at     INTEGER NOT NULL,

    FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
