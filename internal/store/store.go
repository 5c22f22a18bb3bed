// Package store mirrors coordination records into SQLite so a restarted
// instance can rebuild its in-memory state. The core never reads it on
// the hot path; writers react to published events and the seed path
// replays rows into the coordinator at startup.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Enable WAL mode for concurrent read/write access and set a busy
	// timeout so writers retry instead of immediately returning SQLITE_BUSY.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("exec %s: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS agents (
			id              TEXT PRIMARY KEY,
			name            TEXT NOT NULL,
			type            TEXT,
			role            TEXT,
			capabilities    TEXT,
			priority        INTEGER DEFAULT 5,
			status          TEXT NOT NULL,
			swarm_id        TEXT,
			current_task_id TEXT,
			tasks_completed INTEGER DEFAULT 0,
			last_active     DATETIME,
			memory          TEXT,
			context         TEXT,
			created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agents_swarm ON agents(swarm_id)`,
		`CREATE TABLE IF NOT EXISTS swarms (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			description   TEXT,
			status        TEXT NOT NULL,
			shared_memory TEXT,
			owner         TEXT,
			agent_ids     TEXT,
			task_ids      TEXT,
			created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id                    TEXT PRIMARY KEY,
			type                  TEXT NOT NULL,
			description           TEXT,
			status                TEXT NOT NULL,
			priority              INTEGER DEFAULT 0,
			swarm_id              TEXT,
			assigned_agents       TEXT,
			dependencies          TEXT,
			required_capabilities TEXT,
			result                TEXT,
			error                 TEXT,
			progress              INTEGER DEFAULT 0,
			context               TEXT,
			deadline              DATETIME,
			parent_id             TEXT,
			subtask_ids           TEXT,
			created_at            DATETIME DEFAULT CURRENT_TIMESTAMP,
			assigned_at           DATETIME,
			completed_at          DATETIME,
			failed_at             DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_swarm ON tasks(swarm_id)`,
		`CREATE TABLE IF NOT EXISTS agent_messages (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_id   TEXT NOT NULL,
			sender     TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_agent ON agent_messages(agent_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS schedules (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			schedule    TEXT NOT NULL,
			task_spec   TEXT NOT NULL,
			status      TEXT DEFAULT 'active',
			next_run_at DATETIME,
			last_run_at DATETIME,
			last_status TEXT,
			last_error  TEXT,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_schedules_next_run ON schedules(status, next_run_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}

	return nil
}

// encodeJSON marshals v for a TEXT column; nil and empty values store
// as NULL so zero rows scan back into zero values.
func encodeJSON(v any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	str := string(data)
	if str == "null" || str == "[]" || str == "{}" {
		return nil, nil
	}
	return &str, nil
}

func decodeJSON(raw *string, out any) error {
	if raw == nil || *raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(*raw), out)
}
