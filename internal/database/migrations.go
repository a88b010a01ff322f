package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS games (
    game_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    publisher TEXT DEFAULT 'Unknown',
    version TEXT DEFAULT '1.0',
    description TEXT DEFAULT '',
    complexity TEXT DEFAULT 'medium',
    min_players INTEGER DEFAULT 1,
    max_players INTEGER DEFAULT 2,
    rule_count INTEGER DEFAULT 0,
    categories TEXT,
    ai_tags TEXT,
    auto_registered INTEGER DEFAULT 1,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS rules (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    game_id TEXT NOT NULL REFERENCES games(game_id) ON DELETE CASCADE,
    category_id TEXT NOT NULL,
    content_type TEXT DEFAULT 'rule_text',
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    ancestors TEXT,
    tokens INTEGER DEFAULT 0,
    complexity_score REAL DEFAULT 0.5,
    mandatory INTEGER DEFAULT 1,
    source_file TEXT,
    section_index INTEGER DEFAULT 0,
    chunk_index INTEGER DEFAULT 0,
    embedding TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS upload_tasks (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL DEFAULT 'processing',
    filename TEXT,
    files TEXT,
    progress REAL DEFAULT 0,
    total_files INTEGER DEFAULT 0,
    processed_files INTEGER DEFAULT 0,
    total_chunks INTEGER DEFAULT 0,
    processed_chunks INTEGER DEFAULT 0,
    games_registered TEXT,
    errors TEXT,
    started_at TEXT DEFAULT (datetime('now')),
    completed_at TEXT
);

CREATE INDEX IF NOT EXISTS idx_rules_game ON rules(game_id);
CREATE INDEX IF NOT EXISTS idx_rules_category ON rules(game_id, category_id);
CREATE INDEX IF NOT EXISTS idx_upload_tasks_started ON upload_tasks(started_at);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
