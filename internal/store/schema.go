package store

// migrations is the ordered list of schema steps. migrations[i] brings
// a database at version i to version i+1; the current version lives in
// SQLite's user_version header field. Append only — removing or
// renaming a column would require resetting the indexing_state row,
// while temporal_index rows stay valid across any schema change (they
// are plain historical facts).
var migrations = []string{
	// v1: temporal index, indexing progress, notes.
	`
-- One row per (commit, file): the file was modified in that commit.
CREATE TABLE IF NOT EXISTS temporal_index (
	commit_hash      TEXT    NOT NULL,
	file_path        TEXT    NOT NULL,
	commit_timestamp INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (commit_hash, file_path)
);

CREATE INDEX IF NOT EXISTS idx_temporal_file ON temporal_index(file_path);

-- Singleton indexing progress record.
CREATE TABLE IF NOT EXISTS indexing_state (
	id              INTEGER PRIMARY KEY CHECK (id = 1),
	head_commit     TEXT    NOT NULL,
	resume_cursor   TEXT,
	commits_indexed INTEGER NOT NULL DEFAULT 0,
	strategy        TEXT    NOT NULL,
	is_complete     INTEGER NOT NULL DEFAULT 0,
	last_updated    INTEGER NOT NULL,
	target_path     TEXT
);

-- Free-text notes attached to files, optionally scoped to a symbol.
CREATE TABLE IF NOT EXISTS memories (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	file_path   TEXT NOT NULL,
	symbol_name TEXT,
	content     TEXT NOT NULL,
	created_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_memories_file ON memories(file_path);
`,

	// v2: usage metrics.
	`
-- Usage events recorded after each command completes.
CREATE TABLE IF NOT EXISTS metrics_events (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type          TEXT    NOT NULL,
	file_path           TEXT,
	coupled_files_count INTEGER NOT NULL DEFAULT 0,
	critical_risk_count INTEGER NOT NULL DEFAULT 0,
	high_risk_count     INTEGER NOT NULL DEFAULT 0,
	medium_risk_count   INTEGER NOT NULL DEFAULT 0,
	low_risk_count      INTEGER NOT NULL DEFAULT 0,
	test_files_found    INTEGER NOT NULL DEFAULT 0,
	test_intents_count  INTEGER NOT NULL DEFAULT 0,
	commit_count        INTEGER NOT NULL DEFAULT 0,
	analysis_time_ms    INTEGER NOT NULL DEFAULT 0,
	note_id             INTEGER,
	repo_root           TEXT    NOT NULL,
	created_at          TEXT    NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_metrics_repo ON metrics_events(repo_root);
CREATE INDEX IF NOT EXISTS idx_metrics_type ON metrics_events(event_type);
`,
}
