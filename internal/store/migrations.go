package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create messages and tasks",
		SQL: `
			CREATE TABLE messages (
				id          TEXT PRIMARY KEY,
				user_id     TEXT NOT NULL,
				role        TEXT NOT NULL,
				content     TEXT NOT NULL,
				metadata    TEXT,
				timestamp   TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_messages_user ON messages (user_id, timestamp);

			CREATE TABLE tasks (
				id           TEXT PRIMARY KEY,
				user_id      TEXT NOT NULL,
				title        TEXT NOT NULL,
				description  TEXT NOT NULL DEFAULT '',
				due_date     TEXT,
				completed    INTEGER NOT NULL DEFAULT 0,
				priority     TEXT NOT NULL DEFAULT 'medium',
				created_at   TEXT NOT NULL DEFAULT (datetime('now')),
				completed_at TEXT
			);

			CREATE INDEX idx_tasks_user ON tasks (user_id, created_at);
			CREATE INDEX idx_tasks_completed ON tasks (completed, completed_at);
		`,
	},
	{
		Version: 2,
		Name:    "create actor state blobs",
		SQL: `
			CREATE TABLE actor_state (
				user_id    TEXT PRIMARY KEY,
				version    INTEGER NOT NULL DEFAULT 1,
				payload    TEXT NOT NULL,
				updated_at TEXT NOT NULL DEFAULT (datetime('now'))
			);
		`,
	},
	{
		Version: 3,
		Name:    "create workflow runs",
		SQL: `
			CREATE TABLE workflow_runs (
				id           TEXT PRIMARY KEY,
				user_id      TEXT NOT NULL,
				task_id      TEXT NOT NULL DEFAULT '',
				action       TEXT NOT NULL,
				due_date     TEXT,
				task_title   TEXT NOT NULL DEFAULT '',
				status       TEXT NOT NULL DEFAULT 'pending',
				wake_at      TEXT,
				step_results TEXT NOT NULL DEFAULT '{}',
				error        TEXT NOT NULL DEFAULT '',
				created_at   TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_runs_user ON workflow_runs (user_id);
			CREATE INDEX idx_runs_due ON workflow_runs (status, wake_at);
		`,
	},
	{
		Version: 4,
		Name:    "create knowledge chunks with FTS5",
		SQL: `
			CREATE TABLE knowledge_chunks (
				id         TEXT PRIMARY KEY,
				user_id    TEXT NOT NULL,
				content    TEXT NOT NULL,
				metadata   TEXT,
				created_at TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_knowledge_user ON knowledge_chunks (user_id);

			CREATE VIRTUAL TABLE knowledge_fts USING fts5(
				content,
				content='knowledge_chunks',
				content_rowid='rowid'
			);

			CREATE TRIGGER knowledge_ai AFTER INSERT ON knowledge_chunks BEGIN
				INSERT INTO knowledge_fts(rowid, content)
				VALUES (new.rowid, new.content);
			END;

			CREATE TRIGGER knowledge_ad AFTER DELETE ON knowledge_chunks BEGIN
				INSERT INTO knowledge_fts(knowledge_fts, rowid, content)
				VALUES ('delete', old.rowid, old.content);
			END;
		`,
	},
}
