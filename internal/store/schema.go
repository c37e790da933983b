package store

const Schema = `
CREATE TABLE IF NOT EXISTS channels (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'inactive',
	config TEXT NOT NULL DEFAULT '{}',
	last_connected_at DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS groups (
	id TEXT PRIMARY KEY,
	channel_id TEXT NOT NULL,
	external_id TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL DEFAULT '',
	folder TEXT UNIQUE NOT NULL,
	trigger_phrase TEXT NOT NULL DEFAULT '',
	requires_trigger BOOLEAN NOT NULL DEFAULT 1,
	is_main BOOLEAN NOT NULL DEFAULT 0,
	backend TEXT NOT NULL DEFAULT '',
	run_timeout_ms INTEGER NOT NULL DEFAULT 0,
	idle_timeout_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_groups_channel ON groups(channel_id);
CREATE INDEX IF NOT EXISTS idx_groups_external ON groups(channel_id, external_id);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	group_id TEXT NOT NULL,
	channel_id TEXT NOT NULL,
	external_id TEXT NOT NULL DEFAULT '',
	sender_name TEXT NOT NULL DEFAULT '',
	sender_external_id TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	is_from_bot BOOLEAN NOT NULL DEFAULT 0,
	processed_at DATETIME,
	metadata TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_messages_group ON messages(group_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_unprocessed ON messages(group_id, is_from_bot, processed_at);

CREATE TABLE IF NOT EXISTS agent_sessions (
	id TEXT PRIMARY KEY,
	group_id TEXT NOT NULL,
	transcript_path TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	message_count INTEGER NOT NULL DEFAULT 0,
	last_activity_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	resume_token TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_sessions_group ON agent_sessions(group_id, status, last_activity_at);

CREATE TABLE IF NOT EXISTS scheduled_tasks (
	id TEXT PRIMARY KEY,
	group_id TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	prompt TEXT NOT NULL DEFAULT '',
	schedule_type TEXT NOT NULL DEFAULT 'once',
	schedule TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	classification TEXT NOT NULL DEFAULT 'internal',
	next_run_at DATETIME,
	last_run_at DATETIME,
	run_count INTEGER NOT NULL DEFAULT 0,
	max_runs INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_tasks_group ON scheduled_tasks(group_id);
CREATE INDEX IF NOT EXISTS idx_tasks_due ON scheduled_tasks(status, next_run_at);

CREATE TABLE IF NOT EXISTS task_run_logs (
	id TEXT PRIMARY KEY,
	group_id TEXT NOT NULL,
	task_id TEXT NOT NULL DEFAULT '',
	session_id TEXT NOT NULL DEFAULT '',
	trigger_source TEXT NOT NULL DEFAULT 'message',
	classification TEXT NOT NULL DEFAULT 'internal',
	backend TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'running',
	prompt TEXT NOT NULL DEFAULT '',
	result TEXT NOT NULL DEFAULT '',
	error_text TEXT NOT NULL DEFAULT '',
	started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	completed_at DATETIME,
	duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_run_logs_group ON task_run_logs(group_id, started_at);
CREATE INDEX IF NOT EXISTS idx_run_logs_status ON task_run_logs(status);

CREATE TABLE IF NOT EXISTS webhook_sources (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	group_id TEXT NOT NULL,
	secret TEXT NOT NULL DEFAULT '',
	enabled BOOLEAN NOT NULL DEFAULT 1,
	sender_name TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
