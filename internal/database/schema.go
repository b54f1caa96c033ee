// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/northbound/ragcore/internal/domain"
	"github.com/northbound/ragcore/internal/logger"
)

// Open opens (creating if necessary) the SQLite database at path and runs
// schema migrations.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate")
	if err != nil {
		return nil, domain.Wrap(domain.KindUnavailable, "open sqlite database", err)
	}
	if err := db.Ping(); err != nil {
		return nil, domain.Wrap(domain.KindUnavailable, "ping sqlite database", err)
	}
	if err := initSchema(db); err != nil {
		return nil, err
	}
	return db, nil
}

const baseSchema = `
CREATE TABLE IF NOT EXISTS workspaces (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	plan_tier TEXT NOT NULL DEFAULT 'free',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL REFERENCES workspaces(id),
	email TEXT NOT NULL UNIQUE,
	password_sha TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_users_workspace ON users(workspace_id);

CREATE TABLE IF NOT EXISTS subscriptions (
	workspace_id TEXT PRIMARY KEY REFERENCES workspaces(id),
	tier TEXT NOT NULL,
	status TEXT NOT NULL,
	period_start DATETIME NOT NULL,
	period_end DATETIME NOT NULL,
	monthly_quota INTEGER,
	queries_this_period INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL REFERENCES workspaces(id),
	uploader_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	content_type TEXT NOT NULL,
	byte_size INTEGER NOT NULL,
	storage_key TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'uploaded',
	error TEXT NOT NULL DEFAULT '',
	uploaded_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_documents_workspace ON documents(workspace_id);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);

CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id),
	workspace_id TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	text TEXT NOT NULL,
	block_count INTEGER NOT NULL DEFAULT 0,
	total_length INTEGER NOT NULL DEFAULT 0,
	mean_importance REAL NOT NULL DEFAULT 0,
	block_types TEXT NOT NULL DEFAULT '',
	sections TEXT NOT NULL DEFAULT '',
	pages TEXT NOT NULL DEFAULT '',
	UNIQUE(document_id, chunk_index)
);
CREATE INDEX IF NOT EXISTS idx_chunks_workspace ON chunks(workspace_id);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	chunk_id UNINDEXED,
	workspace_id UNINDEXED,
	document_id UNINDEXED,
	text
);

CREATE TABLE IF NOT EXISTS chat_sessions (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL REFERENCES workspaces(id),
	user_id TEXT NOT NULL,
	session_key TEXT NOT NULL UNIQUE,
	label TEXT NOT NULL DEFAULT '',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	last_activity DATETIME DEFAULT CURRENT_TIMESTAMP,
	ended_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_sessions_workspace ON chat_sessions(workspace_id);

CREATE TABLE IF NOT EXISTS chat_messages (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES chat_sessions(id),
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	model TEXT NOT NULL DEFAULT '',
	response_time_ms INTEGER,
	token_count INTEGER,
	sources TEXT NOT NULL DEFAULT '[]',
	confidence TEXT NOT NULL DEFAULT '',
	flagged BOOLEAN NOT NULL DEFAULT FALSE,
	flag_reason TEXT NOT NULL DEFAULT '',
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(session_id, created_at);

CREATE TABLE IF NOT EXISTS embed_codes (
	id TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL REFERENCES workspaces(id),
	issuer_user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	api_key TEXT NOT NULL UNIQUE,
	config TEXT NOT NULL DEFAULT '{}',
	allowed_origins TEXT NOT NULL DEFAULT '',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	usage_count INTEGER NOT NULL DEFAULT 0,
	last_used_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_embed_codes_workspace ON embed_codes(workspace_id);

CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
	event_type TEXT NOT NULL,
	document_id TEXT NOT NULL,
	details TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_events_document ON events(document_id);
`

// columnsOf returns the set of column names present on table, using the
// PRAGMA table_info introspection pattern so new columns can be added to an
// existing deployment without a destructive migration.
func columnsOf(db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, dataType string
		var notNull, pk int
		var defaultValue interface{}
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return nil, err
		}
		columns[name] = true
	}
	return columns, nil
}

// addColumnIfMissing runs an ALTER TABLE only when the column is absent,
// the same migration-in-place pattern used for api_keys.last_seen_at in
// the original hive deployment.
func addColumnIfMissing(db *sql.DB, table, column, ddl string) error {
	columns, err := columnsOf(db, table)
	if err != nil {
		return err
	}
	if columns[column] {
		return nil
	}
	logger.Printf("database: migrating %s: adding column %s", table, column)
	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, ddl))
	return err
}

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(baseSchema); err != nil {
		return domain.Wrap(domain.KindInternal, "create base schema", err)
	}

	// Example of the additive migration pattern applied going forward:
	// a future column is added here, never by rewriting baseSchema's
	// CREATE TABLE for an already-deployed table.
	if err := addColumnIfMissing(db, "documents", "error", "error TEXT NOT NULL DEFAULT ''"); err != nil {
		return domain.Wrap(domain.KindInternal, "migrate documents.error", err)
	}

	return nil
}
