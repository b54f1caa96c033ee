// Copyright (c) 2025 Northbound System
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/northbound/ragcore/internal/domain"
)

// SessionStore is the Session Store (C10): workspace-scoped chat sessions
// and messages, with at-least-once, idempotent-by-id appends.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore wraps db.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create starts a new ChatSession for userID in workspaceID.
func (s *SessionStore) Create(ctx context.Context, workspaceID, userID string) (*domain.ChatSession, error) {
	cs := &domain.ChatSession{
		ID:           uuid.NewString(),
		WorkspaceID:  workspaceID,
		UserID:       userID,
		SessionKey:   uuid.NewString(),
		Active:       true,
		LastActivity: time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, workspace_id, user_id, session_key, label, active, last_activity)
		 VALUES (?, ?, ?, ?, '', ?, ?)`,
		cs.ID, cs.WorkspaceID, cs.UserID, cs.SessionKey, cs.Active, cs.LastActivity,
	)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "create chat session", err)
	}
	return cs, nil
}

// Get loads a ChatSession by id, verifying it belongs to workspaceID.
func (s *SessionStore) Get(ctx context.Context, workspaceID, id string) (*domain.ChatSession, error) {
	var cs domain.ChatSession
	var ended sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, user_id, session_key, label, active, last_activity, ended_at
		 FROM chat_sessions WHERE id = ? AND workspace_id = ?`, id, workspaceID,
	).Scan(&cs.ID, &cs.WorkspaceID, &cs.UserID, &cs.SessionKey, &cs.Label, &cs.Active, &cs.LastActivity, &ended)
	if err == sql.ErrNoRows {
		return nil, domain.New(domain.KindNotFound, "chat session not found: "+id)
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "get chat session", err)
	}
	if ended.Valid {
		cs.EndedAt = &ended.Time
	}
	return &cs, nil
}

// Touch bumps last_activity to now.
func (s *SessionStore) Touch(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE chat_sessions SET last_activity = ? WHERE id = ?", time.Now(), id)
	if err != nil {
		return domain.Wrap(domain.KindInternal, "touch chat session", err)
	}
	return nil
}

// AppendMessage inserts or, for a retried identifier, no-ops (upsert) a
// ChatMessage — the at-least-once append contract from §4.10.
func (s *SessionStore) AppendMessage(ctx context.Context, sessionID string, msg domain.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	sourcesJSON, err := json.Marshal(msg.Sources)
	if err != nil {
		return domain.Wrap(domain.KindInternal, "marshal sources", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content, model, response_time_ms, token_count, sources, confidence, flagged, flag_reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		msg.ID, sessionID, msg.Role, msg.Content, msg.Model, msg.ResponseTimeMS, msg.TokenCount,
		string(sourcesJSON), msg.Confidence, msg.Flagged, msg.FlagReason, msg.CreatedAt,
	)
	if err != nil {
		return domain.Wrap(domain.KindInternal, "append chat message", err)
	}
	return nil
}

// History returns a session's messages in creation order (ties broken by
// id, matching §3's total-order rule).
func (s *SessionStore) History(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, model, response_time_ms, token_count, sources, confidence, flagged, flag_reason, created_at
		 FROM chat_messages WHERE session_id = ? ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "load chat history", err)
	}
	defer rows.Close()

	var messages []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		var sourcesJSON string
		var respTime, tokenCount sql.NullInt64
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Model, &respTime, &tokenCount, &sourcesJSON, &m.Confidence, &m.Flagged, &m.FlagReason, &m.CreatedAt); err != nil {
			return nil, domain.Wrap(domain.KindInternal, "scan chat message", err)
		}
		if respTime.Valid {
			v := int(respTime.Int64)
			m.ResponseTimeMS = &v
		}
		if tokenCount.Valid {
			v := int(tokenCount.Int64)
			m.TokenCount = &v
		}
		_ = json.Unmarshal([]byte(sourcesJSON), &m.Sources)
		messages = append(messages, m)
	}
	return messages, nil
}
