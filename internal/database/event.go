// Copyright (c) 2025 Northbound System
package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/northbound/ragcore/internal/domain"
)

// IngestEventStore logs ingestion lifecycle events (retries, dead-letters,
// parse failures) for operator visibility, generalized from the hive
// deployment's events table to key off document_id instead of endpoint id.
type IngestEventStore struct {
	db *sql.DB
}

// NewIngestEventStore wraps db.
func NewIngestEventStore(db *sql.DB) *IngestEventStore {
	return &IngestEventStore{db: db}
}

// IngestEvent is one logged occurrence in a document's ingestion lifecycle.
type IngestEvent struct {
	ID         int64
	Timestamp  time.Time
	EventType  string
	DocumentID string
	Details    string
}

// Log records an event for documentID. eventType is a short label such as
// "attempt_failed", "retry_scheduled", or "dead_lettered".
func (s *IngestEventStore) Log(ctx context.Context, documentID, eventType, details string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO events (event_type, document_id, details) VALUES (?, ?, ?)",
		eventType, documentID, details,
	)
	if err != nil {
		return domain.Wrap(domain.KindInternal, "log ingest event", err)
	}
	return nil
}

// ByDocument returns all logged events for documentID, oldest first.
func (s *IngestEventStore) ByDocument(ctx context.Context, documentID string) ([]IngestEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, event_type, document_id, details
		 FROM events WHERE document_id = ? ORDER BY timestamp`, documentID)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "list document events", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Recent returns the most recently logged events across all documents,
// newest first, for an operator-facing ingest activity feed.
func (s *IngestEventStore) Recent(ctx context.Context, limit int) ([]IngestEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, event_type, document_id, details
		 FROM events ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "list recent events", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]IngestEvent, error) {
	var events []IngestEvent
	for rows.Next() {
		var e IngestEvent
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.EventType, &e.DocumentID, &details); err != nil {
			return nil, domain.Wrap(domain.KindInternal, "scan ingest event", err)
		}
		e.Details = details.String
		events = append(events, e)
	}
	return events, nil
}
