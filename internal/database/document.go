// Copyright (c) 2025 Northbound System
package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/northbound/ragcore/internal/domain"
)

// DocumentStore persists Document rows.
type DocumentStore struct {
	db *sql.DB
}

// NewDocumentStore wraps db.
func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Create inserts a new Document with status "uploaded".
func (s *DocumentStore) Create(ctx context.Context, workspaceID, uploaderID, filename, contentType, storageKey string, byteSize int64) (*domain.Document, error) {
	d := &domain.Document{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		UploaderID:  uploaderID,
		Filename:    filename,
		ContentType: contentType,
		ByteSize:    byteSize,
		StorageKey:  storageKey,
		Status:      domain.DocumentUploaded,
		UploadedAt:  time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, workspace_id, uploader_id, filename, content_type, byte_size, storage_key, status, error, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, '', ?)`,
		d.ID, d.WorkspaceID, d.UploaderID, d.Filename, d.ContentType, d.ByteSize, d.StorageKey, d.Status, d.UploadedAt,
	)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "create document", err)
	}
	return d, nil
}

// Get loads a Document by id, scoped to workspaceID.
func (s *DocumentStore) Get(ctx context.Context, workspaceID, id string) (*domain.Document, error) {
	var d domain.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, uploader_id, filename, content_type, byte_size, storage_key, status, error, uploaded_at
		 FROM documents WHERE id = ? AND workspace_id = ?`, id, workspaceID,
	).Scan(&d.ID, &d.WorkspaceID, &d.UploaderID, &d.Filename, &d.ContentType, &d.ByteSize, &d.StorageKey, &d.Status, &d.Error, &d.UploadedAt)
	if err == sql.ErrNoRows {
		return nil, domain.New(domain.KindNotFound, "document not found: "+id)
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "get document", err)
	}
	return &d, nil
}

// SetStatus transitions a Document's status, optionally recording error text.
func (s *DocumentStore) SetStatus(ctx context.Context, id string, status domain.DocumentStatus, errText string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE documents SET status = ?, error = ? WHERE id = ?", status, errText, id)
	if err != nil {
		return domain.Wrap(domain.KindInternal, "set document status", err)
	}
	return nil
}

// CountByWorkspace returns the number of non-deleted documents owned by
// workspaceID, used to enforce the plan's per-workspace document limit.
func (s *DocumentStore) CountByWorkspace(ctx context.Context, workspaceID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE workspace_id = ? AND status != ?`,
		workspaceID, domain.DocumentDeleted,
	).Scan(&n)
	if err != nil {
		return 0, domain.Wrap(domain.KindInternal, "count workspace documents", err)
	}
	return n, nil
}

// ListByWorkspace returns all documents for workspaceID, newest first.
func (s *DocumentStore) ListByWorkspace(ctx context.Context, workspaceID string) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workspace_id, uploader_id, filename, content_type, byte_size, storage_key, status, error, uploaded_at
		 FROM documents WHERE workspace_id = ? ORDER BY uploaded_at DESC`, workspaceID)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "list documents", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.WorkspaceID, &d.UploaderID, &d.Filename, &d.ContentType, &d.ByteSize, &d.StorageKey, &d.Status, &d.Error, &d.UploadedAt); err != nil {
			return nil, domain.Wrap(domain.KindInternal, "scan document", err)
		}
		docs = append(docs, d)
	}
	return docs, nil
}
