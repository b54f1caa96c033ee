// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/northbound/ragcore/internal/database"
	"github.com/northbound/ragcore/internal/domain"
	"github.com/northbound/ragcore/internal/ingest"
	"github.com/northbound/ragcore/internal/parser"
	"github.com/northbound/ragcore/internal/storage"
)

// IngestHandler accepts a document upload, persists its bytes, records a
// Document row, and enqueues the Ingestion Worker (C6) job that chunks,
// embeds, and indexes it.
type IngestHandler struct {
	storage          storage.Adapter
	documents        *database.DocumentStore
	workspaces       *database.WorkspaceStore
	pipeline         *ingest.Pipeline
	maxFileSizeBytes int64
}

// NewIngestHandler constructs an IngestHandler.
func NewIngestHandler(adapter storage.Adapter, documents *database.DocumentStore, workspaces *database.WorkspaceStore, pipeline *ingest.Pipeline, maxFileSizeBytes int64) *IngestHandler {
	return &IngestHandler{
		storage:          adapter,
		documents:        documents,
		workspaces:       workspaces,
		pipeline:         pipeline,
		maxFileSizeBytes: maxFileSizeBytes,
	}
}

// HandleUpload handles POST /api/v1/documents, a multipart/form-data upload
// with a single "file" field, per §4.1's Storage Adapter contract.
func (h *IngestHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	user, ok := userFromContext(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSizeBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "file too large or unreadable")
		return
	}
	if int64(len(data)) > h.maxFileSizeBytes {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "file exceeds the maximum upload size")
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !parser.IsSupportedExt(ext) {
		writeJSONError(w, http.StatusUnprocessableEntity, "unsupported file type: "+ext)
		return
	}

	if err := h.checkDocumentLimit(r, user.WorkspaceID); err != nil {
		writeJSONDomainError(w, err)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key, err := h.storage.Put(r.Context(), user.WorkspaceID, data, contentType)
	if err != nil {
		writeJSONDomainError(w, err)
		return
	}

	doc, err := h.documents.Create(r.Context(), user.WorkspaceID, user.ID, header.Filename, contentType, key, int64(len(data)))
	if err != nil {
		writeJSONDomainError(w, err)
		return
	}

	if err := h.pipeline.Enqueue(r.Context(), doc.ID, user.WorkspaceID); err != nil {
		writeJSONDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(doc)
}

// checkDocumentLimit enforces the workspace's plan-tier document count
// limit, per §6's "workspace over document limit" upload error condition.
func (h *IngestHandler) checkDocumentLimit(r *http.Request, workspaceID string) error {
	ws, err := h.workspaces.Get(r.Context(), workspaceID)
	if err != nil {
		return err
	}
	limit := domain.DefaultDocumentLimit(ws.PlanTier)
	if limit == nil {
		return nil
	}
	count, err := h.documents.CountByWorkspace(r.Context(), workspaceID)
	if err != nil {
		return err
	}
	if count >= *limit {
		return domain.New(domain.KindValidation, "workspace has reached its document limit")
	}
	return nil
}

// HandleGetDocument handles GET /api/v1/documents/{id}.
func (h *IngestHandler) HandleGetDocument(w http.ResponseWriter, r *http.Request, id string) {
	user, ok := userFromContext(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	doc, err := h.documents.Get(r.Context(), user.WorkspaceID, id)
	if err != nil {
		writeJSONDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

// HandleListDocuments handles GET /api/v1/documents.
func (h *IngestHandler) HandleListDocuments(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	docs, err := h.documents.ListByWorkspace(r.Context(), user.WorkspaceID)
	if err != nil {
		writeJSONDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(docs)
}
