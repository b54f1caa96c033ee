// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"encoding/json"
	"net/http"

	"github.com/northbound/ragcore/internal/domain"
	"github.com/northbound/ragcore/internal/rag"
)

// ChatHandler exposes the RAG Orchestrator's process_query entry point to
// authenticated tenant-staff callers.
type ChatHandler struct {
	orchestrator *rag.Orchestrator
}

// NewChatHandler constructs a ChatHandler.
func NewChatHandler(orchestrator *rag.Orchestrator) *ChatHandler {
	return &ChatHandler{orchestrator: orchestrator}
}

// QueryRequest is the POST /api/v1/chat/query payload.
type QueryRequest struct {
	Query         string   `json:"query"`
	SessionID     string   `json:"session_id,omitempty"`
	DocumentIDs   []string `json:"document_ids,omitempty"`
	ResponseStyle string   `json:"response_style,omitempty"`
}

// QueryResponse mirrors rag.Answer over the wire.
type QueryResponse struct {
	SessionID        string          `json:"session_id"`
	Answer           string          `json:"answer"`
	Sources          []domain.Source `json:"sources,omitempty"`
	Confidence       string          `json:"confidence"`
	ProcessingTimeMS int             `json:"processing_time_ms"`
	Degraded         bool            `json:"degraded"`
}

// HandleQuery handles POST /api/v1/chat/query.
func (h *ChatHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	user, ok := userFromContext(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Query == "" {
		writeJSONError(w, http.StatusBadRequest, "query is required")
		return
	}

	answer, err := h.orchestrator.Process(r.Context(), rag.Query{
		WorkspaceID:   user.WorkspaceID,
		UserID:        user.ID,
		SessionID:     req.SessionID,
		Text:          req.Query,
		DocumentIDs:   req.DocumentIDs,
		ResponseStyle: domain.ResponseStyle(req.ResponseStyle),
	})
	if err != nil {
		writeJSONDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(QueryResponse{
		SessionID:        answer.SessionID,
		Answer:           answer.Answer,
		Sources:          answer.Sources,
		Confidence:       string(answer.Confidence),
		ProcessingTimeMS: answer.ProcessingTimeMS,
		Degraded:         answer.Degraded,
	})
}
