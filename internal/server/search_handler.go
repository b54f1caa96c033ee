// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"encoding/json"
	"net/http"

	"github.com/northbound/ragcore/internal/retrieval"
)

// SearchHandler exposes the Retrieval Engine (C7) directly, independent of
// generation, for callers that want ranked chunks without an LLM turn.
type SearchHandler struct {
	retrieval *retrieval.Engine
}

// NewSearchHandler constructs a SearchHandler.
func NewSearchHandler(engine *retrieval.Engine) *SearchHandler {
	return &SearchHandler{retrieval: engine}
}

// SearchRequest is the POST /api/v1/search payload.
type SearchRequest struct {
	Query       string   `json:"query"`
	Mode        string   `json:"mode,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
	DocumentIDs []string `json:"document_ids,omitempty"`
}

// HandleSearch handles POST /api/v1/search.
func (h *SearchHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	user, ok := userFromContext(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Query == "" {
		writeJSONError(w, http.StatusBadRequest, "query is required")
		return
	}

	mode := retrieval.ModeHybrid
	if req.Mode != "" {
		mode = retrieval.Mode(req.Mode)
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}

	results, err := h.retrieval.Search(r.Context(), retrieval.Request{
		WorkspaceID: user.WorkspaceID,
		Query:       req.Query,
		Mode:        mode,
		TopK:        topK,
		DocumentIDs: req.DocumentIDs,
	})
	if err != nil {
		writeJSONDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}
