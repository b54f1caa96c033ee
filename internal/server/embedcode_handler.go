// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/northbound/ragcore/internal/database"
	"github.com/northbound/ragcore/internal/domain"
)

// EmbedCodeHandler exposes the Embed Code Issuer (C13): minting, rotating,
// and deactivating widget credentials for a workspace.
type EmbedCodeHandler struct {
	embedCodes *database.EmbedCodeStore
}

// NewEmbedCodeHandler constructs an EmbedCodeHandler.
func NewEmbedCodeHandler(embedCodes *database.EmbedCodeStore) *EmbedCodeHandler {
	return &EmbedCodeHandler{embedCodes: embedCodes}
}

// MintRequest is the POST /api/v1/embed-codes payload.
type MintRequest struct {
	Name           string              `json:"name"`
	Config         domain.WidgetConfig `json:"config"`
	AllowedOrigins []string            `json:"allowed_origins,omitempty"`
}

// HandleMint handles POST /api/v1/embed-codes.
func (h *EmbedCodeHandler) HandleMint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user, ok := userFromContext(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Name == "" {
		writeJSONError(w, http.StatusBadRequest, "name is required")
		return
	}

	embed, err := h.embedCodes.Mint(r.Context(), user.WorkspaceID, user.ID, req.Name, req.Config, req.AllowedOrigins)
	if err != nil {
		writeJSONDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(embed)
}

// HandleRotate handles POST /api/v1/embed-codes/{id}/rotate.
func (h *EmbedCodeHandler) HandleRotate(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if _, ok := userFromContext(r); !ok {
		writeJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	key, err := h.embedCodes.Rotate(r.Context(), id)
	if err != nil {
		writeJSONDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"api_key": key})
}

// HandleDeactivate handles POST /api/v1/embed-codes/{id}/deactivate.
func (h *EmbedCodeHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if _, ok := userFromContext(r); !ok {
		writeJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := h.embedCodes.Deactivate(r.Context(), id); err != nil {
		writeJSONDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// EmbedCodeID extracts the {id} segment from paths shaped
// /api/v1/embed-codes/{id}/<action>.
func EmbedCodeID(path string) string {
	path = strings.TrimPrefix(path, "/api/v1/embed-codes/")
	if idx := strings.Index(path, "/"); idx >= 0 {
		path = path[:idx]
	}
	return strings.Trim(path, "/")
}
