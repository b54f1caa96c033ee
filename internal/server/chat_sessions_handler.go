// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/northbound/ragcore/internal/database"
)

// SessionsHandler exposes chat session history for the session-resume flow
// described in §8 Scenario 6 (reconnect with a known session_id, replay
// prior turns before the next chat_message persists).
type SessionsHandler struct {
	sessions *database.SessionStore
}

// NewSessionsHandler constructs a SessionsHandler.
func NewSessionsHandler(sessions *database.SessionStore) *SessionsHandler {
	return &SessionsHandler{sessions: sessions}
}

// HandleGetSession handles GET /api/v1/sessions/{id}.
func (h *SessionsHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	user, ok := userFromContext(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	sessionID := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	sessionID = strings.TrimSuffix(sessionID, "/messages")
	sessionID = strings.Trim(sessionID, "/")
	if sessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "session id required")
		return
	}

	session, err := h.sessions.Get(r.Context(), user.WorkspaceID, sessionID)
	if err != nil {
		writeJSONDomainError(w, err)
		return
	}

	messages, err := h.sessions.History(r.Context(), session.ID)
	if err != nil {
		writeJSONDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"session":  session,
		"messages": messages,
	})
}
