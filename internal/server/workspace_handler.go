// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"encoding/json"
	"net/http"

	"github.com/northbound/ragcore/internal/database"
	"github.com/northbound/ragcore/internal/domain"
)

// WorkspaceHandler provisions a new tenant: a Workspace, its first User,
// and the Subscription that seeds the Quota Manager's period tracking.
// Unlike the other handlers, it runs ahead of AuthMiddleware by
// construction, since the identity it issues is what AuthMiddleware will
// later trust.
type WorkspaceHandler struct {
	workspaces    *database.WorkspaceStore
	subscriptions *database.SubscriptionStore
}

// NewWorkspaceHandler constructs a WorkspaceHandler.
func NewWorkspaceHandler(workspaces *database.WorkspaceStore, subscriptions *database.SubscriptionStore) *WorkspaceHandler {
	return &WorkspaceHandler{workspaces: workspaces, subscriptions: subscriptions}
}

// CreateWorkspaceRequest is the POST /api/v1/workspaces payload.
type CreateWorkspaceRequest struct {
	Name        string        `json:"name"`
	PlanTier    domain.PlanTier `json:"plan_tier,omitempty"`
	OwnerEmail  string        `json:"owner_email"`
}

// HandleCreate handles POST /api/v1/workspaces: onboard a tenant and its
// first staff user in one call.
func (h *WorkspaceHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req CreateWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Name == "" || req.OwnerEmail == "" {
		writeJSONError(w, http.StatusBadRequest, "name and owner_email are required")
		return
	}
	tier := req.PlanTier
	if tier == "" {
		tier = domain.PlanFree
	}

	ws, err := h.workspaces.Create(r.Context(), req.Name, tier)
	if err != nil {
		writeJSONDomainError(w, err)
		return
	}
	user, err := h.workspaces.CreateUser(r.Context(), ws.ID, req.OwnerEmail, "")
	if err != nil {
		writeJSONDomainError(w, err)
		return
	}
	sub, err := h.subscriptions.Create(r.Context(), ws.ID, tier)
	if err != nil {
		writeJSONDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"workspace":    ws,
		"user":         user,
		"subscription": sub,
	})
}
