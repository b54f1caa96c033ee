// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/northbound/ragcore/internal/database"
	"github.com/northbound/ragcore/internal/domain"
)

type contextKey string

const userContextKey contextKey = "user"

// AuthMiddleware resolves the caller's identity for tenant-staff requests.
// Credential storage and password hashing are an external collaborator's
// responsibility (§1 Non-goals); this middleware trusts the workspace and
// user ids an upstream auth gateway has already verified and carries in
// X-Workspace-Id / X-User-Id, the same header-handoff shape the teacher
// used for its API-key identity, generalized to workspace scoping.
func AuthMiddleware(workspaces *database.WorkspaceStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			workspaceID := r.Header.Get("X-Workspace-Id")
			userID := r.Header.Get("X-User-Id")
			if workspaceID == "" || userID == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing workspace or user identity")
				return
			}

			user, err := workspaces.GetUser(r.Context(), workspaceID, userID)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid workspace or user identity")
				return
			}
			if !user.Active {
				writeJSONError(w, http.StatusForbidden, "user is deactivated")
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// userFromContext returns the authenticated User bound by AuthMiddleware.
func userFromContext(r *http.Request) (*domain.User, bool) {
	u, ok := r.Context().Value(userContextKey).(*domain.User)
	return u, ok
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSONDomainError maps a domain.Error's Kind to an HTTP status, per
// the classification table in §5.
func writeJSONDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch domain.KindOf(err) {
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindPermissionDenied:
		status = http.StatusForbidden
	case domain.KindQuotaExceeded:
		status = http.StatusTooManyRequests
	case domain.KindUnavailable, domain.KindDeadlineExceeded:
		status = http.StatusServiceUnavailable
	case domain.KindContentFiltered:
		status = http.StatusUnprocessableEntity
	case domain.KindCorrupted:
		status = http.StatusBadRequest
	}
	writeJSONError(w, status, err.Error())
}
