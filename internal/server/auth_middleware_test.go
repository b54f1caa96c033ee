// Copyright (c) 2025 Northbound System
package server

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northbound/ragcore/internal/database"
	"github.com/northbound/ragcore/internal/domain"
)

func newTestWorkspaceStore(t *testing.T) (*database.WorkspaceStore, *sql.DB) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "ragcore_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return database.NewWorkspaceStore(db), db
}

func TestAuthMiddleware_RejectsMissingHeaders(t *testing.T) {
	workspaces, _ := newTestWorkspaceStore(t)
	called := false
	mw := AuthMiddleware(workspaces)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/chat/query", nil)
	w := httptest.NewRecorder()
	mw.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)
	assert.False(t, called)
}

func TestAuthMiddleware_RejectsUnknownUser(t *testing.T) {
	workspaces, _ := newTestWorkspaceStore(t)
	mw := AuthMiddleware(workspaces)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run for an unknown identity")
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/chat/query", nil)
	r.Header.Set("X-Workspace-Id", "ws-does-not-exist")
	r.Header.Set("X-User-Id", "user-does-not-exist")
	w := httptest.NewRecorder()
	mw.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)
}

func TestAuthMiddleware_RejectsDeactivatedUser(t *testing.T) {
	workspaces, db := newTestWorkspaceStore(t)
	ws, err := workspaces.Create(t.Context(), "acme", domain.PlanFree)
	require.NoError(t, err)
	user, err := workspaces.CreateUser(t.Context(), ws.ID, "owner@acme.test", "")
	require.NoError(t, err)
	_, err = db.Exec("UPDATE users SET active = FALSE WHERE id = ?", user.ID)
	require.NoError(t, err)

	mw := AuthMiddleware(workspaces)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run for a deactivated user")
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/chat/query", nil)
	r.Header.Set("X-Workspace-Id", ws.ID)
	r.Header.Set("X-User-Id", user.ID)
	w := httptest.NewRecorder()
	mw.ServeHTTP(w, r)

	assert.Equal(t, http.StatusForbidden, w.Result().StatusCode)
}

func TestAuthMiddleware_AcceptsKnownActiveUser(t *testing.T) {
	workspaces, _ := newTestWorkspaceStore(t)
	ws, err := workspaces.Create(t.Context(), "acme", domain.PlanFree)
	require.NoError(t, err)
	user, err := workspaces.CreateUser(t.Context(), ws.ID, "owner@acme.test", "")
	require.NoError(t, err)

	var seen *domain.User
	mw := AuthMiddleware(workspaces)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := userFromContext(r)
		require.True(t, ok)
		seen = u
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/chat/query", nil)
	r.Header.Set("X-Workspace-Id", ws.ID)
	r.Header.Set("X-User-Id", user.ID)
	w := httptest.NewRecorder()
	mw.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Result().StatusCode)
	require.NotNil(t, seen)
	assert.Equal(t, user.ID, seen.ID)
}

func TestWriteJSONDomainError_MapsKindToStatus(t *testing.T) {
	cases := map[domain.Kind]int{
		domain.KindValidation:       http.StatusBadRequest,
		domain.KindNotFound:         http.StatusNotFound,
		domain.KindPermissionDenied: http.StatusForbidden,
		domain.KindQuotaExceeded:    http.StatusTooManyRequests,
		domain.KindUnavailable:      http.StatusServiceUnavailable,
		domain.KindContentFiltered:  http.StatusUnprocessableEntity,
		domain.KindInternal:         http.StatusInternalServerError,
	}
	for kind, status := range cases {
		w := httptest.NewRecorder()
		writeJSONDomainError(w, domain.New(kind, "boom"))
		assert.Equal(t, status, w.Result().StatusCode, "kind=%s", kind)
	}
}
