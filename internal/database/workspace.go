// Copyright (c) 2025 Northbound System
package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/northbound/ragcore/internal/domain"
)

// WorkspaceStore persists Workspace and User rows.
type WorkspaceStore struct {
	db *sql.DB
}

// NewWorkspaceStore wraps db; the schema is created by Open.
func NewWorkspaceStore(db *sql.DB) *WorkspaceStore {
	return &WorkspaceStore{db: db}
}

// Create inserts a new Workspace, seeding plan tier.
func (s *WorkspaceStore) Create(ctx context.Context, name string, tier domain.PlanTier) (*domain.Workspace, error) {
	w := &domain.Workspace{
		ID:        uuid.NewString(),
		Name:      name,
		PlanTier:  tier,
		Active:    true,
		CreatedAt: time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO workspaces (id, name, plan_tier, active, created_at) VALUES (?, ?, ?, ?, ?)",
		w.ID, w.Name, w.PlanTier, w.Active, w.CreatedAt,
	)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "create workspace", err)
	}
	return w, nil
}

// Get loads a Workspace by id.
func (s *WorkspaceStore) Get(ctx context.Context, id string) (*domain.Workspace, error) {
	var w domain.Workspace
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, plan_tier, active, created_at FROM workspaces WHERE id = ?", id,
	).Scan(&w.ID, &w.Name, &w.PlanTier, &w.Active, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.New(domain.KindNotFound, "workspace not found: "+id)
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "get workspace", err)
	}
	return &w, nil
}

// Deactivate marks a Workspace inactive. Workspaces are never deleted.
func (s *WorkspaceStore) Deactivate(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE workspaces SET active = FALSE WHERE id = ?", id)
	if err != nil {
		return domain.Wrap(domain.KindInternal, "deactivate workspace", err)
	}
	return nil
}

// CreateUser inserts a new User bound to workspaceID.
func (s *WorkspaceStore) CreateUser(ctx context.Context, workspaceID, email, passwordSHA string) (*domain.User, error) {
	u := &domain.User{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Email:       email,
		PasswordSHA: passwordSHA,
		Active:      true,
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, workspace_id, email, password_sha, active) VALUES (?, ?, ?, ?, ?)",
		u.ID, u.WorkspaceID, u.Email, u.PasswordSHA, u.Active,
	)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "create user", err)
	}
	return u, nil
}

// GetUser loads a User by id, scoped to workspaceID so a user from another
// workspace is reported NotFound rather than leaked.
func (s *WorkspaceStore) GetUser(ctx context.Context, workspaceID, userID string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, workspace_id, email, password_sha, active FROM users WHERE id = ? AND workspace_id = ?",
		userID, workspaceID,
	).Scan(&u.ID, &u.WorkspaceID, &u.Email, &u.PasswordSHA, &u.Active)
	if err == sql.ErrNoRows {
		return nil, domain.New(domain.KindNotFound, "user not found: "+userID)
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "get user", err)
	}
	return &u, nil
}

// synthNamespace is the fixed UUIDv5 namespace for deterministic synthetic
// widget users (§9 "Ambiguities in source").
var synthNamespace = uuid.MustParse("8f14e45f-ceea-467e-bd36-6d6a9c6eaa91")

// SyntheticWidgetUser returns a deterministic id for the anonymous user
// associated with widget sessions on workspaceID, so the same workspace
// always maps to the same synthetic user without a collision-prone shared
// id.
func SyntheticWidgetUser(workspaceID string) string {
	return uuid.NewSHA1(synthNamespace, []byte(workspaceID)).String()
}
