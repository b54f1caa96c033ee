// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package database

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/northbound/ragcore/internal/domain"
)

// EmbedCodeStore persists EmbedCode rows — the Embed Code Issuer's (C13)
// storage, generalized from the teacher's api_keys table (GenerateKey /
// ValidateKey / RevokeKey) to carry widget config and origin allowlists.
type EmbedCodeStore struct {
	db *sql.DB
}

// NewEmbedCodeStore wraps db.
func NewEmbedCodeStore(db *sql.DB) *EmbedCodeStore {
	return &EmbedCodeStore{db: db}
}

// generateAPIKey returns a cryptographically random, base64url-encoded key
// with at least 24 bytes of entropy, per §3's EmbedCode contract.
func generateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "wgt_" + base64.RawURLEncoding.EncodeToString(buf), nil
}

// Mint inserts a new EmbedCode with a freshly generated API key.
func (s *EmbedCodeStore) Mint(ctx context.Context, workspaceID, issuerUserID, name string, cfg domain.WidgetConfig, allowedOrigins []string) (*domain.EmbedCode, error) {
	key, err := generateAPIKey()
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "generate embed code key", err)
	}
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "marshal widget config", err)
	}

	ec := &domain.EmbedCode{
		ID:             uuid.NewString(),
		WorkspaceID:    workspaceID,
		IssuerUserID:   issuerUserID,
		Name:           name,
		APIKey:         key,
		Config:         cfg,
		AllowedOrigins: allowedOrigins,
		Active:         true,
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO embed_codes (id, workspace_id, issuer_user_id, name, api_key, config, allowed_origins, active, usage_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		ec.ID, ec.WorkspaceID, ec.IssuerUserID, ec.Name, ec.APIKey, string(configJSON), strings.Join(allowedOrigins, ","), ec.Active,
	)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "mint embed code", err)
	}
	return ec, nil
}

// Rotate generates a fresh API key for embedID and atomically replaces it.
func (s *EmbedCodeStore) Rotate(ctx context.Context, embedID string) (string, error) {
	key, err := generateAPIKey()
	if err != nil {
		return "", domain.Wrap(domain.KindInternal, "generate embed code key", err)
	}
	res, err := s.db.ExecContext(ctx, "UPDATE embed_codes SET api_key = ? WHERE id = ?", key, embedID)
	if err != nil {
		return "", domain.Wrap(domain.KindInternal, "rotate embed code", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return "", domain.New(domain.KindNotFound, "embed code not found: "+embedID)
	}
	return key, nil
}

// Deactivate sets active=false; the widget transport refuses new
// connections for this embed from the next lookup onward.
func (s *EmbedCodeStore) Deactivate(ctx context.Context, embedID string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE embed_codes SET active = FALSE WHERE id = ?", embedID)
	if err != nil {
		return domain.Wrap(domain.KindInternal, "deactivate embed code", err)
	}
	return nil
}

// ByAPIKey resolves an EmbedCode by its bearer key, for widget handshake
// authentication. Returns NotFound for an unknown key and
// PermissionDenied for an inactive one.
func (s *EmbedCodeStore) ByAPIKey(ctx context.Context, apiKey string) (*domain.EmbedCode, error) {
	var ec domain.EmbedCode
	var configJSON, origins string
	var lastUsed sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, issuer_user_id, name, api_key, config, allowed_origins, active, usage_count, last_used_at
		 FROM embed_codes WHERE api_key = ?`, apiKey,
	).Scan(&ec.ID, &ec.WorkspaceID, &ec.IssuerUserID, &ec.Name, &ec.APIKey, &configJSON, &origins, &ec.Active, &ec.UsageCount, &lastUsed)
	if err == sql.ErrNoRows {
		return nil, domain.New(domain.KindNotFound, "embed code not found")
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "lookup embed code", err)
	}
	if !ec.Active {
		return nil, domain.New(domain.KindPermissionDenied, "embed code is inactive")
	}
	_ = json.Unmarshal([]byte(configJSON), &ec.Config)
	if origins != "" {
		ec.AllowedOrigins = strings.Split(origins, ",")
	}
	if lastUsed.Valid {
		ec.LastUsedAt = &lastUsed.Time
	}
	return &ec, nil
}

// ByID resolves an EmbedCode by its own id, for the widget script endpoint
// (§6) where the URL names the embed rather than carrying its bearer key.
func (s *EmbedCodeStore) ByID(ctx context.Context, id string) (*domain.EmbedCode, error) {
	var ec domain.EmbedCode
	var configJSON, origins string
	var lastUsed sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, workspace_id, issuer_user_id, name, api_key, config, allowed_origins, active, usage_count, last_used_at
		 FROM embed_codes WHERE id = ?`, id,
	).Scan(&ec.ID, &ec.WorkspaceID, &ec.IssuerUserID, &ec.Name, &ec.APIKey, &configJSON, &origins, &ec.Active, &ec.UsageCount, &lastUsed)
	if err == sql.ErrNoRows {
		return nil, domain.New(domain.KindNotFound, "embed code not found: "+id)
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "lookup embed code by id", err)
	}
	_ = json.Unmarshal([]byte(configJSON), &ec.Config)
	if origins != "" {
		ec.AllowedOrigins = strings.Split(origins, ",")
	}
	if lastUsed.Valid {
		ec.LastUsedAt = &lastUsed.Time
	}
	return &ec, nil
}

// RecordUsage increments the usage counter and stamps last_used_at.
func (s *EmbedCodeStore) RecordUsage(ctx context.Context, embedID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE embed_codes SET usage_count = usage_count + 1, last_used_at = ? WHERE id = ?",
		time.Now(), embedID,
	)
	if err != nil {
		return domain.Wrap(domain.KindInternal, "record embed code usage", err)
	}
	return nil
}
