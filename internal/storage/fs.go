// Copyright (c) 2025 Northbound System
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/northbound/ragcore/internal/domain"
)

// FSAdapter is the local filesystem Storage Adapter implementation.
// Keys have the form "<workspace_id>/<sha256-hex>".
type FSAdapter struct {
	root string
}

// NewFSAdapter creates an adapter rooted at dir, creating it if missing.
func NewFSAdapter(dir string) (*FSAdapter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, domain.Wrap(domain.KindUnavailable, "create storage root", err)
	}
	return &FSAdapter{root: dir}, nil
}

func (a *FSAdapter) keyPath(key string) string {
	return filepath.Join(a.root, filepath.FromSlash(key))
}

func contentKey(workspaceID string, data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s/%s", workspaceID, hex.EncodeToString(sum[:]))
}

func (a *FSAdapter) Put(_ context.Context, workspaceID string, data []byte, _ string) (string, error) {
	key := contentKey(workspaceID, data)
	path := a.keyPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", domain.Wrap(domain.KindUnavailable, "create storage dir", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", domain.Wrap(domain.KindUnavailable, "write storage object", err)
	}
	return key, nil
}

func (a *FSAdapter) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(a.keyPath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.New(domain.KindNotFound, "storage object not found: "+key)
		}
		return nil, domain.Wrap(domain.KindUnavailable, "read storage object", err)
	}
	return data, nil
}

func (a *FSAdapter) Delete(_ context.Context, key string) error {
	if err := os.Remove(a.keyPath(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return domain.Wrap(domain.KindUnavailable, "delete storage object", err)
	}
	return nil
}

var _ Adapter = (*FSAdapter)(nil)
