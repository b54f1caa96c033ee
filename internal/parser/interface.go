// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package parser

import "github.com/northbound/ragcore/internal/domain"

// Extractor defines the interface for all format-specific text extractors (C2).
type Extractor interface {
	// Extract pulls structured Text Blocks out of file bytes.
	Extract(data []byte) ([]domain.TextBlock, error)
}
