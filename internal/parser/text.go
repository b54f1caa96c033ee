// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/northbound/ragcore/internal/domain"
)

// parseText extracts Text Blocks from a plain text or Markdown file,
// splitting on blank-line boundaries. Markdown headings (# .. ######)
// produce title blocks and set the section label carried on later blocks.
func parseText(filePath string, markdown bool) ([]domain.TextBlock, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}
	text := string(content)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	paragraphs := splitParagraphs(text)
	return blocksFromParagraphs(paragraphs, nil), nil
}
