// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package parser

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/northbound/ragcore/internal/domain"
	"github.com/northbound/ragcore/internal/logger"
)

// Extract routes file bytes to the appropriate format extractor based on
// filename extension (content-type is advisory; extension is authoritative,
// matching what uploaders reliably send). Returns the ordered Text Blocks.
func Extract(data []byte, filename string) ([]domain.TextBlock, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !IsSupportedExt(ext) {
		return nil, domain.New(domain.KindValidation, "unsupported file type: "+ext)
	}

	tmp, err := writeTemp(ext, data)
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "stage file for extraction", err)
	}
	defer os.Remove(tmp)

	var blocks []domain.TextBlock
	switch ext {
	case ".pdf":
		blocks, err = parsePDF(tmp)
	case ".docx":
		blocks, err = parseDOCX(tmp)
	case ".txt", ".md":
		blocks, err = parseText(tmp, ext == ".md")
	case ".xlsx", ".xls":
		blocks, err = parseExcel(tmp)
	case ".csv":
		blocks, err = parseCSV(tmp)
	case ".html", ".htm":
		blocks, err = parseHTML(tmp)
	case ".eml":
		blocks, err = parseEmail(tmp)
	default:
		return nil, domain.New(domain.KindValidation, "unsupported file type: "+ext)
	}
	if err != nil {
		return nil, domain.Wrap(domain.KindCorrupted, "extract "+ext+" content", err)
	}

	logger.Printf("parser: extracted %d blocks from %s (%s)", len(blocks), filename, ext)
	return blocks, nil
}

func writeTemp(ext string, data []byte) (string, error) {
	f, err := os.CreateTemp("", "ragcore-extract-*"+ext)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return "", err
	}
	return f.Name(), nil
}

// IsSupportedExt reports whether ext (including the leading dot) is a
// recognized content type.
func IsSupportedExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".txt", ".md", ".xlsx", ".xls", ".csv", ".html", ".htm", ".eml":
		return true
	default:
		return false
	}
}

// IsTemporaryFile checks if a filename looks like an editor/OS scratch file
// that should never reach the ingestion pipeline (e.g. ~$doc.docx).
func IsTemporaryFile(filePath string) bool {
	base := filepath.Base(filePath)
	if strings.HasPrefix(base, "~$") {
		return true
	}
	if strings.HasPrefix(base, "._") {
		return true
	}
	if strings.HasSuffix(base, ".tmp") {
		return true
	}
	return false
}
