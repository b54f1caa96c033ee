// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package parser

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/northbound/ragcore/internal/domain"
)

// parsePDF extracts Text Blocks from a PDF file using go-fitz (MuPDF):
// each page's plain text is split into paragraphs on blank lines. Layout
// information (font size, bounding box) is not used, and a page whose
// text cannot be extracted is skipped.
// API reference: https://pkg.go.dev/github.com/gen2brain/go-fitz
func parsePDF(filePath string) ([]domain.TextBlock, error) {
	doc, err := fitz.New(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var blocks []domain.TextBlock
	numPages := doc.NumPage()

	for i := 0; i < numPages; i++ {
		pageText, err := doc.Text(i)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		page := i + 1
		blocks = append(blocks, blocksFromParagraphs(splitParagraphs(pageText), &page)...)
	}

	return blocks, nil
}
