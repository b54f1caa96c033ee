package parser

import (
	"fmt"
	"strings"

	"github.com/nguyenthenguyen/docx"

	"github.com/northbound/ragcore/internal/domain"
)

// parseDOCX extracts one Text Block per non-empty paragraph from a DOCX
// file. The reader doesn't expose paragraph style, so heading detection
// falls back to the shared classification heuristics.
func parseDOCX(filePath string) ([]domain.TextBlock, error) {
	doc, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open DOCX file: %w", err)
	}
	defer doc.Close()

	content := strings.TrimSpace(doc.Editable().GetContent())
	if content == "" {
		return nil, nil
	}

	lines := strings.Split(content, "\n")
	var paragraphs []string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			paragraphs = append(paragraphs, l)
		}
	}

	return blocksFromParagraphs(paragraphs, nil), nil
}
