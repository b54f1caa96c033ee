package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/northbound/ragcore/internal/domain"
)

// parseHTML extracts Text Blocks from an HTML file, removing script and
// style tags and classifying one block per block-level element.
func parseHTML(filePath string) ([]domain.TextBlock, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open HTML file: %w", err)
	}
	defer file.Close()

	doc, err := goquery.NewDocumentFromReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	var paragraphs []string
	doc.Find("h1, h2, h3, h4, h5, h6, p, li, pre, td").Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	if len(paragraphs) == 0 {
		text := strings.TrimSpace(doc.Text())
		if text == "" {
			return nil, nil
		}
		paragraphs = splitParagraphs(text)
	}

	return blocksFromParagraphs(paragraphs, nil), nil
}
