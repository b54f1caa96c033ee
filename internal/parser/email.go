// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package parser

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mnako/letters"

	"github.com/northbound/ragcore/internal/domain"
)

// parseEmail extracts Text Blocks from an EML file: one title block for
// the subject/sender/date header, then one block per body paragraph.
func parseEmail(filePath string) ([]domain.TextBlock, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open EML file: %w", err)
	}
	defer file.Close()

	email, err := letters.ParseEmail(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse EML file: %w", err)
	}

	var blocks []domain.TextBlock
	var header strings.Builder
	if email.Headers.Subject != "" {
		header.WriteString(fmt.Sprintf("Subject: %s\n", email.Headers.Subject))
	}
	if len(email.Headers.From) > 0 {
		from := email.Headers.From[0]
		sender := from.Address
		if from.Name != "" {
			sender = fmt.Sprintf("%s <%s>", from.Name, from.Address)
		}
		header.WriteString(fmt.Sprintf("Sender: %s\n", sender))
	}
	if !email.Headers.Date.IsZero() {
		header.WriteString(fmt.Sprintf("Date: %s\n", email.Headers.Date.Format(time.RFC3339)))
	}
	headerText := strings.TrimSpace(header.String())
	if headerText != "" {
		blocks = append(blocks, domain.TextBlock{
			Text:       headerText,
			Type:       domain.BlockTitle,
			Section:    email.Headers.Subject,
			Importance: importanceScore(headerText, domain.BlockTitle),
		})
	}

	bodyText := email.Text
	if bodyText == "" {
		bodyText = email.HTML
	}
	bodyText = strings.TrimSpace(bodyText)
	if bodyText != "" {
		for _, b := range blocksFromParagraphs(splitParagraphs(bodyText), nil) {
			b.Section = email.Headers.Subject
			blocks = append(blocks, b)
		}
	}

	return blocks, nil
}
