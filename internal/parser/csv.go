package parser

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/northbound/ragcore/internal/domain"
)

// parseCSV renders each data row as a table_row block, the same shape as
// an Excel sheet, followed by one summary block.
func parseCSV(filePath string) ([]domain.TextBlock, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	headers := rows[0]
	var blocks []domain.TextBlock
	dataRows := 0
	for rowIdx := 1; rowIdx < len(rows); rowIdx++ {
		row := rows[rowIdx]
		var parts []string
		for colIdx, header := range headers {
			if colIdx >= len(row) || row[colIdx] == "" {
				continue
			}
			value := strings.TrimSpace(row[colIdx])
			if value == "" {
				continue
			}
			headerName := strings.TrimSpace(header)
			if headerName == "" {
				headerName = fmt.Sprintf("Column %d", colIdx+1)
			}
			parts = append(parts, fmt.Sprintf("%s: %s", headerName, value))
		}
		if len(parts) == 0 {
			continue
		}
		text := strings.Join(parts, " | ")
		blocks = append(blocks, domain.TextBlock{
			Text:       text,
			Type:       domain.BlockTableRow,
			Importance: importanceScore(text, domain.BlockTableRow),
		})
		dataRows++
	}

	summary := fmt.Sprintf("%d rows, %d columns (%s)", dataRows, len(headers), strings.Join(headers, ", "))
	blocks = append(blocks, domain.TextBlock{
		Text:       summary,
		Type:       domain.BlockSummary,
		Importance: importanceScore(summary, domain.BlockSummary),
	})

	return blocks, nil
}
