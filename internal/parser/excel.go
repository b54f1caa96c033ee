package parser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/northbound/ragcore/internal/domain"
)

// parseExcel renders each data row as a table_row block ("col: val | col:
// val | ..."), followed by one summary block per sheet recording row and
// column counts and column names.
func parseExcel(filePath string) ([]domain.TextBlock, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheetList := f.GetSheetList()
	if len(sheetList) == 0 {
		return nil, nil
	}

	var blocks []domain.TextBlock
	for _, sheetName := range sheetList {
		section := sheetName

		rows, err := f.GetRows(sheetName)
		if err != nil || len(rows) == 0 {
			continue
		}

		headers := rows[0]
		if len(headers) == 0 {
			continue
		}

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
				Section:    section,
				Importance: importanceScore(text, domain.BlockTableRow),
			})
			dataRows++
		}

		summary := fmt.Sprintf("Sheet %q: %d rows, %d columns (%s)", sheetName, dataRows, len(headers), strings.Join(headers, ", "))
		blocks = append(blocks, domain.TextBlock{
			Text:       summary,
			Type:       domain.BlockSummary,
			Section:    section,
			Importance: importanceScore(summary, domain.BlockSummary),
		})
	}

	return blocks, nil
}
