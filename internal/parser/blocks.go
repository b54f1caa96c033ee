package parser

import (
	"math"
	"regexp"
	"strings"

	"github.com/northbound/ragcore/internal/domain"
)

var (
	titleLineRe = regexp.MustCompile(`^[A-Z][^.!?]*$`)
	listLineRe  = regexp.MustCompile(`^(\s*[-*•]\s+|\s*\d+\.\s+)`)
	codeLineRe  = regexp.MustCompile(`^(\s{4,}\S|[A-Za-z_][A-Za-z0-9_]*\s*=\s*\S)`)
)

// salienceTerms drive the +0.1-per-match importance bonus.
var salienceTerms = []string{
	"introduction", "summary", "conclusion", "overview", "important",
	"note", "warning", "key", "critical",
}

// classifyLine applies the block classification heuristics when the source
// format doesn't already carry structure (paragraph text, plain text, HTML).
func classifyLine(line string) domain.BlockType {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "#"):
		return domain.BlockTitle
	case strings.HasPrefix(trimmed, "```"):
		return domain.BlockCode
	case titleLineRe.MatchString(trimmed) && len(trimmed) < 80:
		return domain.BlockTitle
	case listLineRe.MatchString(line):
		return domain.BlockList
	case strings.Count(trimmed, "|") >= 3:
		return domain.BlockTable
	case codeLineRe.MatchString(line):
		return domain.BlockCode
	default:
		return domain.BlockParagraph
	}
}

// baseImportance is the type-keyed starting score from §4.2.
func baseImportance(t domain.BlockType) float64 {
	switch t {
	case domain.BlockTitle:
		return 0.9
	case domain.BlockSummary:
		return 0.8
	case domain.BlockList:
		return 0.7
	case domain.BlockTable, domain.BlockTableRow:
		return 0.6
	case domain.BlockParagraph:
		return 0.5
	case domain.BlockCode:
		return 0.4
	default:
		return 0.5
	}
}

// importanceScore derives a [0,1] score per §4.2: base-by-type, plus 0.1 per
// matched salience keyword, plus up to 0.2 proportional to block length,
// plus 0.1 if the block contains digits; clamped and rounded to two decimals.
func importanceScore(text string, t domain.BlockType) float64 {
	score := baseImportance(t)

	lower := strings.ToLower(text)
	for _, term := range salienceTerms {
		if strings.Contains(lower, term) {
			score += 0.1
		}
	}

	lengthBonus := float64(len(text)) / 1000.0 * 0.2
	if lengthBonus > 0.2 {
		lengthBonus = 0.2
	}
	score += lengthBonus

	if strings.ContainsAny(text, "0123456789") {
		score += 0.1
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return math.Round(score*100) / 100
}

// splitParagraphs splits raw extracted text on blank-line boundaries, the
// shared strategy for TXT/MD/HTML/EML bodies.
func splitParagraphs(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	var out []string
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// blocksFromParagraphs classifies each paragraph and tracks the current
// section label across title blocks, attaching page where known.
func blocksFromParagraphs(paragraphs []string, page *int) []domain.TextBlock {
	var blocks []domain.TextBlock
	section := ""
	for _, p := range paragraphs {
		t := classifyLine(p)
		text := strings.TrimPrefix(p, "#")
		text = strings.TrimLeft(text, "# ")
		if t == domain.BlockTitle {
			section = strings.TrimSpace(text)
		}
		blocks = append(blocks, domain.TextBlock{
			Text:       strings.TrimSpace(p),
			Type:       t,
			Page:       page,
			Section:    section,
			Importance: importanceScore(p, t),
		})
	}
	return blocks
}
