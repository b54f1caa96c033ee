// Copyright (c) 2025 Northbound System
package chunk

import (
	"strings"
	"testing"

	"github.com/northbound/ragcore/internal/domain"
)

func block(text string, typ domain.BlockType, section string) domain.TextBlock {
	return domain.TextBlock{Text: text, Type: typ, Section: section, Importance: 0.5}
}

func TestChunk_EmptyBlocksReturnsNil(t *testing.T) {
	c := New(DefaultConfig())
	if got := c.Chunk("doc-1", "ws-1", nil); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}

func TestChunk_ParagraphStrategyIsOneBlockPerChunk(t *testing.T) {
	c := New(Config{Strategy: StrategyParagraph, MaxSize: 1000})
	blocks := []domain.TextBlock{
		block("first paragraph", domain.BlockParagraph, "intro"),
		block("second paragraph", domain.BlockParagraph, "intro"),
		block("third paragraph", domain.BlockParagraph, "body"),
	}
	chunks := c.Chunk("doc-1", "ws-1", blocks)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if ch.Index != i {
			t.Errorf("chunk %d: expected dense index %d, got %d", i, i, ch.Index)
		}
	}
}

func TestChunk_SemanticAccumulatesUntilMaxSize(t *testing.T) {
	c := New(Config{Strategy: StrategySemantic, MaxSize: 30, Overlap: 10})
	blocks := []domain.TextBlock{
		block("0123456789", domain.BlockParagraph, "s1"),
		block("0123456789", domain.BlockParagraph, "s1"),
		block("0123456789", domain.BlockParagraph, "s1"),
		block("0123456789", domain.BlockParagraph, "s1"),
	}
	chunks := c.Chunk("doc-1", "ws-1", blocks)
	if len(chunks) < 2 {
		t.Fatalf("expected accumulation to split into multiple chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if ch.Index != i {
			t.Errorf("chunk %d: expected dense index, got %d", i, ch.Index)
		}
	}
}

func TestChunk_SemanticCarriesOverlapIntoNextChunk(t *testing.T) {
	c := New(Config{Strategy: StrategySemantic, MaxSize: 15, Overlap: 10})
	blocks := []domain.TextBlock{
		block("aaaaaaaaaa", domain.BlockParagraph, ""),
		block("bbbbbbbbbb", domain.BlockParagraph, ""),
		block("cccccccccc", domain.BlockParagraph, ""),
	}
	chunks := c.Chunk("doc-1", "ws-1", blocks)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks from overlap-inducing input, got %d", len(chunks))
	}
	// The block that closed chunk 0 should reappear at the start of chunk 1.
	if !strings.Contains(chunks[1].Text, "aaaaaaaaaa") && !strings.Contains(chunks[1].Text, "bbbbbbbbbb") {
		t.Errorf("expected chunk 1 to carry an overlap block from chunk 0, got %q", chunks[1].Text)
	}
}

func TestChunk_FixedStrategySplitsOnCharacterWindows(t *testing.T) {
	c := New(Config{Strategy: StrategyFixed, MaxSize: 10, Overlap: 3})
	text := strings.Repeat("x", 25)
	blocks := []domain.TextBlock{block(text, domain.BlockParagraph, "")}
	chunks := c.Chunk("doc-1", "ws-1", blocks)
	if len(chunks) < 3 {
		t.Fatalf("expected the fixed strategy to produce multiple windows over 25 chars at size 10, got %d", len(chunks))
	}
	for _, ch := range chunks {
		if len(ch.Text) > 10 {
			t.Errorf("expected each fixed window capped at MaxSize=10, got length %d", len(ch.Text))
		}
	}
}

func TestBuildChunk_AggregatesMetadataAcrossBlocks(t *testing.T) {
	page1, page2 := 1, 2
	blocks := []domain.TextBlock{
		{Text: "alpha", Type: domain.BlockTitle, Section: "intro", Page: &page1, Importance: 1.0},
		{Text: "beta", Type: domain.BlockParagraph, Section: "body", Page: &page2, Importance: 0.4},
	}

	// Merge both blocks into one group via the semantic strategy at a
	// generous size budget, then inspect the aggregated metadata.
	semantic := New(Config{Strategy: StrategySemantic, MaxSize: 1000})
	merged := semantic.Chunk("doc-1", "ws-1", blocks)
	if len(merged) != 1 {
		t.Fatalf("expected both blocks to merge into a single chunk, got %d", len(merged))
	}
	ch := merged[0]
	if ch.Metadata.BlockCount != 2 {
		t.Errorf("expected BlockCount 2, got %d", ch.Metadata.BlockCount)
	}
	if diff := ch.Metadata.MeanImportance - 0.7; diff < -0.0001 || diff > 0.0001 {
		t.Errorf("expected mean importance ~0.7, got %v", ch.Metadata.MeanImportance)
	}
	if len(ch.Metadata.Sections) != 2 || len(ch.Metadata.Pages) != 2 {
		t.Errorf("expected both sections and both pages recorded, got sections=%v pages=%v", ch.Metadata.Sections, ch.Metadata.Pages)
	}
	if ch.DocumentID != "doc-1" || ch.WorkspaceID != "ws-1" {
		t.Errorf("expected document/workspace ids to propagate, got %q/%q", ch.DocumentID, ch.WorkspaceID)
	}
}

// TestChunk_IDsAreDeterministicAcrossRuns verifies that re-chunking the
// same document produces identical chunk ids, so a retry after partial
// ingestion progress collides with (and overwrites) the superseded run's
// rows and vectors instead of leaving them as orphans.
func TestChunk_IDsAreDeterministicAcrossRuns(t *testing.T) {
	blocks := []domain.TextBlock{
		{Text: "first block", Type: domain.BlockParagraph, Importance: 0.5},
		{Text: "second block", Type: domain.BlockParagraph, Importance: 0.5},
	}

	chunker := New(Config{Strategy: StrategyParagraph, MaxSize: 1000})
	first := chunker.Chunk("doc-42", "ws-1", blocks)
	second := chunker.Chunk("doc-42", "ws-1", blocks)

	if len(first) != len(second) {
		t.Fatalf("expected identical chunk counts across runs, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("chunk %d: expected identical id across runs, got %q and %q", i, first[i].ID, second[i].ID)
		}
	}

	otherDoc := chunker.Chunk("doc-43", "ws-1", blocks)
	for i := range first {
		if first[i].ID == otherDoc[i].ID {
			t.Errorf("chunk %d: expected different documents to produce different ids, both were %q", i, first[i].ID)
		}
	}
}
