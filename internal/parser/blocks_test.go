// Copyright (c) 2025 Northbound System
package parser

import (
	"testing"

	"github.com/northbound/ragcore/internal/domain"
)

func TestExtract_EmptyTextFileReturnsEmptyBlocks(t *testing.T) {
	blocks, err := Extract([]byte(""), "empty.txt")
	if err != nil {
		t.Fatalf("expected empty file to extract without error, got: %v", err)
	}
	if len(blocks) != 0 {
		t.Errorf("expected zero blocks for an empty file, got %d", len(blocks))
	}
}

func TestExtract_UnsupportedContentTypeIsValidation(t *testing.T) {
	_, err := Extract([]byte("hello"), "archive.zip")
	if !domain.Is(err, domain.KindValidation) {
		t.Fatalf("expected a Validation error for an unsupported type, got: %v", err)
	}
}

func TestExtract_MarkdownHeadingBecomesTitleBlock(t *testing.T) {
	blocks, err := Extract([]byte("# Introduction\n\nThis section explains the setup."), "guide.md")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(blocks) == 0 {
		t.Fatalf("expected at least one block")
	}
	if blocks[0].Type != domain.BlockTitle {
		t.Errorf("expected first block to be a title, got %s", blocks[0].Type)
	}
	if blocks[0].Section == "" {
		t.Errorf("expected the title block to set a section label")
	}
}

func TestImportanceScore_ClampedAndRounded(t *testing.T) {
	score := importanceScore("Introduction to the system, covering 3 key points in detail.", domain.BlockTitle)
	if score < 0 || score > 1 {
		t.Fatalf("expected score in [0,1], got %f", score)
	}
	if score <= 0.9 {
		t.Errorf("expected salience keyword and digit bonuses to raise the base title score above 0.9, got %f", score)
	}
}

func TestClassifyLine_Heuristics(t *testing.T) {
	cases := map[string]domain.BlockType{
		"Executive Summary":        domain.BlockTitle,
		"- first item":             domain.BlockList,
		"1. first item":            domain.BlockList,
		"a | b | c | d":            domain.BlockTable,
		"x = 5":                    domain.BlockCode,
		"just a regular sentence.": domain.BlockParagraph,
	}
	for line, want := range cases {
		if got := classifyLine(line); got != want {
			t.Errorf("classifyLine(%q) = %s, want %s", line, got, want)
		}
	}
}
